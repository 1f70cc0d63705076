package app

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"meshmap/telegram-bot/internal/flow"
	"meshmap/telegram-bot/internal/model"
)

const exportFilename = "markers_export.csv"

// handleAdminMenu shows the administrative inline menu to privileged users.
func (a *App) handleAdminMenu(chatID int64, owner model.Owner) {
	if !a.isAdmin(owner.ID) {
		a.send(chatID, messages["not_authorized"])
		return
	}

	msg := tgbotapi.NewMessage(chatID, adminMenuText(a.engine.LogBroadcast()))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = adminMenuKeyboard(a.engine.LogBroadcast())
	a.deliver(msg)
}

func adminMenuText(logEnabled bool) string {
	state := "❌ OFF"
	if logEnabled {
		state = "✅ ON"
	}
	return "🛠️ <b>Admin menu</b> - Log broadcast: " + state
}

func adminMenuKeyboard(logEnabled bool) tgbotapi.InlineKeyboardMarkup {
	logLabel, logAction := "🔈 Enable logs", "log_on"
	if logEnabled {
		logLabel, logAction = "🔇 Disable logs", "log_off"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(logLabel, logAction)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📊 Statistics", "stats")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📤 Export data", "export")),
	)
}

func backToMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔙 Back to menu", "back_to_menu")),
	)
}

// handleCallback serves every admin menu action.
func (a *App) handleCallback(query *tgbotapi.CallbackQuery) {
	// Close the loading indicator regardless of outcome.
	if _, err := a.bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		a.logger.Error("answer callback", "error", err)
	}

	if query.Message == nil {
		return
	}

	owner := ownerFromUser(query.From)
	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID

	if !a.isAdmin(owner.ID) {
		a.editText(chatID, messageID, messages["not_authorized"])
		return
	}

	switch query.Data {
	case "log_on", "log_off":
		enable := query.Data == "log_on"
		if err := a.engine.SetLogBroadcast(enable); err != nil {
			a.logger.Error("persist log state", "error", err)
			a.editText(chatID, messageID, messages["error_generic"])
			return
		}
		text := "❌ Logs disabled\n\nNo notifications will be sent to admins"
		if enable {
			text = "✅ Logs enabled\n\nAll user actions will be sent to admins"
		}
		a.editWithKeyboard(chatID, messageID, text, backToMenuKeyboard())

	case "stats":
		stats, err := a.engine.ComputeStats()
		if err != nil {
			a.logger.Error("compute stats", "error", err)
			a.editText(chatID, messageID, messages["error_generic"])
			return
		}
		a.editHTMLWithKeyboard(chatID, messageID, statsText(stats), backToMenuKeyboard())

	case "export":
		data, err := a.engine.ExportAll()
		if err != nil {
			a.logger.Error("export markers", "error", err)
			a.editText(chatID, messageID, messages["error_generic"])
			return
		}
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: exportFilename, Bytes: data})
		if _, err := a.bot.Send(doc); err != nil {
			a.logger.Error("send export", "error", err)
			a.editText(chatID, messageID, messages["error_generic"])
			return
		}
		a.editWithKeyboard(chatID, messageID, "✅ File exported successfully!", backToMenuKeyboard())

	case "back_to_menu":
		a.editHTMLWithKeyboard(chatID, messageID, adminMenuText(a.engine.LogBroadcast()), adminMenuKeyboard(a.engine.LogBroadcast()))
	}
}

// handleStatsCommand serves /stats for admins outside the inline menu.
func (a *App) handleStatsCommand(chatID int64, owner model.Owner) {
	if !a.isAdmin(owner.ID) {
		a.send(chatID, messages["not_authorized"])
		return
	}
	stats, err := a.engine.ComputeStats()
	if err != nil {
		a.logger.Error("compute stats", "error", err)
		a.send(chatID, messages["error_generic"])
		return
	}
	a.sendHTML(chatID, statsText(stats))
}

// handleExportCommand serves /export for admins outside the inline menu.
func (a *App) handleExportCommand(chatID int64, owner model.Owner) {
	if !a.isAdmin(owner.ID) {
		a.send(chatID, messages["not_authorized"])
		return
	}
	data, err := a.engine.ExportAll()
	if err != nil {
		a.logger.Error("export markers", "error", err)
		a.send(chatID, messages["error_generic"])
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: exportFilename, Bytes: data})
	a.deliver(doc)
}

func statsText(stats model.Stats) string {
	linkShare := "0%"
	if stats.Total > 0 {
		linkShare = fmt.Sprintf("%.1f%%", 100*float64(stats.WithLink)/float64(stats.Total))
	}

	var b strings.Builder
	b.WriteString("📊 <b>Admin statistics</b>\n\n")
	fmt.Fprintf(&b, "📍 <b>Total markers:</b> %d\n", stats.Total)
	fmt.Fprintf(&b, "👥 <b>Unique users:</b> %d\n", stats.UniqueOwners)
	fmt.Fprintf(&b, "🔗 <b>Markers with links:</b> %d (%s)\n\n", stats.WithLink, linkShare)
	b.WriteString("🏆 <b>Top contributors:</b>\n")

	if len(stats.TopOwners) == 0 {
		b.WriteString("No markers recorded.\n")
	}
	for i, oc := range stats.TopOwners {
		name := "@" + oc.Name
		if oc.Name == "" || oc.Name == model.AnonymousName {
			name = "User #" + string(oc.ID)
		}
		fmt.Fprintf(&b, "%d. %s: %d markers\n", i+1, name, oc.Count)
	}

	fmt.Fprintf(&b, "\n⭐ <b>Special users:</b> %d\n", stats.SpecialOwners)
	fmt.Fprintf(&b, "🔢 <b>Max markers per user:</b> %d (regular), %d (special)",
		model.MaxMarkersPerUser, model.MaxMarkersSpecialUser)
	return b.String()
}

// broadcastOutcome forwards a committed mutation to every admin when the
// broadcast flag is on.
func (a *App) broadcastOutcome(owner model.Owner, outcome *flow.Outcome) {
	if !a.engine.LogBroadcast() {
		return
	}

	var b strings.Builder
	switch outcome.Kind {
	case model.OpAdd:
		b.WriteString("➕ Marker added\n")
		fmt.Fprintf(&b, "👤 User: %s (ID: %s)\n", outcome.Marker.Owner, owner.ID)
		fmt.Fprintf(&b, "📍 Name: %s\n", outcome.Marker.Name)
		fmt.Fprintf(&b, "📶 Frequency: %s\n", outcome.Marker.Frequency)
		if outcome.Marker.Link != "" {
			fmt.Fprintf(&b, "🔗 Link: %s\n", outcome.Marker.Link)
		}
	case model.OpRename:
		b.WriteString("✏️ Marker renamed\n")
		fmt.Fprintf(&b, "👤 User: %s (ID: %s)\n", outcome.Marker.Owner, owner.ID)
		fmt.Fprintf(&b, "📛 Old name: %s\n", outcome.OldName)
		fmt.Fprintf(&b, "🆕 New name: %s\n", outcome.Marker.Name)
	case model.OpDelete:
		b.WriteString("🗑️ Marker deleted\n")
		fmt.Fprintf(&b, "👤 User: %s (ID: %s)\n", outcome.Marker.Owner, owner.ID)
		fmt.Fprintf(&b, "📍 Name: %s\n", outcome.Marker.Name)
		if outcome.Marker.Link != "" {
			fmt.Fprintf(&b, "🔗 Link: %s\n", outcome.Marker.Link)
		}
	}

	for id := range a.admins {
		chatID, err := parseChatID(id)
		if err != nil {
			continue
		}
		a.send(chatID, "📢 LOG\n\n"+b.String())
	}
}

func (a *App) editText(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := a.bot.Send(edit); err != nil {
		a.logger.Error("edit message", "error", err)
	}
}

func (a *App) editWithKeyboard(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb)
	if _, err := a.bot.Send(edit); err != nil {
		a.logger.Error("edit message", "error", err)
	}
}

func (a *App) editHTMLWithKeyboard(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb)
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := a.bot.Send(edit); err != nil {
		a.logger.Error("edit message", "error", err)
	}
}

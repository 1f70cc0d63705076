// Package app wires the flow engine to the Telegram transport and manages
// the bot lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"meshmap/telegram-bot/internal/config"
	"meshmap/telegram-bot/internal/flow"
	"meshmap/telegram-bot/internal/model"
	"meshmap/telegram-bot/internal/store"
)

// App owns the Telegram client and the flow engine.
type App struct {
	cfg    config.Config
	logger *slog.Logger
	engine *flow.Engine
	bot    *tgbotapi.BotAPI
	admins map[model.OwnerID]struct{}
}

// New constructs a new application instance.
func New(cfg config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger, admins: config.IDSet(cfg.AdminIDs)}
}

// Run connects to Telegram and consumes updates until the context is
// cancelled. Updates are handled on a single goroutine, in arrival order.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.BotToken == "" {
		return errors.New("MESHMAP_BOT_TOKEN must be set")
	}

	st, err := store.Open(a.cfg.DataFile)
	if err != nil {
		return err
	}
	logState := store.OpenLogState(a.cfg.LogStateFile)

	tiers := flow.Tiers{
		Admins:  config.IDSet(a.cfg.AdminIDs),
		Special: config.IDSet(a.cfg.SpecialIDs),
	}
	a.engine = flow.New(st, logState, a.logger, tiers, a.cfg.FlowTimeout, flow.NotifierFunc(a.flowExpired))

	bot, err := tgbotapi.NewBotAPI(a.cfg.BotToken)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}
	a.bot = bot
	a.logger.Info("bot authorized", "username", bot.Self.UserName)

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := bot.GetUpdatesChan(updateCfg)

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			a.logger.Info("bot stopped")
			return nil
		case update := <-updates:
			a.handleUpdate(update)
		}
	}
}

func (a *App) handleUpdate(update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		a.handleCallback(update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		a.handleCommand(update.Message)
	case update.Message != nil:
		a.handleFlowInput(update.Message)
	}
}

func (a *App) handleCommand(msg *tgbotapi.Message) {
	owner := ownerFromUser(msg.From)

	switch msg.Command() {
	case "start", "help":
		a.sendHTML(msg.Chat.ID, messages["welcome"])
	case "add":
		a.startFlow(msg.Chat.ID, owner, model.OpAdd)
	case "rename":
		a.startFlow(msg.Chat.ID, owner, model.OpRename)
	case "delete":
		a.startFlow(msg.Chat.ID, owner, model.OpDelete)
	case "list":
		a.handleList(msg.Chat.ID, owner)
	case "abort":
		a.handleAbort(msg.Chat.ID, owner)
	case "admin":
		a.handleAdminMenu(msg.Chat.ID, owner)
	case "stats":
		a.handleStatsCommand(msg.Chat.ID, owner)
	case "export":
		a.handleExportCommand(msg.Chat.ID, owner)
	default:
		a.send(msg.Chat.ID, messages["unknown_command"])
	}
}

func (a *App) startFlow(chatID int64, owner model.Owner, kind model.OperationKind) {
	reply, err := a.engine.StartFlow(owner, kind)
	if err != nil {
		a.send(chatID, startRejectionText(kind, err))
		return
	}
	a.sendReply(chatID, reply)
}

func startRejectionText(kind model.OperationKind, err error) string {
	switch {
	case errors.Is(err, flow.ErrOperationInProgress):
		return messages["operation_in_progress"]
	case errors.Is(err, flow.ErrMarkerLimit):
		return messages["max_markers_reached"]
	case errors.Is(err, flow.ErrNoMarkers) && kind == model.OpRename:
		return messages["no_markers_to_rename"]
	case errors.Is(err, flow.ErrNoMarkers) && kind == model.OpDelete:
		return messages["no_markers_to_delete"]
	}
	return messages["error_generic"]
}

// handleFlowInput routes a plain message (text or location) to the owner's
// active flow, or falls back to the welcome menu.
func (a *App) handleFlowInput(msg *tgbotapi.Message) {
	owner := ownerFromUser(msg.From)

	kind, active := a.engine.ActiveKind(owner.ID)
	if !active {
		a.sendHTML(msg.Chat.ID, messages["welcome"])
		return
	}

	payload := flow.Payload{Text: msg.Text}
	if msg.Location != nil {
		payload.Location = &model.Location{Lat: msg.Location.Latitude, Lon: msg.Location.Longitude}
	}

	reply, err := a.engine.AdvanceFlow(owner, kind, payload)
	switch {
	case errors.Is(err, flow.ErrNoActiveFlow):
		a.sendHTML(msg.Chat.ID, messages["welcome"])
		return
	case errors.Is(err, flow.ErrOperationInProgress):
		a.send(msg.Chat.ID, messages["operation_in_progress"])
		return
	case err != nil:
		a.send(msg.Chat.ID, messages["error_generic"])
		return
	}

	a.sendReply(msg.Chat.ID, reply)
	if reply.Outcome != nil {
		a.broadcastOutcome(owner, reply.Outcome)
	}
}

func (a *App) handleList(chatID int64, owner model.Owner) {
	markers, err := a.engine.ListMarkers(owner.ID)
	if err != nil {
		a.logger.Error("list markers", "owner", owner.ID, "error", err)
		a.send(chatID, messages["error_generic"])
		return
	}
	if len(markers) == 0 {
		a.send(chatID, messages["no_markers"])
		return
	}
	a.send(chatID, markerSummary(markers))
}

func (a *App) handleAbort(chatID int64, owner model.Owner) {
	reply, err := a.engine.CancelFlow(owner)
	if errors.Is(err, flow.ErrNoActiveFlow) {
		a.send(chatID, messages["no_active_operation"])
		return
	}
	if err != nil {
		a.send(chatID, messages["error_generic"])
		return
	}
	a.sendReply(chatID, reply)
}

// flowExpired delivers the timeout notice; it runs on a timer goroutine.
func (a *App) flowExpired(owner model.Owner) {
	chatID, err := parseChatID(owner.ID)
	if err != nil {
		a.logger.Error("expired flow for non-numeric owner", "owner", owner.ID)
		return
	}
	a.send(chatID, messages["timed_out"])
}

// parseChatID maps an owner identity back to a private chat. Telegram user
// IDs double as chat IDs in one-to-one conversations.
func parseChatID(owner model.OwnerID) (int64, error) {
	return strconv.ParseInt(string(owner), 10, 64)
}

// sendReply renders an engine reply, attaching the reply keyboard the prompt
// calls for and removing it otherwise.
func (a *App) sendReply(chatID int64, reply flow.Reply) {
	out := tgbotapi.NewMessage(chatID, renderReplyText(reply))
	out.DisableWebPagePreview = true

	switch reply.Prompt {
	case flow.PromptAskFrequency, flow.WarnInvalidFrequency:
		out.ReplyMarkup = frequencyKeyboard()
	case flow.PromptAskLinkChoice, flow.WarnInvalidChoice:
		out.ReplyMarkup = yesNoKeyboard()
	default:
		out.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}

	a.deliver(out)
}

func frequencyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(model.Frequencies))
	for _, f := range model.Frequencies {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(f)))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}

func yesNoKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("Yes"),
			tgbotapi.NewKeyboardButton("No"),
		),
	)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}

func (a *App) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	a.deliver(msg)
}

func (a *App) sendHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	a.deliver(msg)
}

func (a *App) deliver(c tgbotapi.Chattable) {
	if _, err := a.bot.Send(c); err != nil {
		a.logger.Error("send message", "error", err)
	}
}

func (a *App) isAdmin(owner model.OwnerID) bool {
	_, ok := a.admins[owner]
	return ok
}

func ownerFromUser(u *tgbotapi.User) model.Owner {
	if u == nil {
		return model.Owner{}
	}
	return model.Owner{
		ID:          model.OwnerID(strconv.FormatInt(u.ID, 10)),
		DisplayName: u.UserName,
	}
}

package app

import (
	"fmt"
	"strings"

	"meshmap/telegram-bot/internal/flow"
	"meshmap/telegram-bot/internal/model"
)

// User-facing wording lives here, away from the flow engine.
var messages = map[string]string{
	"welcome": "👋 <b>Welcome!</b> Choose an action:\n\n" +
		"➕ Add a marker - /add\n" +
		"✏️ Rename a marker - /rename\n" +
		"🗑️ Delete a marker - /delete\n" +
		"📍 List your markers - /list\n" +
		"🛑 Cancel the current operation - /abort",
	"unknown_command":       "❌ Unknown command. Use /start to begin",
	"no_markers":            "❌ You have not added any markers yet",
	"no_markers_to_rename":  "❌ You have no markers to rename",
	"no_markers_to_delete":  "❌ You have no markers to delete",
	"operation_in_progress": "❌ You already have an operation in progress. Finish it first or cancel it with /abort",
	"max_markers_reached":   "❌ You already hold the maximum number of markers. Delete one to add another",
	"no_active_operation":   "❌ No operation in progress",
	"not_authorized":        "⛔ Access denied",
	"error_generic":         "❌ Something went wrong. Please report the problem to an admin",
	"cancelled":             "🛑 Operation cancelled",
	"timed_out":             "⏳ Session expired due to inactivity. Use /start to begin again.",
	"your_markers":          "📍 Your markers:\n\n",
	"no_markers_left":       "You have no markers left",
}

var promptTexts = map[flow.PromptID]string{
	flow.PromptAskLatitude:    "📍 Enter the latitude or send your position:",
	flow.PromptAskLongitude:   "📍 Enter the longitude:",
	flow.PromptAskName:        fmt.Sprintf("🔤 Enter the marker name (max %d characters):", model.MaxNameLength),
	flow.PromptAskFrequency:   "📶 Select the operating frequency:",
	flow.PromptAskDescription: fmt.Sprintf("✏️ Enter a description (max %d characters):", model.MaxDescLength),
	flow.PromptAskLinkChoice:  "🔗 Do you want to add a link?",
	flow.PromptAskLink:        "🔗 Enter the link:",
	flow.PromptSelectRename:   "Which marker do you want to rename?\n\n",
	flow.PromptAskNewName:     "🔤 Enter the new name:",
	flow.PromptSelectDelete:   "Which marker do you want to delete?\n\n",

	flow.WarnInvalidCoordinate: "❌ Invalid value. Send your position or enter the coordinate manually",
	flow.WarnInvalidValue:      "❌ Invalid value",
	flow.WarnInvalidName:       "❌ Invalid name",
	flow.WarnNameTooLong:       fmt.Sprintf("❌ The name is too long. Maximum %d characters", model.MaxNameLength),
	flow.WarnDuplicateName:     "❌ You already have a marker with this name. Enter a different name",
	flow.WarnInvalidFrequency:  "❌ Select a valid frequency from the keyboard",
	flow.WarnInvalidChoice:     "❌ Invalid answer. Select an option from the keyboard",
	flow.WarnLinkTooLong:       fmt.Sprintf("❌ The link is too long. Maximum %d characters", model.MaxLinkLength),
	flow.WarnInvalidLink:       "❌ The link is not valid. It must start with http:// or https://",
	flow.WarnInvalidSelection:  "❌ Invalid selection. Try again with a valid value",

	flow.NoticeMarkerAdded:   "✅ Marker added successfully!",
	flow.NoticeNameUpdated:   "✅ Name updated!",
	flow.NoticeMarkerDeleted: "🗑️ Marker deleted",
	flow.NoticeCancelled:     messages["cancelled"],
	flow.NoticeExpired:       messages["timed_out"],
	flow.NoticeDescTooLong:   fmt.Sprintf("❌ The description is too long. Maximum %d characters", model.MaxDescLength),
	flow.NoticeGenericError:  messages["error_generic"],
}

// renderReplyText builds the outgoing text for an engine reply, appending
// selection lists and remaining-marker summaries where the reply carries
// markers.
func renderReplyText(reply flow.Reply) string {
	text, ok := promptTexts[reply.Prompt]
	if !ok {
		text = messages["error_generic"]
	}

	switch reply.Prompt {
	case flow.PromptSelectRename, flow.PromptSelectDelete:
		return text + numberedList(reply.Markers)
	case flow.NoticeMarkerDeleted:
		return text + "\n\n" + markerSummary(reply.Markers)
	}
	return text
}

func numberedList(markers []model.Marker) string {
	var b strings.Builder
	for i, m := range markers {
		fmt.Fprintf(&b, "%d. %s\n", i+1, m.Name)
	}
	return b.String()
}

// markerSummary renders the bullet list shown by /list and after a delete.
func markerSummary(markers []model.Marker) string {
	if len(markers) == 0 {
		return messages["no_markers_left"]
	}

	var b strings.Builder
	b.WriteString(messages["your_markers"])
	for _, m := range markers {
		b.WriteString("• " + m.Name)
		if m.Link != "" {
			b.WriteString(" → " + m.Link)
		}
		b.WriteString("\n")
	}
	return b.String()
}

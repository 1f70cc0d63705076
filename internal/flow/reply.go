package flow

import "meshmap/telegram-bot/internal/model"

// PromptID names what the transport should say next. The engine never renders
// text; the presentation layer maps IDs to wording and keyboards.
type PromptID int

const (
	PromptNone PromptID = iota

	// Forward prompts.
	PromptAskLatitude
	PromptAskLongitude
	PromptAskName
	PromptAskFrequency
	PromptAskDescription
	PromptAskLinkChoice
	PromptAskLink
	PromptSelectRename
	PromptAskNewName
	PromptSelectDelete

	// Re-prompts after a recoverable validation failure; the flow stays in
	// its current state.
	WarnInvalidCoordinate
	WarnInvalidValue
	WarnInvalidName
	WarnNameTooLong
	WarnDuplicateName
	WarnInvalidFrequency
	WarnInvalidChoice
	WarnLinkTooLong
	WarnInvalidLink
	WarnInvalidSelection

	// Terminal notices.
	NoticeMarkerAdded
	NoticeNameUpdated
	NoticeMarkerDeleted
	NoticeCancelled
	NoticeExpired
	NoticeDescTooLong
	NoticeGenericError
)

// Payload is one inbound user event: free text or a structured location.
type Payload struct {
	Text     string
	Location *model.Location
}

// Outcome describes a committed mutation, for admin broadcast and logging.
type Outcome struct {
	Kind      model.OperationKind
	Marker    model.Marker
	OldName   string         // rename only
	Remaining []model.Marker // delete only
}

// Reply is the engine's answer to a start, advance, or cancel event.
type Reply struct {
	Prompt   PromptID
	Markers  []model.Marker // selection list or remaining markers, if any
	Terminal bool
	Outcome  *Outcome
}

func reprompt(id PromptID) Reply {
	return Reply{Prompt: id}
}

func terminal(id PromptID) Reply {
	return Reply{Prompt: id, Terminal: true}
}

package flow

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"meshmap/telegram-bot/internal/model"
	"meshmap/telegram-bot/internal/validate"
)

type addState int

const (
	addAwaitLatitude addState = iota
	addAwaitLongitude
	addAwaitName
	addAwaitFrequency
	addAwaitDescription
	addAwaitLinkChoice
	addAwaitLink
)

// addSession walks a user through the marker form, accumulating the draft
// one validated field at a time.
type addSession struct {
	state  addState
	draft  model.Marker
	hasLat bool
	hasLon bool
}

func (s *addSession) kind() model.OperationKind { return model.OpAdd }

func (s *addSession) advance(e *Engine, owner model.Owner, p Payload) (Reply, error) {
	switch s.state {
	case addAwaitLatitude:
		return s.stepLatitude(p)
	case addAwaitLongitude:
		return s.stepLongitude(p)
	case addAwaitName:
		return s.stepName(e, owner, p)
	case addAwaitFrequency:
		return s.stepFrequency(p)
	case addAwaitDescription:
		return s.stepDescription(p)
	case addAwaitLinkChoice:
		return s.stepLinkChoice(e, owner, p)
	case addAwaitLink:
		return s.stepLink(e, owner, p)
	}
	return Reply{}, fmt.Errorf("add flow in unknown state %d", s.state)
}

// stepLatitude accepts either a structured location, which fills both
// coordinates and skips straight to the name, or free text parsed as the
// latitude alone.
func (s *addSession) stepLatitude(p Payload) (Reply, error) {
	if p.Location != nil {
		s.draft.Lat = p.Location.Lat
		s.draft.Lon = p.Location.Lon
		s.hasLat = true
		s.hasLon = true
		s.state = addAwaitName
		return reprompt(PromptAskName), nil
	}

	lat, err := validate.ParseDecimal(p.Text)
	if err != nil {
		return reprompt(WarnInvalidCoordinate), nil
	}
	s.draft.Lat = lat
	s.hasLat = true
	s.state = addAwaitLongitude
	return reprompt(PromptAskLongitude), nil
}

func (s *addSession) stepLongitude(p Payload) (Reply, error) {
	// The latitude must already be set; its absence means the session was
	// corrupted and the flow cannot continue.
	if !s.hasLat {
		return Reply{}, fmt.Errorf("longitude step reached without latitude")
	}

	lon, err := validate.ParseDecimal(p.Text)
	if err != nil {
		return reprompt(WarnInvalidValue), nil
	}
	s.draft.Lon = lon
	s.hasLon = true
	s.state = addAwaitName
	return reprompt(PromptAskName), nil
}

func (s *addSession) stepName(e *Engine, owner model.Owner, p Payload) (Reply, error) {
	name := validate.SanitizeText(p.Text)
	if name == "" {
		return reprompt(WarnInvalidName), nil
	}
	if utf8.RuneCountInString(name) > model.MaxNameLength {
		return reprompt(WarnNameTooLong), nil
	}

	existing, err := e.store.ListByOwner(owner.ID)
	if err != nil {
		return Reply{}, fmt.Errorf("check duplicate name: %w", err)
	}
	for _, m := range existing {
		if strings.EqualFold(m.Name, name) {
			return reprompt(WarnDuplicateName), nil
		}
	}

	s.draft.Name = name
	s.draft.NodeType = model.DefaultNodeType
	s.draft.Timestamp = e.clock().Unix()
	s.state = addAwaitFrequency
	return reprompt(PromptAskFrequency), nil
}

func (s *addSession) stepFrequency(p Payload) (Reply, error) {
	if !model.ValidFrequency(p.Text) {
		return reprompt(WarnInvalidFrequency), nil
	}
	s.draft.Frequency = p.Text
	s.state = addAwaitDescription
	return reprompt(PromptAskDescription), nil
}

// stepDescription is the one validation failure that terminates the flow
// instead of re-prompting.
func (s *addSession) stepDescription(p Payload) (Reply, error) {
	desc := validate.SanitizeText(p.Text)
	if utf8.RuneCountInString(desc) > model.MaxDescLength {
		return terminal(NoticeDescTooLong), nil
	}
	s.draft.Desc = desc
	s.state = addAwaitLinkChoice
	return reprompt(PromptAskLinkChoice), nil
}

func (s *addSession) stepLinkChoice(e *Engine, owner model.Owner, p Payload) (Reply, error) {
	switch strings.ToLower(strings.TrimSpace(p.Text)) {
	case "yes", "y":
		s.state = addAwaitLink
		return reprompt(PromptAskLink), nil
	case "no", "n":
		s.draft.Link = ""
		return s.commit(e, owner)
	default:
		return reprompt(WarnInvalidChoice), nil
	}
}

func (s *addSession) stepLink(e *Engine, owner model.Owner, p Payload) (Reply, error) {
	link := strings.TrimSpace(p.Text)
	if utf8.RuneCountInString(link) > model.MaxLinkLength {
		return reprompt(WarnLinkTooLong), nil
	}
	if !validate.ValidURL(link) {
		return reprompt(WarnInvalidLink), nil
	}
	s.draft.Link = link
	return s.commit(e, owner)
}

func (s *addSession) commit(e *Engine, owner model.Owner) (Reply, error) {
	// Defensive: every required field must have been collected by now.
	if !s.hasLat || !s.hasLon || s.draft.Name == "" || s.draft.NodeType == "" || s.draft.Frequency == "" {
		return Reply{}, fmt.Errorf("add commit with incomplete draft")
	}

	s.draft.OwnerID = owner.ID
	s.draft.Owner = displayName(owner)
	s.draft.Timestamp = e.clock().Unix()

	committed := s.draft
	err := e.store.Update(func(markers []model.Marker) ([]model.Marker, error) {
		return append(markers, committed), nil
	})
	if err != nil {
		return Reply{}, fmt.Errorf("persist new marker: %w", err)
	}

	reply := terminal(NoticeMarkerAdded)
	reply.Outcome = &Outcome{Kind: model.OpAdd, Marker: committed}
	return reply, nil
}

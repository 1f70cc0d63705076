package flow

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"meshmap/telegram-bot/internal/model"
	"meshmap/telegram-bot/internal/validate"
)

type renameState int

const (
	renameAwaitSelection renameState = iota
	renameAwaitNewName
)

// renameSession lets the owner pick one of their markers by 1-based ordinal
// from the snapshot taken at flow start, then give it a new name. The target
// is resolved at commit by the snapshotted (owner, name) key, so markers
// added or removed meanwhile cannot shift the selection.
type renameSession struct {
	state    renameState
	snapshot []model.Marker
	selected model.Marker
}

func (s *renameSession) kind() model.OperationKind { return model.OpRename }

func (s *renameSession) advance(e *Engine, owner model.Owner, p Payload) (Reply, error) {
	switch s.state {
	case renameAwaitSelection:
		target, ok := selectOrdinal(s.snapshot, p.Text)
		if !ok {
			return reprompt(WarnInvalidSelection), nil
		}
		s.selected = target
		s.state = renameAwaitNewName
		return reprompt(PromptAskNewName), nil

	case renameAwaitNewName:
		return s.stepNewName(e, owner, p)
	}
	return Reply{}, fmt.Errorf("rename flow in unknown state %d", s.state)
}

func (s *renameSession) stepNewName(e *Engine, owner model.Owner, p Payload) (Reply, error) {
	newName := validate.TrimQuotes(p.Text)
	if newName == "" {
		return reprompt(WarnInvalidName), nil
	}
	if utf8.RuneCountInString(newName) > model.MaxNameLength {
		return reprompt(WarnNameTooLong), nil
	}

	// Uniqueness is checked against the owner's current markers, freshly
	// read, not against the snapshot.
	current, err := e.store.ListByOwner(owner.ID)
	if err != nil {
		return Reply{}, fmt.Errorf("check duplicate name: %w", err)
	}
	for _, m := range current {
		if strings.EqualFold(m.Name, newName) {
			return reprompt(WarnDuplicateName), nil
		}
	}

	renamed := s.selected
	renamed.Name = newName
	err = e.store.Update(func(markers []model.Marker) ([]model.Marker, error) {
		for i := range markers {
			if markers[i].OwnerID == owner.ID && markers[i].Name == s.selected.Name {
				markers[i].Name = newName
				return markers, nil
			}
		}
		return nil, errTargetGone
	})
	if err != nil {
		return Reply{}, fmt.Errorf("persist rename: %w", err)
	}

	reply := terminal(NoticeNameUpdated)
	reply.Outcome = &Outcome{Kind: model.OpRename, Marker: renamed, OldName: s.selected.Name}
	return reply, nil
}

// selectOrdinal resolves a 1-based index typed by the user against the
// snapshot list.
func selectOrdinal(snapshot []model.Marker, text string) (model.Marker, bool) {
	idx, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || idx < 1 || idx > len(snapshot) {
		return model.Marker{}, false
	}
	return snapshot[idx-1], true
}

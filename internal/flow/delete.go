package flow

import (
	"fmt"

	"meshmap/telegram-bot/internal/model"
)

// deleteSession has a single state: pick a marker by ordinal from the entry
// snapshot. Deletion removes every live row matching the snapshotted marker's
// owner and name; name equality, not position, is the deletion key.
type deleteSession struct {
	snapshot []model.Marker
}

func (s *deleteSession) kind() model.OperationKind { return model.OpDelete }

func (s *deleteSession) advance(e *Engine, owner model.Owner, p Payload) (Reply, error) {
	target, ok := selectOrdinal(s.snapshot, p.Text)
	if !ok {
		return reprompt(WarnInvalidSelection), nil
	}

	var remaining []model.Marker
	err := e.store.Update(func(markers []model.Marker) ([]model.Marker, error) {
		kept := markers[:0]
		for _, m := range markers {
			if m.OwnerID == owner.ID && m.Name == target.Name {
				continue
			}
			kept = append(kept, m)
		}
		for _, m := range kept {
			if m.OwnerID == owner.ID {
				remaining = append(remaining, m)
			}
		}
		return kept, nil
	})
	if err != nil {
		return Reply{}, fmt.Errorf("persist delete: %w", err)
	}

	reply := terminal(NoticeMarkerDeleted)
	reply.Markers = remaining
	reply.Outcome = &Outcome{Kind: model.OpDelete, Marker: target, Remaining: remaining}
	return reply, nil
}

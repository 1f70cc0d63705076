package flow

import (
	"sync"

	"meshmap/telegram-bot/internal/model"
)

// Guard registers at most one active operation per owner. It is a plain
// single-process registry, not a distributed lock; callers decide what to do
// when registration fails.
type Guard struct {
	mu     sync.Mutex
	active map[model.OwnerID]model.OperationKind
}

func NewGuard() *Guard {
	return &Guard{active: make(map[model.OwnerID]model.OperationKind)}
}

// Begin registers kind as the owner's active operation iff none is recorded.
func (g *Guard) Begin(owner model.OwnerID, kind model.OperationKind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.active[owner]; exists {
		return false
	}
	g.active[owner] = kind
	return true
}

// IsBlocking reports whether the owner has an active operation of a different
// kind. Same-kind re-entry is not itself blocking; every state handler runs
// this check before acting.
func (g *Guard) IsBlocking(owner model.OwnerID, kind model.OperationKind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	active, exists := g.active[owner]
	return exists && active != kind
}

// Active returns the owner's registered operation, if any.
func (g *Guard) Active(owner model.OwnerID) (model.OperationKind, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	kind, ok := g.active[owner]
	return kind, ok
}

// End clears the owner's registration. Clearing an absent entry is a no-op.
func (g *Guard) End(owner model.OwnerID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.active, owner)
}

// Package flow implements the per-user conversational state machines (add,
// rename, delete) over the marker store, together with the single-flight
// operation guard and the inactivity timers.
package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"meshmap/telegram-bot/internal/model"
	"meshmap/telegram-bot/internal/store"
)

// Rejection and lifecycle errors surfaced to the transport.
var (
	ErrOperationInProgress = errors.New("operation already in progress")
	ErrMarkerLimit         = errors.New("marker limit reached")
	ErrNoMarkers           = errors.New("owner has no markers")
	ErrNoActiveFlow        = errors.New("no active flow")
)

// errTargetGone signals that the marker selected at flow start no longer
// exists at commit time.
var errTargetGone = errors.New("selected marker no longer exists")

// Tiers holds the privileged identity sets. Admins have no marker ceiling
// and may use the administrative side-channel; special users get a doubled
// ceiling.
type Tiers struct {
	Admins  map[model.OwnerID]struct{}
	Special map[model.OwnerID]struct{}
}

func (t Tiers) IsAdmin(owner model.OwnerID) bool {
	_, ok := t.Admins[owner]
	return ok
}

func (t Tiers) IsSpecial(owner model.OwnerID) bool {
	_, ok := t.Special[owner]
	return ok
}

// Notifier receives expiry notices the engine cannot return synchronously.
type Notifier interface {
	FlowExpired(owner model.Owner)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(owner model.Owner)

func (f NotifierFunc) FlowExpired(owner model.Owner) { f(owner) }

// session is one in-flight flow instance. advance is always called with the
// engine lock held.
type session interface {
	kind() model.OperationKind
	advance(e *Engine, owner model.Owner, p Payload) (Reply, error)
}

type sessionEntry struct {
	owner model.Owner
	flow  session
	timer *time.Timer
	gen   uint64
}

// Engine owns the guard registry, the session table, and the timers, and is
// the only writer of the marker store during a flow commit.
type Engine struct {
	store    *store.Store
	logState *store.LogState
	logger   *slog.Logger
	tiers    Tiers
	timeout  time.Duration
	notifier Notifier
	clock    func() time.Time

	mu       sync.Mutex
	guard    *Guard
	sessions map[model.OwnerID]*sessionEntry
	nextGen  uint64
}

// New builds an engine. notifier may be nil when no transport wants expiry
// notices (tests, CLI inspection commands).
func New(st *store.Store, logState *store.LogState, logger *slog.Logger, tiers Tiers, timeout time.Duration, notifier Notifier) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    st,
		logState: logState,
		logger:   logger,
		tiers:    tiers,
		timeout:  timeout,
		notifier: notifier,
		clock:    time.Now,
		guard:    NewGuard(),
		sessions: make(map[model.OwnerID]*sessionEntry),
	}
}

// StartFlow begins a flow of the given kind for the owner. It rejects with
// ErrOperationInProgress when any operation is already registered, with
// ErrMarkerLimit when an add would exceed the owner's ceiling, and with
// ErrNoMarkers when a rename/delete finds nothing to select.
func (e *Engine) StartFlow(owner model.Owner, kind model.OperationKind) (Reply, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.guard.IsBlocking(owner.ID, kind) || !e.guard.Begin(owner.ID, kind) {
		return Reply{}, ErrOperationInProgress
	}

	reply, sess, err := e.openSession(owner, kind)
	if err != nil {
		e.guard.End(owner.ID)
		return Reply{}, err
	}

	e.nextGen++
	entry := &sessionEntry{owner: owner, flow: sess, gen: e.nextGen}
	gen := entry.gen
	entry.timer = time.AfterFunc(e.timeout, func() { e.expire(owner.ID, gen) })
	e.sessions[owner.ID] = entry

	e.logger.Info("flow started", "owner", owner.ID, "kind", kind)
	return reply, nil
}

func (e *Engine) openSession(owner model.Owner, kind model.OperationKind) (Reply, session, error) {
	switch kind {
	case model.OpAdd:
		own, err := e.store.ListByOwner(owner.ID)
		if err != nil {
			return Reply{}, nil, fmt.Errorf("count markers: %w", err)
		}
		if limit, limited := e.markerLimit(owner.ID); limited && len(own) >= limit {
			return Reply{}, nil, ErrMarkerLimit
		}
		return reprompt(PromptAskLatitude), &addSession{state: addAwaitLatitude}, nil

	case model.OpRename:
		snapshot, err := e.store.ListByOwner(owner.ID)
		if err != nil {
			return Reply{}, nil, fmt.Errorf("snapshot markers: %w", err)
		}
		if len(snapshot) == 0 {
			return Reply{}, nil, ErrNoMarkers
		}
		return Reply{Prompt: PromptSelectRename, Markers: snapshot}, &renameSession{state: renameAwaitSelection, snapshot: snapshot}, nil

	case model.OpDelete:
		snapshot, err := e.store.ListByOwner(owner.ID)
		if err != nil {
			return Reply{}, nil, fmt.Errorf("snapshot markers: %w", err)
		}
		if len(snapshot) == 0 {
			return Reply{}, nil, ErrNoMarkers
		}
		return Reply{Prompt: PromptSelectDelete, Markers: snapshot}, &deleteSession{snapshot: snapshot}, nil
	}

	return Reply{}, nil, fmt.Errorf("unknown operation kind %q", kind)
}

// markerLimit returns the owner's ceiling. Admins are unlimited.
func (e *Engine) markerLimit(owner model.OwnerID) (int, bool) {
	switch {
	case e.tiers.IsAdmin(owner):
		return 0, false
	case e.tiers.IsSpecial(owner):
		return model.MaxMarkersSpecialUser, true
	default:
		return model.MaxMarkersPerUser, true
	}
}

// AdvanceFlow feeds one user event to the owner's active flow. Recoverable
// validation failures come back as non-terminal warn replies; a terminal
// reply means the flow is finished and the guard slot released. A non-nil
// error aborts the flow with the same cleanup.
func (e *Engine) AdvanceFlow(owner model.Owner, kind model.OperationKind, p Payload) (Reply, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.sessions[owner.ID]
	if !ok {
		return Reply{}, ErrNoActiveFlow
	}
	if e.guard.IsBlocking(owner.ID, kind) || entry.flow.kind() != kind {
		return Reply{}, ErrOperationInProgress
	}

	reply, err := entry.flow.advance(e, owner, p)
	if err != nil {
		e.logger.Error("flow aborted", "owner", owner.ID, "kind", kind, "error", err)
		e.cleanupLocked(owner.ID)
		return terminal(NoticeGenericError), nil
	}
	if reply.Terminal {
		e.cleanupLocked(owner.ID)
		if reply.Outcome != nil {
			e.logger.Info("flow committed", "owner", owner.ID, "kind", kind, "marker", reply.Outcome.Marker.Name)
		}
		return reply, nil
	}

	entry.timer.Reset(e.timeout)
	return reply, nil
}

// CancelFlow honors an explicit cancel signal from any non-terminal state.
func (e *Engine) CancelFlow(owner model.Owner) (Reply, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sessions[owner.ID]; !ok {
		// A guard entry without a session cannot survive cleanup, but end it
		// anyway; End is idempotent.
		e.guard.End(owner.ID)
		return Reply{}, ErrNoActiveFlow
	}

	e.cleanupLocked(owner.ID)
	e.logger.Info("flow cancelled", "owner", owner.ID)
	return terminal(NoticeCancelled), nil
}

// ActiveKind reports the owner's registered operation, if any. The transport
// uses it to route plain-text events to the right flow.
func (e *Engine) ActiveKind(owner model.OwnerID) (model.OperationKind, bool) {
	return e.guard.Active(owner)
}

// expire force-terminates a flow that saw no qualifying event within the
// timeout. The generation check keeps a stale timer from clearing a slot a
// newer flow occupies.
func (e *Engine) expire(owner model.OwnerID, gen uint64) {
	e.mu.Lock()
	entry, ok := e.sessions[owner]
	if !ok || entry.gen != gen {
		e.mu.Unlock()
		return
	}
	e.cleanupLocked(owner)
	e.mu.Unlock()

	e.logger.Info("flow expired", "owner", owner)
	if e.notifier != nil {
		e.notifier.FlowExpired(entry.owner)
	}
}

// cleanupLocked releases guard, session, and timer. It runs on every exit
// path: commit, cancel, abort, and expiry.
func (e *Engine) cleanupLocked(owner model.OwnerID) {
	if entry, ok := e.sessions[owner]; ok {
		entry.timer.Stop()
		delete(e.sessions, owner)
	}
	e.guard.End(owner)
}

// ListMarkers returns the owner's markers in file order.
func (e *Engine) ListMarkers(owner model.OwnerID) ([]model.Marker, error) {
	return e.store.ListByOwner(owner)
}

// ExportAll returns the backing file exactly as stored.
func (e *Engine) ExportAll() ([]byte, error) {
	return e.store.ExportRaw()
}

// LogBroadcast reports whether commit notices should be broadcast to admins.
func (e *Engine) LogBroadcast() bool {
	return e.logState.Enabled()
}

// SetLogBroadcast toggles and persists the broadcast flag.
func (e *Engine) SetLogBroadcast(enabled bool) error {
	return e.logState.SetEnabled(enabled)
}

// ComputeStats summarizes the dataset for the admin side-channel. Top owners
// are ordered by marker count, ties broken by owner ID for stable output.
func (e *Engine) ComputeStats() (model.Stats, error) {
	markers, err := e.store.ReadAll()
	if err != nil {
		return model.Stats{}, err
	}

	counts := make(map[model.OwnerID]*model.OwnerCount)
	stats := model.Stats{Total: len(markers)}
	for _, m := range markers {
		if m.Link != "" {
			stats.WithLink++
		}
		oc, ok := counts[m.OwnerID]
		if !ok {
			oc = &model.OwnerCount{ID: m.OwnerID, Name: m.Owner}
			counts[m.OwnerID] = oc
		}
		oc.Count++
	}

	stats.UniqueOwners = len(counts)
	top := make([]model.OwnerCount, 0, len(counts))
	for id, oc := range counts {
		if e.tiers.IsSpecial(id) {
			stats.SpecialOwners++
		}
		top = append(top, *oc)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].ID < top[j].ID
	})
	if len(top) > 5 {
		top = top[:5]
	}
	stats.TopOwners = top

	return stats, nil
}

// displayName falls back to the anonymous sentinel.
func displayName(owner model.Owner) string {
	if strings.TrimSpace(owner.DisplayName) == "" {
		return model.AnonymousName
	}
	return owner.DisplayName
}

package editor

import (
	"context"
	"time"

	"github.com/framecut/timeline/internal/timeline"
)

// HistoryStore persists undo/redo stacks per project and session scope.
type HistoryStore interface {
	Load(ctx context.Context, projectID, scope string) (undo, redo []timeline.HistoryEntry, err error)
	Save(ctx context.Context, projectID, scope string, undo, redo []timeline.HistoryEntry) error
	Clear(ctx context.Context, projectID, scope string) error
}

// History holds the undo and redo stacks of one project, oldest entry
// first. It is not safe for concurrent use; the dispatcher serializes access.
type History struct {
	undo []timeline.HistoryEntry
	redo []timeline.HistoryEntry

	store     HistoryStore
	projectID string
	scope     string
	ttl       time.Duration
	now       func() time.Time
}

func NewHistory(store HistoryStore, projectID, scope string, ttl time.Duration) *History {
	if ttl <= 0 {
		ttl = timeline.HistoryTTL
	}
	return &History{
		store:     store,
		projectID: projectID,
		scope:     scope,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Load replaces both stacks with the persisted ones, minus entries older
// than the TTL.
func (h *History) Load(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	undo, redo, err := h.store.Load(ctx, h.projectID, h.scope)
	if err != nil {
		return err
	}
	now := h.now()
	h.undo = timeline.PruneStale(undo, now, h.ttl)
	h.redo = timeline.PruneStale(redo, now, h.ttl)
	return nil
}

// Save persists both stacks. Once both are empty the scope is cleared
// from the store.
func (h *History) Save(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	if len(h.undo) == 0 && len(h.redo) == 0 {
		return h.store.Clear(ctx, h.projectID, h.scope)
	}
	return h.store.Save(ctx, h.projectID, h.scope, h.undo, h.redo)
}

// Record pushes a freshly dispatched action and clears the redo stack.
func (h *History) Record(action timeline.Action) {
	h.undo = append(h.undo, h.entry(action, action.IdempotencyKey))
	h.redo = nil
}

func (h *History) popUndo() (timeline.HistoryEntry, bool) {
	return pop(&h.undo)
}

func (h *History) popRedo() (timeline.HistoryEntry, bool) {
	return pop(&h.redo)
}

func (h *History) pushUndo(action timeline.Action, key string) {
	h.undo = append(h.undo, h.entry(action, key))
}

func (h *History) pushRedo(action timeline.Action, key string) {
	h.redo = append(h.redo, h.entry(action, key))
}

// Drop removes every entry for actionID from both stacks.
func (h *History) Drop(actionID string) {
	h.undo = without(h.undo, actionID)
	h.redo = without(h.redo, actionID)
}

func (h *History) Flush() {
	h.undo = nil
	h.redo = nil
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Depth returns the sizes of the undo and redo stacks.
func (h *History) Depth() (undo, redo int) {
	return len(h.undo), len(h.redo)
}

func (h *History) entry(action timeline.Action, key string) timeline.HistoryEntry {
	return timeline.HistoryEntry{Action: action, IdempotencyKey: key, RecordedAt: h.now().UTC()}
}

func pop(stack *[]timeline.HistoryEntry) (timeline.HistoryEntry, bool) {
	s := *stack
	if len(s) == 0 {
		return timeline.HistoryEntry{}, false
	}
	top := s[len(s)-1]
	*stack = s[:len(s)-1]
	return top, true
}

func without(stack []timeline.HistoryEntry, actionID string) []timeline.HistoryEntry {
	out := stack[:0]
	for _, e := range stack {
		if e.Action.ID != actionID {
			out = append(out, e)
		}
	}
	return out
}

// restoreUndo and restoreRedo put back an entry popped by an undo or redo
// that never reached the server.
func (h *History) restoreUndo(e timeline.HistoryEntry) {
	h.undo = append(without(h.undo, e.Action.ID), e)
}

func (h *History) restoreRedo(e timeline.HistoryEntry) {
	h.redo = append(without(h.redo, e.Action.ID), e)
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/framecut/timeline/internal/timeline"
)

const (
	stackUndo = "undo"
	stackRedo = "redo"
)

// HistoryStore persists the editor's undo/redo stacks per
// (project, session scope) in the local database.
type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Load returns both stacks oldest first. Stale entries are not pruned here;
// the editor prunes them against its own clock.
func (h *HistoryStore) Load(ctx context.Context, projectID, scope string) (undo, redo []timeline.HistoryEntry, err error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT stack, action, idempotency_key, recorded_at
		FROM history_entries
		WHERE project_id = ? AND session_scope = ?
		ORDER BY stack, position
	`, projectID, scope)
	if err != nil {
		return nil, nil, fmt.Errorf("load history: %w", classify(err))
	}
	defer rows.Close()

	for rows.Next() {
		var stack, actionJSON, key, recordedAt string
		if err := rows.Scan(&stack, &actionJSON, &key, &recordedAt); err != nil {
			return nil, nil, fmt.Errorf("scan history: %w", err)
		}
		var e timeline.HistoryEntry
		if err := json.Unmarshal([]byte(actionJSON), &e.Action); err != nil {
			return nil, nil, fmt.Errorf("decode history action: %w", err)
		}
		e.IdempotencyKey = key
		if e.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt); err != nil {
			return nil, nil, fmt.Errorf("decode history recorded_at %q: %w", recordedAt, err)
		}

		switch stack {
		case stackUndo:
			undo = append(undo, e)
		case stackRedo:
			redo = append(redo, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate history: %w", classify(err))
	}
	return undo, redo, nil
}

// Save replaces both stacks atomically.
func (h *HistoryStore) Save(ctx context.Context, projectID, scope string, undo, redo []timeline.HistoryEntry) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save history: %w", classify(err))
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM history_entries WHERE project_id = ? AND session_scope = ?
	`, projectID, scope); err != nil {
		return fmt.Errorf("clear history: %w", classify(err))
	}

	stacks := []struct {
		name    string
		entries []timeline.HistoryEntry
	}{{stackUndo, undo}, {stackRedo, redo}}

	for _, st := range stacks {
		for pos, e := range st.entries {
			actionJSON, err := json.Marshal(e.Action)
			if err != nil {
				return fmt.Errorf("encode history action: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO history_entries (project_id, session_scope, stack, position, action, idempotency_key, recorded_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, projectID, scope, st.name, pos, string(actionJSON), e.IdempotencyKey, e.RecordedAt.UTC().Format(time.RFC3339Nano)); err != nil {
				return fmt.Errorf("insert history: %w", classify(err))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", classify(err))
	}
	return nil
}

// Clear removes both stacks.
func (h *HistoryStore) Clear(ctx context.Context, projectID, scope string) error {
	_, err := h.db.ExecContext(ctx, `
		DELETE FROM history_entries WHERE project_id = ? AND session_scope = ?
	`, projectID, scope)
	if err != nil {
		return fmt.Errorf("clear history: %w", classify(err))
	}
	return nil
}

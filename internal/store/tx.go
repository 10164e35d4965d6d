package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/framecut/timeline/internal/timeline"
)

// Tx is one write transaction against the scene store. All gateway
// mutations of a request go through a single Tx.
type Tx struct {
	tx *sql.Tx
}

func (s *SQLiteStore) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", classify(err))
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", classify(err))
	}
	return nil
}

// Rollback is a no-op after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

func (t *Tx) ProjectRevision(ctx context.Context, projectID string) (int64, error) {
	var revision int64
	err := t.tx.QueryRowContext(ctx, "SELECT revision FROM projects WHERE id = ?", projectID).Scan(&revision)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("read revision: %w", classify(err))
	}
	return revision, nil
}

// BumpRevision advances the project revision by one if it still equals
// expected. It returns the new revision, or a conflict error when another
// writer got there first.
func (t *Tx) BumpRevision(ctx context.Context, projectID string, expected int64) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE projects SET revision = revision + 1 WHERE id = ? AND revision = ?
	`, projectID, expected)
	if err != nil {
		return 0, fmt.Errorf("bump revision: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bump revision: %w", err)
	}
	if n == 0 {
		current, err := t.ProjectRevision(ctx, projectID)
		if err != nil {
			return 0, err
		}
		return 0, timeline.NewConflictError(projectID, expected, current)
	}
	return expected + 1, nil
}

// Scenes returns the project's scenes ordered by order, then id.
func (t *Tx) Scenes(ctx context.Context, projectID string) ([]timeline.Scene, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, project_id, "order", duration_frames, offset_frames, name, payload
		FROM scenes WHERE project_id = ?
		ORDER BY "order", id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query scenes: %w", classify(err))
	}
	defer rows.Close()

	scenes := []timeline.Scene{}
	for rows.Next() {
		sc, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		scenes = append(scenes, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenes: %w", classify(err))
	}
	return scenes, nil
}

// SceneExists reports whether id is taken by any project.
func (t *Tx) SceneExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, "SELECT 1 FROM scenes WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("scene exists: %w", classify(err))
	}
	return true, nil
}

func (t *Tx) InsertScene(ctx context.Context, sc timeline.Scene) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO scenes (id, project_id, "order", duration_frames, offset_frames, name, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sc.ID, sc.ProjectID, sc.Order, sc.DurationFrames, sc.OffsetFrames, sc.Name, nullPayload(sc.Payload))
	if err != nil {
		return fmt.Errorf("insert scene %s: %w", sc.ID, classify(err))
	}
	return nil
}

// UpdateSceneFields writes everything but the order, which only the
// normalizer assigns.
func (t *Tx) UpdateSceneFields(ctx context.Context, sc timeline.Scene) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE scenes SET duration_frames = ?, offset_frames = ?, name = ?, payload = ?
		WHERE id = ? AND project_id = ?
	`, sc.DurationFrames, sc.OffsetFrames, sc.Name, nullPayload(sc.Payload), sc.ID, sc.ProjectID)
	if err != nil {
		return fmt.Errorf("update scene %s: %w", sc.ID, classify(err))
	}
	return nil
}

func (t *Tx) UpdateSceneOrder(ctx context.Context, projectID, id string, order int) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE scenes SET "order" = ? WHERE id = ? AND project_id = ?
	`, order, id, projectID)
	if err != nil {
		return fmt.Errorf("update order of %s: %w", id, classify(err))
	}
	return nil
}

func (t *Tx) DeleteScene(ctx context.Context, projectID, id string) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM scenes WHERE id = ? AND project_id = ?", id, projectID)
	if err != nil {
		return fmt.Errorf("delete scene %s: %w", id, classify(err))
	}
	return nil
}

func (t *Tx) LookupLedger(ctx context.Context, projectID, key string) (*timeline.LedgerEntry, error) {
	return lookupLedger(ctx, t.tx, projectID, key)
}

// InsertLedger records an applied write. A second write with the same
// (project, key) fails with an error satisfying IsDuplicateKey.
func (t *Tx) InsertLedger(ctx context.Context, e timeline.LedgerEntry) error {
	if e.AppliedAt.IsZero() {
		e.AppliedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO operation_ledger (project_id, idempotency_key, action_type, direction, result_revision, applied_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ProjectID, e.IdempotencyKey, string(e.ActionType), string(e.Direction), e.ResultRevision, e.AppliedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert ledger: %w", classify(err))
	}
	return nil
}

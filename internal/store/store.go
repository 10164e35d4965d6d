// Package store is the SQLite scene store of record: projects, their
// ordered scenes, the operation ledger and the local editing history.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/framecut/timeline/internal/timeline"
)

// SceneStore is the read side consumed by the editor and the HTTP layer.
type SceneStore interface {
	GetProject(ctx context.Context, id string) (*timeline.Project, error)
	GetProjectScenes(ctx context.Context, projectID string) ([]timeline.Scene, int64, error)
}

type SQLiteStore struct {
	db *sql.DB
}

func New(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) CreateProject(ctx context.Context, p *timeline.Project) error {
	if p.FPS <= 0 {
		p.FPS = timeline.DefaultFPS
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, fps, revision, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.FPS, p.Revision, p.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("create project: %w", classify(err))
	}
	return nil
}

// GetProject returns nil, nil when the project does not exist.
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*timeline.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, fps, revision, created_at FROM projects WHERE id = ?
	`, id)

	var p timeline.Project
	var createdAt string
	err := row.Scan(&p.ID, &p.Name, &p.FPS, &p.Revision, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", classify(err))
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*timeline.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, fps, revision, created_at FROM projects ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", classify(err))
	}
	defer rows.Close()

	var projects []*timeline.Project
	for rows.Next() {
		var p timeline.Project
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.FPS, &p.Revision, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

// GetProjectScenes returns the project's scenes in timeline order together
// with the revision they were read at. Both come from one transaction.
func (s *SQLiteStore) GetProjectScenes(ctx context.Context, projectID string) ([]timeline.Scene, int64, error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback()

	revision, err := tx.ProjectRevision(ctx, projectID)
	if err != nil {
		return nil, 0, err
	}
	scenes, err := tx.Scenes(ctx, projectID)
	if err != nil {
		return nil, 0, err
	}
	return scenes, revision, nil
}

// LookupLedger returns nil, nil when no write with key was applied.
func (s *SQLiteStore) LookupLedger(ctx context.Context, projectID, key string) (*timeline.LedgerEntry, error) {
	return lookupLedger(ctx, s.db, projectID, key)
}

func (s *SQLiteStore) ListLedger(ctx context.Context, projectID string, limit int) ([]timeline.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, idempotency_key, action_type, direction, result_revision, applied_at
		FROM operation_ledger WHERE project_id = ?
		ORDER BY result_revision DESC LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", classify(err))
	}
	defer rows.Close()

	var entries []timeline.LedgerEntry
	for rows.Next() {
		e, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func lookupLedger(ctx context.Context, q queryRower, projectID, key string) (*timeline.LedgerEntry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT project_id, idempotency_key, action_type, direction, result_revision, applied_at
		FROM operation_ledger WHERE project_id = ? AND idempotency_key = ?
	`, projectID, key)
	e, err := scanLedger(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup ledger: %w", classify(err))
	}
	return e, nil
}

func scanLedger(row rowScanner) (*timeline.LedgerEntry, error) {
	var e timeline.LedgerEntry
	var actionType, direction, appliedAt string
	if err := row.Scan(&e.ProjectID, &e.IdempotencyKey, &actionType, &direction, &e.ResultRevision, &appliedAt); err != nil {
		return nil, err
	}
	e.ActionType = timeline.ActionType(actionType)
	e.Direction = timeline.Direction(direction)
	e.AppliedAt, _ = time.Parse(time.RFC3339Nano, appliedAt)
	return &e, nil
}

func scanScene(row rowScanner) (timeline.Scene, error) {
	var sc timeline.Scene
	var payload sql.NullString
	err := row.Scan(&sc.ID, &sc.ProjectID, &sc.Order, &sc.DurationFrames, &sc.OffsetFrames, &sc.Name, &payload)
	if err != nil {
		return timeline.Scene{}, err
	}
	if payload.Valid && payload.String != "" {
		sc.Payload = json.RawMessage(payload.String)
	}
	return sc, nil
}

func nullPayload(p json.RawMessage) sql.NullString {
	if len(p) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(p), Valid: true}
}

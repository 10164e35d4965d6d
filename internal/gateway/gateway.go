// Package gateway is the only path by which timeline mutations reach the
// scene store. Every write is checked against the operation ledger and the
// project revision, applied in one transaction, normalized, and recorded.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/framecut/timeline/internal/logging"
	"github.com/framecut/timeline/internal/store"
	"github.com/framecut/timeline/internal/timeline"
)

const tracerName = "github.com/framecut/timeline/internal/gateway"

// Store is the slice of the scene store the gateway needs.
type Store interface {
	Begin(ctx context.Context) (*store.Tx, error)
	LookupLedger(ctx context.Context, projectID, key string) (*timeline.LedgerEntry, error)
	GetProjectScenes(ctx context.Context, projectID string) ([]timeline.Scene, int64, error)
}

// Publisher is told about every committed revision.
type Publisher interface {
	Publish(projectID string, revision int64)
}

type WriteRequest struct {
	ProjectID      string
	ActionType     timeline.ActionType
	Direction      timeline.Direction
	Payload        timeline.Payload
	ClientRevision *int64
	IdempotencyKey string
}

type WriteResult struct {
	NewRevision     int64            `json:"newRevision"`
	AffectedScenes  []timeline.Scene `json:"affectedScenes"`
	DeletedSceneIDs []string         `json:"deletedSceneIds"`
	Scenes          []timeline.Scene `json:"scenes"`
	Replayed        bool             `json:"replayed"`
}

type Gateway struct {
	store      Store
	normalizer *Normalizer
	publisher  Publisher
	logger     *slog.Logger
	tracer     trace.Tracer
}

func New(s Store, publisher Publisher, logger *slog.Logger) *Gateway {
	return &Gateway{
		store:      s,
		normalizer: NewNormalizer(),
		publisher:  publisher,
		logger:     logging.WithComponent(logger, "gateway"),
		tracer:     otel.Tracer(tracerName),
	}
}

// Write applies one action payload at most once per idempotency key.
func (g *Gateway) Write(ctx context.Context, req WriteRequest) (*WriteResult, error) {
	if req.Direction == "" {
		req.Direction = timeline.DirectionForward
	}

	ctx, span := g.tracer.Start(ctx, "gateway.Write", trace.WithAttributes(
		attribute.String("project.id", req.ProjectID),
		attribute.String("action.type", string(req.ActionType)),
		attribute.String("action.direction", string(req.Direction)),
	))
	defer span.End()

	res, err := g.write(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(timeline.CodeOf(err)))
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("revision.new", res.NewRevision),
		attribute.Bool("write.replayed", res.Replayed),
	)
	return res, nil
}

func (g *Gateway) write(ctx context.Context, req WriteRequest) (*WriteResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	log := logging.WithIdempotencyKey(logging.WithProjectID(g.logger, req.ProjectID), req.IdempotencyKey)

	entry, err := g.store.LookupLedger(ctx, req.ProjectID, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return g.replay(ctx, log, req, entry)
	}

	tx, err := g.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// A retry of the same request may have committed since the lookup above.
	entry, err = tx.LookupLedger(ctx, req.ProjectID, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		tx.Rollback()
		return g.replay(ctx, log, req, entry)
	}

	current, err := tx.ProjectRevision(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &timeline.Error{Code: timeline.CodeValidation, Message: "project not found", ProjectID: req.ProjectID, Err: err}
		}
		return nil, err
	}

	if req.ClientRevision != nil && *req.ClientRevision != current {
		log.Info("write rejected: stale revision", "client_revision", *req.ClientRevision, "current_revision", current)
		return nil, timeline.NewConflictError(req.ProjectID, *req.ClientRevision, current)
	}

	prev, err := tx.Scenes(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	payload, err := bindProject(req.Payload, req.ProjectID)
	if err != nil {
		return nil, err
	}

	next, err := timeline.Apply(prev, payload)
	if err != nil {
		return nil, err
	}

	changed, deleted, err := g.persistDiff(ctx, tx, req.ProjectID, prev, next)
	if err != nil {
		return nil, err
	}

	reordered, err := g.normalizer.Normalize(ctx, tx, req.ProjectID, sceneIDs(next))
	if err != nil {
		return nil, err
	}

	newRevision, err := tx.BumpRevision(ctx, req.ProjectID, current)
	if err != nil {
		return nil, err
	}

	err = tx.InsertLedger(ctx, timeline.LedgerEntry{
		ProjectID:      req.ProjectID,
		IdempotencyKey: req.IdempotencyKey,
		ActionType:     req.ActionType,
		Direction:      req.Direction,
		ResultRevision: newRevision,
	})
	if store.IsDuplicateKey(err) {
		tx.Rollback()
		entry, lookupErr := g.store.LookupLedger(ctx, req.ProjectID, req.IdempotencyKey)
		if lookupErr != nil || entry == nil {
			return nil, timeline.NewFatalError("ledger entry vanished after duplicate key", err)
		}
		return g.replay(ctx, log, req, entry)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info("write committed",
		"action", req.ActionType,
		"direction", req.Direction,
		"revision", newRevision,
		"changed", len(changed),
		"reordered", len(reordered),
		"deleted", len(deleted),
	)

	if g.publisher != nil {
		g.publisher.Publish(req.ProjectID, newRevision)
	}

	return &WriteResult{
		NewRevision:     newRevision,
		AffectedScenes:  affectedScenes(next, changed, reordered),
		DeletedSceneIDs: deleted,
		Scenes:          next,
	}, nil
}

// replay answers a retried write from the ledger without mutating anything.
func (g *Gateway) replay(ctx context.Context, log *slog.Logger, req WriteRequest, entry *timeline.LedgerEntry) (*WriteResult, error) {
	if entry.ActionType != req.ActionType || entry.Direction != req.Direction {
		log.Warn("idempotency key reused for a different action",
			"recorded_action", entry.ActionType,
			"requested_action", req.ActionType,
		)
	}
	scenes, _, err := g.store.GetProjectScenes(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	log.Info("write replayed", "revision", entry.ResultRevision)
	return &WriteResult{
		NewRevision:     entry.ResultRevision,
		AffectedScenes:  []timeline.Scene{},
		DeletedSceneIDs: []string{},
		Scenes:          scenes,
		Replayed:        true,
	}, nil
}

// persistDiff writes the row-level difference between prev and next.
// Inserted rows get their intended position as a provisional order; the
// normalizer settles all orders afterwards.
func (g *Gateway) persistDiff(ctx context.Context, tx *store.Tx, projectID string, prev, next []timeline.Scene) (changed, deleted []string, err error) {
	before := make(map[string]timeline.Scene, len(prev))
	for _, s := range prev {
		before[s.ID] = s
	}
	after := make(map[string]bool, len(next))

	for i, s := range next {
		after[s.ID] = true
		old, existed := before[s.ID]
		if !existed {
			taken, err := tx.SceneExists(ctx, s.ID)
			if err != nil {
				return nil, nil, err
			}
			if taken {
				return nil, nil, timeline.Validationf("scene id %q is already in use", s.ID)
			}
			s.Order = i
			if err := tx.InsertScene(ctx, s); err != nil {
				return nil, nil, err
			}
			changed = append(changed, s.ID)
			continue
		}
		if fieldsDiffer(old, s) {
			if err := tx.UpdateSceneFields(ctx, s); err != nil {
				return nil, nil, err
			}
			changed = append(changed, s.ID)
		}
	}

	deleted = []string{}
	for _, s := range prev {
		if after[s.ID] {
			continue
		}
		if err := tx.DeleteScene(ctx, projectID, s.ID); err != nil {
			return nil, nil, err
		}
		deleted = append(deleted, s.ID)
	}
	return changed, deleted, nil
}

// GetProjectScenes reads canonical state straight from the store, so a
// Gateway can stand in for the remote client when editing a local database.
func (g *Gateway) GetProjectScenes(ctx context.Context, projectID string) ([]timeline.Scene, int64, error) {
	return g.store.GetProjectScenes(ctx, projectID)
}

// RepairOrder renumbers a project whose stored orders have gaps or
// duplicates, keeping the current (order, id) sequence. The revision is
// bumped only when something changed.
func (g *Gateway) RepairOrder(ctx context.Context, projectID string) (int, error) {
	tx, err := g.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	current, err := tx.ProjectRevision(ctx, projectID)
	if err != nil {
		return 0, err
	}
	reordered, err := g.normalizer.Normalize(ctx, tx, projectID, nil)
	if err != nil {
		return 0, err
	}
	if len(reordered) == 0 {
		return 0, nil
	}
	newRevision, err := tx.BumpRevision(ctx, projectID, current)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	logging.WithProjectID(g.logger, projectID).Warn("repaired scene order", "rows", len(reordered), "revision", newRevision)
	if g.publisher != nil {
		g.publisher.Publish(projectID, newRevision)
	}
	return len(reordered), nil
}

func validateRequest(req WriteRequest) error {
	if strings.TrimSpace(req.ProjectID) == "" {
		return timeline.Validationf("projectId is required")
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return timeline.Validationf("idempotencyKey is required")
	}
	if req.ClientRevision != nil && *req.ClientRevision < 0 {
		return timeline.Validationf("clientRevision must not be negative")
	}
	return timeline.ValidateShape(req.ActionType, req.Direction, req.Payload)
}

// bindProject stamps inserted snapshots with the target project and rejects
// snapshots that belong to another one.
func bindProject(p timeline.Payload, projectID string) (timeline.Payload, error) {
	ops := make([]timeline.Op, len(p.Ops))
	for i, op := range p.Ops {
		if op.Scene != nil {
			sc := op.Scene.Clone()
			if sc.ProjectID == "" {
				sc.ProjectID = projectID
			}
			if sc.ProjectID != projectID {
				return timeline.Payload{}, timeline.Validationf("scene %q belongs to project %q", sc.ID, sc.ProjectID)
			}
			op.Scene = &sc
		}
		ops[i] = op
	}
	return timeline.Payload{Ops: ops}, nil
}

func fieldsDiffer(a, b timeline.Scene) bool {
	return a.DurationFrames != b.DurationFrames ||
		a.OffsetFrames != b.OffsetFrames ||
		a.Name != b.Name ||
		string(a.Payload) != string(b.Payload)
}

func sceneIDs(scenes []timeline.Scene) []string {
	out := make([]string, len(scenes))
	for i, s := range scenes {
		out[i] = s.ID
	}
	return out
}

// affectedScenes returns, in timeline order, every scene whose row was
// inserted, updated or renumbered.
func affectedScenes(next []timeline.Scene, groups ...[]string) []timeline.Scene {
	touched := make(map[string]bool)
	for _, g := range groups {
		for _, id := range g {
			touched[id] = true
		}
	}
	out := []timeline.Scene{}
	for _, s := range next {
		if touched[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

func (r *WriteResult) String() string {
	return fmt.Sprintf("revision=%d affected=%d deleted=%d replayed=%t",
		r.NewRevision, len(r.AffectedScenes), len(r.DeletedSceneIDs), r.Replayed)
}

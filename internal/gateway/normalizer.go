package gateway

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/framecut/timeline/internal/store"
	"github.com/framecut/timeline/internal/timeline"
)

// Normalizer keeps each project's scene orders at exactly 0..N-1. It runs
// inside the write transaction, after the structural change.
type Normalizer struct {
	tracer trace.Tracer
}

func NewNormalizer() *Normalizer {
	return &Normalizer{tracer: otel.Tracer(tracerName)}
}

// Normalize assigns order = position in intended and updates only rows whose
// order changed, returning their ids. A nil intended keeps the stored
// (order, id) sequence.
func (n *Normalizer) Normalize(ctx context.Context, tx *store.Tx, projectID string, intended []string) ([]string, error) {
	ctx, span := n.tracer.Start(ctx, "gateway.Normalize", trace.WithAttributes(attribute.String("project.id", projectID)))
	defer span.End()

	rows, err := tx.Scenes(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if intended == nil {
		intended = sceneIDs(rows)
	}
	if len(rows) != len(intended) {
		return nil, timeline.NewFatalError(
			fmt.Sprintf("normalize %s: %d stored scenes, %d intended", projectID, len(rows), len(intended)), nil)
	}

	position := make(map[string]int, len(intended))
	for i, id := range intended {
		position[id] = i
	}

	var changed []string
	for _, row := range rows {
		want, ok := position[row.ID]
		if !ok {
			return nil, timeline.NewFatalError(fmt.Sprintf("normalize %s: scene %s not in intended order", projectID, row.ID), nil)
		}
		if row.Order == want {
			continue
		}
		if err := tx.UpdateSceneOrder(ctx, projectID, row.ID, want); err != nil {
			return nil, err
		}
		changed = append(changed, row.ID)
	}

	span.SetAttributes(attribute.Int("rows.changed", len(changed)))
	return changed, nil
}

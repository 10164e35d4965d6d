package api

import (
	"github.com/framecut/timeline/internal/timeline"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type ErrorResponse struct {
	Error           string `json:"error"`
	Code            string `json:"code,omitempty"`
	CurrentRevision *int64 `json:"currentRevision,omitempty"`
}

type CreateProjectRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	FPS  int    `json:"fps,omitempty"`
}

type ProjectsResponse struct {
	Projects []*timeline.Project `json:"projects"`
}

type ScenesResponse struct {
	ProjectID string           `json:"projectId"`
	Revision  int64            `json:"revision"`
	Scenes    []timeline.Scene `json:"scenes"`
}

// ActionRequest is the body of POST /projects/{id}/actions/{type}.
type ActionRequest struct {
	Direction      timeline.Direction `json:"direction"`
	Payload        timeline.Payload   `json:"payload"`
	ClientRevision *int64             `json:"clientRevision,omitempty"`
	IdempotencyKey string             `json:"idempotencyKey"`
}

type LedgerResponse struct {
	Entries []timeline.LedgerEntry `json:"entries"`
}

// FeedEvent is one message on the revision feed.
type FeedEvent struct {
	ProjectID string `json:"projectId"`
	Revision  int64  `json:"revision"`
}

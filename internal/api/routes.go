package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/framecut/timeline/internal/config"
	"github.com/framecut/timeline/internal/gateway"
	"github.com/framecut/timeline/internal/store"
	"github.com/framecut/timeline/internal/timeline"
)

// IdempotencyKeyHeader may carry the key instead of the request body.
const IdempotencyKeyHeader = "Idempotency-Key"

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		if cfg.RequireAuth {
			r.Use(AuthMiddleware(cfg.Store, cfg.Logger))
		}

		r.Get("/projects", listProjectsHandler(cfg))
		r.Post("/projects", createProjectHandler(cfg))
		r.Get("/projects/{id}", getProjectHandler(cfg))
		r.Get("/projects/{id}/scenes", getScenesHandler(cfg))
		r.Post("/projects/{id}/actions/{type}", actionHandler(cfg))
		r.Get("/projects/{id}/ledger", ledgerHandler(cfg))
		r.Get("/projects/{id}/export.edl", exportEDLHandler(cfg))
		if cfg.Feed != nil {
			r.Get("/projects/{id}/feed", feedHandler(cfg))
		}
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: config.Version,
			UptimeS: uptime,
		})
	}
}

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Store.ListProjects(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectsResponse{Projects: projects})
	}
}

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if strings.TrimSpace(req.Name) == "" {
			WriteError(w, http.StatusBadRequest, "name is required", string(timeline.CodeValidation))
			return
		}
		if req.FPS < 0 {
			WriteError(w, http.StatusBadRequest, "fps must be positive", string(timeline.CodeValidation))
			return
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		existing, err := cfg.Store.GetProject(r.Context(), req.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if existing != nil {
			WriteError(w, http.StatusConflict, "project already exists", "ALREADY_EXISTS")
			return
		}

		project := &timeline.Project{ID: req.ID, Name: req.Name, FPS: req.FPS}
		if err := cfg.Store.CreateProject(r.Context(), project); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, project)
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		project, err := cfg.Store.GetProject(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if project == nil {
			WriteError(w, http.StatusNotFound, "project not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, project)
	}
}

func getScenesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "id")
		scenes, revision, err := cfg.Store.GetProjectScenes(r.Context(), projectID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ScenesResponse{ProjectID: projectID, Revision: revision, Scenes: scenes})
	}
}

func actionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actionType, ok := timeline.ParseActionType(chi.URLParam(r, "type"))
		if !ok {
			WriteError(w, http.StatusBadRequest, "unknown action type", string(timeline.CodeValidation))
			return
		}

		var req ActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", string(timeline.CodeValidation))
			return
		}
		if req.IdempotencyKey == "" {
			req.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)
		}

		res, err := cfg.Gateway.Write(r.Context(), gateway.WriteRequest{
			ProjectID:      chi.URLParam(r, "id"),
			ActionType:     actionType,
			Direction:      req.Direction,
			Payload:        req.Payload,
			ClientRevision: req.ClientRevision,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func ledgerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = n
		}
		entries, err := cfg.Store.ListLedger(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, LedgerResponse{Entries: entries})
	}
}

// writeDomainError maps store and timeline errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "project not found", "NOT_FOUND")
		return
	}

	var terr *timeline.Error
	if !errors.As(err, &terr) {
		WriteError(w, http.StatusInternalServerError, err.Error(), string(timeline.CodeFatal))
		return
	}

	// the code travels in its own field
	msg := strings.Replace(err.Error(), string(terr.Code)+": ", "", 1)

	switch terr.Code {
	case timeline.CodeValidation:
		WriteError(w, http.StatusBadRequest, msg, string(terr.Code))
	case timeline.CodeConflict:
		current := terr.CurrentRevision
		WriteJSON(w, http.StatusConflict, ErrorResponse{Error: msg, Code: string(terr.Code), CurrentRevision: &current})
	case timeline.CodeTransient:
		w.Header().Set("Retry-After", "1")
		WriteError(w, http.StatusServiceUnavailable, msg, string(terr.Code))
	default:
		WriteError(w, http.StatusInternalServerError, msg, string(timeline.CodeFatal))
	}
}

package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/framecut/timeline/internal/export"
)

func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "id")

		project, err := cfg.Store.GetProject(r.Context(), projectID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if project == nil {
			WriteError(w, http.StatusNotFound, "project not found", "NOT_FOUND")
			return
		}

		scenes, revision, err := cfg.Store.GetProjectScenes(r.Context(), projectID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		filename := export.SanitizeName(project.Name, 120)
		if filename == "" {
			filename = "timeline_export"
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".edl"))
		w.Header().Set("X-Timeline-Revision", fmt.Sprint(revision))
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, export.GenerateEDL(project, scenes))
	}
}

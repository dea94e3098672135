// Package api exposes the REST surface. Authentication is out of scope; the
// acting user arrives in the X-User-ID header and is passed through to the
// lifecycle service, which enforces ownership rules.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/issuedeck/issuedeck/internal/importer"
	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/store"
	"github.com/issuedeck/issuedeck/internal/tracker"
	"github.com/issuedeck/issuedeck/internal/triage"
)

// Server provides the REST API handlers.
type Server struct {
	tracker    *tracker.Service
	importer   *importer.Importer
	classifier *triage.Classifier
	store      store.Store
}

// NewServer creates a new API server. The importer may be nil when no GitHub
// client is configured; its routes then answer 503.
func NewServer(svc *tracker.Service, imp *importer.Importer, classifier *triage.Classifier) *Server {
	return &Server{
		tracker:    svc,
		importer:   imp,
		classifier: classifier,
		store:      svc.Store(),
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/projects", s.listProjects)
	mux.HandleFunc("POST /api/v1/projects", s.createProject)
	mux.HandleFunc("POST /api/v1/projects/import-github", s.importGitHub)
	mux.HandleFunc("GET /api/v1/projects/{id}", s.getProject)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", s.deleteProject)
	mux.HandleFunc("GET /api/v1/projects/{id}/analytics", s.projectAnalytics)
	mux.HandleFunc("POST /api/v1/projects/{id}/analyze", s.analyzeProject)
	mux.HandleFunc("POST /api/v1/projects/{id}/analyze-code", s.analyzeCode)
	mux.HandleFunc("GET /api/v1/projects/{id}/issues", s.listProjectIssues)

	mux.HandleFunc("GET /api/v1/issues", s.listIssues)
	mux.HandleFunc("POST /api/v1/issues", s.createIssue)
	mux.HandleFunc("POST /api/v1/issues/bulk-update", s.bulkUpdateIssues)
	mux.HandleFunc("POST /api/v1/issues/bulk-delete", s.bulkDeleteIssues)
	mux.HandleFunc("GET /api/v1/issues/{id}", s.getIssue)
	mux.HandleFunc("PUT /api/v1/issues/{id}", s.updateIssue)
	mux.HandleFunc("DELETE /api/v1/issues/{id}", s.deleteIssue)
	mux.HandleFunc("POST /api/v1/issues/{id}/resolve", s.resolveIssue)
	mux.HandleFunc("POST /api/v1/issues/{id}/close", s.closeIssue)
	mux.HandleFunc("POST /api/v1/issues/{id}/apply-triage", s.applyTriage)
	mux.HandleFunc("GET /api/v1/issues/{id}/comments", s.listComments)
	mux.HandleFunc("POST /api/v1/issues/{id}/comments", s.createComment)
	mux.HandleFunc("GET /api/v1/issues/{id}/dependencies", s.listDependencies)
	mux.HandleFunc("POST /api/v1/issues/{id}/dependencies", s.createDependency)

	mux.HandleFunc("DELETE /api/v1/dependencies/{id}", s.deleteDependency)

	mux.HandleFunc("POST /api/v1/triage/ai", s.aiTriage)
	mux.HandleFunc("POST /api/v1/triage/duplicates", s.checkDuplicates)
	mux.HandleFunc("POST /api/v1/triage/auto-assign", s.autoAssign)

	mux.HandleFunc("GET /api/v1/templates", s.listTemplates)
	mux.HandleFunc("POST /api/v1/templates", s.createTemplate)
	mux.HandleFunc("POST /api/v1/templates/{id}/use", s.useTemplate)
	mux.HandleFunc("DELETE /api/v1/templates/{id}", s.deleteTemplate)

	mux.HandleFunc("GET /api/v1/activities", s.listActivities)

	mux.HandleFunc("GET /api/v1/users", s.listUsers)
	mux.HandleFunc("POST /api/v1/users", s.createUser)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// actor returns the acting user id from the request.
func actor(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps domain sentinels onto HTTP statuses.
func fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracker.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tracker.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, tracker.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- Projects ---

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	project, err := s.tracker.CreateProject(r.Context(), req.Name, req.Description, actor(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.DeleteProject(r.Context(), r.PathValue("id"), actor(r)); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) projectAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := s.tracker.ProjectAnalytics(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (s *Server) analyzeProject(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.tracker.AnalyzeProject(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) importGitHub(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		writeError(w, http.StatusServiceUnavailable, "GitHub import not configured")
		return
	}

	var req struct {
		Owner        string `json:"owner"`
		Repo         string `json:"repo"`
		ImportIssues *bool  `json:"importIssues"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	importIssues := true
	if req.ImportIssues != nil {
		importIssues = *req.ImportIssues
	}

	result, err := s.importer.ImportProject(r.Context(), req.Owner, req.Repo, importIssues, actor(r))
	if err != nil {
		// A name collision still reports the existing project.
		if errors.Is(err, tracker.ErrConflict) && result != nil {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":   err.Error(),
				"project": result.Project,
			})
			return
		}
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) analyzeCode(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		writeError(w, http.StatusServiceUnavailable, "GitHub scanning not configured")
		return
	}

	var req struct {
		Owner    string `json:"owner"`
		Repo     string `json:"repo"`
		Branch   string `json:"branch"`
		MaxFiles int    `json:"maxFiles"`
	}
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	result, err := s.importer.ScanSourceCode(r.Context(), r.PathValue("id"), req.Owner, req.Repo, req.Branch, req.MaxFiles, actor(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

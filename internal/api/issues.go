package api

import (
	"encoding/json"
	"net/http"

	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/store"
	"github.com/issuedeck/issuedeck/internal/tracker"
)

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.IssueListFilter{
		ProjectID:  q.Get("projectId"),
		Status:     models.IssueStatus(q.Get("status")),
		Priority:   models.IssuePriority(q.Get("priority")),
		AssignedTo: q.Get("assignedTo"),
		Search:     q.Get("search"),
	}
	issues, err := s.store.ListIssues(r.Context(), filter)
	if err != nil {
		fail(w, err)
		return
	}
	if issues == nil {
		issues = []*models.Issue{}
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) listProjectIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := s.store.ListIssues(r.Context(), store.IssueListFilter{ProjectID: r.PathValue("id")})
	if err != nil {
		fail(w, err)
		return
	}
	if issues == nil {
		issues = []*models.Issue{}
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := s.store.GetIssue(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID   string               `json:"projectId"`
		SprintID    string               `json:"sprintId"`
		Title       string               `json:"title"`
		Description string               `json:"description"`
		Priority    models.IssuePriority `json:"priority"`
		AssignedTo  string               `json:"assignedTo"`
		Labels      []string             `json:"labels"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	issue, err := s.tracker.CreateIssue(r.Context(), tracker.CreateIssueInput{
		ProjectID:   req.ProjectID,
		SprintID:    req.SprintID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
		Labels:      req.Labels,
	}, actor(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (s *Server) updateIssue(w http.ResponseWriter, r *http.Request) {
	var patch struct {
		Title       *string               `json:"title"`
		Description *string               `json:"description"`
		Status      *models.IssueStatus   `json:"status"`
		Priority    *models.IssuePriority `json:"priority"`
		AssignedTo  *string               `json:"assignedTo"`
		SprintID    *string               `json:"sprintId"`
		Labels      []string              `json:"labels"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	issue, err := s.tracker.Update(r.Context(), r.PathValue("id"), store.IssuePatch{
		Title:       patch.Title,
		Description: patch.Description,
		Status:      patch.Status,
		Priority:    patch.Priority,
		AssignedTo:  patch.AssignedTo,
		SprintID:    patch.SprintID,
		Labels:      patch.Labels,
	})
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) deleteIssue(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Delete(r.Context(), r.PathValue("id")); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resolveIssue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ResolutionNotes string `json:"resolutionNotes"`
	}
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	issue, err := s.tracker.Resolve(r.Context(), r.PathValue("id"), req.ResolutionNotes, actor(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) closeIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := s.tracker.Close(r.Context(), r.PathValue("id"), actor(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) bulkUpdateIssues(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs      []string              `json:"ids"`
		Status   *models.IssueStatus   `json:"status"`
		Priority *models.IssuePriority `json:"priority"`
		SprintID *string               `json:"sprintId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	n, err := s.tracker.BulkUpdate(r.Context(), req.IDs, store.IssuePatch{
		Status:   req.Status,
		Priority: req.Priority,
		SprintID: req.SprintID,
	})
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (s *Server) bulkDeleteIssues(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	n, err := s.tracker.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// --- Comments ---

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.GetIssue(r.Context(), r.PathValue("id")); err != nil {
		fail(w, err)
		return
	}
	comments, err := s.store.ListComments(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, err)
		return
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	comment, err := s.tracker.AddComment(r.Context(), r.PathValue("id"), req.Text, actor(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// --- Dependencies ---

func (s *Server) listDependencies(w http.ResponseWriter, r *http.Request) {
	deps, err := s.tracker.ListDependencies(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, err)
		return
	}
	if deps == nil {
		deps = []*models.Dependency{}
	}
	writeJSON(w, http.StatusOK, deps)
}

func (s *Server) createDependency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ToIssue     string                `json:"toIssue"`
		Type        models.DependencyType `json:"type"`
		Description string                `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	dep, err := s.tracker.CreateDependency(r.Context(), r.PathValue("id"), req.ToIssue, req.Type, req.Description, actor(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dep)
}

func (s *Server) deleteDependency(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.DeleteDependency(r.Context(), r.PathValue("id")); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

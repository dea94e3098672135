package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/store"
	"github.com/issuedeck/issuedeck/internal/triage"
)

// aiTriage classifies free-form issue text. Classification never hard-fails:
// with no model configured it returns the deterministic mock result, and
// model failures degrade to keyword heuristics.
func (s *Server) aiTriage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IssueTitle       string `json:"issueTitle"`
		IssueDescription string `json:"issueDescription"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.IssueTitle == "" && req.IssueDescription == "" {
		writeError(w, http.StatusBadRequest, "issue title or description required")
		return
	}

	result := s.classifier.Classify(r.Context(), req.IssueTitle, req.IssueDescription)
	writeJSON(w, http.StatusOK, map[string]any{
		"suggestedCategory": result.Category,
		"priority":          result.Priority,
		"confidence":        result.Confidence,
		"duplicateCheck":    false,
		"analysis":          result.Analysis,
		"source":            result.Source,
	})
}

func (s *Server) checkDuplicates(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID        string `json:"projectId"`
		IssueDescription string `json:"issueDescription"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	issues, err := s.store.ListIssues(r.Context(), store.IssueListFilter{ProjectID: req.ProjectID})
	if err != nil {
		fail(w, err)
		return
	}

	duplicates := triage.FindDuplicates(req.IssueDescription, issues)
	if duplicates == nil {
		duplicates = []triage.Duplicate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"isDuplicate":         len(duplicates) > 0,
		"potentialDuplicates": duplicates,
	})
}

func (s *Server) autoAssign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID string `json:"projectId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if _, err := s.store.GetProject(r.Context(), req.ProjectID); err != nil {
		fail(w, err)
		return
	}

	issues, err := s.store.ListIssues(r.Context(), store.IssueListFilter{ProjectID: req.ProjectID})
	if err != nil {
		fail(w, err)
		return
	}
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, triage.SuggestAssignee(issues, users))
}

// applyTriage classifies a stored issue and writes the suggestion back:
// priority from the result, category prepended to labels, triage block set.
func (s *Server) applyTriage(w http.ResponseWriter, r *http.Request) {
	issue, err := s.store.GetIssue(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, err)
		return
	}

	result := s.classifier.Classify(r.Context(), issue.Title, issue.Description)
	issue.Priority = result.Priority
	issue.Labels = models.DedupLabels(append([]string{result.Category}, issue.Labels...))
	issue.AITriage = result.Triage()

	if err := s.store.UpdateIssue(r.Context(), issue); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// --- Templates ---

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.store.ListTemplates(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	if templates == nil {
		templates = []*models.IssueTemplate{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title              string               `json:"title"`
		DefaultDescription string               `json:"defaultDescription"`
		DefaultPriority    models.IssuePriority `json:"defaultPriority"`
		DefaultLabels      []string             `json:"defaultLabels"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	tmpl, err := s.tracker.CreateTemplate(r.Context(), &models.IssueTemplate{
		Title:              req.Title,
		DefaultDescription: req.DefaultDescription,
		DefaultPriority:    req.DefaultPriority,
		DefaultLabels:      req.DefaultLabels,
	}, actor(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tmpl)
}

func (s *Server) useTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID   string `json:"projectId"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	issue, err := s.tracker.InstantiateTemplate(r.Context(), r.PathValue("id"), req.ProjectID, req.Description, actor(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (s *Server) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTemplate(r.Context(), r.PathValue("id")); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Activities ---

func (s *Server) listActivities(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	activities, err := s.store.ListActivities(r.Context(), limit)
	if err != nil {
		fail(w, err)
		return
	}
	if activities == nil {
		activities = []*models.Activity{}
	}
	writeJSON(w, http.StatusOK, activities)
}

// --- Users ---

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var u models.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if u.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.CreateUser(r.Context(), &u); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

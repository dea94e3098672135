package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/issuedeck/issuedeck/internal/activity"
	"github.com/issuedeck/issuedeck/internal/llm"
	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/notify"
	"github.com/issuedeck/issuedeck/internal/store"
	"github.com/issuedeck/issuedeck/internal/tracker"
	"github.com/issuedeck/issuedeck/internal/triage"
)

type fakeCompleter struct {
	configured bool
	response   string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt, system string, opts llm.Options) (string, error) {
	return f.response, nil
}

func (f *fakeCompleter) Configured() bool { return f.configured }

func setupTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	rec := activity.NewRecorder(s, slog.Default())
	t.Cleanup(rec.Close)

	completer := &fakeCompleter{configured: false}
	svc := tracker.NewService(s, rec, notify.NewNotifier("", nil), completer, slog.Default())
	srv := NewServer(svc, nil, triage.NewClassifier(completer))
	return srv, s
}

func doJSON(t *testing.T, router http.Handler, method, path, user string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListProjects_Empty(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, "GET", "/api/v1/projects", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestProjectCRUD_API(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, "POST", "/api/v1/projects", "u1", `{"name":"webapp","description":"the app"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "webapp", created.Name)
	assert.Equal(t, "u1", created.CreatedBy)
	assert.NotEmpty(t, created.ID)

	w = doJSON(t, router, "GET", "/api/v1/projects/"+created.ID, "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	// Deleting as a non-owner is forbidden.
	w = doJSON(t, router, "DELETE", "/api/v1/projects/"+created.ID, "intruder", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, router, "DELETE", "/api/v1/projects/"+created.ID, "u1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, "GET", "/api/v1/projects/"+created.ID, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateProject_Validation(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, "POST", "/api/v1/projects", "u1", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "POST", "/api/v1/projects", "u1", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIssueLifecycle_API(t *testing.T) {
	srv, s := setupTestServer(t)
	router := srv.Router()
	ctx := context.Background()

	p := &models.Project{Name: "proj", CreatedBy: "owner"}
	require.NoError(t, s.CreateProject(ctx, p))

	w := doJSON(t, router, "POST", "/api/v1/issues", "contributor",
		`{"projectId":"`+p.ID+`","title":"Login fails","description":"500 on submit","priority":"High"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var issue models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issue))
	assert.Equal(t, models.IssueStatusOpen, issue.Status)

	// Any user may resolve.
	w = doJSON(t, router, "POST", "/api/v1/issues/"+issue.ID+"/resolve", "contributor", `{"resolutionNotes":"fixed"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resolved models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resolved))
	assert.Equal(t, models.IssueStatusResolved, resolved.Status)
	require.NotNil(t, resolved.Resolution)
	assert.Equal(t, "fixed", resolved.Resolution.Notes)

	// Only the project owner may close.
	w = doJSON(t, router, "POST", "/api/v1/issues/"+issue.ID+"/close", "contributor", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, router, "POST", "/api/v1/issues/"+issue.ID+"/close", "owner", "")
	assert.Equal(t, http.StatusOK, w.Code)

	// A second close conflicts.
	w = doJSON(t, router, "POST", "/api/v1/issues/"+issue.ID+"/close", "owner", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestResolve_NotFound(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, "POST", "/api/v1/issues/missing/resolve", "u1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateIssue_API(t *testing.T) {
	srv, s := setupTestServer(t)
	router := srv.Router()
	ctx := context.Background()

	p := &models.Project{Name: "proj", CreatedBy: "owner"}
	require.NoError(t, s.CreateProject(ctx, p))
	issue := &models.Issue{ProjectID: p.ID, Title: "t", Description: "d", Status: models.IssueStatusOpen, Priority: models.IssuePriorityLow, CreatedBy: "u1"}
	require.NoError(t, s.CreateIssue(ctx, issue))

	w := doJSON(t, router, "PUT", "/api/v1/issues/"+issue.ID, "u1", `{"priority":"Critical","assignedTo":"u2"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var updated models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, models.IssuePriorityCritical, updated.Priority)
	assert.Equal(t, "u2", updated.AssignedTo)
	assert.Equal(t, "t", updated.Title, "unspecified fields untouched")

	w = doJSON(t, router, "PUT", "/api/v1/issues/"+issue.ID, "u1", `{"status":"Paused"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkOperations_API(t *testing.T) {
	srv, s := setupTestServer(t)
	router := srv.Router()
	ctx := context.Background()

	p := &models.Project{Name: "proj", CreatedBy: "owner"}
	require.NoError(t, s.CreateProject(ctx, p))
	a := &models.Issue{ProjectID: p.ID, Title: "a", Description: "d", Status: models.IssueStatusOpen, CreatedBy: "u1"}
	b := &models.Issue{ProjectID: p.ID, Title: "b", Description: "d", Status: models.IssueStatusOpen, CreatedBy: "u1"}
	require.NoError(t, s.CreateIssue(ctx, a))
	require.NoError(t, s.CreateIssue(ctx, b))

	w := doJSON(t, router, "POST", "/api/v1/issues/bulk-update", "u1",
		`{"ids":["`+a.ID+`","`+b.ID+`"],"status":"In Progress"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"updated":2}`, w.Body.String())

	w = doJSON(t, router, "POST", "/api/v1/issues/bulk-delete", "u1",
		`{"ids":["`+a.ID+`"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":1}`, w.Body.String())
}

func TestComments_API(t *testing.T) {
	srv, s := setupTestServer(t)
	router := srv.Router()
	ctx := context.Background()

	p := &models.Project{Name: "proj", CreatedBy: "owner"}
	require.NoError(t, s.CreateProject(ctx, p))
	issue := &models.Issue{ProjectID: p.ID, Title: "t", Description: "d", Status: models.IssueStatusOpen, CreatedBy: "u1"}
	require.NoError(t, s.CreateIssue(ctx, issue))

	w := doJSON(t, router, "POST", "/api/v1/issues/"+issue.ID+"/comments", "u2", `{"text":"on it"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, "GET", "/api/v1/issues/"+issue.ID+"/comments", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var comments []*models.Comment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &comments))
	require.Len(t, comments, 1)
	assert.Equal(t, "u2", comments[0].CreatedBy)

	w = doJSON(t, router, "GET", "/api/v1/issues/missing/comments", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDependencies_API(t *testing.T) {
	srv, s := setupTestServer(t)
	router := srv.Router()
	ctx := context.Background()

	p := &models.Project{Name: "proj", CreatedBy: "owner"}
	require.NoError(t, s.CreateProject(ctx, p))
	a := &models.Issue{ProjectID: p.ID, Title: "a", Description: "d", Status: models.IssueStatusOpen, CreatedBy: "u1"}
	b := &models.Issue{ProjectID: p.ID, Title: "b", Description: "d", Status: models.IssueStatusOpen, CreatedBy: "u1"}
	require.NoError(t, s.CreateIssue(ctx, a))
	require.NoError(t, s.CreateIssue(ctx, b))

	w := doJSON(t, router, "POST", "/api/v1/issues/"+a.ID+"/dependencies", "u1",
		`{"toIssue":"`+b.ID+`","type":"blocks"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var dep models.Dependency
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dep))

	// Self-loop rejected.
	w = doJSON(t, router, "POST", "/api/v1/issues/"+a.ID+"/dependencies", "u1",
		`{"toIssue":"`+a.ID+`","type":"blocks"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Duplicate edge conflicts.
	w = doJSON(t, router, "POST", "/api/v1/issues/"+a.ID+"/dependencies", "u1",
		`{"toIssue":"`+b.ID+`","type":"blocks"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, "DELETE", "/api/v1/dependencies/"+dep.ID, "u1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAITriage_API(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, "POST", "/api/v1/triage/ai", "u1",
		`{"issueTitle":"Crash on login","issueDescription":"stack trace"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Bug", resp["suggestedCategory"])
	assert.Equal(t, "Medium", resp["priority"])
	assert.InDelta(t, 0.7, resp["confidence"].(float64), 0.001)
	assert.Equal(t, "mock", resp["source"])

	w = doJSON(t, router, "POST", "/api/v1/triage/ai", "u1", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckDuplicates_API(t *testing.T) {
	srv, s := setupTestServer(t)
	router := srv.Router()
	ctx := context.Background()

	p := &models.Project{Name: "proj", CreatedBy: "owner"}
	require.NoError(t, s.CreateProject(ctx, p))
	issue := &models.Issue{ProjectID: p.ID, Title: "payment gateway timeout", Description: "checkout hangs", Status: models.IssueStatusOpen, CreatedBy: "u1"}
	require.NoError(t, s.CreateIssue(ctx, issue))

	w := doJSON(t, router, "POST", "/api/v1/triage/duplicates", "u1",
		`{"projectId":"`+p.ID+`","issueDescription":"payment gateway timeout during checkout"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		IsDuplicate         bool               `json:"isDuplicate"`
		PotentialDuplicates []triage.Duplicate `json:"potentialDuplicates"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.IsDuplicate)
	require.Len(t, resp.PotentialDuplicates, 1)
	assert.Equal(t, issue.ID, resp.PotentialDuplicates[0].Issue.ID)

	w = doJSON(t, router, "POST", "/api/v1/triage/duplicates", "u1",
		`{"projectId":"`+p.ID+`","issueDescription":"entirely unrelated words"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.IsDuplicate)
	assert.Empty(t, resp.PotentialDuplicates)
}

func TestAutoAssign_API(t *testing.T) {
	srv, s := setupTestServer(t)
	router := srv.Router()
	ctx := context.Background()

	p := &models.Project{Name: "proj", CreatedBy: "owner"}
	require.NoError(t, s.CreateProject(ctx, p))
	busy := &models.User{Name: "Busy"}
	free := &models.User{Name: "Free"}
	require.NoError(t, s.CreateUser(ctx, busy))
	require.NoError(t, s.CreateUser(ctx, free))
	issue := &models.Issue{ProjectID: p.ID, Title: "t", Description: "d", Status: models.IssueStatusOpen, AssignedTo: busy.ID, CreatedBy: "u1"}
	require.NoError(t, s.CreateIssue(ctx, issue))

	w := doJSON(t, router, "POST", "/api/v1/triage/auto-assign", "u1", `{"projectId":"`+p.ID+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp triage.Assignment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.User)
	assert.Equal(t, free.ID, resp.User.ID)

	w = doJSON(t, router, "POST", "/api/v1/triage/auto-assign", "u1", `{"projectId":"missing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApplyTriage_API(t *testing.T) {
	srv, s := setupTestServer(t)
	router := srv.Router()
	ctx := context.Background()

	p := &models.Project{Name: "proj", CreatedBy: "owner"}
	require.NoError(t, s.CreateProject(ctx, p))
	issue := &models.Issue{ProjectID: p.ID, Title: "t", Description: "d", Status: models.IssueStatusOpen, Priority: models.IssuePriorityLow, Labels: []string{"old"}, CreatedBy: "u1"}
	require.NoError(t, s.CreateIssue(ctx, issue))

	w := doJSON(t, router, "POST", "/api/v1/issues/"+issue.ID+"/apply-triage", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var updated models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	// With no model configured, the mock classification applies.
	assert.Equal(t, models.IssuePriorityMedium, updated.Priority)
	assert.Equal(t, []string{"Bug", "old"}, updated.Labels)
	require.NotNil(t, updated.AITriage)
	assert.Equal(t, "Bug", updated.AITriage.SuggestedCategory)
}

func TestTemplates_API(t *testing.T) {
	srv, s := setupTestServer(t)
	router := srv.Router()
	ctx := context.Background()

	p := &models.Project{Name: "proj", CreatedBy: "owner"}
	require.NoError(t, s.CreateProject(ctx, p))

	w := doJSON(t, router, "POST", "/api/v1/templates", "u1",
		`{"title":"Bug report","defaultDescription":"Steps:","defaultPriority":"High","defaultLabels":["Bug"]}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var tmpl models.IssueTemplate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tmpl))

	w = doJSON(t, router, "POST", "/api/v1/templates/"+tmpl.ID+"/use", "u2", `{"projectId":"`+p.ID+`"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var issue models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issue))
	assert.Equal(t, "Bug report", issue.Title)
	assert.Equal(t, models.IssuePriorityHigh, issue.Priority)

	w = doJSON(t, router, "GET", "/api/v1/templates", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var templates []*models.IssueTemplate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &templates))
	require.Len(t, templates, 1)
	assert.Equal(t, 1, templates[0].UsageCount)

	w = doJSON(t, router, "DELETE", "/api/v1/templates/"+tmpl.ID, "u1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestImportGitHub_Unconfigured(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, "POST", "/api/v1/projects/import-github", "u1", `{"owner":"a","repo":"b"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(t, router, "POST", "/api/v1/projects/x/analyze-code", "u1", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestUsers_API(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, "POST", "/api/v1/users", "", `{"name":"Ada","email":"ada@example.com"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, "POST", "/api/v1/users", "", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "GET", "/api/v1/users", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var users []*models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Len(t, users, 1)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	req := httptest.NewRequest("OPTIONS", "/api/v1/projects", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-User-ID")
}

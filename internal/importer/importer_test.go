package importer

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/issuedeck/issuedeck/internal/github"
	"github.com/issuedeck/issuedeck/internal/llm"
	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/store"
	"github.com/issuedeck/issuedeck/internal/tracker"
	"github.com/issuedeck/issuedeck/internal/triage"
)

// fakeGitHub scripts the GitHub client for pipeline tests.
type fakeGitHub struct {
	repo      *github.Repo
	repoErr   error
	issues    []*github.Issue
	issuesErr error

	branchSHA string
	branchErr error
	tree      []github.TreeEntry
	blobs     map[string]string // SHA -> content

	collaborators []github.Collaborator
	languages     map[string]int
	hasToken      bool
}

func (f *fakeGitHub) GetRepo(ctx context.Context, owner, repo string) (*github.Repo, error) {
	if f.repoErr != nil {
		return nil, f.repoErr
	}
	return f.repo, nil
}

func (f *fakeGitHub) ListIssues(ctx context.Context, owner, repo string, opts github.ListIssuesOptions) ([]*github.Issue, error) {
	if f.issuesErr != nil {
		return nil, f.issuesErr
	}
	return f.issues, nil
}

func (f *fakeGitHub) GetBranchSHA(ctx context.Context, owner, repo, branch string) (string, error) {
	if f.branchErr != nil {
		return "", f.branchErr
	}
	return f.branchSHA, nil
}

func (f *fakeGitHub) GetTreeRecursive(ctx context.Context, owner, repo, sha string) ([]github.TreeEntry, error) {
	return f.tree, nil
}

func (f *fakeGitHub) GetBlob(ctx context.Context, owner, repo, sha string) (string, error) {
	content, ok := f.blobs[sha]
	if !ok {
		return "", errors.New("blob not found")
	}
	return content, nil
}

func (f *fakeGitHub) ListCollaborators(ctx context.Context, owner, repo string) ([]github.Collaborator, error) {
	return f.collaborators, nil
}

func (f *fakeGitHub) ListLanguages(ctx context.Context, owner, repo string) (map[string]int, error) {
	return f.languages, nil
}

func (f *fakeGitHub) HasToken() bool { return f.hasToken }

// fakeCompleter scripts the LLM layer.
type fakeCompleter struct {
	configured bool
	response   string
	err        error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt, system string, opts llm.Options) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeCompleter) Configured() bool { return f.configured }

func newTestImporter(t *testing.T, gh github.Client, completer llm.Completer) (*Importer, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	if completer == nil {
		completer = &fakeCompleter{configured: false}
	}
	imp := NewImporter(s, gh, triage.NewClassifier(completer), slog.Default())
	return imp, s
}

func TestImportProject(t *testing.T) {
	gh := &fakeGitHub{
		repo: &github.Repo{
			Name:        "webapp",
			Description: "A web app",
			URL:         "https://github.com/acme/webapp",
			Stars:       10,
			Language:    "Go",
		},
		issues: []*github.Issue{
			{Number: 2, Title: "Crash on startup", Body: "trace attached", State: "open", Labels: []string{"bug", "critical"}},
			{Number: 1, Title: "Add dark mode", Body: "", State: "closed", Labels: []string{"enhancement"}},
		},
		languages: map[string]int{"Go": 1000},
	}
	imp, s := newTestImporter(t, gh, nil)

	result, err := imp.ImportProject(context.Background(), "acme", "webapp", true, "u1")
	require.NoError(t, err)

	assert.Equal(t, "webapp", result.Project.Name)
	assert.Equal(t, "u1", result.Project.CreatedBy)
	require.NotNil(t, result.Project.GitHubRepo)
	assert.Equal(t, "acme", result.Project.GitHubRepo.Owner)
	assert.Equal(t, 10, result.Project.GitHubRepo.Stars)

	assert.Equal(t, 2, result.IssuesCount)
	assert.Len(t, result.Preview, 2)
	assert.False(t, result.AIEnabled)
	assert.Equal(t, map[string]int{"Go": 1000}, result.Languages)
	assert.Empty(t, result.Collaborators, "collaborators need a token")

	issues, err := s.ListIssues(context.Background(), store.IssueListFilter{ProjectID: result.Project.ID})
	require.NoError(t, err)
	require.Len(t, issues, 2)

	byNumber := map[int]*models.Issue{}
	for _, i := range issues {
		require.NotNil(t, i.GitHubIssue)
		byNumber[i.GitHubIssue.Number] = i
	}

	open := byNumber[2]
	assert.Equal(t, models.IssueStatusOpen, open.Status)
	assert.Equal(t, models.IssuePriorityCritical, open.Priority, "label heuristics apply without a model")
	assert.Contains(t, open.Labels, "bug")
	assert.Contains(t, open.Labels, "Bug", "classifier category merged into labels")
	assert.Nil(t, open.AITriage, "no triage block without a model result")

	closed := byNumber[1]
	assert.Equal(t, models.IssueStatusClosed, closed.Status)
	assert.Equal(t, "Imported from GitHub issue #1", closed.Description, "empty body gets a provenance placeholder")
	assert.Contains(t, closed.Labels, "Feature")
}

func TestImportProject_WithModel(t *testing.T) {
	gh := &fakeGitHub{
		repo:   &github.Repo{Name: "webapp"},
		issues: []*github.Issue{{Number: 1, Title: "t", Body: "b", State: "open"}},
	}
	completer := &fakeCompleter{
		configured: true,
		response:   `{"category":"Security","priority":"High","analysis":"auth bypass","confidence":0.9}`,
	}
	imp, s := newTestImporter(t, gh, completer)

	result, err := imp.ImportProject(context.Background(), "acme", "webapp", true, "u1")
	require.NoError(t, err)
	assert.True(t, result.AIEnabled)
	require.Len(t, result.Preview, 1)
	assert.Equal(t, "auth bypass", result.Preview[0].Analysis)
	assert.InDelta(t, 0.9, result.Preview[0].Confidence, 0.001)

	issues, err := s.ListIssues(context.Background(), store.IssueListFilter{ProjectID: result.Project.ID})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.NotNil(t, issues[0].AITriage)
	assert.Equal(t, "Security", issues[0].AITriage.SuggestedCategory)
	assert.Equal(t, models.IssuePriorityHigh, issues[0].Priority)
}

func TestImportProject_SkipIssues(t *testing.T) {
	gh := &fakeGitHub{
		repo:   &github.Repo{Name: "webapp"},
		issues: []*github.Issue{{Number: 1, Title: "t", State: "open"}},
	}
	imp, s := newTestImporter(t, gh, nil)

	result, err := imp.ImportProject(context.Background(), "acme", "webapp", false, "u1")
	require.NoError(t, err)
	assert.Zero(t, result.IssuesCount)

	issues, err := s.ListIssues(context.Background(), store.IssueListFilter{ProjectID: result.Project.ID})
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestImportProject_RepoNotFound(t *testing.T) {
	imp, _ := newTestImporter(t, &fakeGitHub{repoErr: errors.New("404")}, nil)

	_, err := imp.ImportProject(context.Background(), "acme", "gone", true, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestImportProject_NameConflict(t *testing.T) {
	gh := &fakeGitHub{repo: &github.Repo{Name: "webapp"}}
	imp, s := newTestImporter(t, gh, nil)
	ctx := context.Background()

	first, err := imp.ImportProject(ctx, "acme", "webapp", false, "u1")
	require.NoError(t, err)

	// A second import by the same actor conflicts and surfaces the
	// existing project.
	result, err := imp.ImportProject(ctx, "acme", "webapp", false, "u1")
	assert.ErrorIs(t, err, tracker.ErrConflict)
	require.NotNil(t, result)
	assert.Equal(t, first.Project.ID, result.Project.ID)

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 1, "no second project created")

	// A different actor importing the same repo is fine.
	_, err = imp.ImportProject(ctx, "acme", "webapp", false, "u2")
	assert.NoError(t, err)
}

func TestImportProject_Validation(t *testing.T) {
	imp, _ := newTestImporter(t, &fakeGitHub{}, nil)
	ctx := context.Background()

	_, err := imp.ImportProject(ctx, "", "webapp", true, "u1")
	assert.ErrorIs(t, err, tracker.ErrValidation)

	_, err = imp.ImportProject(ctx, "acme", "", true, "u1")
	assert.ErrorIs(t, err, tracker.ErrValidation)

	_, err = imp.ImportProject(ctx, "acme", "webapp", true, "")
	assert.ErrorIs(t, err, tracker.ErrValidation)
}

func TestImportProject_IssueListingFailureIsNotFatal(t *testing.T) {
	gh := &fakeGitHub{
		repo:      &github.Repo{Name: "webapp"},
		issuesErr: errors.New("rate limited"),
	}
	imp, _ := newTestImporter(t, gh, nil)

	result, err := imp.ImportProject(context.Background(), "acme", "webapp", true, "u1")
	require.NoError(t, err)
	assert.Zero(t, result.IssuesCount)
	assert.NotNil(t, result.Project)
}

func TestImportProject_FallsBackToOwnerRepoName(t *testing.T) {
	gh := &fakeGitHub{repo: &github.Repo{}}
	imp, _ := newTestImporter(t, gh, nil)

	result, err := imp.ImportProject(context.Background(), "acme", "webapp", false, "u1")
	require.NoError(t, err)
	assert.Equal(t, "acme/webapp", result.Project.Name)
}

func TestImportProject_CollaboratorsWithToken(t *testing.T) {
	gh := &fakeGitHub{
		repo:          &github.Repo{Name: "webapp"},
		collaborators: []github.Collaborator{{Login: "octo"}},
		hasToken:      true,
	}
	imp, _ := newTestImporter(t, gh, nil)

	result, err := imp.ImportProject(context.Background(), "acme", "webapp", false, "u1")
	require.NoError(t, err)
	require.Len(t, result.Collaborators, 1)
	assert.Equal(t, "octo", result.Collaborators[0].Login)
}

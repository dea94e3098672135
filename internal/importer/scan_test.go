package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/issuedeck/issuedeck/internal/github"
	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/store"
	"github.com/issuedeck/issuedeck/internal/tracker"
)

func seedLinkedProject(t *testing.T, s store.Store) *models.Project {
	t.Helper()
	p := &models.Project{
		Name:       "webapp",
		CreatedBy:  "u1",
		GitHubRepo: &models.GitHubRepo{Owner: "acme", Repo: "webapp"},
	}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

func TestScanSourceCode_TodoFindings(t *testing.T) {
	gh := &fakeGitHub{
		branchSHA: "abc",
		tree: []github.TreeEntry{
			{Path: "src/app.js", SHA: "b1"},
			{Path: "README.md", SHA: "b2"},           // not a code extension
			{Path: "node_modules/x/y.js", SHA: "b3"}, // ignored path
		},
		blobs: map[string]string{
			// TODOs far enough apart not to collapse in dedup.
			"b1": "let x = 1\n// TODO: handle missing config\n\n\n\n\n\n\n\n\n// fixme: drop this hack\n",
		},
	}
	imp, s := newTestImporter(t, gh, nil)
	p := seedLinkedProject(t, s)

	result, err := imp.ScanSourceCode(context.Background(), p.ID, "", "", "", 0, "u1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesAnalyzed)
	assert.Equal(t, 2, result.TotalFound)
	assert.Equal(t, 2, result.CreatedCount)
	assert.Zero(t, result.SkippedCount)
	assert.False(t, result.AIEnabled)
	assert.Equal(t, 2, result.Summary.ByType["TodoComment"])
	assert.Equal(t, 2, result.Summary.ByMethod[MethodRegex])
	assert.Equal(t, 2, result.Summary.ByPriority[models.IssuePriorityLow])

	require.Len(t, result.Created, 2)
	issue := result.Created[0]
	assert.Equal(t, "TODO/FIXME found in app.js", issue.Title)
	assert.Contains(t, issue.Description, "handle missing config")
	assert.Contains(t, issue.Description, "**Location:** `src/app.js`")
	assert.Contains(t, issue.Description, "**Line:** 2")
	assert.Contains(t, issue.Description, "Regex Pattern Matching")
	assert.Equal(t, models.IssueStatusOpen, issue.Status)
	assert.Equal(t, []string{"TechDebt", "AI-Generated", "Pattern-Matched"}, issue.Labels)
	require.NotNil(t, issue.CodeLoc)
	assert.Equal(t, "src/app.js", issue.CodeLoc.FilePath)
	assert.Equal(t, 2, issue.CodeLoc.LineNumber)
	assert.Equal(t, "main", issue.CodeLoc.Branch, "branch defaults to main")
	assert.Equal(t, "acme/webapp", issue.CodeLoc.Repository)
	assert.Nil(t, issue.AITriage, "regex findings carry no triage block")
}

func TestScanSourceCode_DedupNearbyLines(t *testing.T) {
	gh := &fakeGitHub{
		branchSHA: "abc",
		tree:      []github.TreeEntry{{Path: "a.go", SHA: "b1"}},
		blobs: map[string]string{
			// Same title, lines 1 and 3: 2 apart, deduplicated.
			// Line 20 is far enough away to survive.
			"b1": "// TODO: first\n\n// TODO: second\n" +
				"\n\n\n\n\n\n\n\n\n\n\n\n\n\n\n\n// TODO: far away\n",
		},
	}
	imp, s := newTestImporter(t, gh, nil)
	p := seedLinkedProject(t, s)

	result, err := imp.ScanSourceCode(context.Background(), p.ID, "", "", "main", 0, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalFound, "lines 1 and 3 collapse, line 20 survives")
	assert.Equal(t, 2, result.CreatedCount)
}

func TestScanSourceCode_SkipsExistingIssues(t *testing.T) {
	gh := &fakeGitHub{
		branchSHA: "abc",
		tree:      []github.TreeEntry{{Path: "a.go", SHA: "b1"}},
		blobs:     map[string]string{"b1": "// TODO: handle missing config\n"},
	}
	imp, s := newTestImporter(t, gh, nil)
	p := seedLinkedProject(t, s)
	ctx := context.Background()

	// First run files the issue; the second finds it and skips.
	first, err := imp.ScanSourceCode(ctx, p.ID, "", "", "main", 0, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, first.CreatedCount)

	second, err := imp.ScanSourceCode(ctx, p.ID, "", "", "main", 0, "u1")
	require.NoError(t, err)
	assert.Zero(t, second.CreatedCount)
	assert.Equal(t, 1, second.SkippedCount)
	require.Len(t, second.Skipped, 1)
	assert.Equal(t, "Similar issue already exists", second.Skipped[0].Reason)
	assert.Equal(t, first.Created[0].ID, second.Skipped[0].ExistingIssueID)

	issues, err := s.ListIssues(ctx, store.IssueListFilter{ProjectID: p.ID})
	require.NoError(t, err)
	assert.Len(t, issues, 1)
}

func TestScanSourceCode_ModelFindings(t *testing.T) {
	gh := &fakeGitHub{
		branchSHA: "abc",
		tree:      []github.TreeEntry{{Path: "config.js", SHA: "b1"}},
		blobs:     map[string]string{"b1": "const key = 'sk-123'\n"},
	}
	completer := &fakeCompleter{
		configured: true,
		response:   `{"issues":[{"issueTitle":"Hardcoded API key","issueBody":"move it to the environment","lineNumber":1,"type":"Security","priority":"Critical"}]}`,
	}
	imp, s := newTestImporter(t, gh, completer)
	p := seedLinkedProject(t, s)

	result, err := imp.ScanSourceCode(context.Background(), p.ID, "", "", "main", 0, "u1")
	require.NoError(t, err)
	assert.True(t, result.AIEnabled)
	require.Equal(t, 1, result.CreatedCount)
	assert.Equal(t, 1, result.Summary.ByMethod[MethodAI])

	issue := result.Created[0]
	assert.Equal(t, "Hardcoded API key", issue.Title)
	assert.Equal(t, models.IssuePriorityCritical, issue.Priority)
	assert.Contains(t, issue.Description, "AI Analysis")
	assert.Equal(t, []string{"Security", "AI-Generated", "AI-Detected"}, issue.Labels)
	require.NotNil(t, issue.AITriage)
	assert.Equal(t, "Security", issue.AITriage.SuggestedCategory)
	assert.InDelta(t, 0.8, issue.AITriage.Confidence, 0.001)
}

func TestScanSourceCode_MaxFilesCap(t *testing.T) {
	gh := &fakeGitHub{
		branchSHA: "abc",
		tree: []github.TreeEntry{
			{Path: "a.go", SHA: "b1"},
			{Path: "b.go", SHA: "b2"},
			{Path: "c.go", SHA: "b3"},
		},
		blobs: map[string]string{"b1": "", "b2": "", "b3": ""},
	}
	imp, s := newTestImporter(t, gh, nil)
	p := seedLinkedProject(t, s)

	result, err := imp.ScanSourceCode(context.Background(), p.ID, "", "", "main", 2, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.FilesAnalyzed)
}

func TestScanSourceCode_BranchNotFound(t *testing.T) {
	gh := &fakeGitHub{branchErr: errors.New("no such branch")}
	imp, s := newTestImporter(t, gh, nil)
	p := seedLinkedProject(t, s)

	_, err := imp.ScanSourceCode(context.Background(), p.ID, "", "", "gone", 0, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), `branch "gone"`)
}

func TestScanSourceCode_RequiresRepoInfo(t *testing.T) {
	imp, s := newTestImporter(t, &fakeGitHub{}, nil)

	// Project without GitHub provenance and no explicit owner/repo.
	p := &models.Project{Name: "standalone", CreatedBy: "u1"}
	require.NoError(t, s.CreateProject(context.Background(), p))

	_, err := imp.ScanSourceCode(context.Background(), p.ID, "", "", "main", 0, "u1")
	assert.ErrorIs(t, err, tracker.ErrValidation)
}

func TestScanSourceCode_ExplicitOwnerRepoOverride(t *testing.T) {
	gh := &fakeGitHub{
		branchSHA: "abc",
		tree:      []github.TreeEntry{{Path: "a.go", SHA: "b1"}},
		blobs:     map[string]string{"b1": "// TODO: x\n"},
	}
	imp, s := newTestImporter(t, gh, nil)

	p := &models.Project{Name: "standalone", CreatedBy: "u1"}
	require.NoError(t, s.CreateProject(context.Background(), p))

	result, err := imp.ScanSourceCode(context.Background(), p.ID, "other", "repo", "dev", 0, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, result.CreatedCount)
	assert.Equal(t, "other/repo", result.Created[0].CodeLoc.Repository)
	assert.Equal(t, "dev", result.Created[0].CodeLoc.Branch)
}

func TestTodoPattern(t *testing.T) {
	tests := []struct {
		line  string
		match bool
		body  string
	}{
		{"// TODO: fix this", true, "fix this"},
		{"# FIXME: broken on windows", true, "broken on windows"},
		{"/* HACK: temporary */", true, "temporary */"},
		{"// note: lowercase works too", true, "lowercase works too"},
		{"// TODO without colon", false, ""},
		{"just a line", false, ""},
	}
	for _, tt := range tests {
		m := todoPattern.FindStringSubmatch(tt.line)
		if tt.match {
			require.NotNil(t, m, tt.line)
			assert.Equal(t, tt.body, m[1], tt.line)
		} else {
			assert.Nil(t, m, tt.line)
		}
	}
}

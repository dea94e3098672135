package tracker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/store"
)

func TestCreateProject(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, "webapp", "the main app", "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "u1", p.CreatedBy)

	_, err = svc.CreateProject(ctx, "", "d", "u1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateProject(ctx, "x", "d", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeleteProject_OwnerOnly(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, "webapp", "", "owner")
	require.NoError(t, err)

	err = svc.DeleteProject(ctx, p.ID, "someone-else")
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.DeleteProject(ctx, p.ID, "owner"))
	_, err = s.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProjectAnalytics(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	p := seedProject(t, s, "owner")

	for i := 0; i < 3; i++ {
		issue, err := svc.CreateIssue(ctx, CreateIssueInput{
			ProjectID: p.ID, Title: "t", Description: "d", Priority: models.IssuePriorityHigh,
		}, "u1")
		require.NoError(t, err)
		if i < 2 {
			_, err = svc.Resolve(ctx, issue.ID, "", "u1")
			require.NoError(t, err)
		}
	}

	require.NoError(t, s.CreateSprint(ctx, &models.Sprint{ProjectID: p.ID, Name: "s1", Status: models.SprintStatusCompleted}))
	require.NoError(t, s.CreateSprint(ctx, &models.Sprint{ProjectID: p.ID, Name: "s2", Status: models.SprintStatusActive}))

	a, err := svc.ProjectAnalytics(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, a.TotalIssues)
	assert.Equal(t, 2, a.IssuesByStatus[models.IssueStatusResolved])
	assert.Equal(t, 1, a.IssuesByStatus[models.IssueStatusOpen])
	assert.Equal(t, 3, a.IssuesByPriority[models.IssuePriorityHigh])
	assert.Equal(t, 2, a.SprintsTotal)
	assert.Equal(t, 1, a.SprintsActive)
	assert.Equal(t, 1, a.SprintsCompleted)
	assert.InDelta(t, 2.0, a.Velocity, 0.001, "resolved per completed sprint")
}

func TestProjectAnalytics_NoSprints(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	p := seedProject(t, s, "owner")

	a, err := svc.ProjectAnalytics(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, a.Velocity)
}

func TestAnalyzeProject_Empty(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	p := seedProject(t, s, "owner")

	analysis, err := svc.AnalyzeProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "No issues found in this project.", analysis.Summary)
	assert.Empty(t, analysis.ResolutionOrder)
	assert.Equal(t, "fallback", analysis.Source)
}

func TestAnalyzeProject_PriorityFallback(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	p := seedProject(t, s, "owner")

	low, err := svc.CreateIssue(ctx, CreateIssueInput{ProjectID: p.ID, Title: "tidy docs", Description: "d", Priority: models.IssuePriorityLow}, "u1")
	require.NoError(t, err)
	crit, err := svc.CreateIssue(ctx, CreateIssueInput{ProjectID: p.ID, Title: "data loss", Description: "d", Priority: models.IssuePriorityCritical}, "u1")
	require.NoError(t, err)

	analysis, err := svc.AnalyzeProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "fallback", analysis.Source)
	require.Len(t, analysis.ResolutionOrder, 2)
	assert.Equal(t, crit.ID, analysis.ResolutionOrder[0].IssueID, "critical first")
	assert.Equal(t, low.ID, analysis.ResolutionOrder[1].IssueID)
	assert.Contains(t, analysis.Summary, "2 issues")
	assert.Contains(t, analysis.Summary, "Critical")
	assert.Equal(t, 1, analysis.PriorityBreakdown[models.IssuePriorityCritical])
	assert.NotEmpty(t, analysis.Recommendations)
}

func TestAnalyzeProject_UsesModelOrdering(t *testing.T) {
	completer := &stubCompleter{
		configured: true,
		response: `{
			"summary": "Healthy overall.",
			"resolutionOrder": [
				{"issueNumber": 2, "title": "data loss", "priority": "Critical", "reason": "data integrity"},
				{"issueNumber": 1, "title": "tidy docs", "priority": "Low", "reason": "quick win"}
			],
			"priorityBreakdown": {"Critical": 1, "Low": 1},
			"recommendations": ["fix data loss first"]
		}`,
	}
	svc, s := newTestServiceWithLLM(t, completer)
	ctx := context.Background()
	p := seedProject(t, s, "owner")

	_, err := svc.CreateIssue(ctx, CreateIssueInput{ProjectID: p.ID, Title: "tidy docs", Description: "d", Priority: models.IssuePriorityLow}, "u1")
	require.NoError(t, err)
	_, err = svc.CreateIssue(ctx, CreateIssueInput{ProjectID: p.ID, Title: "data loss", Description: "d", Priority: models.IssuePriorityCritical}, "u1")
	require.NoError(t, err)

	analysis, err := svc.AnalyzeProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "llm", analysis.Source)
	assert.Equal(t, "Healthy overall.", analysis.Summary)
	require.Len(t, analysis.ResolutionOrder, 2)
	// Issue numbers index the listing order sent in the prompt, which is
	// the store's newest-first listing.
	assert.NotEmpty(t, analysis.ResolutionOrder[0].IssueID)
	assert.Equal(t, []string{"fix data loss first"}, analysis.Recommendations)
}

func TestAnalyzeProject_QuotaNoteInFallback(t *testing.T) {
	completer := &stubCompleter{configured: true, err: errors.New("quota exhausted")}
	svc, s := newTestServiceWithLLM(t, completer)
	ctx := context.Background()
	p := seedProject(t, s, "owner")

	_, err := svc.CreateIssue(ctx, CreateIssueInput{ProjectID: p.ID, Title: "t", Description: "d"}, "u1")
	require.NoError(t, err)

	analysis, err := svc.AnalyzeProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "fallback", analysis.Source)
	require.NotEmpty(t, analysis.ResolutionOrder)
	assert.Contains(t, analysis.ResolutionOrder[0].Reason, "AI quota exceeded")
}

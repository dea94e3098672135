package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/issuedeck/issuedeck/internal/llm"
	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/store"
)

// CreateProject validates and persists a project, recording an activity.
func (s *Service) CreateProject(ctx context.Context, name, description, actorID string) (*models.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("project name is required: %w", ErrValidation)
	}
	if actorID == "" {
		return nil, fmt.Errorf("acting user is required: %w", ErrValidation)
	}

	project := &models.Project{Name: name, Description: description, CreatedBy: actorID}
	if err := s.store.CreateProject(ctx, project); err != nil {
		return nil, err
	}

	s.activities.Record(models.Activity{
		Type:        models.ActivityProjectCreated,
		Description: fmt.Sprintf("Created project %q", project.Name),
		UserID:      actorID,
		ProjectID:   project.ID,
	})
	return project, nil
}

// DeleteProject removes a project and everything it owns. Only the creator
// may delete.
func (s *Service) DeleteProject(ctx context.Context, projectID, actorID string) error {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project.CreatedBy != actorID {
		return fmt.Errorf("you can only delete projects that you created: %w", ErrForbidden)
	}
	return s.store.DeleteProject(ctx, projectID)
}

// Analytics is a project-level issue/sprint breakdown.
type Analytics struct {
	TotalIssues      int                          `json:"totalIssues"`
	IssuesByStatus   map[models.IssueStatus]int   `json:"issuesByStatus"`
	IssuesByPriority map[models.IssuePriority]int `json:"issuesByPriority"`
	SprintsTotal     int                          `json:"sprintsTotal"`
	SprintsActive    int                          `json:"sprintsActive"`
	SprintsCompleted int                          `json:"sprintsCompleted"`
	Velocity         float64                      `json:"velocity"`
}

// ProjectAnalytics computes status/priority breakdowns and velocity
// (resolved issues per completed sprint).
func (s *Service) ProjectAnalytics(ctx context.Context, projectID string) (*Analytics, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	issues, err := s.store.ListIssues(ctx, store.IssueListFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	sprints, err := s.store.ListSprints(ctx, projectID)
	if err != nil {
		return nil, err
	}

	a := &Analytics{
		TotalIssues:      len(issues),
		IssuesByStatus:   map[models.IssueStatus]int{},
		IssuesByPriority: map[models.IssuePriority]int{},
		SprintsTotal:     len(sprints),
	}
	for _, i := range issues {
		a.IssuesByStatus[i.Status]++
		a.IssuesByPriority[i.Priority]++
	}
	for _, sp := range sprints {
		switch sp.Status {
		case models.SprintStatusActive:
			a.SprintsActive++
		case models.SprintStatusCompleted:
			a.SprintsCompleted++
		}
	}
	if a.SprintsCompleted > 0 {
		a.Velocity = float64(a.IssuesByStatus[models.IssueStatusResolved]) / float64(a.SprintsCompleted)
	}
	return a, nil
}

// ResolutionStep is one entry in a recommended resolution order.
type ResolutionStep struct {
	IssueID  string               `json:"issueId"`
	Title    string               `json:"title"`
	Priority models.IssuePriority `json:"priority"`
	Reason   string               `json:"reason"`
}

// ProjectAnalysis summarizes a project's open issues and a recommended
// resolution order.
type ProjectAnalysis struct {
	Summary           string                       `json:"summary"`
	ResolutionOrder   []ResolutionStep             `json:"resolutionOrder"`
	PriorityBreakdown map[models.IssuePriority]int `json:"priorityBreakdown"`
	Recommendations   []string                     `json:"recommendations"`
	Source            string                       `json:"source"`
}

var priorityRank = map[models.IssuePriority]int{
	models.IssuePriorityCritical: 4,
	models.IssuePriorityHigh:     3,
	models.IssuePriorityMedium:   2,
	models.IssuePriorityLow:      1,
}

// AnalyzeProject asks the model for a health summary and resolution order.
// Without an API key, or when the model fails, it degrades to a
// priority-sorted analysis.
func (s *Service) AnalyzeProject(ctx context.Context, projectID string) (*ProjectAnalysis, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	issues, err := s.store.ListIssues(ctx, store.IssueListFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}

	if len(issues) == 0 {
		return &ProjectAnalysis{
			Summary:           "No issues found in this project.",
			PriorityBreakdown: map[models.IssuePriority]int{},
			Source:            "fallback",
		}, nil
	}

	if s.llm == nil || !s.llm.Configured() {
		return priorityAnalysis(project, issues, ""), nil
	}

	analysis, err := s.llmAnalysis(ctx, project, issues)
	if err != nil {
		note := ""
		if llm.IsQuotaError(err) {
			note = " (AI quota exceeded - using fallback analysis)"
		}
		s.logger.Warn("project analysis degraded to priority ordering", "project", projectID, "error", err)
		return priorityAnalysis(project, issues, note), nil
	}
	return analysis, nil
}

func (s *Service) llmAnalysis(ctx context.Context, project *models.Project, issues []*models.Issue) (*ProjectAnalysis, error) {
	var sb strings.Builder
	for i, issue := range issues {
		desc := issue.Description
		if len(desc) > 200 {
			desc = desc[:200] + "..."
		}
		fmt.Fprintf(&sb, "\n%d. [%s] %s\n   Status: %s\n   Description: %s\n", i+1, issue.Priority, issue.Title, issue.Status, desc)
	}

	prompt := fmt.Sprintf(`Analyze this software project and its issues. Provide:
1. A brief summary of the project health
2. Recommended resolution order (which issues to fix first, numbered 1-%d)
3. Priority breakdown
4. Actionable recommendations

Project: %s
Description: %s
Total Issues: %d

Issues:
%s

Respond in JSON format only:
{
  "summary": "project_health_summary",
  "resolutionOrder": [
    {"issueNumber": 1, "title": "issue_title", "priority": "priority", "reason": "why_first"}
  ],
  "priorityBreakdown": {"Critical": 0, "High": 0, "Medium": 0, "Low": 0},
  "recommendations": ["recommendation1", "recommendation2"]
}`, len(issues), project.Name, project.Description, len(issues), sb.String())

	const system = "You are a software project management assistant. Analyze projects and provide actionable insights. Always respond with valid JSON only, no markdown formatting."

	raw, err := s.llm.Complete(ctx, prompt, system, llm.Options{Temperature: 0.3, MaxTokens: 1500})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Summary         string `json:"summary"`
		ResolutionOrder []struct {
			IssueNumber int    `json:"issueNumber"`
			Title       string `json:"title"`
			Reason      string `json:"reason"`
		} `json:"resolutionOrder"`
		PriorityBreakdown map[models.IssuePriority]int `json:"priorityBreakdown"`
		Recommendations   []string                     `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(llm.StripFences(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse analysis response: %w", err)
	}

	analysis := &ProjectAnalysis{
		Summary:           parsed.Summary,
		PriorityBreakdown: parsed.PriorityBreakdown,
		Recommendations:   parsed.Recommendations,
		Source:            "llm",
	}
	if analysis.PriorityBreakdown == nil {
		analysis.PriorityBreakdown = countByPriority(issues)
	}

	// Map model-reported issue numbers back to real ids; fall back to a
	// title match, then to the first issue.
	for _, item := range parsed.ResolutionOrder {
		issue := issues[0]
		if item.IssueNumber >= 1 && item.IssueNumber <= len(issues) {
			issue = issues[item.IssueNumber-1]
		} else {
			for _, candidate := range issues {
				if candidate.Title == item.Title {
					issue = candidate
					break
				}
			}
		}
		reason := item.Reason
		if reason == "" {
			reason = fmt.Sprintf("Priority: %s", issue.Priority)
		}
		analysis.ResolutionOrder = append(analysis.ResolutionOrder, ResolutionStep{
			IssueID:  issue.ID,
			Title:    issue.Title,
			Priority: issue.Priority,
			Reason:   reason,
		})
	}
	return analysis, nil
}

func priorityAnalysis(project *models.Project, issues []*models.Issue, reasonNote string) *ProjectAnalysis {
	sorted := make([]*models.Issue, len(issues))
	copy(sorted, issues)
	sort.SliceStable(sorted, func(i, j int) bool {
		return priorityRank[sorted[i].Priority] > priorityRank[sorted[j].Priority]
	})

	breakdown := countByPriority(issues)
	open := 0
	for _, i := range issues {
		if i.Status == models.IssueStatusOpen {
			open++
		}
	}

	summary := fmt.Sprintf("Project %q has %d issues. %d are currently open.", project.Name, len(issues), open)
	var recommendations []string
	if n := breakdown[models.IssuePriorityCritical]; n > 0 {
		summary += fmt.Sprintf(" %d Critical issue(s) need immediate attention.", n)
		recommendations = append(recommendations, fmt.Sprintf("Focus on %d Critical issue(s) first", n))
	}
	if n := breakdown[models.IssuePriorityHigh]; n > 0 {
		recommendations = append(recommendations, fmt.Sprintf("Next, address %d High priority issue(s)", n))
	}
	if len(recommendations) == 0 {
		recommendations = []string{
			"Focus on Critical and High priority issues first",
			"Update issue status as you resolve them",
		}
	}

	analysis := &ProjectAnalysis{
		Summary:           summary,
		PriorityBreakdown: breakdown,
		Recommendations:   recommendations,
		Source:            "fallback",
	}
	for _, issue := range sorted {
		analysis.ResolutionOrder = append(analysis.ResolutionOrder, ResolutionStep{
			IssueID:  issue.ID,
			Title:    issue.Title,
			Priority: issue.Priority,
			Reason:   fmt.Sprintf("Priority: %s%s", issue.Priority, reasonNote),
		})
	}
	return analysis
}

func countByPriority(issues []*models.Issue) map[models.IssuePriority]int {
	breakdown := map[models.IssuePriority]int{}
	for _, i := range issues {
		breakdown[i.Priority]++
	}
	return breakdown
}

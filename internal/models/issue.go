package models

import "time"

// IssueStatus represents the state of an issue.
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "Open"
	IssueStatusInProgress IssueStatus = "In Progress"
	IssueStatusResolved   IssueStatus = "Resolved"
	IssueStatusClosed     IssueStatus = "Closed"
)

// ValidStatus reports whether s is one of the known issue statuses.
func ValidStatus(s IssueStatus) bool {
	switch s {
	case IssueStatusOpen, IssueStatusInProgress, IssueStatusResolved, IssueStatusClosed:
		return true
	}
	return false
}

// IssuePriority represents the urgency of an issue.
type IssuePriority string

const (
	IssuePriorityLow      IssuePriority = "Low"
	IssuePriorityMedium   IssuePriority = "Medium"
	IssuePriorityHigh     IssuePriority = "High"
	IssuePriorityCritical IssuePriority = "Critical"
)

// ValidPriority reports whether p is one of the known issue priorities.
func ValidPriority(p IssuePriority) bool {
	switch p {
	case IssuePriorityLow, IssuePriorityMedium, IssuePriorityHigh, IssuePriorityCritical:
		return true
	}
	return false
}

// AITriage holds the last classifier output applied to an issue.
type AITriage struct {
	SuggestedCategory string  `json:"suggestedCategory"`
	Confidence        float64 `json:"confidence"`
	DuplicateCheck    bool    `json:"duplicateCheck"`
	Analysis          string  `json:"analysis"`
}

// GitHubIssue records the provenance of a GitHub-imported issue.
// Never mutated after creation.
type GitHubIssue struct {
	Number    int    `json:"number"`
	URL       string `json:"url"`
	State     string `json:"state"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CodeLocation records where a code-scan finding originated.
// Never mutated after creation.
type CodeLocation struct {
	FilePath   string `json:"filePath"`
	LineNumber int    `json:"lineNumber"`
	Branch     string `json:"branch"`
	Repository string `json:"repository"`
}

// Resolution is populated exactly once, when an issue transitions to
// Resolved, and is never cleared afterwards.
type Resolution struct {
	Notes      string    `json:"notes"`
	ResolvedBy string    `json:"resolvedBy"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

// Issue is the central tracked entity.
type Issue struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"projectId"`
	SprintID    string        `json:"sprintId,omitempty"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      IssueStatus   `json:"status"`
	Priority    IssuePriority `json:"priority"`
	AssignedTo  string        `json:"assignedTo,omitempty"`
	CreatedBy   string        `json:"createdBy"`
	Labels      []string      `json:"labels,omitempty"`
	AITriage    *AITriage     `json:"aiTriage,omitempty"`
	GitHubIssue *GitHubIssue  `json:"githubIssue,omitempty"`
	CodeLoc     *CodeLocation `json:"codeLocation,omitempty"`
	Resolution  *Resolution   `json:"resolution,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// DedupLabels returns labels with duplicates removed, preserving first
// occurrence order.
func DedupLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	var out []string
	for _, l := range labels {
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

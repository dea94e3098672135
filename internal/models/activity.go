package models

import "time"

// Activity is an immutable append-only audit record written as a side effect
// of state-changing operations.
type Activity struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	UserID      string    `json:"user"`
	IssueID     string    `json:"issue,omitempty"`
	ProjectID   string    `json:"project,omitempty"`
	CommentID   string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Activity types emitted by the core.
const (
	ActivityIssueCreated   = "issue_created"
	ActivityIssueResolved  = "issue_resolved"
	ActivityIssueClosed    = "issue_status_changed"
	ActivityCommentAdded   = "issue_comment_added"
	ActivityProjectCreated = "project_created"
)

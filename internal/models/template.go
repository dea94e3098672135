package models

import "time"

// IssueTemplate is a reusable issue skeleton. UsageCount increments each
// time the template instantiates an issue.
type IssueTemplate struct {
	ID                 string        `json:"id"`
	Title              string        `json:"title"`
	DefaultDescription string        `json:"defaultDescription"`
	DefaultPriority    IssuePriority `json:"defaultPriority"`
	DefaultLabels      []string      `json:"defaultLabels,omitempty"`
	UsageCount         int           `json:"usageCount"`
	CreatedBy          string        `json:"createdBy"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

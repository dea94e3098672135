package models

import "time"

// GitHubRepo records the provenance of a GitHub-imported project.
type GitHubRepo struct {
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	URL        string `json:"url"`
	Stars      int    `json:"stars"`
	Forks      int    `json:"forks"`
	Language   string `json:"language"`
	OpenIssues int    `json:"openIssues"`
}

// Project owns issues and sprints. CreatedBy is the only actor allowed to
// delete the project or close its issues.
type Project struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	CreatedBy   string      `json:"createdBy"`
	GitHubRepo  *GitHubRepo `json:"githubRepo,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// SprintStatus represents the state of a sprint.
type SprintStatus string

const (
	SprintStatusPlanned   SprintStatus = "planned"
	SprintStatusActive    SprintStatus = "active"
	SprintStatusCompleted SprintStatus = "completed"
)

// Sprint groups issues within a project over a time window.
type Sprint struct {
	ID        string       `json:"id"`
	ProjectID string       `json:"projectId"`
	Name      string       `json:"name"`
	Status    SprintStatus `json:"status"`
	StartDate *time.Time   `json:"startDate,omitempty"`
	EndDate   *time.Time   `json:"endDate,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

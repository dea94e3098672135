package models

import "time"

// DependencyType describes the relationship between two issues.
type DependencyType string

const (
	DependencyBlocks    DependencyType = "blocks"
	DependencyBlockedBy DependencyType = "blocked_by"
	DependencyRelatedTo DependencyType = "related_to"
	DependencyDuplicate DependencyType = "duplicate_of"
)

// ValidDependencyType reports whether t is a known dependency type.
func ValidDependencyType(t DependencyType) bool {
	switch t {
	case DependencyBlocks, DependencyBlockedBy, DependencyRelatedTo, DependencyDuplicate:
		return true
	}
	return false
}

// Dependency is a directed edge between two issues. Self-loops and duplicate
// (from, to, type) edges are rejected at the service layer.
type Dependency struct {
	ID          string         `json:"id"`
	FromIssue   string         `json:"fromIssue"`
	ToIssue     string         `json:"toIssue"`
	Type        DependencyType `json:"type"`
	Description string         `json:"description,omitempty"`
	CreatedBy   string         `json:"createdBy"`
	CreatedAt   time.Time      `json:"createdAt"`
}

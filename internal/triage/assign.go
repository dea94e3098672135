package triage

import (
	"fmt"

	"github.com/issuedeck/issuedeck/internal/models"
)

// Assignment is a workload-based assignee suggestion.
type Assignment struct {
	User       *models.User `json:"suggestedUser"`
	Reason     string       `json:"reason"`
	Confidence float64      `json:"confidence"`
}

// SuggestAssignee picks the user with the minimum count of non-Closed
// assigned issues. Candidates are every user in the system, not just project
// members; ties go to the first user encountered. This is a heuristic stub,
// not a learned ranking, so confidence is a constant.
func SuggestAssignee(issues []*models.Issue, users []*models.User) *Assignment {
	workload := make(map[string]int)
	for _, issue := range issues {
		if issue.AssignedTo == "" || issue.Status == models.IssueStatusClosed {
			continue
		}
		workload[issue.AssignedTo]++
	}

	var suggested *models.User
	minWorkload := -1
	for _, u := range users {
		n := workload[u.ID]
		if minWorkload < 0 || n < minWorkload {
			minWorkload = n
			suggested = u
		}
	}

	if suggested == nil {
		return &Assignment{Reason: "No users available", Confidence: 0.7}
	}
	return &Assignment{
		User:       suggested,
		Reason:     fmt.Sprintf("Lowest current workload (%d issues assigned)", minWorkload),
		Confidence: 0.7,
	}
}

package models

import "time"

// User is a minimal account record. Authentication and session mechanics
// live outside this service; operations receive an acting user id.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is attached to an issue and cascade-deleted with it.
type Comment struct {
	ID        string    `json:"id"`
	IssueID   string    `json:"issueId"`
	Text      string    `json:"text"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

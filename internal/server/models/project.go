package models

import "time"

type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership links a user to a project. (ProjectID, UserID) is unique.
type Membership struct {
	ProjectID string
	UserID    string
	IsAdmin   bool
	CreatedAt time.Time
}

// Member is a membership joined with the member's account details.
type Member struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
	IsAdmin   bool
}

// Package models defines server-side records persisted in the database.
package models

import "time"

// User is an account. PasswordHash never leaves the server.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor is the authenticated user a request runs on behalf of.
type Actor struct {
	ID    string
	Email string
}

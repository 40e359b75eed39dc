package models

import "time"

// Category is an ordered column of a project. SortOrder is dense
// (0..n-1) among the categories of the same project.
type Category struct {
	ID        string
	ProjectID string
	Name      string
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwningProjectID reports the project whose membership guards the category.
func (c *Category) OwningProjectID() string { return c.ProjectID }

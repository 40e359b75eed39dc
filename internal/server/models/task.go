package models

import "time"

// Task lives in a category. SortOrder is dense (0..n-1) among the tasks of
// the same category. Assignees are stored separately (see Assignment).
type Task struct {
	ID          string
	ProjectID   string
	CategoryID  string
	Name        string
	Description *string
	DueDate     *time.Time
	SortOrder   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OwningProjectID reports the project whose membership guards the task.
func (t *Task) OwningProjectID() string { return t.ProjectID }

// Assignment is one (task, user) pair of a task's assignee set.
type Assignment struct {
	TaskID string
	UserID string
}

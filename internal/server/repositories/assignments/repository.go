// Package assignments stores the assignee set of each task.
package assignments

import (
	"context"

	"github.com/dmitrijs2005/taskio/internal/server/models"
)

type Repository interface {
	// ListUserIDs returns the ids of the users assigned to taskID.
	ListUserIDs(ctx context.Context, taskID string) ([]string, error)
	// ListByProject returns every assignment on the project's tasks.
	ListByProject(ctx context.Context, projectID string) ([]models.Assignment, error)
	Add(ctx context.Context, taskID, userID string) error
	Remove(ctx context.Context, taskID, userID string) error
	// RemoveUserFromProject drops userID from every task of projectID.
	RemoveUserFromProject(ctx context.Context, projectID, userID string) error
}

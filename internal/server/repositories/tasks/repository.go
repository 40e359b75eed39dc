// Package tasks stores tasks and their position inside a category.
package tasks

import (
	"context"

	"github.com/dmitrijs2005/taskio/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, t *models.Task) (*models.Task, error)
	GetByID(ctx context.Context, id string) (*models.Task, error)
	Update(ctx context.Context, t *models.Task) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Task, error)
	ListByProject(ctx context.Context, projectID string) ([]*models.Task, error)
	// ListByCategory returns the category's tasks by sort order.
	ListByCategory(ctx context.Context, categoryID string) ([]*models.Task, error)
	CountByCategory(ctx context.Context, categoryID string) (int, error)
	SetSortOrder(ctx context.Context, id string, sortOrder int) error
	MoveTo(ctx context.Context, id, categoryID string, sortOrder int) error
}

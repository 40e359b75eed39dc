// Package categories stores the ordered categories of a project.
package categories

import (
	"context"

	"github.com/dmitrijs2005/taskio/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Category) (*models.Category, error)
	GetByID(ctx context.Context, id string) (*models.Category, error)
	Update(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Category, error)
	// ListByProject returns the project's categories by sort order.
	ListByProject(ctx context.Context, projectID string) ([]*models.Category, error)
	CountByProject(ctx context.Context, projectID string) (int, error)
	SetSortOrder(ctx context.Context, id string, sortOrder int) error
	// LockForUpdate takes a row lock on the category until the transaction
	// ends. It serializes changes to the category's task order.
	LockForUpdate(ctx context.Context, id string) error
}

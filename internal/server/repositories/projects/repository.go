// Package projects stores projects.
package projects

import (
	"context"

	"github.com/dmitrijs2005/taskio/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.Project) (*models.Project, error)
	GetByID(ctx context.Context, id string) (*models.Project, error)
	Update(ctx context.Context, p *models.Project) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Project, error)
	// ListForUser returns the projects userID is a member of.
	ListForUser(ctx context.Context, userID string) ([]*models.Project, error)
	// LockForUpdate takes a row lock on the project until the transaction ends.
	// It serializes changes to the project's category order.
	LockForUpdate(ctx context.Context, id string) error
}

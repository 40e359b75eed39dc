// Package memberships stores the (project, user) membership rows and their
// admin flag.
package memberships

import (
	"context"

	"github.com/dmitrijs2005/taskio/internal/server/access"
	"github.com/dmitrijs2005/taskio/internal/server/models"
)

type Repository interface {
	access.FactsLoader

	Add(ctx context.Context, m *models.Membership) error
	Get(ctx context.Context, projectID, userID string) (*models.Membership, error)
	Remove(ctx context.Context, projectID, userID string) error
	SetAdmin(ctx context.Context, projectID, userID string, isAdmin bool) error
	ListByProject(ctx context.Context, projectID string) ([]*models.Membership, error)
	// ListMembers returns memberships joined with account details, ordered by email.
	ListMembers(ctx context.Context, projectID string) ([]*models.Member, error)
	CountAdmins(ctx context.Context, projectID string) (int, error)
}

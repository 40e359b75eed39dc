// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/taskio/internal/server/models"
)

// Repository stores refresh tokens. Each token is single-use: rotation
// deletes it and issues a new one.
type Repository interface {
	// Create stores rt under a fresh id.
	Create(ctx context.Context, rt *models.RefreshToken) error
	// Find returns the token row or common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)
	// Delete consumes a token. A token that is already gone yields
	// common.ErrorNotFound, so two concurrent rotations cannot both succeed.
	Delete(ctx context.Context, token string) error
	// DeleteByUser revokes every token of userID.
	DeleteByUser(ctx context.Context, userID string) error
}

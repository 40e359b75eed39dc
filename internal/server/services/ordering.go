package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/taskio/internal/server/models"
	"github.com/dmitrijs2005/taskio/internal/server/ordinal"
)

func categoryItems(cs []*models.Category) []ordinal.Item {
	out := make([]ordinal.Item, len(cs))
	for i, c := range cs {
		out[i] = ordinal.Item{ID: c.ID, SortOrder: c.SortOrder}
	}
	return out
}

func taskItems(ts []*models.Task) []ordinal.Item {
	out := make([]ordinal.Item, len(ts))
	for i, t := range ts {
		out[i] = ordinal.Item{ID: t.ID, SortOrder: t.SortOrder}
	}
	return out
}

// writeOrder persists the changed positions only.
func writeOrder(ctx context.Context, changes []ordinal.Item, set func(ctx context.Context, id string, sortOrder int) error) error {
	for _, c := range changes {
		if err := set(ctx, c.ID, c.SortOrder); err != nil {
			return err
		}
	}
	return nil
}

// reorderFailure maps an unknown id in a reorder request to BadRequest.
func reorderFailure(err error, msg string) error {
	if errors.Is(err, ordinal.ErrUnknownItem) {
		return badRequest(msg)
	}
	return err
}

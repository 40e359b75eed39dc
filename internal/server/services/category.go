package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/taskio/internal/dbx"
	"github.com/dmitrijs2005/taskio/internal/logging"
	"github.com/dmitrijs2005/taskio/internal/server/models"
	"github.com/dmitrijs2005/taskio/internal/server/ordinal"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskio/internal/server/result"
)

type CategoryBase = EntityService[models.Category, CategoryCreate, CategoryView, CategoryUpdate]

// CategoryService manages the ordered categories of a project. Every
// operation requires project membership.
type CategoryService struct {
	deps
	base *CategoryBase
}

func NewCategoryService(tx dbx.Transactor, repos repomanager.RepositoryManager, log logging.Logger) *CategoryService {
	d := newDeps(tx, repos, log)
	return &CategoryService{
		deps: d,
		base: NewEntityService(d, EntityDef[models.Category, CategoryCreate, CategoryView, CategoryUpdate]{
			Name: "Category",
			Repo: func(db dbx.DBTX) CrudRepository[models.Category] { return repos.Categories(db) },
			New: func(c CategoryCreate) *models.Category {
				return &models.Category{ProjectID: c.ProjectID, Name: strings.TrimSpace(c.Name)}
			},
			UpdateID: func(u CategoryUpdate) string { return u.ID },
			Apply:    func(c *models.Category, u CategoryUpdate) { c.Name = strings.TrimSpace(u.Name) },
			View: func(_ context.Context, _ dbx.DBTX, c *models.Category) (CategoryView, error) {
				return categoryView(c), nil
			},
		}),
	}
}

// Base exposes the unchecked CRUD core.
func (s *CategoryService) Base() *CategoryBase { return s.base }

func validCategoryName(name string) error {
	if strings.TrimSpace(name) == "" {
		return badRequest("Category name is required.")
	}
	return nil
}

// Insert appends a new category to the end of the project's order.
func (s *CategoryService) Insert(ctx context.Context, actor models.Actor, in CategoryCreate) result.Result[CategoryView] {
	return within(ctx, s.deps, "Category.Insert", func(ctx context.Context, db dbx.DBTX) (CategoryView, error) {
		if _, err := s.gate(db).RequireMember(ctx, in.ProjectID, actor.ID); err != nil {
			return CategoryView{}, err
		}
		if err := validCategoryName(in.Name); err != nil {
			return CategoryView{}, err
		}
		if err := s.repos.Projects(db).LockForUpdate(ctx, in.ProjectID); err != nil {
			return CategoryView{}, notFoundAs(err, MsgProjectNotFound)
		}
		n, err := s.repos.Categories(db).CountByProject(ctx, in.ProjectID)
		if err != nil {
			return CategoryView{}, err
		}

		c := s.base.def.New(in)
		c.SortOrder = ordinal.Append(n)
		if c, err = s.base.create(ctx, db, c); err != nil {
			return CategoryView{}, err
		}
		return s.base.refetch(ctx, db, c.ID)
	})
}

// loadChecked reads a category and checks the actor's membership in its project.
func (s *CategoryService) loadChecked(ctx context.Context, db dbx.DBTX, actor models.Actor, id string) (*models.Category, error) {
	c, err := s.base.load(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate(db).RequireEntityOwnerMember(ctx, c, actor.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CategoryService) Get(ctx context.Context, actor models.Actor, id string) result.Result[CategoryView] {
	return within(ctx, s.deps, "Category.Get", func(ctx context.Context, db dbx.DBTX) (CategoryView, error) {
		c, err := s.loadChecked(ctx, db, actor, id)
		if err != nil {
			return CategoryView{}, err
		}
		return s.base.view(ctx, db, c)
	})
}

// ListByProject returns the project's categories in display order.
func (s *CategoryService) ListByProject(ctx context.Context, actor models.Actor, projectID string) result.Result[[]CategoryView] {
	return within(ctx, s.deps, "Category.ListByProject", func(ctx context.Context, db dbx.DBTX) ([]CategoryView, error) {
		if _, err := s.gate(db).RequireMember(ctx, projectID, actor.ID); err != nil {
			return nil, err
		}
		cs, err := s.repos.Categories(db).ListByProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return s.base.views(ctx, db, cs)
	})
}

// Update renames a category. Its position is changed through Reorder only.
func (s *CategoryService) Update(ctx context.Context, actor models.Actor, in CategoryUpdate) result.Result[CategoryView] {
	return within(ctx, s.deps, "Category.Update", func(ctx context.Context, db dbx.DBTX) (CategoryView, error) {
		c, err := s.loadChecked(ctx, db, actor, in.ID)
		if err != nil {
			return CategoryView{}, err
		}
		if err := validCategoryName(in.Name); err != nil {
			return CategoryView{}, err
		}
		s.base.def.Apply(c, in)
		if err := s.base.save(ctx, db, c); err != nil {
			return CategoryView{}, err
		}
		return s.base.refetch(ctx, db, c.ID)
	})
}

// Delete removes a category with its tasks and closes the gap it leaves
// in the project's order.
func (s *CategoryService) Delete(ctx context.Context, actor models.Actor, id string) result.Result[bool] {
	return within(ctx, s.deps, "Category.Delete", func(ctx context.Context, db dbx.DBTX) (bool, error) {
		c, err := s.loadChecked(ctx, db, actor, id)
		if err != nil {
			return false, err
		}
		if err := s.repos.Projects(db).LockForUpdate(ctx, c.ProjectID); err != nil {
			return false, err
		}

		tasks := s.repos.Tasks(db)
		ts, err := tasks.ListByCategory(ctx, c.ID)
		if err != nil {
			return false, err
		}
		for _, t := range ts {
			if err := tasks.Delete(ctx, t.ID); err != nil {
				return false, err
			}
		}
		if err := s.base.remove(ctx, db, c.ID); err != nil {
			return false, err
		}

		cats := s.repos.Categories(db)
		rest, err := cats.ListByProject(ctx, c.ProjectID)
		if err != nil {
			return false, err
		}
		return true, writeOrder(ctx, ordinal.Renumber(categoryItems(rest)), cats.SetSortOrder)
	})
}

// Reorder sets the project's category order to orderedIDs. Categories left
// out keep their relative order after the listed ones.
func (s *CategoryService) Reorder(ctx context.Context, actor models.Actor, projectID string, orderedIDs []string) result.Result[[]CategoryView] {
	return within(ctx, s.deps, "Category.Reorder", func(ctx context.Context, db dbx.DBTX) ([]CategoryView, error) {
		if _, err := s.gate(db).RequireMember(ctx, projectID, actor.ID); err != nil {
			return nil, err
		}
		if err := s.repos.Projects(db).LockForUpdate(ctx, projectID); err != nil {
			return nil, notFoundAs(err, MsgProjectNotFound)
		}

		cats := s.repos.Categories(db)
		cs, err := cats.ListByProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		changes, err := ordinal.Reorder(categoryItems(cs), orderedIDs)
		if err != nil {
			return nil, reorderFailure(err, MsgCategoryElsewhere)
		}
		if err := writeOrder(ctx, changes, cats.SetSortOrder); err != nil {
			return nil, err
		}

		cs, err = cats.ListByProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return s.base.views(ctx, db, cs)
	})
}

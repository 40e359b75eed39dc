package services

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/dmitrijs2005/taskio/internal/common"
	"github.com/dmitrijs2005/taskio/internal/dbx"
	"github.com/dmitrijs2005/taskio/internal/logging"
	"github.com/dmitrijs2005/taskio/internal/server/models"
	"github.com/dmitrijs2005/taskio/internal/server/ordinal"
	"github.com/dmitrijs2005/taskio/internal/server/reconcile"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskio/internal/server/result"
)

type TaskBase = EntityService[models.Task, TaskCreate, TaskView, TaskUpdate]

// TaskService manages tasks, their position inside a category and their
// assignees. Every operation requires membership in the task's project.
type TaskService struct {
	deps
	base *TaskBase
}

func NewTaskService(tx dbx.Transactor, repos repomanager.RepositoryManager, log logging.Logger) *TaskService {
	d := newDeps(tx, repos, log)
	return &TaskService{
		deps: d,
		base: NewEntityService(d, EntityDef[models.Task, TaskCreate, TaskView, TaskUpdate]{
			Name: "Task",
			Repo: func(db dbx.DBTX) CrudRepository[models.Task] { return repos.Tasks(db) },
			New: func(c TaskCreate) *models.Task {
				return &models.Task{
					ProjectID:   c.ProjectID,
					CategoryID:  c.CategoryID,
					Name:        strings.TrimSpace(c.Name),
					Description: c.Description,
					DueDate:     c.DueDate,
				}
			},
			UpdateID: func(u TaskUpdate) string { return u.ID },
			Apply: func(t *models.Task, u TaskUpdate) {
				t.Name = strings.TrimSpace(u.Name)
				t.Description = u.Description
				t.DueDate = u.DueDate
			},
			View: func(ctx context.Context, db dbx.DBTX, t *models.Task) (TaskView, error) {
				ids, err := repos.Assignments(db).ListUserIDs(ctx, t.ID)
				if err != nil {
					return TaskView{}, err
				}
				return taskView(t, ids), nil
			},
		}),
	}
}

// Base exposes the unchecked CRUD core.
func (s *TaskService) Base() *TaskBase { return s.base }

func validTaskName(name string) error {
	if strings.TrimSpace(name) == "" {
		return badRequest("Task name is required.")
	}
	return nil
}

// loadChecked reads a task and checks the actor's membership in its project.
func (s *TaskService) loadChecked(ctx context.Context, db dbx.DBTX, actor models.Actor, id string) (*models.Task, error) {
	t, err := s.base.load(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate(db).RequireEntityOwnerMember(ctx, t, actor.ID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TaskService) loadCategory(ctx context.Context, db dbx.DBTX, id string) (*models.Category, error) {
	c, err := s.repos.Categories(db).GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, MsgCategoryNotFound)
	}
	return c, nil
}

// lockCategories locks category rows in id order so two movers between the
// same pair of categories cannot deadlock.
func (s *TaskService) lockCategories(ctx context.Context, db dbx.DBTX, ids ...string) error {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	cats := s.repos.Categories(db)
	for _, id := range ids {
		if err := cats.LockForUpdate(ctx, id); err != nil {
			return notFoundAs(err, MsgCategoryNotFound)
		}
	}
	return nil
}

// Insert appends a new task to the end of its category.
func (s *TaskService) Insert(ctx context.Context, actor models.Actor, in TaskCreate) result.Result[TaskView] {
	return within(ctx, s.deps, "Task.Insert", func(ctx context.Context, db dbx.DBTX) (TaskView, error) {
		if _, err := s.gate(db).RequireMember(ctx, in.ProjectID, actor.ID); err != nil {
			return TaskView{}, err
		}
		if err := validTaskName(in.Name); err != nil {
			return TaskView{}, err
		}
		cat, err := s.loadCategory(ctx, db, in.CategoryID)
		if err != nil {
			return TaskView{}, err
		}
		if cat.ProjectID != in.ProjectID {
			return TaskView{}, badRequest(MsgCategoryElsewhere)
		}
		if err := s.lockCategories(ctx, db, cat.ID); err != nil {
			return TaskView{}, err
		}
		n, err := s.repos.Tasks(db).CountByCategory(ctx, cat.ID)
		if err != nil {
			return TaskView{}, err
		}

		t := s.base.def.New(in)
		t.SortOrder = ordinal.Append(n)
		if t, err = s.base.create(ctx, db, t); err != nil {
			return TaskView{}, err
		}
		return s.base.refetch(ctx, db, t.ID)
	})
}

func (s *TaskService) Get(ctx context.Context, actor models.Actor, id string) result.Result[TaskView] {
	return within(ctx, s.deps, "Task.Get", func(ctx context.Context, db dbx.DBTX) (TaskView, error) {
		t, err := s.loadChecked(ctx, db, actor, id)
		if err != nil {
			return TaskView{}, err
		}
		return s.base.view(ctx, db, t)
	})
}

// viewsWithAssignees builds views for many tasks of one project from a
// single assignment read.
func (s *TaskService) viewsWithAssignees(ctx context.Context, db dbx.DBTX, projectID string, ts []*models.Task) ([]TaskView, error) {
	as, err := s.repos.Assignments(db).ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	byTask := make(map[string][]string, len(ts))
	for _, a := range as {
		byTask[a.TaskID] = append(byTask[a.TaskID], a.UserID)
	}
	out := make([]TaskView, 0, len(ts))
	for _, t := range ts {
		out = append(out, taskView(t, byTask[t.ID]))
	}
	return out, nil
}

func (s *TaskService) ListByProject(ctx context.Context, actor models.Actor, projectID string) result.Result[[]TaskView] {
	return within(ctx, s.deps, "Task.ListByProject", func(ctx context.Context, db dbx.DBTX) ([]TaskView, error) {
		if _, err := s.gate(db).RequireMember(ctx, projectID, actor.ID); err != nil {
			return nil, err
		}
		ts, err := s.repos.Tasks(db).ListByProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return s.viewsWithAssignees(ctx, db, projectID, ts)
	})
}

// ListByCategory returns the category's tasks in display order.
func (s *TaskService) ListByCategory(ctx context.Context, actor models.Actor, categoryID string) result.Result[[]TaskView] {
	return within(ctx, s.deps, "Task.ListByCategory", func(ctx context.Context, db dbx.DBTX) ([]TaskView, error) {
		cat, err := s.loadCategory(ctx, db, categoryID)
		if err != nil {
			return nil, err
		}
		if _, err := s.gate(db).RequireEntityOwnerMember(ctx, cat, actor.ID); err != nil {
			return nil, err
		}
		ts, err := s.repos.Tasks(db).ListByCategory(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		return s.viewsWithAssignees(ctx, db, cat.ProjectID, ts)
	})
}

// reconcileAssignees makes the task's assignee set equal desired. Every new
// assignee must be a member of the task's project.
func (s *TaskService) reconcileAssignees(ctx context.Context, db dbx.DBTX, t *models.Task, current, desired []string) error {
	members := s.repos.Memberships(db)
	assignments := s.repos.Assignments(db)
	_, err := reconcile.Apply(ctx, current, desired, reconcile.Ops[string]{
		Eligible: func(ctx context.Context, userID string) (bool, error) {
			_, err := members.Get(ctx, t.ProjectID, userID)
			if errors.Is(err, common.ErrorNotFound) {
				return false, nil
			}
			return err == nil, err
		},
		Remove: func(ctx context.Context, userID string) error {
			return assignments.Remove(ctx, t.ID, userID)
		},
		Add: func(ctx context.Context, userID string) error {
			return assignments.Add(ctx, t.ID, userID)
		},
		IneligibleMessage: MsgUserNotMember,
	})
	return err
}

// Update replaces a task's name, description and due date and, when
// AssigneeIDs is set, reconciles its assignees.
func (s *TaskService) Update(ctx context.Context, actor models.Actor, in TaskUpdate) result.Result[TaskView] {
	return within(ctx, s.deps, "Task.Update", func(ctx context.Context, db dbx.DBTX) (TaskView, error) {
		t, err := s.loadChecked(ctx, db, actor, in.ID)
		if err != nil {
			return TaskView{}, err
		}
		if err := validTaskName(in.Name); err != nil {
			return TaskView{}, err
		}
		if in.AssigneeIDs != nil {
			current, err := s.repos.Assignments(db).ListUserIDs(ctx, t.ID)
			if err != nil {
				return TaskView{}, err
			}
			if err := s.reconcileAssignees(ctx, db, t, current, in.AssigneeIDs); err != nil {
				return TaskView{}, err
			}
		}
		s.base.def.Apply(t, in)
		if err := s.base.save(ctx, db, t); err != nil {
			return TaskView{}, err
		}
		return s.base.refetch(ctx, db, t.ID)
	})
}

// Delete removes a task and closes the gap in its category.
func (s *TaskService) Delete(ctx context.Context, actor models.Actor, id string) result.Result[bool] {
	return within(ctx, s.deps, "Task.Delete", func(ctx context.Context, db dbx.DBTX) (bool, error) {
		t, err := s.loadChecked(ctx, db, actor, id)
		if err != nil {
			return false, err
		}
		if err := s.lockCategories(ctx, db, t.CategoryID); err != nil {
			return false, err
		}
		if err := s.base.remove(ctx, db, t.ID); err != nil {
			return false, err
		}
		tasks := s.repos.Tasks(db)
		rest, err := tasks.ListByCategory(ctx, t.CategoryID)
		if err != nil {
			return false, err
		}
		return true, writeOrder(ctx, ordinal.Renumber(taskItems(rest)), tasks.SetSortOrder)
	})
}

// Assign adds the user with the given email to the task's assignees.
func (s *TaskService) Assign(ctx context.Context, actor models.Actor, taskID, email string) result.Result[TaskView] {
	return within(ctx, s.deps, "Task.Assign", func(ctx context.Context, db dbx.DBTX) (TaskView, error) {
		t, err := s.loadChecked(ctx, db, actor, taskID)
		if err != nil {
			return TaskView{}, err
		}
		u, err := s.repos.Users(db).GetByEmail(ctx, common.NormalizeEmail(email))
		if err != nil {
			return TaskView{}, notFoundAs(err, MsgUserNotFound)
		}
		if _, err := s.repos.Memberships(db).Get(ctx, t.ProjectID, u.ID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return TaskView{}, badRequest(MsgUserNotMember)
			}
			return TaskView{}, err
		}
		current, err := s.repos.Assignments(db).ListUserIDs(ctx, t.ID)
		if err != nil {
			return TaskView{}, err
		}
		if slices.Contains(current, u.ID) {
			return TaskView{}, result.Fail(result.KindConflict, "User is already assigned to this task.")
		}
		if err := s.reconcileAssignees(ctx, db, t, current, append(slices.Clone(current), u.ID)); err != nil {
			return TaskView{}, err
		}
		return s.base.refetch(ctx, db, t.ID)
	})
}

// Unassign removes the user with the given email from the task's assignees.
func (s *TaskService) Unassign(ctx context.Context, actor models.Actor, taskID, email string) result.Result[TaskView] {
	return within(ctx, s.deps, "Task.Unassign", func(ctx context.Context, db dbx.DBTX) (TaskView, error) {
		const notAssigned = "User is not assigned to this task."

		t, err := s.loadChecked(ctx, db, actor, taskID)
		if err != nil {
			return TaskView{}, err
		}
		u, err := s.repos.Users(db).GetByEmail(ctx, common.NormalizeEmail(email))
		if err != nil {
			return TaskView{}, notFoundAs(err, notAssigned)
		}
		current, err := s.repos.Assignments(db).ListUserIDs(ctx, t.ID)
		if err != nil {
			return TaskView{}, err
		}
		if !slices.Contains(current, u.ID) {
			return TaskView{}, result.Fail(result.KindNotFound, notAssigned)
		}
		desired := slices.DeleteFunc(slices.Clone(current), func(id string) bool { return id == u.ID })
		if err := s.reconcileAssignees(ctx, db, t, current, desired); err != nil {
			return TaskView{}, err
		}
		return s.base.refetch(ctx, db, t.ID)
	})
}

// Reorder sets the category's task order to orderedIDs. Tasks left out keep
// their relative order after the listed ones.
func (s *TaskService) Reorder(ctx context.Context, actor models.Actor, categoryID string, orderedIDs []string) result.Result[[]TaskView] {
	return within(ctx, s.deps, "Task.Reorder", func(ctx context.Context, db dbx.DBTX) ([]TaskView, error) {
		cat, err := s.loadCategory(ctx, db, categoryID)
		if err != nil {
			return nil, err
		}
		if _, err := s.gate(db).RequireEntityOwnerMember(ctx, cat, actor.ID); err != nil {
			return nil, err
		}
		if err := s.lockCategories(ctx, db, cat.ID); err != nil {
			return nil, err
		}

		tasks := s.repos.Tasks(db)
		ts, err := tasks.ListByCategory(ctx, cat.ID)
		if err != nil {
			return nil, err
		}
		changes, err := ordinal.Reorder(taskItems(ts), orderedIDs)
		if err != nil {
			return nil, reorderFailure(err, MsgTaskElsewhere)
		}
		if err := writeOrder(ctx, changes, tasks.SetSortOrder); err != nil {
			return nil, err
		}

		ts, err = tasks.ListByCategory(ctx, cat.ID)
		if err != nil {
			return nil, err
		}
		return s.viewsWithAssignees(ctx, db, cat.ProjectID, ts)
	})
}

// Move puts a task into the target category at the requested position and
// renumbers the category it left.
func (s *TaskService) Move(ctx context.Context, actor models.Actor, in TaskMove) result.Result[TaskView] {
	return within(ctx, s.deps, "Task.Move", func(ctx context.Context, db dbx.DBTX) (TaskView, error) {
		t, err := s.loadChecked(ctx, db, actor, in.TaskID)
		if err != nil {
			return TaskView{}, err
		}
		target, err := s.loadCategory(ctx, db, in.TargetCategoryID)
		if err != nil {
			return TaskView{}, err
		}
		if target.ProjectID != t.ProjectID {
			return TaskView{}, badRequest(MsgCategoryElsewhere)
		}
		if t, err = s.lockForMove(ctx, db, t, target.ID); err != nil {
			return TaskView{}, err
		}

		tasks := s.repos.Tasks(db)
		siblings, err := tasks.ListByCategory(ctx, target.ID)
		if err != nil {
			return TaskView{}, err
		}
		siblings = slices.DeleteFunc(siblings, func(x *models.Task) bool { return x.ID == t.ID })

		relocated := t.CategoryID != target.ID
		changes, at := ordinal.Move(taskItems(siblings), ordinal.Item{ID: t.ID, SortOrder: t.SortOrder}, in.Position)
		if relocated && !slices.ContainsFunc(changes, func(c ordinal.Item) bool { return c.ID == t.ID }) {
			changes = append(changes, ordinal.Item{ID: t.ID, SortOrder: at})
		}
		for _, c := range changes {
			if c.ID == t.ID {
				err = tasks.MoveTo(ctx, t.ID, target.ID, c.SortOrder)
			} else {
				err = tasks.SetSortOrder(ctx, c.ID, c.SortOrder)
			}
			if err != nil {
				return TaskView{}, err
			}
		}

		if relocated {
			rest, err := tasks.ListByCategory(ctx, t.CategoryID)
			if err != nil {
				return TaskView{}, err
			}
			if err := writeOrder(ctx, ordinal.Renumber(taskItems(rest)), tasks.SetSortOrder); err != nil {
				return TaskView{}, err
			}
		}
		return s.base.refetch(ctx, db, t.ID)
	})
}

// lockForMove locks the task's category and the target, then re-reads the
// task. A concurrent mover may have relocated it before the locks were
// taken; its new category is locked as well until the task stays put.
func (s *TaskService) lockForMove(ctx context.Context, db dbx.DBTX, t *models.Task, targetID string) (*models.Task, error) {
	locked := map[string]bool{}
	for {
		var pending []string
		for _, id := range []string{t.CategoryID, targetID} {
			if !locked[id] {
				pending = append(pending, id)
			}
		}
		if len(pending) == 0 {
			return t, nil
		}
		if err := s.lockCategories(ctx, db, pending...); err != nil {
			return nil, err
		}
		for _, id := range pending {
			locked[id] = true
		}

		var err error
		if t, err = s.base.load(ctx, db, t.ID); err != nil {
			return nil, err
		}
	}
}

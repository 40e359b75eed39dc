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
	"github.com/dmitrijs2005/taskio/internal/server/reconcile"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskio/internal/server/result"
)

type ProjectBase = EntityService[models.Project, ProjectCreate, ProjectView, ProjectUpdate]

// ProjectService manages projects and their membership. Reads and renames
// need membership; deletion and membership changes need an admin.
type ProjectService struct {
	deps
	base *ProjectBase
}

func NewProjectService(tx dbx.Transactor, repos repomanager.RepositoryManager, log logging.Logger) *ProjectService {
	d := newDeps(tx, repos, log)
	return &ProjectService{
		deps: d,
		base: NewEntityService(d, EntityDef[models.Project, ProjectCreate, ProjectView, ProjectUpdate]{
			Name: "Project",
			Repo: func(db dbx.DBTX) CrudRepository[models.Project] { return repos.Projects(db) },
			New: func(c ProjectCreate) *models.Project {
				return &models.Project{Name: strings.TrimSpace(c.Name)}
			},
			UpdateID: func(u ProjectUpdate) string { return u.ID },
			Apply:    func(p *models.Project, u ProjectUpdate) { p.Name = strings.TrimSpace(u.Name) },
			View: func(ctx context.Context, db dbx.DBTX, p *models.Project) (ProjectView, error) {
				ms, err := repos.Memberships(db).ListMembers(ctx, p.ID)
				if err != nil {
					return ProjectView{}, err
				}
				return ProjectView{ID: p.ID, Name: p.Name, Members: memberViews(ms), CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}, nil
			},
		}),
	}
}

// Base exposes the unchecked CRUD core.
func (s *ProjectService) Base() *ProjectBase { return s.base }

func validProjectName(name string) error {
	if strings.TrimSpace(name) == "" {
		return badRequest("Project name is required.")
	}
	return nil
}

// Create makes a project with the actor as its first admin.
func (s *ProjectService) Create(ctx context.Context, actor models.Actor, in ProjectCreate) result.Result[ProjectView] {
	return within(ctx, s.deps, "Project.Create", func(ctx context.Context, db dbx.DBTX) (ProjectView, error) {
		if err := validProjectName(in.Name); err != nil {
			return ProjectView{}, err
		}
		p, err := s.base.create(ctx, db, s.base.def.New(in))
		if err != nil {
			return ProjectView{}, err
		}
		if err := s.repos.Memberships(db).Add(ctx, &models.Membership{ProjectID: p.ID, UserID: actor.ID, IsAdmin: true}); err != nil {
			return ProjectView{}, err
		}
		return s.base.refetch(ctx, db, p.ID)
	})
}

// ListForUser returns the projects the actor belongs to.
func (s *ProjectService) ListForUser(ctx context.Context, actor models.Actor) result.Result[[]ProjectView] {
	return within(ctx, s.deps, "Project.ListForUser", func(ctx context.Context, db dbx.DBTX) ([]ProjectView, error) {
		ps, err := s.repos.Projects(db).ListForUser(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		if len(ps) == 0 {
			return nil, result.Fail(result.KindNotFound, "No projects found for the current user.")
		}
		return s.base.views(ctx, db, ps)
	})
}

func (s *ProjectService) Get(ctx context.Context, actor models.Actor, id string) result.Result[ProjectView] {
	return within(ctx, s.deps, "Project.Get", func(ctx context.Context, db dbx.DBTX) (ProjectView, error) {
		if _, err := s.gate(db).RequireMember(ctx, id, actor.ID); err != nil {
			return ProjectView{}, err
		}
		return s.base.refetch(ctx, db, id)
	})
}

// Update renames the project. A non-nil MemberIDs also reconciles the member
// set, which needs admin rights and must keep the actor in the project.
func (s *ProjectService) Update(ctx context.Context, actor models.Actor, in ProjectUpdate) result.Result[ProjectView] {
	return within(ctx, s.deps, "Project.Update", func(ctx context.Context, db dbx.DBTX) (ProjectView, error) {
		gate := s.gate(db)
		if in.MemberIDs != nil {
			if _, err := gate.RequireAdmin(ctx, in.ID, actor.ID); err != nil {
				return ProjectView{}, err
			}
		} else if _, err := gate.RequireMember(ctx, in.ID, actor.ID); err != nil {
			return ProjectView{}, err
		}
		if err := validProjectName(in.Name); err != nil {
			return ProjectView{}, err
		}

		p, err := s.base.load(ctx, db, in.ID)
		if err != nil {
			return ProjectView{}, err
		}
		if in.MemberIDs != nil {
			if !slices.Contains(in.MemberIDs, actor.ID) {
				return ProjectView{}, badRequest(MsgSelfRemoval)
			}
			if err := s.reconcileMembers(ctx, db, p.ID, in.MemberIDs); err != nil {
				return ProjectView{}, err
			}
		}
		s.base.def.Apply(p, in)
		if err := s.base.save(ctx, db, p); err != nil {
			return ProjectView{}, err
		}
		return s.base.refetch(ctx, db, p.ID)
	})
}

func (s *ProjectService) reconcileMembers(ctx context.Context, db dbx.DBTX, projectID string, desired []string) error {
	members := s.repos.Memberships(db)
	current, err := members.ListByProject(ctx, projectID)
	if err != nil {
		return err
	}
	ids := make([]string, len(current))
	for i, m := range current {
		ids[i] = m.UserID
	}

	users := s.repos.Users(db)
	assignments := s.repos.Assignments(db)
	_, err = reconcile.Apply(ctx, ids, desired, reconcile.Ops[string]{
		Eligible: func(ctx context.Context, userID string) (bool, error) {
			_, err := users.GetByID(ctx, userID)
			if errors.Is(err, common.ErrorNotFound) {
				return false, nil
			}
			return err == nil, err
		},
		Remove: func(ctx context.Context, userID string) error {
			if err := assignments.RemoveUserFromProject(ctx, projectID, userID); err != nil {
				return err
			}
			return members.Remove(ctx, projectID, userID)
		},
		Add: func(ctx context.Context, userID string) error {
			return members.Add(ctx, &models.Membership{ProjectID: projectID, UserID: userID})
		},
		IneligibleMessage: MsgUserNotFound,
	})
	if err != nil {
		return err
	}
	return s.ensureAdmin(ctx, db, projectID)
}

func (s *ProjectService) ensureAdmin(ctx context.Context, db dbx.DBTX, projectID string) error {
	n, err := s.repos.Memberships(db).CountAdmins(ctx, projectID)
	if err != nil {
		return err
	}
	if n == 0 {
		return badRequest(MsgLastAdmin)
	}
	return nil
}

// Delete removes the project with its categories, tasks and memberships.
func (s *ProjectService) Delete(ctx context.Context, actor models.Actor, id string) result.Result[bool] {
	return within(ctx, s.deps, "Project.Delete", func(ctx context.Context, db dbx.DBTX) (bool, error) {
		if _, err := s.gate(db).RequireAdmin(ctx, id, actor.ID); err != nil {
			return false, err
		}
		if err := s.base.remove(ctx, db, id); err != nil {
			return false, err
		}
		return true, nil
	})
}

// AddMember adds the user with the given email as a non-admin member.
func (s *ProjectService) AddMember(ctx context.Context, actor models.Actor, projectID, email string) result.Result[ProjectView] {
	return within(ctx, s.deps, "Project.AddMember", func(ctx context.Context, db dbx.DBTX) (ProjectView, error) {
		if _, err := s.gate(db).RequireAdmin(ctx, projectID, actor.ID); err != nil {
			return ProjectView{}, err
		}
		u, err := s.repos.Users(db).GetByEmail(ctx, common.NormalizeEmail(email))
		if err != nil {
			return ProjectView{}, notFoundAs(err, "User with this email not found.")
		}
		err = s.repos.Memberships(db).Add(ctx, &models.Membership{ProjectID: projectID, UserID: u.ID})
		if errors.Is(err, common.ErrorAlreadyExists) {
			return ProjectView{}, badRequest("User is already part of the project.")
		}
		if err != nil {
			return ProjectView{}, err
		}
		return s.base.refetch(ctx, db, projectID)
	})
}

// RemoveMember removes the user with the given email from the project and
// from every task of it. Nobody can remove themselves.
func (s *ProjectService) RemoveMember(ctx context.Context, actor models.Actor, projectID, email string) result.Result[ProjectView] {
	return within(ctx, s.deps, "Project.RemoveMember", func(ctx context.Context, db dbx.DBTX) (ProjectView, error) {
		email = common.NormalizeEmail(email)
		if email == common.NormalizeEmail(actor.Email) {
			return ProjectView{}, badRequest(MsgSelfRemoval)
		}
		if _, err := s.gate(db).RequireAdmin(ctx, projectID, actor.ID); err != nil {
			return ProjectView{}, err
		}
		u, err := s.repos.Users(db).GetByEmail(ctx, email)
		if err != nil {
			return ProjectView{}, notFoundAs(err, MsgUserNotMember)
		}
		if u.ID == actor.ID {
			return ProjectView{}, badRequest(MsgSelfRemoval)
		}
		if err := s.repos.Assignments(db).RemoveUserFromProject(ctx, projectID, u.ID); err != nil {
			return ProjectView{}, err
		}
		if err := s.repos.Memberships(db).Remove(ctx, projectID, u.ID); err != nil {
			return ProjectView{}, notFoundAs(err, MsgUserNotMember)
		}
		if err := s.ensureAdmin(ctx, db, projectID); err != nil {
			return ProjectView{}, err
		}
		return s.base.refetch(ctx, db, projectID)
	})
}

// SetAdmin changes a member's admin flag in place.
func (s *ProjectService) SetAdmin(ctx context.Context, actor models.Actor, projectID, userID string, isAdmin bool) result.Result[ProjectView] {
	return within(ctx, s.deps, "Project.SetAdmin", func(ctx context.Context, db dbx.DBTX) (ProjectView, error) {
		if _, err := s.gate(db).RequireAdmin(ctx, projectID, actor.ID); err != nil {
			return ProjectView{}, err
		}
		if err := s.repos.Memberships(db).SetAdmin(ctx, projectID, userID, isAdmin); err != nil {
			return ProjectView{}, notFoundAs(err, MsgUserNotMember)
		}
		if err := s.ensureAdmin(ctx, db, projectID); err != nil {
			return ProjectView{}, err
		}
		return s.base.refetch(ctx, db, projectID)
	})
}

// Members lists the project's members with their admin flag.
func (s *ProjectService) Members(ctx context.Context, actor models.Actor, projectID string) result.Result[[]MemberView] {
	return within(ctx, s.deps, "Project.Members", func(ctx context.Context, db dbx.DBTX) ([]MemberView, error) {
		if _, err := s.gate(db).RequireMember(ctx, projectID, actor.ID); err != nil {
			return nil, err
		}
		ms, err := s.repos.Memberships(db).ListMembers(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return memberViews(ms), nil
	})
}

package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/taskio/internal/common"
	"github.com/dmitrijs2005/taskio/internal/dbx"
	"github.com/dmitrijs2005/taskio/internal/logging"
	"github.com/dmitrijs2005/taskio/internal/server/auth"
	"github.com/dmitrijs2005/taskio/internal/server/models"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskio/internal/server/result"
)

type UserBase = EntityService[models.User, UserCreate, UserView, UserUpdate]

// UserService is the self-service side of accounts. Users are never deleted here.
type UserService struct {
	deps
	base   *UserBase
	hasher auth.PasswordHasher
}

func newUserBase(d deps) *UserBase {
	return NewEntityService(d, EntityDef[models.User, UserCreate, UserView, UserUpdate]{
		Name: "User",
		Repo: func(db dbx.DBTX) CrudRepository[models.User] { return d.repos.Users(db) },
		New: func(c UserCreate) *models.User {
			return &models.User{
				FirstName:    strings.TrimSpace(c.FirstName),
				LastName:     strings.TrimSpace(c.LastName),
				Email:        common.NormalizeEmail(c.Email),
				PasswordHash: c.PasswordHash,
			}
		},
		UpdateID: func(UserUpdate) string { return "" },
		Apply: func(u *models.User, in UserUpdate) {
			if v := strings.TrimSpace(in.FirstName); v != "" {
				u.FirstName = v
			}
			if v := strings.TrimSpace(in.LastName); v != "" {
				u.LastName = v
			}
			if v := common.NormalizeEmail(in.Email); v != "" {
				u.Email = v
			}
		},
		View: func(_ context.Context, _ dbx.DBTX, u *models.User) (UserView, error) {
			return userView(u), nil
		},
	})
}

func NewUserService(tx dbx.Transactor, repos repomanager.RepositoryManager, hasher auth.PasswordHasher, log logging.Logger) *UserService {
	d := newDeps(tx, repos, log)
	return &UserService{deps: d, base: newUserBase(d), hasher: hasher}
}

// Me returns the actor's own account.
func (s *UserService) Me(ctx context.Context, actor models.Actor) result.Result[UserView] {
	return within(ctx, s.deps, "User.Me", func(ctx context.Context, db dbx.DBTX) (UserView, error) {
		return s.base.refetch(ctx, db, actor.ID)
	})
}

// UpdateSelf changes the actor's non-empty fields. A new password is
// rehashed and revokes the actor's refresh tokens.
func (s *UserService) UpdateSelf(ctx context.Context, actor models.Actor, in UserUpdate) result.Result[UserView] {
	return within(ctx, s.deps, "User.UpdateSelf", func(ctx context.Context, db dbx.DBTX) (UserView, error) {
		u, err := s.base.load(ctx, db, actor.ID)
		if err != nil {
			return UserView{}, err
		}

		users := s.repos.Users(db)
		if email := common.NormalizeEmail(in.Email); email != "" && email != u.Email {
			other, err := users.GetByEmail(ctx, email)
			switch {
			case err == nil && other.ID != u.ID:
				return UserView{}, result.Fail(result.KindConflict, "Email is already taken by another user")
			case err != nil && !errors.Is(err, common.ErrorNotFound):
				return UserView{}, err
			}
		}

		s.base.def.Apply(u, in)
		if in.Password != "" {
			hash, err := hashPassword(s.hasher, in.Password)
			if err != nil {
				return UserView{}, err
			}
			u.PasswordHash = hash
			if err := s.repos.RefreshTokens(db).DeleteByUser(ctx, u.ID); err != nil {
				return UserView{}, err
			}
		}
		if err := users.Update(ctx, u); err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return UserView{}, result.Fail(result.KindConflict, "Email is already taken by another user")
			}
			return UserView{}, notFoundAs(err, MsgUserNotFound)
		}
		return s.base.refetch(ctx, db, u.ID)
	})
}

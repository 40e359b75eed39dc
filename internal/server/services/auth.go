package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskio/internal/common"
	"github.com/dmitrijs2005/taskio/internal/dbx"
	"github.com/dmitrijs2005/taskio/internal/logging"
	"github.com/dmitrijs2005/taskio/internal/server/auth"
	"github.com/dmitrijs2005/taskio/internal/server/config"
	"github.com/dmitrijs2005/taskio/internal/server/models"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskio/internal/server/result"
)

const msgBadCredentials = "Email or password is invalid."

// AuthService provides authentication-related operations:
// - Register: create users
// - Login: verify credentials and mint tokens
// - Refresh: rotate refresh tokens and mint new access tokens
type AuthService struct {
	deps
	users                        *UserBase
	hasher                       auth.PasswordHasher
	tokens                       auth.TokenIssuer
	refreshTokenValidityDuration time.Duration
	now                          func() time.Time
}

// NewAuthService constructs an AuthService using repositories and server config.
func NewAuthService(tx dbx.Transactor, repos repomanager.RepositoryManager, hasher auth.PasswordHasher, tokens auth.TokenIssuer, cfg *config.Config, log logging.Logger) *AuthService {
	d := newDeps(tx, repos, log)
	return &AuthService{
		deps:                         d,
		users:                        newUserBase(d),
		hasher:                       hasher,
		tokens:                       tokens,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		now:                          time.Now,
	}
}

// Register creates an account. Emails are unique, compared case-insensitively.
func (s *AuthService) Register(ctx context.Context, in RegisterCommand) result.Result[UserView] {
	return within(ctx, s.deps, "Auth.Register", func(ctx context.Context, db dbx.DBTX) (UserView, error) {
		email := common.NormalizeEmail(in.Email)
		if !strings.Contains(email, "@") || in.Password == "" {
			return UserView{}, badRequest("Email and password are required.")
		}
		_, err := s.repos.Users(db).GetByEmail(ctx, email)
		if err == nil {
			return UserView{}, result.Fail(result.KindConflict, "User with this email already exists.")
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return UserView{}, err
		}

		hash, err := hashPassword(s.hasher, in.Password)
		if err != nil {
			return UserView{}, err
		}
		u, err := s.repos.Users(db).Create(ctx, s.users.def.New(UserCreate{
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Email:        email,
			PasswordHash: hash,
		}))
		if errors.Is(err, common.ErrorAlreadyExists) {
			return UserView{}, result.Fail(result.KindConflict, "User with this email already exists.")
		}
		if err != nil {
			return UserView{}, err
		}
		return s.users.refetch(ctx, db, u.ID)
	})
}

// Login verifies the credentials and returns a new TokenPair. Unknown emails
// and wrong passwords are indistinguishable.
func (s *AuthService) Login(ctx context.Context, email, password string) result.Result[TokenPair] {
	return within(ctx, s.deps, "Auth.Login", func(ctx context.Context, db dbx.DBTX) (TokenPair, error) {
		u, err := s.repos.Users(db).GetByEmail(ctx, common.NormalizeEmail(email))
		if errors.Is(err, common.ErrorNotFound) {
			return TokenPair{}, badRequest(msgBadCredentials)
		}
		if err != nil {
			return TokenPair{}, err
		}
		if !s.hasher.Verify(u.PasswordHash, password) {
			return TokenPair{}, badRequest(msgBadCredentials)
		}
		return s.generateTokenPair(ctx, db, u)
	})
}

// Refresh consumes a refresh token and returns a fresh TokenPair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) result.Result[TokenPair] {
	return within(ctx, s.deps, "Auth.Refresh", func(ctx context.Context, db dbx.DBTX) (TokenPair, error) {
		repo := s.repos.RefreshTokens(db)
		token, err := repo.Find(ctx, refreshToken)
		if errors.Is(err, common.ErrorNotFound) {
			return TokenPair{}, result.Fail(result.KindUnauthorized, common.ErrInvalidToken.Error())
		}
		if err != nil {
			return TokenPair{}, err
		}

		if err := repo.Delete(ctx, refreshToken); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return TokenPair{}, result.Fail(result.KindUnauthorized, common.ErrInvalidToken.Error())
			}
			return TokenPair{}, err
		}
		if token.Expires.Before(s.now()) {
			return TokenPair{}, result.Fail(result.KindUnauthorized, "refresh token expired")
		}

		u, err := s.repos.Users(db).GetByID(ctx, token.UserID)
		if err != nil {
			return TokenPair{}, notFoundAs(err, MsgUserNotFound)
		}
		return s.generateTokenPair(ctx, db, u)
	})
}

func (s *AuthService) generateTokenPair(ctx context.Context, db dbx.DBTX, u *models.User) (TokenPair, error) {
	access, err := s.tokens.Issue(models.Actor{ID: u.ID, Email: u.Email})
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := common.MakeRandHexString(common.RefreshTokenBytes)
	if err != nil {
		return TokenPair{}, err
	}
	rt := &models.RefreshToken{UserID: u.ID, Token: refresh, Expires: s.now().Add(s.refreshTokenValidityDuration)}
	if err := s.repos.RefreshTokens(db).Create(ctx, rt); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, User: userView(u)}, nil
}

package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/taskio/internal/server/auth"
	"github.com/dmitrijs2005/taskio/internal/server/models"
	"github.com/dmitrijs2005/taskio/internal/server/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUserService(t *testing.T, f *fixture) *UserService {
	t.Helper()
	return NewUserService(f.tx, f.rm, auth.NewBcryptHasher(bcrypt.MinCost), nil)
}

func TestUserService_Me(t *testing.T) {
	f := newFixture(t)
	s := newUserService(t, f)
	me := f.user(t, "me@example.com")

	r := s.Me(context.Background(), me)
	require.True(t, r.Success, r.ErrorMessage)
	assert.Equal(t, "me@example.com", r.Data.Email)

	gone := s.Me(context.Background(), models.Actor{ID: "u-gone"})
	assert.Equal(t, result.KindNotFound, gone.Kind)
}

func TestUserService_UpdateSelf(t *testing.T) {
	f := newFixture(t)
	s := newUserService(t, f)
	ctx := context.Background()
	me := f.user(t, "me@example.com")
	f.user(t, "taken@example.com")

	r := s.UpdateSelf(ctx, me, UserUpdate{FirstName: "Ann", Email: " New@Example.com "})
	require.True(t, r.Success, r.ErrorMessage)
	assert.Equal(t, "Ann", r.Data.FirstName)
	assert.Equal(t, "L", r.Data.LastName)
	assert.Equal(t, "new@example.com", r.Data.Email)

	taken := s.UpdateSelf(ctx, me, UserUpdate{Email: "TAKEN@example.com"})
	assert.Equal(t, result.KindConflict, taken.Kind)
	assert.Equal(t, "new@example.com", f.db.users[me.ID].Email)
}

func TestUserService_PasswordChangeRevokesTokens(t *testing.T) {
	f := newFixture(t)
	s := newUserService(t, f)
	ctx := context.Background()
	me := f.user(t, "me@example.com")
	f.db.tokens["tok"] = models.RefreshToken{UserID: me.ID, Token: "tok", Expires: time.Now().Add(time.Hour)}
	f.db.tokens["other"] = models.RefreshToken{UserID: "u-other", Token: "other", Expires: time.Now().Add(time.Hour)}

	r := s.UpdateSelf(ctx, me, UserUpdate{Password: "n3w-secret"})
	require.True(t, r.Success, r.ErrorMessage)
	assert.NotContains(t, f.db.tokens, "tok")
	assert.Contains(t, f.db.tokens, "other")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(f.db.users[me.ID].PasswordHash), []byte("n3w-secret")))
}

func TestUserService_PasswordTooLong(t *testing.T) {
	f := newFixture(t)
	s := newUserService(t, f)
	ctx := context.Background()
	me := f.user(t, "me@example.com")
	before := f.db.users[me.ID].PasswordHash
	f.db.tokens["tok"] = models.RefreshToken{UserID: me.ID, Token: "tok", Expires: time.Now().Add(time.Hour)}

	r := s.UpdateSelf(ctx, me, UserUpdate{FirstName: "Ann", Password: strings.Repeat("p", 73)})
	assert.Equal(t, result.KindBadRequest, r.Kind)
	assert.Equal(t, MsgPasswordTooLong, r.ErrorMessage)
	assert.Equal(t, before, f.db.users[me.ID].PasswordHash)
	assert.Equal(t, "F", f.db.users[me.ID].FirstName)
	assert.Contains(t, f.db.tokens, "tok")
}

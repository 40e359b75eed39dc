package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/taskio/internal/server/auth"
	"github.com/dmitrijs2005/taskio/internal/server/config"
	"github.com/dmitrijs2005/taskio/internal/server/result"
	"golang.org/x/crypto/bcrypt"
)

func newAuthService(t *testing.T, f *fixture) (*AuthService, *auth.JWTIssuer) {
	t.Helper()
	cfg := &config.Config{RefreshTokenValidityDuration: 2 * time.Hour}
	issuer := auth.NewJWTIssuer([]byte("k"), time.Hour)
	return NewAuthService(f.tx, f.rm, auth.NewBcryptHasher(bcrypt.MinCost), issuer, cfg, nil), issuer
}

func register(t *testing.T, s *AuthService, email, password string) UserView {
	t.Helper()
	r := s.Register(context.Background(), RegisterCommand{FirstName: "A", LastName: "B", Email: email, Password: password})
	if !r.Success {
		t.Fatalf("register: %s", r.ErrorMessage)
	}
	return r.Data
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	s, _ := newAuthService(t, f)

	u := register(t, s, " Alice@Example.com", "pw")
	if u.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}
	if f.db.users[u.ID].PasswordHash == "pw" {
		t.Fatalf("password stored in clear")
	}

	dup := s.Register(context.Background(), RegisterCommand{Email: "ALICE@example.com", Password: "x"})
	if dup.Kind != result.KindConflict {
		t.Fatalf("want Conflict, got %v", dup.Kind)
	}

	bad := s.Register(context.Background(), RegisterCommand{Email: "nope", Password: "x"})
	if bad.Kind != result.KindBadRequest {
		t.Fatalf("want BadRequest, got %v", bad.Kind)
	}
}

func TestRegister_PasswordTooLong(t *testing.T) {
	f := newFixture(t)
	s, _ := newAuthService(t, f)

	r := s.Register(context.Background(), RegisterCommand{Email: "long@example.com", Password: strings.Repeat("p", 73)})
	if r.Kind != result.KindBadRequest || r.ErrorMessage != MsgPasswordTooLong {
		t.Fatalf("want BadRequest %q, got %v %q", MsgPasswordTooLong, r.Kind, r.ErrorMessage)
	}
	if len(f.db.users) != 0 {
		t.Fatalf("user stored despite rejected password")
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	s, issuer := newAuthService(t, f)
	u := register(t, s, "alice@example.com", "pw")

	r := s.Login(context.Background(), "ALICE@example.com", "pw")
	if !r.Success {
		t.Fatalf("login failed: %s", r.ErrorMessage)
	}
	actor, err := issuer.Verify(r.Data.AccessToken)
	if err != nil {
		t.Fatalf("access token does not verify: %v", err)
	}
	if actor.ID != u.ID || actor.Email != u.Email {
		t.Fatalf("unexpected actor %+v", actor)
	}
	if _, ok := f.db.tokens[r.Data.RefreshToken]; !ok {
		t.Fatalf("refresh token not stored")
	}

	for _, c := range []struct{ email, pw string }{
		{"alice@example.com", "wrong"},
		{"ghost@example.com", "pw"},
	} {
		bad := s.Login(context.Background(), c.email, c.pw)
		if bad.Kind != result.KindBadRequest || bad.ErrorMessage != msgBadCredentials {
			t.Fatalf("%s: want BadRequest %q, got %v %q", c.email, msgBadCredentials, bad.Kind, bad.ErrorMessage)
		}
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	f := newFixture(t)
	s, _ := newAuthService(t, f)
	register(t, s, "alice@example.com", "pw")
	login := s.Login(context.Background(), "alice@example.com", "pw")

	r := s.Refresh(context.Background(), login.Data.RefreshToken)
	if !r.Success {
		t.Fatalf("refresh failed: %s", r.ErrorMessage)
	}
	if r.Data.RefreshToken == login.Data.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}
	if _, ok := f.db.tokens[login.Data.RefreshToken]; ok {
		t.Fatalf("old refresh token still stored")
	}

	reuse := s.Refresh(context.Background(), login.Data.RefreshToken)
	if reuse.Kind != result.KindUnauthorized {
		t.Fatalf("reused token: want Unauthorized, got %v", reuse.Kind)
	}
}

func TestRefresh_Expired(t *testing.T) {
	f := newFixture(t)
	s, _ := newAuthService(t, f)
	register(t, s, "alice@example.com", "pw")
	login := s.Login(context.Background(), "alice@example.com", "pw")

	s.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
	r := s.Refresh(context.Background(), login.Data.RefreshToken)
	if r.Kind != result.KindUnauthorized || r.ErrorMessage != "refresh token expired" {
		t.Fatalf("want Unauthorized expiry, got %v %q", r.Kind, r.ErrorMessage)
	}
}

// Package auth holds the credential capabilities used at the authentication
// boundary: password hashing and access token issuance.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/taskio/internal/common"
	"github.com/dmitrijs2005/taskio/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer mints and verifies access tokens.
type TokenIssuer interface {
	Issue(actor models.Actor) (string, error)
	Verify(token string) (models.Actor, error)
}

// Claims are the registered claims plus the acting user.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Email  string `json:"email"`
}

// JWTIssuer signs HS256 tokens valid for a fixed duration.
type JWTIssuer struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

func NewJWTIssuer(secret []byte, validity time.Duration) *JWTIssuer {
	return &JWTIssuer{secret: secret, validity: validity, now: time.Now}
}

func (j *JWTIssuer) Issue(actor models.Actor) (string, error) {
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.validity)),
		},
		UserID: actor.ID,
		Email:  actor.Email,
	})
	return token.SignedString(j.secret)
}

// Verify returns the actor carried by token. Expired tokens yield
// common.ErrTokenExpired; anything else that fails yields common.ErrInvalidToken.
func (j *JWTIssuer) Verify(tokenString string) (models.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Actor{}, common.ErrTokenExpired
		}
		return models.Actor{}, common.ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" {
		return models.Actor{}, common.ErrInvalidToken
	}
	return models.Actor{ID: claims.UserID, Email: claims.Email}, nil
}

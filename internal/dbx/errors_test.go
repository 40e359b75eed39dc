package dbx

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/taskio/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil))
	assert.ErrorIs(t, WrapError(sql.ErrNoRows), common.ErrorNotFound)
	assert.ErrorIs(t, WrapError(fmt.Errorf("scan: %w", sql.ErrNoRows)), common.ErrorNotFound)
	assert.ErrorIs(t, WrapError(&pgconn.PgError{Code: "23505"}), common.ErrorAlreadyExists)
	assert.ErrorIs(t, WrapError(&pgconn.PgError{Code: "22P02"}), common.ErrorNotFound)
	assert.ErrorIs(t, WrapError(fmt.Errorf("scan: %w", &pgconn.PgError{Code: "22P02"})), common.ErrorNotFound)

	boom := errors.New("boom")
	err := WrapError(boom)
	assert.ErrorIs(t, err, boom)
	assert.EqualError(t, err, "db error: boom")

	fk := &pgconn.PgError{Code: "23503"}
	assert.NotErrorIs(t, WrapError(fk), common.ErrorAlreadyExists)
}

func TestExpectAffected(t *testing.T) {
	assert.NoError(t, ExpectAffected(sqlmock.NewResult(0, 1), nil))
	assert.ErrorIs(t, ExpectAffected(sqlmock.NewResult(0, 0), nil), common.ErrorNotFound)
	assert.ErrorIs(t, ExpectAffected(nil, sql.ErrNoRows), common.ErrorNotFound)
	assert.ErrorIs(t, ExpectAffected(nil, &pgconn.PgError{Code: "22P02"}), common.ErrorNotFound)
	assert.Error(t, ExpectAffected(sqlmock.NewErrorResult(errors.New("x")), nil))
}

package dbx

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/taskio/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// WrapError maps driver errors onto the common sentinels: no rows becomes
// common.ErrorNotFound and a unique violation becomes common.ErrorAlreadyExists.
// An id that does not parse as the column type (say "nope" for a UUID) cannot
// match any row, so it is reported as common.ErrorNotFound too.
// Anything else is wrapped as a db error.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.SQLState() {
		case uniqueViolation:
			return common.ErrorAlreadyExists
		case invalidTextRepresentation:
			return common.ErrorNotFound
		}
	}
	return fmt.Errorf("db error: %w", err)
}

// ExpectAffected turns a zero-row update or delete into common.ErrorNotFound.
func ExpectAffected(res sql.Result, err error) error {
	if err != nil {
		return WrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

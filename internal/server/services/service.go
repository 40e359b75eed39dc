// Package services contains server-side business logic.
//
// Every public operation takes the acting user explicitly, runs as one unit
// of work and returns a result.Result. Expected outcomes (missing entity,
// denied access, duplicates) are raised inside the unit of work as
// *result.Failure, which rolls it back; any other error is logged and
// surfaces as InternalError.
package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/taskio/internal/common"
	"github.com/dmitrijs2005/taskio/internal/dbx"
	"github.com/dmitrijs2005/taskio/internal/logging"
	"github.com/dmitrijs2005/taskio/internal/server/access"
	"github.com/dmitrijs2005/taskio/internal/server/auth"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskio/internal/server/result"
)

const (
	MsgProjectNotFound   = access.MsgProjectNotFound
	MsgCategoryNotFound  = "Category not found."
	MsgTaskNotFound      = "Task not found."
	MsgUserNotFound      = "User not found."
	MsgUserNotMember     = "User is not a member of the project."
	MsgCategoryElsewhere = "Category does not belong to the project."
	MsgTaskElsewhere     = "Task does not belong to the category."
	MsgLastAdmin         = "A project must keep at least one admin."
	MsgSelfRemoval       = "You cannot remove yourself from the project."
	MsgPasswordTooLong   = "Password must be at most 72 bytes long."
)

// deps is what every concrete service needs.
type deps struct {
	tx    dbx.Transactor
	repos repomanager.RepositoryManager
	log   logging.Logger
}

func newDeps(tx dbx.Transactor, repos repomanager.RepositoryManager, log logging.Logger) deps {
	if log == nil {
		log = logging.Nop{}
	}
	return deps{tx: tx, repos: repos, log: log}
}

func (d deps) gate(db dbx.DBTX) *access.Gate {
	return access.NewGate(d.repos.Memberships(db))
}

// within runs fn as one unit of work and wraps its outcome.
func within[R any](ctx context.Context, d deps, op string, fn func(ctx context.Context, db dbx.DBTX) (R, error)) result.Result[R] {
	var out R
	err := d.tx.WithinTx(ctx, func(ctx context.Context, db dbx.DBTX) error {
		var err error
		out, err = fn(ctx, db)
		return err
	})
	if err != nil {
		return failed[R](ctx, d.log, op, err)
	}
	return result.Ok(out)
}

func failed[R any](ctx context.Context, log logging.Logger, op string, err error) result.Result[R] {
	r := result.FromError[R](err)
	if r.Kind == result.KindInternalError {
		log.Error(ctx, "operation failed", "op", op, "error", err)
	} else {
		log.Debug(ctx, "operation rejected", "op", op, "kind", r.Kind.String(), "reason", r.ErrorMessage)
	}
	return r
}

// notFoundAs turns a repository miss into a NotFound failure with msg.
func notFoundAs(err error, msg string) error {
	if errors.Is(err, common.ErrorNotFound) {
		return result.Fail(result.KindNotFound, msg)
	}
	return err
}

func badRequest(msg string) error {
	return result.Fail(result.KindBadRequest, msg)
}

// hashPassword hashes a password from a command; one the hasher refuses is
// a BadRequest.
func hashPassword(h auth.PasswordHasher, password string) (string, error) {
	hash, err := h.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", badRequest(MsgPasswordTooLong)
	}
	return hash, err
}

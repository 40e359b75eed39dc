// Package result is the uniform outcome envelope returned by every service
// operation. Expected business conditions (missing entity, permission
// denial, duplicates) travel inside the envelope; nothing is thrown.
package result

import (
	"errors"
	"fmt"
)

// Kind classifies an outcome.
type Kind int

const (
	KindOk Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindInternalError
)

var kindNames = [...]string{
	KindOk:            "Ok",
	KindBadRequest:    "BadRequest",
	KindUnauthorized:  "Unauthorized",
	KindForbidden:     "Forbidden",
	KindNotFound:      "NotFound",
	KindConflict:      "Conflict",
	KindInternalError: "InternalError",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// StatusCode returns the HTTP-style status code conventionally paired with k.
func (k Kind) StatusCode() int {
	switch k {
	case KindOk:
		return 200
	case KindBadRequest:
		return 400
	case KindUnauthorized:
		return 401
	case KindForbidden:
		return 403
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	default:
		return 500
	}
}

// Result carries either Data (Success) or a Kind plus a human-readable
// ErrorMessage.
type Result[T any] struct {
	Success      bool
	Kind         Kind
	ErrorMessage string
	Data         T
}

func Ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Kind: KindOk, Data: data}
}

func failed[T any](kind Kind, msg string) Result[T] {
	return Result[T]{Kind: kind, ErrorMessage: msg}
}

func BadRequest[T any](msg string) Result[T]    { return failed[T](KindBadRequest, msg) }
func Unauthorized[T any](msg string) Result[T]  { return failed[T](KindUnauthorized, msg) }
func Forbidden[T any](msg string) Result[T]     { return failed[T](KindForbidden, msg) }
func NotFound[T any](msg string) Result[T]      { return failed[T](KindNotFound, msg) }
func Conflict[T any](msg string) Result[T]      { return failed[T](KindConflict, msg) }
func InternalError[T any](msg string) Result[T] { return failed[T](KindInternalError, msg) }

// Err returns nil for a successful result and a *Failure otherwise, so an
// envelope obtained inside a unit of work can abort it.
func (r Result[T]) Err() error {
	if r.Success {
		return nil
	}
	return &Failure{Kind: r.Kind, Message: r.ErrorMessage}
}

// Forward re-types a failed result. Calling it on a successful result
// yields an InternalError, since the payload cannot be converted.
func Forward[B, A any](r Result[A]) Result[B] {
	if r.Success {
		return InternalError[B]("internal error")
	}
	return failed[B](r.Kind, r.ErrorMessage)
}

// Failure is an expected business outcome used as an error inside a unit of
// work. Returning it from a transaction body rolls the transaction back.
type Failure struct {
	Kind    Kind
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Fail builds a *Failure.
func Fail(kind Kind, msg string) error {
	return &Failure{Kind: kind, Message: msg}
}

// InternalMessage is what consumers see for any unexpected error.
const InternalMessage = "internal error"

// FromError converts err into a failed envelope. A *Failure keeps its kind
// and message; anything else becomes InternalError without leaking detail.
func FromError[T any](err error) Result[T] {
	var f *Failure
	if errors.As(err, &f) {
		return failed[T](f.Kind, f.Message)
	}
	return InternalError[T](InternalMessage)
}

// IsFailure reports whether err carries an expected business outcome.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}

// Unit is the payload of results that carry no data.
type Unit struct{}

package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/taskio/internal/common"
	"github.com/dmitrijs2005/taskio/internal/dbx"
	"github.com/dmitrijs2005/taskio/internal/server/result"
)

// CrudRepository is the storage contract every entity repository satisfies.
type CrudRepository[T any] interface {
	Create(ctx context.Context, e *T) (*T, error)
	GetByID(ctx context.Context, id string) (*T, error)
	Update(ctx context.Context, e *T) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*T, error)
}

// EntityDef describes how one entity maps between its payloads and its
// stored form. T is the stored record, C the creation payload, R the read
// representation and U the update payload.
type EntityDef[T, C, R, U any] struct {
	// Name is used in messages, e.g. "Task" gives "Task not found.".
	Name string
	Repo func(db dbx.DBTX) CrudRepository[T]
	New  func(c C) *T
	// UpdateID extracts the target id from an update payload and Apply
	// copies the payload onto the loaded record.
	UpdateID func(u U) string
	Apply    func(e *T, u U)
	// View builds the read representation. It may read related records.
	View func(ctx context.Context, db dbx.DBTX, e *T) (R, error)
}

// EntityService is the generic CRUD core. Its public operations perform no
// authorization; concrete services call the unexported primitives inside
// their own access-checked unit of work.
type EntityService[T, C, R, U any] struct {
	deps
	def EntityDef[T, C, R, U]
}

func NewEntityService[T, C, R, U any](d deps, def EntityDef[T, C, R, U]) *EntityService[T, C, R, U] {
	return &EntityService[T, C, R, U]{deps: d, def: def}
}

func (s *EntityService[T, C, R, U]) notFoundMsg() string {
	return s.def.Name + " not found."
}

func (s *EntityService[T, C, R, U]) Insert(ctx context.Context, c C) result.Result[R] {
	return within(ctx, s.deps, s.def.Name+".Insert", func(ctx context.Context, db dbx.DBTX) (R, error) {
		e, err := s.create(ctx, db, s.def.New(c))
		if err != nil {
			var zero R
			return zero, err
		}
		return s.view(ctx, db, e)
	})
}

func (s *EntityService[T, C, R, U]) GetByID(ctx context.Context, id string) result.Result[R] {
	return within(ctx, s.deps, s.def.Name+".GetByID", func(ctx context.Context, db dbx.DBTX) (R, error) {
		e, err := s.load(ctx, db, id)
		if err != nil {
			var zero R
			return zero, err
		}
		return s.view(ctx, db, e)
	})
}

func (s *EntityService[T, C, R, U]) Update(ctx context.Context, u U) result.Result[bool] {
	return within(ctx, s.deps, s.def.Name+".Update", func(ctx context.Context, db dbx.DBTX) (bool, error) {
		e, err := s.load(ctx, db, s.def.UpdateID(u))
		if err != nil {
			return false, err
		}
		s.def.Apply(e, u)
		if err := s.save(ctx, db, e); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (s *EntityService[T, C, R, U]) Delete(ctx context.Context, id string) result.Result[bool] {
	return within(ctx, s.deps, s.def.Name+".Delete", func(ctx context.Context, db dbx.DBTX) (bool, error) {
		if err := s.remove(ctx, db, id); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (s *EntityService[T, C, R, U]) List(ctx context.Context) result.Result[[]R] {
	return within(ctx, s.deps, s.def.Name+".List", func(ctx context.Context, db dbx.DBTX) ([]R, error) {
		all, err := s.def.Repo(db).List(ctx)
		if err != nil {
			return nil, err
		}
		return s.views(ctx, db, all)
	})
}

// create stores e; a uniqueness violation becomes Conflict.
func (s *EntityService[T, C, R, U]) create(ctx context.Context, db dbx.DBTX, e *T) (*T, error) {
	out, err := s.def.Repo(db).Create(ctx, e)
	if errors.Is(err, common.ErrorAlreadyExists) {
		return nil, result.Fail(result.KindConflict, s.def.Name+" already exists.")
	}
	return out, err
}

// load reads the record or fails with NotFound.
func (s *EntityService[T, C, R, U]) load(ctx context.Context, db dbx.DBTX, id string) (*T, error) {
	e, err := s.def.Repo(db).GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, s.notFoundMsg())
	}
	return e, nil
}

func (s *EntityService[T, C, R, U]) save(ctx context.Context, db dbx.DBTX, e *T) error {
	err := s.def.Repo(db).Update(ctx, e)
	if errors.Is(err, common.ErrorAlreadyExists) {
		return result.Fail(result.KindConflict, s.def.Name+" already exists.")
	}
	return notFoundAs(err, s.notFoundMsg())
}

func (s *EntityService[T, C, R, U]) remove(ctx context.Context, db dbx.DBTX, id string) error {
	return notFoundAs(s.def.Repo(db).Delete(ctx, id), s.notFoundMsg())
}

func (s *EntityService[T, C, R, U]) view(ctx context.Context, db dbx.DBTX, e *T) (R, error) {
	return s.def.View(ctx, db, e)
}

// refetch re-reads the record after a write and returns its read representation.
func (s *EntityService[T, C, R, U]) refetch(ctx context.Context, db dbx.DBTX, id string) (R, error) {
	e, err := s.load(ctx, db, id)
	if err != nil {
		var zero R
		return zero, err
	}
	return s.view(ctx, db, e)
}

func (s *EntityService[T, C, R, U]) views(ctx context.Context, db dbx.DBTX, es []*T) ([]R, error) {
	out := make([]R, 0, len(es))
	for _, e := range es {
		r, err := s.view(ctx, db, e)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

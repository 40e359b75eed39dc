// Package reconcile turns a wholesale desired association set into the
// minimal add/remove write set against the current one.
package reconcile

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/taskio/internal/server/result"
)

// Diff is the write set that turns current into desired.
type Diff[K comparable] struct {
	ToAdd    []K
	ToRemove []K
}

func (d Diff[K]) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// Compute returns desired minus current and current minus desired.
// Duplicates are ignored. ToAdd follows the order of desired and ToRemove
// follows the order of current.
func Compute[K comparable](current, desired []K) Diff[K] {
	cur := make(map[K]struct{}, len(current))
	for _, k := range current {
		cur[k] = struct{}{}
	}
	want := make(map[K]struct{}, len(desired))
	for _, k := range desired {
		want[k] = struct{}{}
	}

	var d Diff[K]
	seen := make(map[K]struct{}, len(desired))
	for _, k := range desired {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := cur[k]; !ok {
			d.ToAdd = append(d.ToAdd, k)
		}
	}
	clear(seen)
	for _, k := range current {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := want[k]; !ok {
			d.ToRemove = append(d.ToRemove, k)
		}
	}
	return d
}

// Ops are the storage callbacks Apply drives. Eligible may be nil, in which
// case every add is allowed.
type Ops[K comparable] struct {
	Eligible func(ctx context.Context, id K) (bool, error)
	Remove   func(ctx context.Context, id K) error
	Add      func(ctx context.Context, id K) error

	// IneligibleMessage is the BadRequest message for a rejected add.
	IneligibleMessage string
}

// Apply computes the diff and writes it: every add is checked first, then
// removes run, then adds. An ineligible add aborts with a BadRequest
// *result.Failure before anything is written. Apply must run inside the
// caller's unit of work so a failing write rolls back earlier ones.
func Apply[K comparable](ctx context.Context, current, desired []K, ops Ops[K]) (Diff[K], error) {
	d := Compute(current, desired)

	if ops.Eligible != nil {
		for _, id := range d.ToAdd {
			ok, err := ops.Eligible(ctx, id)
			if err != nil {
				return d, err
			}
			if !ok {
				msg := ops.IneligibleMessage
				if msg == "" {
					msg = fmt.Sprintf("%v cannot be added.", id)
				}
				return d, result.Fail(result.KindBadRequest, msg)
			}
		}
	}

	for _, id := range d.ToRemove {
		if err := ops.Remove(ctx, id); err != nil {
			return d, err
		}
	}
	for _, id := range d.ToAdd {
		if err := ops.Add(ctx, id); err != nil {
			return d, err
		}
	}
	return d, nil
}

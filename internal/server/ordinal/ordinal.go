// Package ordinal keeps the SortOrder of items in one container dense:
// the values are always a permutation of 0..n-1.
//
// Functions here are pure. They take a snapshot of a container's items and
// return only the items whose SortOrder has to change.
package ordinal

import (
	"errors"
	"fmt"
	"slices"
)

var ErrUnknownItem = errors.New("item does not belong to the container")

// Item is the ordering view of a category or a task.
type Item struct {
	ID        string
	SortOrder int
}

// Append returns the position of a new item in a container that holds count items.
func Append(count int) int {
	return count
}

// Sorted returns the items ordered by SortOrder. Equal values keep the
// order of the input slice; ids are never compared.
func Sorted(items []Item) []Item {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b Item) int { return a.SortOrder - b.SortOrder })
	return out
}

// changes assigns index positions to seq and keeps the ones that differ
// from what is stored.
func changes(seq []Item) []Item {
	var out []Item
	for i, it := range seq {
		if it.SortOrder != i {
			out = append(out, Item{ID: it.ID, SortOrder: i})
		}
	}
	return out
}

// Renumber closes gaps and duplicates left in a container, keeping the
// current relative order.
func Renumber(items []Item) []Item {
	return changes(Sorted(items))
}

// Reorder places the items listed in desired at the front, in that order.
// A duplicate id keeps its first position. Container items missing from
// desired follow the listed ones in their current relative order. An id
// that is not in the container yields ErrUnknownItem.
func Reorder(items []Item, desired []string) ([]Item, error) {
	byID := make(map[string]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	seq := make([]Item, 0, len(items))
	placed := make(map[string]bool, len(items))
	for _, id := range desired {
		it, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownItem, id)
		}
		if placed[id] {
			continue
		}
		placed[id] = true
		seq = append(seq, it)
	}
	for _, it := range Sorted(items) {
		if !placed[it.ID] {
			seq = append(seq, it)
		}
	}
	return changes(seq), nil
}

// Move inserts moved into target at position pos, or appends it when pos is
// nil. Positions outside the container are clamped. target must not contain
// the moved item. It returns the rows whose order changed and the index the
// moved item lands on; the moved item is among the changes only when its
// index differs, so a caller relocating it to another container still has to
// write the container change itself.
func Move(target []Item, moved Item, pos *int) ([]Item, int) {
	seq := Sorted(target)

	at := len(seq)
	if pos != nil {
		at = max(0, min(*pos, len(seq)))
	}
	seq = slices.Insert(seq, at, moved)
	return changes(seq), at
}

// Apply returns items with the given changes applied, for callers that
// keep a snapshot in memory.
func Apply(items []Item, ch []Item) []Item {
	next := make(map[string]int, len(ch))
	for _, c := range ch {
		next[c.ID] = c.SortOrder
	}
	out := slices.Clone(items)
	for i := range out {
		if so, ok := next[out[i].ID]; ok {
			out[i].SortOrder = so
		}
	}
	return out
}

// Dense reports whether the items form a permutation of 0..n-1.
func Dense(items []Item) bool {
	seen := make([]bool, len(items))
	for _, it := range items {
		if it.SortOrder < 0 || it.SortOrder >= len(items) || seen[it.SortOrder] {
			return false
		}
		seen[it.SortOrder] = true
	}
	return true
}

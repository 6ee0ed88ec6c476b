package domain

import (
	"cmp"
	"slices"
)

// SortByDisplayOrder sorts entries ascending by DisplayOrder. Ties are broken by ID.
func SortByDisplayOrder[P any](es []Entry[P]) {
	slices.SortFunc(es, func(a, b Entry[P]) int {
		if c := cmp.Compare(a.DisplayOrder, b.DisplayOrder); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Reindex assigns DisplayOrder = index to every entry in place.
// It reports whether any order changed.
func Reindex[P any](es []Entry[P]) bool {
	changed := false
	for i := range es {
		if es[i].DisplayOrder != i {
			es[i].DisplayOrder = i
			changed = true
		}
	}
	return changed
}

// IsContiguous reports whether DisplayOrder matches array position for every entry.
func IsContiguous[P any](es []Entry[P]) bool {
	for i := range es {
		if es[i].DisplayOrder != i {
			return false
		}
	}
	return true
}

// IndexOf returns the position of id in es, or -1.
func IndexOf[P any](es []Entry[P], id EntryID) int {
	for i := range es {
		if es[i].ID == id {
			return i
		}
	}
	return -1
}

// MoveEntry relocates the entry at from to position to, shifting the entries in
// between by one. Both indices must be in range.
func MoveEntry[P any](es []Entry[P], from, to int) {
	if from == to {
		return
	}
	moved := es[from]
	if from < to {
		copy(es[from:to], es[from+1:to+1])
	} else {
		copy(es[to+1:from+1], es[to:from])
	}
	es[to] = moved
}

// Package query holds list-narrowing helpers shared by the API: selections and filters.
package query

import (
	"cmp"
	"slices"
)

// Selection is a set of selected record IDs, as used for bulk actions.
// The zero value is not usable; call NewSelection.
type Selection[K cmp.Ordered] struct {
	items map[K]struct{}
}

// NewSelection returns a selection holding ids.
func NewSelection[K cmp.Ordered](ids ...K) *Selection[K] {
	s := &Selection[K]{items: make(map[K]struct{}, len(ids))}
	for _, id := range ids {
		s.items[id] = struct{}{}
	}
	return s
}

// Toggle adds id when absent and removes it when present. It reports whether id is
// selected afterwards.
func (s *Selection[K]) Toggle(id K) bool {
	if _, ok := s.items[id]; ok {
		delete(s.items, id)
		return false
	}
	s.items[id] = struct{}{}
	return true
}

// Set selects or deselects id explicitly.
func (s *Selection[K]) Set(id K, selected bool) {
	if selected {
		s.items[id] = struct{}{}
		return
	}
	delete(s.items, id)
}

// Has reports whether id is selected.
func (s *Selection[K]) Has(id K) bool {
	_, ok := s.items[id]
	return ok
}

// SelectAll selects every id in ids, or clears the selection when all of them are
// already selected ("select all" checkbox behavior).
func (s *Selection[K]) SelectAll(ids []K) {
	all := len(ids) > 0
	for _, id := range ids {
		if !s.Has(id) {
			all = false
			break
		}
	}
	if all {
		for _, id := range ids {
			delete(s.items, id)
		}
		return
	}
	for _, id := range ids {
		s.items[id] = struct{}{}
	}
}

// Clear empties the selection.
func (s *Selection[K]) Clear() {
	clear(s.items)
}

// Len returns the number of selected ids.
func (s *Selection[K]) Len() int {
	return len(s.items)
}

// Items returns the selected ids in ascending order.
func (s *Selection[K]) Items() []K {
	out := make([]K, 0, len(s.items))
	for id := range s.items {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Equal reports whether both selections hold the same ids.
func (s *Selection[K]) Equal(other *Selection[K]) bool {
	if s.Len() != other.Len() {
		return false
	}
	for id := range s.items {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

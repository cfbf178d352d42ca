// Package selection holds the mutable set of chosen export columns.
package selection

import (
	"sort"

	"github.com/JakeFAU/rosterctl/internal/catalog"
)

// Set is the chosen column ids. It is not safe for concurrent mutation.
type Set struct {
	cat    catalog.Catalog
	chosen map[string]struct{}
}

// New returns an empty selection over cat.
func New(cat catalog.Catalog) *Set {
	return &Set{cat: cat, chosen: make(map[string]struct{})}
}

// Toggle adds id when absent and removes it when present. Ids outside the
// catalog are accepted.
func (s *Set) Toggle(id string) {
	if _, ok := s.chosen[id]; ok {
		delete(s.chosen, id)
		return
	}
	s.chosen[id] = struct{}{}
}

// SelectAll chooses every catalog field.
func (s *Set) SelectAll() {
	s.chosen = make(map[string]struct{}, len(s.cat.Fields))
	for _, id := range s.cat.IDs() {
		s.chosen[id] = struct{}{}
	}
}

// SelectDefault chooses the catalog's default set.
func (s *Set) SelectDefault() {
	s.chosen = make(map[string]struct{}, len(s.cat.Default))
	for _, id := range s.cat.Default {
		s.chosen[id] = struct{}{}
	}
}

// Clear empties the selection.
func (s *Set) Clear() {
	s.chosen = make(map[string]struct{})
}

// Has reports whether id is chosen.
func (s *Set) Has(id string) bool {
	_, ok := s.chosen[id]
	return ok
}

// Len returns the number of chosen ids.
func (s *Set) Len() int {
	return len(s.chosen)
}

// IDs returns the chosen ids in catalog order, followed by ids outside the
// catalog in lexical order.
func (s *Set) IDs() []string {
	out := make([]string, 0, len(s.chosen))
	for _, id := range s.cat.IDs() {
		if _, ok := s.chosen[id]; ok {
			out = append(out, id)
		}
	}
	var extra []string
	for id := range s.chosen {
		if !s.cat.Has(id) {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Package filter turns glob patterns over scope names into the keep
// predicate used to filter an experiment.
package filter

import (
	"fmt"
	"path"

	"github.com/coral-mesh/calltree/internal/scope"
)

// Mode selects what a pattern match means.
type Mode int

const (
	// Hide removes matching scopes with their subtrees.
	Hide Mode = iota
	// Show keeps only matching scopes, their callers and their subtrees.
	Show
)

// ParseMode parses "hide" or "show".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "hide":
		return Hide, nil
	case "show":
		return Show, nil
	default:
		return Hide, fmt.Errorf("unknown filter mode %q", s)
	}
}

// String returns the mode name.
func (m Mode) String() string {
	if m == Show {
		return "show"
	}
	return "hide"
}

// Set is a list of glob patterns (path.Match syntax) applied to scope
// names.
type Set struct {
	Patterns []string
	Mode     Mode
}

// New validates patterns and returns a set.
func New(mode Mode, patterns ...string) (*Set, error) {
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
	}
	return &Set{Patterns: patterns, Mode: mode}, nil
}

// Empty reports whether the set filters nothing.
func (s *Set) Empty() bool {
	return s == nil || len(s.Patterns) == 0
}

// Match reports whether name matches any pattern.
func (s *Set) Match(name string) bool {
	for _, p := range s.Patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Predicate returns the keep function for the tree below root.
//
// In hide mode a scope is kept unless its name matches. In show mode a
// scope is kept when it matches, is below a match, or has a match in its
// subtree.
func (s *Set) Predicate(t *scope.Tree, root scope.ID) func(*scope.Scope) bool {
	if s.Empty() {
		return func(*scope.Scope) bool { return true }
	}
	if s.Mode == Hide {
		return func(sc *scope.Scope) bool { return !s.Match(sc.Name()) }
	}

	keep := make(map[scope.ID]bool)
	var visit func(sc *scope.Scope, underMatch bool) bool
	visit = func(sc *scope.Scope, underMatch bool) bool {
		matched := !sc.IsRoot() && s.Match(sc.Name())
		found := matched
		for _, c := range t.Children(sc.ID()) {
			if visit(c, underMatch || matched) {
				found = true
			}
		}
		keep[sc.ID()] = found || underMatch
		return found
	}
	if r := t.Get(root); r != nil {
		visit(r, false)
	}
	return func(sc *scope.Scope) bool { return keep[sc.ID()] }
}

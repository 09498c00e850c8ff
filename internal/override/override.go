// Package override implements the session-scoped override store of
// spec.md §4.8: a process-wide map from OverrideKey to a replacement
// Template, written by the TUI when the user edits a recipe field and
// pre-populated by the CLI's --override flags. It does not persist across
// restarts.
package override

import (
	"sync"

	"slumber/internal/model"
	"slumber/internal/template"
)

// Value is either Omit (drop the field) or a replacement Template.
type Value struct {
	Omit     bool
	Template *template.Template
}

// Store is a concurrency-safe map from (RecipeId, OverrideKey) to Value.
// Keying by recipe keeps overrides scoped to the recipe the user edited,
// since the same OverrideKey shape (e.g. Header(0)) is meaningless across
// different recipes.
type Store struct {
	mu      sync.RWMutex
	entries map[model.RecipeId]map[model.OverrideKey]Value
}

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[model.RecipeId]map[model.OverrideKey]Value)}
}

// Get returns the override for (recipe, key), if any.
func (s *Store) Get(recipe model.RecipeId, key model.OverrideKey) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.entries[recipe]
	if !ok {
		return Value{}, false
	}
	v, ok := m[key]
	return v, ok
}

// Set records an override for (recipe, key), replacing any prior value.
func (s *Store) Set(recipe model.RecipeId, key model.OverrideKey, v Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.entries[recipe]
	if !ok {
		m = make(map[model.OverrideKey]Value)
		s.entries[recipe] = m
	}
	m[key] = v
}

// Clear removes every override for recipe. If recipe is empty, it clears
// the entire store.
func (s *Store) Clear(recipe model.RecipeId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if recipe == "" {
		s.entries = make(map[model.RecipeId]map[model.OverrideKey]Value)
		return
	}
	delete(s.entries, recipe)
}

// All returns a snapshot copy of the overrides recorded for recipe.
func (s *Store) All(recipe model.RecipeId) map[model.OverrideKey]Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.OverrideKey]Value, len(s.entries[recipe]))
	for k, v := range s.entries[recipe] {
		out[k] = v
	}
	return out
}

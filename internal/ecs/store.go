package ecs

import (
	"slices"
	"sync"
)

// anyStore lets World clean up stores of every component type uniformly.
type anyStore interface {
	removeEntity(e EntityID) bool
	count() int
}

// Store is a typed container for one component type.
// Map for lookup plus a dense entity slice for iteration.
type Store[T any] struct {
	mu         sync.RWMutex
	components map[EntityID]T
	entities   []EntityID
}

func newStore[T any]() *Store[T] {
	return &Store[T]{
		components: make(map[EntityID]T),
		entities:   make([]EntityID, 0, 64),
	}
}

// set inserts or overwrites the component of e.
func (s *Store[T]) set(e EntityID, val T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.components[e]; !exists {
		s.entities = append(s.entities, e)
	}
	s.components[e] = val
}

func (s *Store[T]) get(e EntityID) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.components[e]
	return val, ok
}

func (s *Store[T]) has(e EntityID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.components[e]
	return ok
}

func (s *Store[T]) removeEntity(e EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.components[e]; !exists {
		return false
	}
	delete(s.components, e)
	// swap-remove, order is restored on read
	for i, entity := range s.entities {
		if entity == e {
			last := len(s.entities) - 1
			s.entities[i] = s.entities[last]
			s.entities = s.entities[:last]
			break
		}
	}
	return true
}

// all returns a sorted copy of the entity list, so callers may mutate the
// store while iterating and iteration order is deterministic.
func (s *Store[T]) all() []EntityID {
	s.mu.RLock()
	result := make([]EntityID, len(s.entities))
	copy(result, s.entities)
	s.mu.RUnlock()

	slices.Sort(result)
	return result
}

func (s *Store[T]) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

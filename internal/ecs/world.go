// Package ecs is the component store shared by every simulation subsystem.
//
// Components are plain Go values keyed by (entity, type). All writes happen on the
// simulation goroutine; reads are safe from other goroutines within a tick.
package ecs

import (
	"log/slog"
	"reflect"
	"sync"
)

// World owns entity ids and one Store per component type.
type World struct {
	ids idGenerator

	mu     sync.RWMutex
	alive  map[EntityID]struct{}
	stores map[reflect.Type]anyStore
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{
		alive:  make(map[EntityID]struct{}, 256),
		stores: make(map[reflect.Type]anyStore, 16),
	}
}

// Create reserves a new entity without components.
func (w *World) Create() EntityID {
	id := w.ids.nextID()

	w.mu.Lock()
	w.alive[id] = struct{}{}
	w.mu.Unlock()
	return id
}

// Alive reports whether id was created and not yet removed.
func (w *World) Alive(id EntityID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.alive[id]
	return ok
}

// Count returns the number of live entities.
func (w *World) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.alive)
}

// Remove destroys an entity and all its components.
// Removing an unknown or already removed id is a no-op and returns false.
func (w *World) Remove(id EntityID) bool {
	w.mu.Lock()
	if _, ok := w.alive[id]; !ok {
		w.mu.Unlock()
		slog.Debug("remove of dead entity ignored", "entity", id)
		return false
	}
	delete(w.alive, id)
	stores := make([]anyStore, 0, len(w.stores))
	for _, s := range w.stores {
		stores = append(stores, s)
	}
	w.mu.Unlock()

	for _, s := range stores {
		s.removeEntity(id)
	}
	return true
}

// storeFor returns the store for T. With create=false a missing store yields nil.
func storeFor[T any](w *World, create bool) *Store[T] {
	key := reflect.TypeFor[T]()

	w.mu.RLock()
	s, ok := w.stores[key]
	w.mu.RUnlock()
	if ok {
		return s.(*Store[T])
	}
	if !create {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.stores[key]; ok {
		return s.(*Store[T])
	}
	st := newStore[T]()
	w.stores[key] = st
	return st
}

// Add attaches val to id, replacing any existing component of the same type.
// Returns false when id is not alive.
func Add[T any](w *World, id EntityID, val T) bool {
	if !w.Alive(id) {
		slog.Warn("component add on dead entity", "entity", id, "component", reflect.TypeFor[T]().String())
		return false
	}
	storeFor[T](w, true).set(id, val)
	return true
}

// Get returns the T component of id.
func Get[T any](w *World, id EntityID) (T, bool) {
	s := storeFor[T](w, false)
	if s == nil {
		var zero T
		return zero, false
	}
	return s.get(id)
}

// Has reports whether id carries a T component.
func Has[T any](w *World, id EntityID) bool {
	s := storeFor[T](w, false)
	return s != nil && s.has(id)
}

// Delete detaches the T component from id, leaving the entity alive.
func Delete[T any](w *World, id EntityID) bool {
	s := storeFor[T](w, false)
	return s != nil && s.removeEntity(id)
}

// EntitiesWith returns, in ascending id order, every entity carrying T.
// The slice is a copy.
func EntitiesWith[T any](w *World) []EntityID {
	s := storeFor[T](w, false)
	if s == nil {
		return nil
	}
	return s.all()
}

// CountWith returns the number of entities carrying T.
func CountWith[T any](w *World) int {
	s := storeFor[T](w, false)
	if s == nil {
		return 0
	}
	return s.count()
}

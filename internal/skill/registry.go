package skill

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/udisondev/skillflow/internal/params"
)

// ErrUnknownKey is returned by Registry.Create for keys nobody registered.
var ErrUnknownKey = errors.New("unknown registry key")

// Factory builds an element from its config node.
type Factory[T any] func(p params.Tree) (T, error)

// Registry maps stable string keys (case-insensitive) to factories.
// Fill it at startup; lookups are O(1) and safe for concurrent use.
type Registry[T any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// NewRegistry creates an empty registry. kind is used in errors and logs.
func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, factories: make(map[string]Factory[T], 16)}
}

// Register binds key to factory. A second registration replaces the first.
func (r *Registry[T]) Register(key string, f Factory[T]) {
	key = normalizeKey(key)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[key]; dup {
		slog.Warn("registry key replaced", "kind", r.kind, "key", key)
	}
	r.factories[key] = f
}

// Has reports whether key is registered.
func (r *Registry[T]) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[normalizeKey(key)]
	return ok
}

// Create builds the element registered under key.
func (r *Registry[T]) Create(key string, p params.Tree) (T, error) {
	r.mu.RLock()
	f, ok := r.factories[normalizeKey(key)]
	r.mu.RUnlock()

	var zero T
	if !ok {
		return zero, fmt.Errorf("%w: %s %q", ErrUnknownKey, r.kind, key)
	}
	v, err := f(p)
	if err != nil {
		return zero, fmt.Errorf("creating %s %q: %w", r.kind, key, err)
	}
	return v, nil
}

// Keys returns the registered keys, sorted.
func (r *Registry[T]) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Registries groups the three element registries.
type Registries struct {
	Conditions *Registry[Condition]
	Mechanics  *Registry[Mechanic]
	Effects    *Registry[Effect]
}

// NewRegistries creates empty registries.
func NewRegistries() *Registries {
	return &Registries{
		Conditions: NewRegistry[Condition]("condition"),
		Mechanics:  NewRegistry[Mechanic]("mechanic"),
		Effects:    NewRegistry[Effect]("effect"),
	}
}

// DefaultRegistries creates registries holding every built-in element.
func DefaultRegistries() *Registries {
	r := NewRegistries()
	RegisterBuiltins(r)
	return r
}

// RegisterBuiltins registers the built-in conditions, mechanics and effects.
func RegisterBuiltins(r *Registries) {
	registerConditions(r)
	registerMechanics(r)
	registerEffects(r)
}

package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/skillflow/internal/stat"
)

// Manager owns the live profiles. Acquire and Drain run on the tick goroutine;
// Flush is off-tick maintenance and blocks on storage.
type Manager struct {
	repo   Repository
	stats  *stat.Engine
	loader *Loader

	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewManager creates a manager. stats may be nil.
func NewManager(repo Repository, stats *stat.Engine, workers int) *Manager {
	return &Manager{
		repo:     repo,
		stats:    stats,
		loader:   NewLoader(repo, workers),
		profiles: make(map[string]*Profile, 64),
	}
}

// Loader returns the background loader.
func (m *Manager) Loader() *Loader {
	return m.loader
}

// Run runs the loader until ctx is canceled.
func (m *Manager) Run(ctx context.Context) error {
	return m.loader.Run(ctx)
}

// Acquire returns the profile for id. A profile seen for the first time is
// returned not ready and its load is queued.
func (m *Manager) Acquire(id string) *Profile {
	m.mu.Lock()
	p, ok := m.profiles[id]
	if !ok {
		p = newProfile(id)
		p.onChange = m.invalidate
		m.profiles[id] = p
	}
	m.mu.Unlock()

	if !ok {
		m.loader.Request(id)
	}
	return p
}

// Get returns a live profile.
func (m *Manager) Get(id string) (*Profile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	return p, ok
}

// Release forgets a profile. Unsaved changes are the caller's responsibility
// (see Save).
func (m *Manager) Release(id string) (*Profile, bool) {
	m.mu.Lock()
	p, ok := m.profiles[id]
	delete(m.profiles, id)
	m.mu.Unlock()

	if ok && m.stats != nil {
		m.stats.Invalidate(id)
	}
	return p, ok
}

// Len returns the number of live profiles.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles)
}

// Drain applies finished loads. It has the skill.TickHook signature.
func (m *Manager) Drain(_ context.Context, tick uint64) {
	for _, r := range m.loader.Drain() {
		p, ok := m.Get(r.ID)
		if !ok {
			continue // released while loading
		}
		if r.Err != nil {
			slog.Error("profile load failed", "profile", r.ID, "tick", tick, "error", r.Err)
			m.Release(r.ID)
			continue
		}

		p.apply(r.Record)
		if r.Fresh {
			p.dirty.Store(true)
		}
		if m.stats != nil {
			m.stats.Invalidate(r.ID)
		}
		slog.Info("profile ready", "profile", r.ID, "name", p.DisplayName(), "fresh", r.Fresh, "tick", tick)
	}
}

// Save writes one profile if it is ready and dirty.
func (m *Manager) Save(ctx context.Context, p *Profile) error {
	if !p.Ready() || !p.dirty.CompareAndSwap(true, false) {
		return nil
	}
	rec := p.Record()
	rec.UpdatedAt = time.Now()
	if err := m.repo.Save(ctx, rec); err != nil {
		p.dirty.Store(true)
		return fmt.Errorf("saving profile %s: %w", p.ID(), err)
	}
	return nil
}

// Flush saves every dirty profile and returns the joined errors.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.RLock()
	pending := make([]*Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		if p.Ready() && p.Dirty() {
			pending = append(pending, p)
		}
	}
	m.mu.RUnlock()
	slices.SortFunc(pending, func(a, b *Profile) int { return strings.Compare(a.id, b.id) })

	var (
		errMu sync.Mutex
		errs  []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.loader.workers)
	for _, p := range pending {
		g.Go(func() error {
			if err := m.Save(gctx, p); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		slog.Error("profile flush incomplete", "saved", len(pending)-len(errs), "failed", len(errs))
		return errors.Join(errs...)
	}
	if len(pending) > 0 {
		slog.Info("profiles flushed", "saved", len(pending))
	}
	return nil
}

func (m *Manager) invalidate(p *Profile, rolesChanged bool) {
	if m.stats == nil {
		return
	}
	if rolesChanged {
		m.stats.InvalidateRoles(p.ID())
		return
	}
	m.stats.Invalidate(p.ID())
}

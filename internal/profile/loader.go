package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultWorkers is the number of concurrent storage loads.
const DefaultWorkers = 4

const requestBuffer = 1024

// Repository is durable profile storage.
type Repository interface {
	// Load returns ErrNotFound (possibly wrapped) for unknown ids.
	Load(ctx context.Context, id string) (Record, error)
	Save(ctx context.Context, r Record) error
	Delete(ctx context.Context, id string) error
}

// LoadResult is one finished load waiting to be applied on the tick goroutine.
type LoadResult struct {
	ID     string
	Record Record
	// Fresh means storage had no record; the profile starts from defaults.
	Fresh bool
	Err   error
}

// Loader runs storage loads off the simulation goroutine and queues the results.
// Concurrent requests for one id share a single storage round trip.
type Loader struct {
	repo     Repository
	workers  int
	requests chan string
	flight   singleflight.Group
	tracer   trace.Tracer

	mu      sync.Mutex
	results []LoadResult

	loads atomic.Uint64
}

// NewLoader creates a loader with at most workers concurrent loads.
func NewLoader(repo Repository, workers int) *Loader {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Loader{
		repo:     repo,
		workers:  workers,
		requests: make(chan string, requestBuffer),
		tracer:   otel.Tracer("github.com/udisondev/skillflow/internal/profile"),
	}
}

// Request queues a load without blocking. Returns false when the queue is full.
func (l *Loader) Request(id string) bool {
	select {
	case l.requests <- id:
		return true
	default:
		slog.Warn("profile load queue full", "profile", id)
		return false
	}
}

// Run serves requests until ctx is canceled, then waits for in-flight loads.
func (l *Loader) Run(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(l.workers)

	slog.Info("profile loader started", "workers", l.workers)
	for {
		select {
		case <-ctx.Done():
			if err := g.Wait(); err != nil {
				return err
			}
			slog.Info("profile loader stopped", "loads", l.loads.Load())
			return ctx.Err()

		case id := <-l.requests:
			g.Go(func() error {
				l.push(l.Load(ctx, id))
				return nil
			})
		}
	}
}

// Load performs one load synchronously. Concurrent calls for id are collapsed.
func (l *Loader) Load(ctx context.Context, id string) LoadResult {
	v, err, shared := l.flight.Do(id, func() (any, error) {
		ctx, span := l.tracer.Start(ctx, "profile.load", trace.WithAttributes(
			attribute.String("profile.id", id),
		))
		defer span.End()

		l.loads.Add(1)
		rec, err := l.repo.Load(ctx, id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load failed")
		}
		return rec, err
	})
	if IsDebugEnabled() {
		slog.Debug("profile loaded", "profile", id, "shared", shared, "error", err)
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return LoadResult{ID: id, Record: Record{ID: id}, Fresh: true}
	case err != nil:
		return LoadResult{ID: id, Err: fmt.Errorf("loading profile %s: %w", id, err)}
	}
	return LoadResult{ID: id, Record: v.(Record).Clone()}
}

func (l *Loader) push(r LoadResult) {
	l.mu.Lock()
	l.results = append(l.results, r)
	l.mu.Unlock()
}

// Drain takes every queued result.
func (l *Loader) Drain() []LoadResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.results
	l.results = nil
	return out
}

// Pending returns the number of queued results.
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.results)
}

// Loads returns how many storage round trips ran.
func (l *Loader) Loads() uint64 {
	return l.loads.Load()
}

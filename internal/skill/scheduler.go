package skill

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTickInterval is 20 ticks per second.
const DefaultTickInterval = 50 * time.Millisecond

// TickHook runs at the start of every tick, before instances are stepped.
// Used to drain background result queues onto the simulation goroutine.
type TickHook func(ctx context.Context, tick uint64)

// Scheduler is the single simulation goroutine: it drives hooks, the interpreter
// and buff expiry from a time.Ticker.
type Scheduler struct {
	interval time.Duration
	interp   *Interpreter
	buffs    *BuffManager
	tracer   trace.Tracer

	mu    sync.Mutex
	hooks []TickHook

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a scheduler. buffs may be nil.
func NewScheduler(interval time.Duration, interp *Interpreter, buffs *BuffManager) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Scheduler{
		interval: interval,
		interp:   interp,
		buffs:    buffs,
		tracer:   otel.Tracer("github.com/udisondev/skillflow/internal/skill"),
		stopCh:   make(chan struct{}),
	}
}

// OnTick registers a hook. Hooks run in registration order.
func (s *Scheduler) OnTick(h TickHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
}

// Start runs the tick loop (blocks until ctx is canceled or Stop is called).
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("skill scheduler started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("skill scheduler stopping", "ticks", s.interp.Ticks())
			return ctx.Err()

		case <-s.stopCh:
			slog.Info("skill scheduler stopped", "ticks", s.interp.Ticks())
			return nil

		case <-ticker.C:
			s.Step(ctx)
		}
	}
}

// Stop stops the tick loop. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Step runs one tick synchronously. Tests and Start use it.
func (s *Scheduler) Step(ctx context.Context) {
	tick := s.interp.Ticks()
	ctx, span := s.tracer.Start(ctx, "skill.tick", trace.WithAttributes(
		attribute.Int64("tick", int64(tick)),
	))
	defer span.End()

	s.mu.Lock()
	hooks := append([]TickHook(nil), s.hooks...)
	s.mu.Unlock()
	for _, h := range hooks {
		h(ctx, tick)
	}

	started := time.Now()
	s.interp.Tick()
	if s.buffs != nil {
		s.buffs.Tick()
	}

	running := s.interp.Running()
	span.SetAttributes(attribute.Int("instances", running))

	if elapsed := time.Since(started); elapsed > s.interval {
		slog.Warn("skill tick overran interval",
			"tick", tick,
			"elapsed", elapsed,
			"interval", s.interval,
			"instances", running)
	} else if IsDebugEnabled() && running > 0 {
		slog.Debug("skill tick completed", "tick", tick, "instances", running)
	}
}

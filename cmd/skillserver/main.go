package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/skillflow/internal/ai"
	"github.com/udisondev/skillflow/internal/combat"
	"github.com/udisondev/skillflow/internal/config"
	"github.com/udisondev/skillflow/internal/data"
	"github.com/udisondev/skillflow/internal/db"
	"github.com/udisondev/skillflow/internal/ecs"
	"github.com/udisondev/skillflow/internal/formula"
	"github.com/udisondev/skillflow/internal/profile"
	"github.com/udisondev/skillflow/internal/script"
	"github.com/udisondev/skillflow/internal/skill"
	"github.com/udisondev/skillflow/internal/spawn"
	"github.com/udisondev/skillflow/internal/stat"
	"github.com/udisondev/skillflow/internal/world"
)

const ConfigPath = "config/skillserver.yaml"

// finalFlushTimeout bounds the shutdown save; the run context is already canceled by then.
const finalFlushTimeout = 10 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load config FIRST to determine log level
	cfgPath := ConfigPath
	if p := os.Getenv("SKILLFLOW_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel, _ := config.ParseLogLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	// Per-tick debug logs need both debug level and the explicit flag
	debug := cfg.Debug && logLevel == slog.LevelDebug
	skill.EnableDebugLogging(debug)
	combat.EnableDebugLogging(debug)
	profile.EnableDebugLogging(debug)
	ai.EnableDebugLogging(debug)

	slog.Info("skillflow server starting",
		"log_level", cfg.LogLevel,
		"tick", cfg.TickInterval,
		"storage", cfg.Storage.Driver)

	store, err := db.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN())
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	pack, err := data.LoadDir(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("loading data: %w", err)
	}

	eval, err := formula.NewEvaluator()
	if err != nil {
		return fmt.Errorf("creating formula evaluator: %w", err)
	}
	stats := stat.NewEngine(eval)
	if err := pack.Stats.Apply(stats); err != nil {
		return fmt.Errorf("loading stats: %w", err)
	}

	buffs := skill.NewBuffManager(stats, cfg.BuffLimit)
	damage := combat.NewPipeline(stats, combat.WithDefenseConstant(cfg.DefenseConstant))

	scripts := script.NewEngine()
	if _, err := scripts.LoadDir(cfg.ScriptDir); err != nil {
		return fmt.Errorf("loading scripts: %w", err)
	}

	// Mobs and running abilities share one component store
	entities := ecs.NewWorld()
	grid := world.NewGrid(cfg.CellSize)
	mobs := world.NewMobs(entities, grid, stats)
	mobs.Fallback = logSink{}

	abilities := skill.NewLibrary()
	builder := skill.NewBuilder(skill.DefaultRegistries(), stats, mobs)
	if _, err := data.BuildAbilities(pack.Abilities, builder, abilities); err != nil {
		// Broken abilities are skipped, the rest still load
		slog.Warn("some abilities failed to build", "err", err)
	}

	rt := &skill.Runtime{
		Stats:     stats,
		Damage:    damage,
		Formulas:  eval,
		World:     grid,
		Sink:      mobs,
		Host:      logHost{},
		Scripts:   scripts,
		Buffs:     buffs,
		Abilities: abilities,
		Threat:    mobs,
	}
	interp := skill.NewInterpreter(entities, rt)
	caster := skill.NewCaster(interp, abilities)

	profiles := profile.NewManager(store, stats, cfg.LoaderWorkers)

	brains := ai.NewTickManager()
	mobs.OnDeath(func(m *world.Mob, _ string) {
		brains.Unregister(m.ID())
		caster.Disconnect(m.ID())
		buffs.Clear(m.ID())
	})

	spawns := spawn.NewManager(mobs)
	spawns.OnSpawn(func(m *world.Mob, _ *spawn.Point) {
		if len(m.Abilities()) == 0 {
			return
		}
		brains.Register(m.ID(), ai.NewCasterAI(m, m.Abilities(), caster, mobs, grid, ai.DefaultThinkInterval))
	})
	pack.Mobs.AddPoints(spawns)
	if _, err := spawns.SpawnAll(); err != nil {
		slog.Warn("some mobs failed to spawn", "err", err)
	}

	scheduler := skill.NewScheduler(cfg.TickInterval, interp, buffs)
	scheduler.OnTick(profiles.Drain)
	scheduler.OnTick(spawns.Respawns().Tick)
	scheduler.OnTick(brains.Tick)

	slog.Info("content loaded",
		"abilities", abilities.Len(),
		"scripts", len(scripts.Names()),
		"mobs", mobs.Count(),
		"ai_controllers", brains.Count())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Start(gctx)
	})
	g.Go(func() error {
		return profiles.Run(gctx)
	})
	if cfg.FlushInterval > 0 {
		g.Go(func() error {
			return flushLoop(gctx, profiles, cfg.FlushInterval)
		})
	}

	err = g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
	defer cancel()
	if ferr := profiles.Flush(flushCtx); ferr != nil {
		slog.Error("final profile flush failed", "err", ferr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("skillflow server stopped")
	return nil
}

// flushLoop saves dirty profiles every interval until ctx is canceled.
// Failed saves stay dirty and are retried on the next round.
func flushLoop(ctx context.Context, profiles *profile.Manager, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := profiles.Flush(ctx); err != nil {
				slog.Error("profile flush failed", "err", err)
			}
		}
	}
}

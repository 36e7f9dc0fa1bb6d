package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sbenjam1n/autopilot/internal/automation"
	"github.com/sbenjam1n/autopilot/internal/config"
	"github.com/sbenjam1n/autopilot/internal/db"
	"github.com/sbenjam1n/autopilot/internal/engine"
	"github.com/sbenjam1n/autopilot/internal/queue"
	"github.com/sbenjam1n/autopilot/internal/snapshot"
	"github.com/spf13/cobra"
)

var (
	cfg     *config.Config
	rootCmd = &cobra.Command{
		Use:   "autopilot",
		Short: "Automation rule engine: evaluates plans against member activity and emits suggestions",
		Long: `autopilot periodically evaluates automation plans against the most
recently active member and emits deduplicated, expiring suggestions plus an
activity log.

Run the engine:
  autopilot run

Inspect it from another shell:
  autopilot suggestions list
  autopilot log --limit 20`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cycleCmd)
	rootCmd.AddCommand(plansCmd)
	rootCmd.AddCommand(suggestionsCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(queueCmd)
}

func initConfig() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func connectRedis() (*redis.Client, error) {
	client, err := queue.ConnectRedis(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("%w\nSet AUTOPILOT_REDIS_URL environment variable", err)
	}
	return client, nil
}

func connectSource(ctx context.Context) (*db.Source, func(), error) {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w\nSet AUTOPILOT_DATABASE_URL environment variable", err)
	}
	return db.NewSource(pool), pool.Close, nil
}

// openSnapshotStore returns the configured store. rdb may be nil unless the
// backend is redis.
func openSnapshotStore(rdb *redis.Client) (engine.SnapshotStore, func(), error) {
	switch cfg.SnapshotBackend {
	case config.BackendRedis:
		if rdb == nil {
			return nil, nil, fmt.Errorf("redis snapshot backend needs a redis connection")
		}
		return snapshot.NewRedisStore(rdb, ""), func() {}, nil
	case config.BackendSQLite:
		store, err := snapshot.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

func loadPlans() ([]automation.Plan, error) {
	if cfg.PlansFile == "" {
		return automation.DefaultPlans(), nil
	}
	return automation.LoadPlansFile(cfg.PlansFile)
}

func clock() time.Time {
	return time.Now().In(cfg.Location)
}

// buildEngine wires an engine from config and restores its snapshot.
func buildEngine(ctx context.Context, source engine.ContextSource, store engine.SnapshotStore, extra ...engine.Option) (*engine.Engine, error) {
	plans, err := loadPlans()
	if err != nil {
		return nil, err
	}
	registry, err := automation.NewRegistry(plans)
	if err != nil {
		return nil, err
	}
	opts := []engine.Option{
		engine.WithClock(clock),
		engine.WithLogger(newLogger()),
		engine.WithEvaluator(automation.NewEvaluator(automation.WithFallback(cfg.FallbackProbability, nil))),
		engine.WithCycleTimeout(cfg.CycleTimeout),
		engine.WithSchedule(cfg.StartupDelay, cfg.Interval),
	}
	if store != nil {
		opts = append(opts, engine.WithSnapshotStore(store))
	}
	opts = append(opts, extra...)
	eng, err := engine.New(registry, source, opts...)
	if err != nil {
		return nil, err
	}
	if err := eng.Load(ctx); err != nil {
		return nil, err
	}
	return eng, nil
}

// openOffline builds an engine for inspection commands. It never evaluates,
// so it carries an empty context source.
func openOffline(ctx context.Context) (*engine.Engine, func(), error) {
	return openWithSource(ctx, emptySource{})
}

// openWithSource builds an engine on the configured snapshot store without
// starting its scheduler.
func openWithSource(ctx context.Context, source engine.ContextSource) (*engine.Engine, func(), error) {
	var rdb *redis.Client
	if cfg.SnapshotBackend == config.BackendRedis {
		var err error
		if rdb, err = connectRedis(); err != nil {
			return nil, nil, err
		}
	}
	store, closeStore, err := openSnapshotStore(rdb)
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, nil, err
	}
	cleanup := func() {
		closeStore()
		if rdb != nil {
			rdb.Close()
		}
	}
	eng, err := buildEngine(ctx, source, store)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return eng, cleanup, nil
}

type emptySource struct{}

func (emptySource) Snapshot(_ context.Context, now time.Time) (automation.Context, error) {
	return automation.Context{Now: now}, nil
}

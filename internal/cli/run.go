package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sbenjam1n/autopilot/internal/engine"
	"github.com/sbenjam1n/autopilot/internal/fixture"
	"github.com/sbenjam1n/autopilot/internal/queue"
	"github.com/spf13/cobra"
)

const commandBlock = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine: evaluate plans every interval and consume operator commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		fixturePath, _ := cmd.Flags().GetString("fixture")
		consumer, _ := cmd.Flags().GetString("consumer")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		source, closeSource, err := resolveSource(ctx, fixturePath)
		if err != nil {
			return err
		}
		defer closeSource()

		rdb, err := connectRedis()
		if err != nil {
			return err
		}
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}

		store, closeStore, err := openSnapshotStore(rdb)
		if err != nil {
			return err
		}
		defer closeStore()

		q := queue.New(rdb)
		logger := newLogger()
		eng, err := buildEngine(ctx, source, store, engine.WithSink(q))
		if err != nil {
			return err
		}

		if err := eng.Start(ctx); err != nil {
			return err
		}
		defer eng.Stop()

		fmt.Printf("Engine running: %d plan(s), first cycle in %s, then every %s.\n",
			len(eng.ListPlans()), cfg.StartupDelay, cfg.Interval)
		fmt.Println("(Press Ctrl+C to stop)")

		err = q.ConsumeCommands(ctx, consumer, commandBlock, commandHandler(eng), logger)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func commandHandler(eng *engine.Engine) queue.CommandHandler {
	return func(ctx context.Context, c queue.Command) error {
		switch c.Kind {
		case queue.CommandTogglePlan:
			if _, ok := eng.TogglePlan(ctx, c.Target); !ok {
				return fmt.Errorf("toggle: unknown plan %q", c.Target)
			}
		case queue.CommandDismissSuggestion:
			if !eng.DismissSuggestion(ctx, c.Target) {
				return fmt.Errorf("dismiss: unknown suggestion %q", c.Target)
			}
		case queue.CommandRunCycle:
			_, err := eng.RunCycleNow(ctx)
			return err
		default:
			return fmt.Errorf("unknown command %q", c.Kind)
		}
		return nil
	}
}

func resolveSource(ctx context.Context, fixturePath string) (engine.ContextSource, func(), error) {
	if fixturePath != "" {
		src, err := fixture.Load(fixturePath)
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil
	}
	return connectSource(ctx)
}

func init() {
	runCmd.Flags().String("fixture", "", "Read member context from a YAML fixture instead of PostgreSQL")
	runCmd.Flags().String("consumer", "engine_1", "Consumer name in the engine command group")
}

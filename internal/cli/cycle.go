package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sbenjam1n/autopilot/internal/engine"
	"github.com/sbenjam1n/autopilot/internal/queue"
	"github.com/spf13/cobra"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run a single evaluation cycle against the stored snapshot and exit",
	Long: `Run one cycle in this process: restore the snapshot, evaluate every
enabled plan and the system checks, save the snapshot, and print what was
created. Do not use while "autopilot run" is writing the same snapshot;
send "autopilot cycle --remote" instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fixturePath, _ := cmd.Flags().GetString("fixture")
		remote, _ := cmd.Flags().GetBool("remote")
		ctx := context.Background()

		if remote {
			return pushCommand(ctx, queue.Command{Kind: queue.CommandRunCycle})
		}

		source, closeSource, err := resolveSource(ctx, fixturePath)
		if err != nil {
			return err
		}
		defer closeSource()

		eng, cleanup, err := openWithSource(ctx, source)
		if err != nil {
			return err
		}
		defer cleanup()

		report, err := eng.RunCycleNow(ctx)
		if errors.Is(err, engine.ErrCycleInProgress) {
			return err
		}
		renderReport(os.Stdout, report)
		if err != nil {
			return fmt.Errorf("cycle: %w", err)
		}
		return nil
	},
}

func init() {
	cycleCmd.Flags().String("fixture", "", "Read member context from a YAML fixture instead of PostgreSQL")
	cycleCmd.Flags().Bool("remote", false, "Ask the running engine to run a cycle now")
}

package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the activity log, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		ctx := context.Background()
		eng, cleanup, err := openOffline(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		renderLog(os.Stdout, eng.ListLog(limit))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show when the engine last completed a cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		eng, cleanup, err := openOffline(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		renderStatus(os.Stdout, eng.Status(), clock())
		renderSuggestions(os.Stdout, eng.ListSuggestions())
		return nil
	},
}

func init() {
	logCmd.Flags().Int("limit", 20, "Maximum entries to show (0 for all)")
}

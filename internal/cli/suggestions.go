package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/sbenjam1n/autopilot/internal/queue"
	"github.com/spf13/cobra"
)

var suggestionsCmd = &cobra.Command{
	Use:     "suggestions",
	Aliases: []string{"sg"},
	Short:   "Pending suggestions",
}

var suggestionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending suggestions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		eng, cleanup, err := openOffline(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		renderSuggestions(os.Stdout, eng.ListSuggestions())
		return nil
	},
}

var suggestionsDismissCmd = &cobra.Command{
	Use:   "dismiss <suggestion-id>",
	Short: "Dismiss one pending suggestion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		direct, _ := cmd.Flags().GetBool("direct")
		ctx := context.Background()
		id := args[0]

		if !direct {
			return pushCommand(ctx, queue.Command{Kind: queue.CommandDismissSuggestion, Target: id})
		}

		eng, cleanup, err := openOffline(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if eng.DismissSuggestion(ctx, id) {
			fmt.Printf("Dismissed %s.\n", id)
		} else {
			fmt.Printf("No pending suggestion %q; nothing changed.\n", id)
		}
		return nil
	},
}

func init() {
	suggestionsDismissCmd.Flags().Bool("direct", false, "Edit the stored snapshot instead of messaging the running engine")

	suggestionsCmd.AddCommand(suggestionsListCmd)
	suggestionsCmd.AddCommand(suggestionsDismissCmd)
}

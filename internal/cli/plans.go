package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/sbenjam1n/autopilot/internal/queue"
	"github.com/spf13/cobra"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Automation plan registry",
}

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List plans with their enabled flag and trigger counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		eng, cleanup, err := openOffline(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		renderPlans(os.Stdout, eng.ListPlans())
		return nil
	},
}

var plansToggleCmd = &cobra.Command{
	Use:   "toggle <plan-id>",
	Short: "Enable or disable a plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		direct, _ := cmd.Flags().GetBool("direct")
		ctx := context.Background()
		id := args[0]

		if !direct {
			return pushCommand(ctx, queue.Command{Kind: queue.CommandTogglePlan, Target: id})
		}

		eng, cleanup, err := openOffline(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		plan, ok := eng.TogglePlan(ctx, id)
		if !ok {
			fmt.Printf("No plan %q; nothing changed.\n", id)
			return nil
		}
		state := "disabled"
		if plan.Enabled {
			state = "enabled"
		}
		fmt.Printf("Plan %s is now %s.\n", plan.ID, state)
		return nil
	},
}

func init() {
	plansToggleCmd.Flags().Bool("direct", false, "Edit the stored snapshot instead of messaging the running engine")

	plansCmd.AddCommand(plansListCmd)
	plansCmd.AddCommand(plansToggleCmd)
}

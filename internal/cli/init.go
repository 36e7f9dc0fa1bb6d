package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sbenjam1n/autopilot/internal/automation"
	"github.com/sbenjam1n/autopilot/internal/db"
	"github.com/sbenjam1n/autopilot/internal/queue"
	"github.com/spf13/cobra"
)

var skipDB bool

const sampleFixture = `# Member context for "autopilot run --fixture" and "autopilot cycle --fixture".
# Offsets are relative to the cycle's clock.
subject:
  id: demo
  name: Demo Member
  date_of_birth: "1995-06-15"
  last_active_days_ago: 4
  joined_days_ago: 365
  expires_in_days: 2
workouts:
  - exercise: Squat
    hours_ago: 3
  - exercise: Squat
    days_ago: 1
  - exercise: Squat
    days_ago: 2
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize an autopilot project",
	Long:  "Initialize project: .autopilot/ with a plan catalog and fixture, PostgreSQL schema, Redis streams",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		dir := filepath.Join(cfg.ProjectRoot, ".autopilot")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create .autopilot: %w", err)
		}

		catalog, err := automation.EncodePlansYAML(automation.DefaultPlans())
		if err != nil {
			return err
		}
		if err := writeIfMissing(filepath.Join(dir, "plans.yaml"), catalog); err != nil {
			return err
		}
		if err := writeIfMissing(filepath.Join(dir, "fixture.yaml"), []byte(sampleFixture)); err != nil {
			return err
		}

		if skipDB {
			fmt.Println("\nSkipped PostgreSQL. Use --fixture with run and cycle.")
		} else {
			fmt.Println("Connecting to PostgreSQL...")
			pool, err := db.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer pool.Close()

			fmt.Println("Running migrations...")
			applied, err := db.Migrate(ctx, pool, cfg.MigrationsDir())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			for _, name := range applied {
				fmt.Printf("  applied %s\n", name)
			}
			fmt.Println("PostgreSQL schema created")
		}

		fmt.Println("Connecting to Redis...")
		rdb, err := connectRedis()
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer rdb.Close()

		q := queue.New(rdb)
		if err := q.EnsureStreams(ctx); err != nil {
			return fmt.Errorf("redis stream setup failed: %w", err)
		}
		fmt.Println("Redis streams created")

		fmt.Println("\nautopilot project initialized.")
		fmt.Println("Next steps:")
		fmt.Printf("  1. Edit %s and export AUTOPILOT_PLANS_FILE to use it\n", filepath.Join(dir, "plans.yaml"))
		fmt.Println("  2. Run: autopilot cycle --fixture .autopilot/fixture.yaml")
		fmt.Println("  3. Run: autopilot run")
		return nil
	},
}

func writeIfMissing(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("%s already exists\n", filepath.Base(path))
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	fmt.Printf("Created %s\n", filepath.Base(path))
	return nil
}

func init() {
	initCmd.Flags().BoolVar(&skipDB, "skip-db", false, "Skip PostgreSQL migrations (fixture-only setup)")
}

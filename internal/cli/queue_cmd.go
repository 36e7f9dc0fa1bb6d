package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/sbenjam1n/autopilot/internal/queue"
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Queue management",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show published suggestions and pending commands in Redis",
	RunE: func(cmd *cobra.Command, args []string) error {
		rdb, err := connectRedis()
		if err != nil {
			return err
		}
		defer rdb.Close()

		ctx := context.Background()
		q := queue.New(rdb)

		suggestions, commands, err := q.Status(ctx)
		if err != nil {
			return fmt.Errorf("queue status: %w", err)
		}

		fmt.Printf("Queue Status:\n")
		fmt.Printf("  %s: %d entries\n", queue.StreamSuggestions, suggestions)
		fmt.Printf("  %s:    %d entries\n", queue.StreamCommands, commands)
		return nil
	},
}

var queueTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print published suggestions as a notifier would receive them",
	RunE: func(cmd *cobra.Command, args []string) error {
		consumer, _ := cmd.Flags().GetString("consumer")
		count, _ := cmd.Flags().GetInt("count")

		rdb, err := connectRedis()
		if err != nil {
			return err
		}
		defer rdb.Close()

		ctx := context.Background()
		q := queue.New(rdb)
		if err := q.EnsureStreams(ctx); err != nil {
			return err
		}

		read := 0
		for count <= 0 || read < count {
			s, msgID, err := q.ReadSuggestion(ctx, consumer, -1)
			if err != nil {
				return err
			}
			if s == nil {
				break
			}
			fmt.Printf("%s  %s [%s] %s\n    %s\n", msgID, s.CreatedAt.Format(time.RFC3339), s.Priority, s.Title, s.Message)
			if err := q.AckSuggestion(ctx, msgID); err != nil {
				return fmt.Errorf("ack %s: %w", msgID, err)
			}
			read++
		}
		if read == 0 {
			fmt.Println("(no new suggestions)")
		}
		return nil
	},
}

// sendCommand pushes an operator command for the running engine and returns
// its stream id.
func sendCommand(ctx context.Context, c queue.Command) (string, error) {
	rdb, err := connectRedis()
	if err != nil {
		return "", err
	}
	defer rdb.Close()

	q := queue.New(rdb)
	if err := q.EnsureStreams(ctx); err != nil {
		return "", err
	}
	return q.PushCommand(ctx, c)
}

// pushCommand sends an operator command and reports it on stdout.
func pushCommand(ctx context.Context, c queue.Command) error {
	id, err := sendCommand(ctx, c)
	if err != nil {
		return err
	}
	if c.Target != "" {
		fmt.Printf("Sent %s %s (%s)\n", c.Kind, c.Target, id)
	} else {
		fmt.Printf("Sent %s (%s)\n", c.Kind, id)
	}
	return nil
}

func init() {
	queueTailCmd.Flags().String("consumer", "cli", "Consumer name in the notifier group")
	queueTailCmd.Flags().Int("count", 0, "Stop after this many suggestions (0 drains the stream)")

	queueCmd.AddCommand(queueStatusCmd)
	queueCmd.AddCommand(queueTailCmd)
}

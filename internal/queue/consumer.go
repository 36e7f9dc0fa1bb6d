package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// CommandHandler applies one operator command.
type CommandHandler func(ctx context.Context, cmd Command) error

// ConsumeCommands blocks on the command stream and hands every command to
// handle until ctx is cancelled. Commands are acknowledged even when the
// handler fails so a bad command is not redelivered forever.
func (q *Queue) ConsumeCommands(ctx context.Context, consumer string, block time.Duration, handle CommandHandler, logger *slog.Logger) error {
	if err := q.EnsureStreams(ctx); err != nil {
		return err
	}
	for {
		cmd, msgID, err := q.ReadCommand(ctx, consumer, block)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("command read failed", "err", err)
			if !sleep(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}
		if cmd == nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		if err := handle(ctx, *cmd); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("command failed", "kind", cmd.Kind, "target", cmd.Target, "err", err)
		}
		if err := q.AckCommand(context.WithoutCancel(ctx), msgID); err != nil {
			logger.Warn("command ack failed", "id", msgID, "err", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

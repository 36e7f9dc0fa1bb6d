package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sbenjam1n/autopilot/internal/automation"
)

const (
	// StreamSuggestions carries every newly created suggestion (engine pushes,
	// notification workers pop).
	StreamSuggestions = "automation_suggestions"
	// StreamCommands carries operator commands (CLI pushes, engine pops).
	StreamCommands = "automation_commands"

	// GroupEngine is the consumer group for running engines.
	GroupEngine = "engine_pool"
	// GroupNotifier is the consumer group for suggestion delivery.
	GroupNotifier = "notifier_pool"
)

// CommandKind names an operator action.
type CommandKind string

const (
	CommandTogglePlan        CommandKind = "toggle_plan"
	CommandDismissSuggestion CommandKind = "dismiss_suggestion"
	CommandRunCycle          CommandKind = "run_cycle"
)

// Valid reports whether k is a known command.
func (k CommandKind) Valid() bool {
	return k == CommandTogglePlan || k == CommandDismissSuggestion || k == CommandRunCycle
}

// Command is the payload pushed to the automation_commands stream.
type Command struct {
	Kind        CommandKind `json:"kind"`
	Target      string      `json:"target,omitempty"` // plan or suggestion id
	RequestedAt time.Time   `json:"requested_at"`
}

// Queue manages the Redis streams around a running engine.
type Queue struct {
	client *redis.Client
}

// New creates a Queue from a Redis client.
func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// ConnectRedis creates a Redis client from a URL.
func ConnectRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// EnsureStreams creates the consumer groups if they don't exist.
func (q *Queue) EnsureStreams(ctx context.Context) error {
	for _, pair := range []struct {
		stream, group string
	}{
		{StreamCommands, GroupEngine},
		{StreamSuggestions, GroupNotifier},
	} {
		err := q.client.XGroupCreateMkStream(ctx, pair.stream, pair.group, "0").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("create group %s on %s: %w", pair.group, pair.stream, err)
		}
	}
	return nil
}

// PublishSuggestion adds a new suggestion to the automation_suggestions
// stream.
func (q *Queue) PublishSuggestion(ctx context.Context, s automation.Suggestion) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode suggestion %s: %w", s.ID, err)
	}
	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamSuggestions,
		Values: map[string]any{
			"suggestion_id": s.ID,
			"plan_id":       s.PlanID,
			"priority":      string(s.Priority),
			"title":         s.Title,
			"payload":       string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish suggestion: %w", err)
	}
	return nil
}

// ReadSuggestion reads one published suggestion for a notifier. It returns
// nil when block elapses without a message. A zero block waits forever and a
// negative block returns at once.
func (q *Queue) ReadSuggestion(ctx context.Context, consumer string, block time.Duration) (*automation.Suggestion, string, error) {
	msg, err := q.readOne(ctx, StreamSuggestions, GroupNotifier, consumer, block)
	if err != nil || msg == nil {
		return nil, "", err
	}
	var s automation.Suggestion
	if err := json.Unmarshal([]byte(getString(msg.Values, "payload")), &s); err != nil {
		return nil, msg.ID, fmt.Errorf("decode suggestion %s: %w", msg.ID, err)
	}
	return &s, msg.ID, nil
}

// AckSuggestion acknowledges a suggestion message.
func (q *Queue) AckSuggestion(ctx context.Context, msgID string) error {
	return q.client.XAck(ctx, StreamSuggestions, GroupNotifier, msgID).Err()
}

// PushCommand adds an operator command to the automation_commands stream.
func (q *Queue) PushCommand(ctx context.Context, cmd Command) (string, error) {
	if !cmd.Kind.Valid() {
		return "", fmt.Errorf("push command: unknown kind %q", cmd.Kind)
	}
	if cmd.RequestedAt.IsZero() {
		cmd.RequestedAt = time.Now().UTC()
	}
	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamCommands,
		Values: map[string]any{
			"kind":         string(cmd.Kind),
			"target":       cmd.Target,
			"requested_at": cmd.RequestedAt.Format(time.RFC3339Nano),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("push command: %w", err)
	}
	return id, nil
}

// ReadCommand reads one command for an engine. It returns nil when block
// elapses without a message. Block follows ReadSuggestion.
func (q *Queue) ReadCommand(ctx context.Context, consumer string, block time.Duration) (*Command, string, error) {
	msg, err := q.readOne(ctx, StreamCommands, GroupEngine, consumer, block)
	if err != nil || msg == nil {
		return nil, "", err
	}
	cmd := &Command{
		Kind:   CommandKind(getString(msg.Values, "kind")),
		Target: getString(msg.Values, "target"),
	}
	if at, err := time.Parse(time.RFC3339Nano, getString(msg.Values, "requested_at")); err == nil {
		cmd.RequestedAt = at
	}
	return cmd, msg.ID, nil
}

// AckCommand acknowledges a command message.
func (q *Queue) AckCommand(ctx context.Context, msgID string) error {
	return q.client.XAck(ctx, StreamCommands, GroupEngine, msgID).Err()
}

// Status returns the length of both streams.
func (q *Queue) Status(ctx context.Context) (suggestions, commands int64, err error) {
	suggestions, err = q.client.XLen(ctx, StreamSuggestions).Result()
	if err != nil {
		return 0, 0, err
	}
	commands, err = q.client.XLen(ctx, StreamCommands).Result()
	if err != nil {
		return 0, 0, err
	}
	return suggestions, commands, nil
}

func (q *Queue) readOne(ctx context.Context, stream, group, consumer string, block time.Duration) (*redis.XMessage, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", stream, err)
	}
	for _, s := range streams {
		for _, msg := range s.Messages {
			return &msg, nil
		}
	}
	return nil, nil
}

func getString(values map[string]any, key string) string {
	if v, ok := values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

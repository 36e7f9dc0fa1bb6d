package automation

import "time"

// TriggerType is the kind of signal a plan reacts to.
type TriggerType string

const (
	TriggerTimeBased    TriggerType = "time_based"
	TriggerHealthMetric TriggerType = "health_metric"
	TriggerWorkoutEvent TriggerType = "workout_event"
	TriggerWeather      TriggerType = "weather"
	TriggerStreak       TriggerType = "streak"
	TriggerManual       TriggerType = "manual"
)

// Valid reports whether t is a known trigger type.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerTimeBased, TriggerHealthMetric, TriggerWorkoutEvent, TriggerWeather, TriggerStreak, TriggerManual:
		return true
	}
	return false
}

// ActionType is what a plan does when it fires.
type ActionType string

const (
	ActionNotification ActionType = "notification"
	ActionSuggestion   ActionType = "suggestion"
	ActionAutoSchedule ActionType = "auto_schedule"
	ActionReward       ActionType = "reward"
	ActionWarning      ActionType = "warning"
	ActionModeSwitch   ActionType = "mode_switch"
)

// Valid reports whether a is a known action type.
func (a ActionType) Valid() bool {
	switch a {
	case ActionNotification, ActionSuggestion, ActionAutoSchedule, ActionReward, ActionWarning, ActionModeSwitch:
		return true
	}
	return false
}

// Category groups plans for display.
type Category string

const (
	CategoryEnergy    Category = "energy"
	CategoryTraining  Category = "training"
	CategoryNutrition Category = "nutrition"
	CategoryMindset   Category = "mindset"
	CategorySystem    Category = "system"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryEnergy, CategoryTraining, CategoryNutrition, CategoryMindset, CategorySystem:
		return true
	}
	return false
}

// Priority orders suggestions for the user.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// LogType classifies an activity log entry.
type LogType string

const (
	LogSuccess LogType = "success"
	LogWarning LogType = "warning"
	LogInfo    LogType = "info"
)

// ActionPayload is the template a plan renders into a suggestion.
type ActionPayload struct {
	Title       string        `json:"title" yaml:"title"`
	Message     string        `json:"message" yaml:"message"`
	Icon        string        `json:"icon" yaml:"icon"`
	Priority    Priority      `json:"priority" yaml:"priority"`
	ActionLabel string        `json:"action_label,omitempty" yaml:"action_label,omitempty"`
	TTL         time.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"` // zero: never expires
}

// Plan is a declarative automation rule. TriggerCondition is documentation
// only; evaluation is keyed by ID.
type Plan struct {
	ID               string        `json:"id" yaml:"id"`
	Name             string        `json:"name" yaml:"name"`
	Description      string        `json:"description" yaml:"description"`
	TriggerType      TriggerType   `json:"trigger_type" yaml:"trigger_type"`
	TriggerCondition string        `json:"trigger_condition" yaml:"trigger_condition"`
	ActionType       ActionType    `json:"action_type" yaml:"action_type"`
	ActionPayload    ActionPayload `json:"action_payload" yaml:"action_payload"`
	Enabled          bool          `json:"enabled" yaml:"enabled"`
	Category         Category      `json:"category" yaml:"category"`
	TriggerCount     int           `json:"trigger_count" yaml:"-"`
	LastTriggered    *time.Time    `json:"last_triggered,omitempty" yaml:"-"`
}

// Suggestion is a pending, user-facing message produced by a firing plan or
// system check.
type Suggestion struct {
	ID          string     `json:"id"`
	PlanID      string     `json:"plan_id"`
	DedupKey    string     `json:"dedup_key"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Icon        string     `json:"icon"`
	Priority    Priority   `json:"priority"`
	ActionLabel string     `json:"action_label,omitempty"`
	Dismissable bool       `json:"dismissable"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// LogEntry is an immutable activity record.
type LogEntry struct {
	ID        string    `json:"id"`
	PlanID    string    `json:"plan_id"`
	PlanName  string    `json:"plan_name"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Type      LogType   `json:"type"`
}

// Status is the engine's observable run state.
type Status struct {
	IsRunning bool       `json:"is_running"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
}

// Snapshot is the persisted form of an engine's mutable state.
type Snapshot struct {
	Version     int          `json:"version"`
	SavedAt     time.Time    `json:"saved_at"`
	Plans       []Plan       `json:"plans"`
	Suggestions []Suggestion `json:"suggestions"`
	Log         []LogEntry   `json:"log"`
	LastRunAt   *time.Time   `json:"last_run_at,omitempty"`
}

// SnapshotVersion is bumped whenever Snapshot changes shape.
const SnapshotVersion = 1

// Subject is the member the engine evaluates against.
type Subject struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	DateOfBirth  string     `json:"date_of_birth"` // free-form, may be malformed
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
	JoinedAt     time.Time  `json:"joined_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Workout is one recorded exercise.
type Workout struct {
	Exercise    string    `json:"exercise"`
	PerformedAt time.Time `json:"performed_at"`
}

// Context is the read-only snapshot a cycle evaluates. Workouts are
// newest-first.
type Context struct {
	Now      time.Time
	Subject  *Subject
	Workouts []Workout
}

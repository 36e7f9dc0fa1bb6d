package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sbenjam1n/autopilot/internal/automation"
)

var (
	// ErrCycleInProgress is returned when a cycle is requested while another
	// one still holds the guard.
	ErrCycleInProgress = errors.New("engine: cycle already in progress")
	// ErrAlreadyStarted is returned by Start on a running scheduler.
	ErrAlreadyStarted = errors.New("engine: scheduler already started")
)

const (
	DefaultInterval     = 60 * time.Second
	DefaultStartupDelay = 2 * time.Second
	DefaultCycleTimeout = 10 * time.Second
)

// ContextSource assembles the read-only snapshot a cycle evaluates.
type ContextSource interface {
	Snapshot(ctx context.Context, now time.Time) (automation.Context, error)
}

// Sink receives every newly created suggestion.
type Sink interface {
	PublishSuggestion(ctx context.Context, s automation.Suggestion) error
}

// SnapshotStore persists engine state between processes.
type SnapshotStore interface {
	Load(ctx context.Context) (*automation.Snapshot, error)
	Save(ctx context.Context, snap *automation.Snapshot) error
}

// Engine owns the plan registry, pending suggestions, and activity log, and
// drives evaluation cycles over them.
type Engine struct {
	registry    *automation.Registry
	suggestions *automation.SuggestionStore
	log         *automation.ActivityLog
	evaluator   *automation.Evaluator
	checks      []automation.Check
	source      ContextSource
	sink        Sink
	store       SnapshotStore
	logger      *slog.Logger
	clock       func() time.Time
	statusHook  func(automation.Status)

	cycleTimeout time.Duration
	interval     time.Duration
	startupDelay time.Duration

	running   atomic.Bool
	statusMu  sync.RWMutex
	lastRunAt *time.Time
	persistMu sync.Mutex

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option customizes the engine instance.
type Option func(*Engine)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithEvaluator replaces the default evaluator.
func WithEvaluator(ev *automation.Evaluator) Option {
	return func(e *Engine) {
		if ev != nil {
			e.evaluator = ev
		}
	}
}

// WithChecks replaces the system checks run after the plans.
func WithChecks(checks []automation.Check) Option {
	return func(e *Engine) {
		e.checks = checks
	}
}

// WithSink publishes new suggestions to s.
func WithSink(s Sink) Option {
	return func(e *Engine) {
		e.sink = s
	}
}

// WithSnapshotStore persists state after every cycle and user action.
func WithSnapshotStore(s SnapshotStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCycleTimeout bounds a single cycle. Zero disables the deadline.
func WithCycleTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.cycleTimeout = d
		}
	}
}

// WithSchedule sets the delay before the first cycle and the interval
// between later ones.
func WithSchedule(startupDelay, interval time.Duration) Option {
	return func(e *Engine) {
		if startupDelay >= 0 {
			e.startupDelay = startupDelay
		}
		if interval > 0 {
			e.interval = interval
		}
	}
}

// WithLogCapacity overrides the activity log bound.
func WithLogCapacity(n int) Option {
	return func(e *Engine) {
		e.log = automation.NewActivityLog(n)
	}
}

// WithStatusHook is called whenever the engine status changes.
func WithStatusHook(fn func(automation.Status)) Option {
	return func(e *Engine) {
		e.statusHook = fn
	}
}

// New wires an engine to its plan registry and context source.
func New(registry *automation.Registry, source ContextSource, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("engine: plan registry is required")
	}
	if source == nil {
		return nil, fmt.Errorf("engine: context source is required")
	}
	e := &Engine{
		registry:     registry,
		suggestions:  automation.NewSuggestionStore(),
		log:          automation.NewActivityLog(automation.DefaultLogCapacity),
		evaluator:    automation.NewEvaluator(),
		checks:       automation.SystemChecks(),
		source:       source,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:        time.Now,
		cycleTimeout: DefaultCycleTimeout,
		interval:     DefaultInterval,
		startupDelay: DefaultStartupDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ListPlans returns every plan in registry order.
func (e *Engine) ListPlans() []automation.Plan {
	return e.registry.List()
}

// TogglePlan flips a plan's enabled flag. Unknown ids are a no-op.
func (e *Engine) TogglePlan(ctx context.Context, id string) (automation.Plan, bool) {
	plan, ok := e.registry.Toggle(id)
	if !ok {
		return automation.Plan{}, false
	}
	e.logger.Info("plan toggled", "plan", id, "enabled", plan.Enabled)
	e.persist(ctx)
	return plan, true
}

// ListSuggestions returns pending suggestions, newest first.
func (e *Engine) ListSuggestions() []automation.Suggestion {
	return e.suggestions.List()
}

// DismissSuggestion removes one pending suggestion. Unknown ids are a no-op.
func (e *Engine) DismissSuggestion(ctx context.Context, id string) bool {
	if !e.suggestions.Dismiss(id) {
		return false
	}
	e.logger.Info("suggestion dismissed", "suggestion", id)
	e.persist(ctx)
	return true
}

// ListLog returns up to limit activity entries, newest first.
func (e *Engine) ListLog(limit int) []automation.LogEntry {
	return e.log.List(limit)
}

// Status reports whether a cycle is running and when the last one ran.
func (e *Engine) Status() automation.Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	st := automation.Status{IsRunning: e.running.Load()}
	if e.lastRunAt != nil {
		t := *e.lastRunAt
		st.LastRunAt = &t
	}
	return st
}

// Snapshot captures the engine's mutable state.
func (e *Engine) Snapshot() *automation.Snapshot {
	return &automation.Snapshot{
		Version:     automation.SnapshotVersion,
		SavedAt:     e.clock(),
		Plans:       e.registry.List(),
		Suggestions: e.suggestions.List(),
		Log:         e.log.List(0),
		LastRunAt:   e.Status().LastRunAt,
	}
}

// Restore loads a snapshot into the engine. It fails while a cycle runs.
func (e *Engine) Restore(snap *automation.Snapshot) error {
	if snap == nil {
		return nil
	}
	if snap.Version != automation.SnapshotVersion {
		return fmt.Errorf("engine: unsupported snapshot version %d", snap.Version)
	}
	if !e.running.CompareAndSwap(false, true) {
		return ErrCycleInProgress
	}
	defer e.running.Store(false)

	e.registry.Restore(snap.Plans)
	e.suggestions.Restore(snap.Suggestions)
	e.log.Restore(snap.Log)

	e.statusMu.Lock()
	e.lastRunAt = nil
	if snap.LastRunAt != nil {
		t := *snap.LastRunAt
		e.lastRunAt = &t
	}
	e.statusMu.Unlock()
	return nil
}

// Load restores state from the configured snapshot store, if any.
func (e *Engine) Load(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	snap, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		return nil
	}
	if err := e.Restore(snap); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	e.logger.Info("snapshot restored",
		"plans", len(snap.Plans),
		"suggestions", e.suggestions.Len(),
		"log", e.log.Len(),
	)
	return nil
}

func (e *Engine) persist(ctx context.Context) {
	if e.store == nil {
		return
	}
	e.persistMu.Lock()
	defer e.persistMu.Unlock()
	if err := e.store.Save(ctx, e.Snapshot()); err != nil {
		e.logger.Warn("persist snapshot failed", "err", err)
	}
}

func (e *Engine) notifyStatus() {
	if e.statusHook == nil {
		return
	}
	e.statusHook(e.Status())
}

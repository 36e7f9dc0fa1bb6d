package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sbenjam1n/autopilot/internal/automation"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock { return &testClock{now: now} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type staticSource struct {
	ctx automation.Context
	err error
}

func (s staticSource) Snapshot(_ context.Context, now time.Time) (automation.Context, error) {
	c := s.ctx
	c.Now = now
	return c, s.err
}

type recordingSink struct {
	mu   sync.Mutex
	got  []automation.Suggestion
	fail bool
}

func (r *recordingSink) PublishSuggestion(_ context.Context, s automation.Suggestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("sink down")
	}
	r.got = append(r.got, s)
	return nil
}

func morning(hour int) time.Time {
	return time.Date(2026, time.March, 10, hour, 0, 0, 0, time.UTC)
}

func always(automation.Plan, automation.Context) (automation.Outcome, error) {
	return automation.Outcome{Trigger: true}, nil
}

func never(automation.Plan, automation.Context) (automation.Outcome, error) {
	return automation.Outcome{}, nil
}

func testPlan(id string, ttl time.Duration) automation.Plan {
	return automation.Plan{
		ID:          id,
		Name:        "Plan " + id,
		TriggerType: automation.TriggerManual,
		ActionType:  automation.ActionNotification,
		ActionPayload: automation.ActionPayload{
			Title:    "Title " + id,
			Message:  "Message " + id,
			Priority: automation.PriorityLow,
			TTL:      ttl,
		},
		Enabled:  true,
		Category: automation.CategoryEnergy,
	}
}

// newTestEngine disables the random fallback and the system checks unless
// opts bring them back.
func newTestEngine(t *testing.T, plans []automation.Plan, src ContextSource, clock *testClock, opts ...Option) *Engine {
	t.Helper()
	reg, err := automation.NewRegistry(plans)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	base := []Option{
		WithClock(clock.Now),
		WithEvaluator(automation.NewEvaluator(automation.WithFallback(0, nil))),
		WithChecks(nil),
	}
	eng, err := New(reg, src, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng
}

func runCycle(t *testing.T, eng *Engine) CycleReport {
	t.Helper()
	report, err := eng.RunCycleNow(context.Background())
	if err != nil {
		t.Fatalf("RunCycleNow: %v", err)
	}
	return report
}

func plan(t *testing.T, eng *Engine, id string) automation.Plan {
	t.Helper()
	for _, p := range eng.ListPlans() {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("no plan %q", id)
	return automation.Plan{}
}

func countFor(items []automation.Suggestion, planID string) int {
	n := 0
	for _, s := range items {
		if s.PlanID == planID {
			n++
		}
	}
	return n
}

func TestNewRequiresCollaborators(t *testing.T) {
	reg, _ := automation.NewRegistry(nil)
	if _, err := New(nil, staticSource{}); err == nil {
		t.Error("nil registry should fail")
	}
	if _, err := New(reg, nil); err == nil {
		t.Error("nil source should fail")
	}
}

func TestMorningPlanLifecycle(t *testing.T) {
	clock := newTestClock(morning(7))
	eng := newTestEngine(t, automation.DefaultPlans(), staticSource{}, clock)

	// First cycle creates the suggestion.
	report := runCycle(t, eng)
	if len(report.Created) != 1 || report.Created[0].PlanID != "energy_001" {
		t.Fatalf("first cycle created %+v", report.Created)
	}
	if got := plan(t, eng, "energy_001").TriggerCount; got != 1 {
		t.Fatalf("TriggerCount = %d, want 1", got)
	}
	if got := countFor(eng.ListSuggestions(), "energy_001"); got != 1 {
		t.Fatalf("pending for energy_001 = %d, want 1", got)
	}
	if got := eng.ListLog(0); len(got) != 1 || got[0].PlanID != "energy_001" || got[0].Type != automation.LogSuccess {
		t.Fatalf("log after first cycle = %+v", got)
	}

	// Still pending: deduplicated, nothing logged.
	clock.Set(morning(7).Add(30 * time.Minute))
	report = runCycle(t, eng)
	if len(report.Created) != 0 || report.Deduped != 1 {
		t.Fatalf("second cycle report = %+v", report)
	}
	if got := plan(t, eng, "energy_001").TriggerCount; got != 1 {
		t.Fatalf("TriggerCount after dedup = %d, want 1", got)
	}
	if got := len(eng.ListLog(0)); got != 1 {
		t.Fatalf("log length after dedup = %d, want 1", got)
	}

	// Dismissed: the next cycle creates a fresh one.
	pending := eng.ListSuggestions()
	if !eng.DismissSuggestion(context.Background(), pending[0].ID) {
		t.Fatal("dismiss failed")
	}
	clock.Set(morning(7).Add(45 * time.Minute))
	report = runCycle(t, eng)
	if len(report.Created) != 1 {
		t.Fatalf("third cycle created %d", len(report.Created))
	}
	if report.Created[0].ID == pending[0].ID {
		t.Error("new suggestion reused the dismissed id")
	}
	p := plan(t, eng, "energy_001")
	if p.TriggerCount != 2 {
		t.Errorf("TriggerCount = %d, want 2", p.TriggerCount)
	}
	if p.LastTriggered == nil || !p.LastTriggered.Equal(clock.Now()) {
		t.Errorf("LastTriggered = %v, want %v", p.LastTriggered, clock.Now())
	}
	if got := len(eng.ListLog(0)); got != 2 {
		t.Errorf("log length = %d, want 2", got)
	}
}

func TestInactivityMessageCarriesGap(t *testing.T) {
	now := morning(11)
	last := now.AddDate(0, 0, -3)
	src := staticSource{ctx: automation.Context{Subject: &automation.Subject{
		ID: "m1", Name: "An", LastActiveAt: &last, JoinedAt: now.AddDate(0, -6, 0),
	}}}
	var plans []automation.Plan
	for _, p := range automation.DefaultPlans() {
		if p.ID == "mindset_001" {
			plans = append(plans, p)
		}
	}
	eng := newTestEngine(t, plans, src, newTestClock(now))

	report := runCycle(t, eng)
	if len(report.Created) != 1 {
		t.Fatalf("created %d suggestions, want 1", len(report.Created))
	}
	if msg := report.Created[0].Message; !strings.Contains(msg, "3") {
		t.Errorf("message %q should contain the gap length", msg)
	}
}

func TestMonotonyDedupByTitle(t *testing.T) {
	now := morning(10)
	day := 24 * time.Hour
	src := staticSource{ctx: automation.Context{Workouts: []automation.Workout{
		{Exercise: "Squat", PerformedAt: now.Add(-day)},
		{Exercise: "Squat", PerformedAt: now.Add(-2 * day)},
		{Exercise: "Squat", PerformedAt: now.Add(-3 * day)},
	}}}
	eng := newTestEngine(t, nil, src, newTestClock(now), WithChecks(automation.SystemChecks()))

	report := runCycle(t, eng)
	if len(report.Created) != 1 || report.Created[0].Title != automation.MonotonyTitle {
		t.Fatalf("first cycle created %+v", report.Created)
	}
	if report.Created[0].PlanID != automation.SystemPlanID {
		t.Errorf("system suggestion planId = %q", report.Created[0].PlanID)
	}

	report = runCycle(t, eng)
	if len(report.Created) != 0 || report.Deduped != 1 {
		t.Fatalf("second cycle report = %+v", report)
	}
	titles := 0
	for _, s := range eng.ListSuggestions() {
		if s.Title == automation.MonotonyTitle {
			titles++
		}
	}
	if titles != 1 {
		t.Errorf("pending monotony suggestions = %d, want 1", titles)
	}
	log := eng.ListLog(0)
	if len(log) != 1 || log[0].Type != automation.LogWarning || log[0].PlanID != automation.SystemPlanID {
		t.Errorf("log = %+v", log)
	}
}

func TestLogKeepsNewestHundred(t *testing.T) {
	var plans []automation.Plan
	var opts []automation.EvaluatorOption
	for i := 0; i < 105; i++ {
		p := testPlan(fmt.Sprintf("p%03d", i), 0)
		plans = append(plans, p)
		opts = append(opts, automation.WithPredicate(p.ID, always))
	}
	eng := newTestEngine(t, plans, staticSource{}, newTestClock(morning(9)),
		WithEvaluator(automation.NewEvaluator(append(opts, automation.WithFallback(0, nil))...)))

	report := runCycle(t, eng)
	if len(report.Created) != 105 {
		t.Fatalf("created %d, want 105", len(report.Created))
	}
	log := eng.ListLog(0)
	if len(log) != 100 {
		t.Fatalf("log length = %d, want 100", len(log))
	}
	if log[0].PlanID != "p104" || log[99].PlanID != "p005" {
		t.Errorf("log spans %s..%s, want p104..p005", log[0].PlanID, log[99].PlanID)
	}
	for _, e := range log {
		if e.PlanID == "p000" {
			t.Fatal("first event should have been evicted")
		}
	}
}

func TestDisabledPlansNeverFire(t *testing.T) {
	off := testPlan("off", 0)
	off.Enabled = false
	ev := automation.NewEvaluator(automation.WithFallback(1, nil), automation.WithPredicate("off", always))
	eng := newTestEngine(t, []automation.Plan{off}, staticSource{}, newTestClock(morning(9)), WithEvaluator(ev))

	for i := 0; i < 5; i++ {
		runCycle(t, eng)
	}
	if n := len(eng.ListSuggestions()); n != 0 {
		t.Errorf("disabled plan produced %d suggestions", n)
	}
	if got := plan(t, eng, "off").TriggerCount; got != 0 {
		t.Errorf("TriggerCount = %d, want 0", got)
	}

	if _, ok := eng.TogglePlan(context.Background(), "off"); !ok {
		t.Fatal("toggle failed")
	}
	runCycle(t, eng)
	if n := len(eng.ListSuggestions()); n != 1 {
		t.Errorf("re-enabled plan produced %d suggestions, want 1", n)
	}
}

func TestExpiredSlotRefillsInSameCycle(t *testing.T) {
	start := morning(9)
	clock := newTestClock(start)
	fire := true
	var mu sync.Mutex
	pred := func(automation.Plan, automation.Context) (automation.Outcome, error) {
		mu.Lock()
		defer mu.Unlock()
		return automation.Outcome{Trigger: fire}, nil
	}
	ev := automation.NewEvaluator(automation.WithFallback(0, nil), automation.WithPredicate("p", pred))
	eng := newTestEngine(t, []automation.Plan{testPlan("p", time.Hour)}, staticSource{}, clock, WithEvaluator(ev))

	first := runCycle(t, eng).Created[0]

	// Expired and not refilled.
	mu.Lock()
	fire = false
	mu.Unlock()
	clock.Set(start.Add(time.Hour))
	report := runCycle(t, eng)
	if len(report.Expired) != 1 || report.Expired[0].ID != first.ID {
		t.Fatalf("expired = %+v", report.Expired)
	}
	if n := len(eng.ListSuggestions()); n != 0 {
		t.Fatalf("pending after sweep = %d", n)
	}

	// Expired and refilled by the same cycle.
	mu.Lock()
	fire = true
	mu.Unlock()
	runCycle(t, eng)
	clock.Set(start.Add(3 * time.Hour))
	report = runCycle(t, eng)
	if len(report.Expired) != 1 || len(report.Created) != 1 {
		t.Fatalf("refill cycle report = %+v", report)
	}
	if got := plan(t, eng, "p").TriggerCount; got != 3 {
		t.Errorf("TriggerCount = %d, want 3", got)
	}
}

func TestDismissIsPrecise(t *testing.T) {
	ev := automation.NewEvaluator(automation.WithFallback(0, nil),
		automation.WithPredicate("a", always), automation.WithPredicate("b", always), automation.WithPredicate("c", always))
	eng := newTestEngine(t, []automation.Plan{testPlan("a", 0), testPlan("b", 0), testPlan("c", 0)},
		staticSource{}, newTestClock(morning(9)), WithEvaluator(ev))
	runCycle(t, eng)

	before := eng.ListSuggestions()
	target := before[1]
	if !eng.DismissSuggestion(context.Background(), target.ID) {
		t.Fatal("dismiss failed")
	}
	after := eng.ListSuggestions()
	if len(after) != len(before)-1 {
		t.Fatalf("pending %d -> %d", len(before), len(after))
	}
	j := 0
	for _, s := range before {
		if s.ID == target.ID {
			continue
		}
		if after[j] != s {
			t.Errorf("suggestion %s changed after dismissing %s", s.ID, target.ID)
		}
		j++
	}

	if eng.DismissSuggestion(context.Background(), "missing") {
		t.Error("unknown id should report false")
	}
	if _, ok := eng.TogglePlan(context.Background(), "missing"); ok {
		t.Error("unknown plan should report false")
	}
}

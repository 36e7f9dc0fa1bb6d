package automation

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Outcome is the result of evaluating one plan. Override replaces the plan's
// payload for this activation only.
type Outcome struct {
	Trigger  bool
	Override *ActionPayload
}

// Predicate decides whether a plan fires against a context snapshot.
type Predicate func(Plan, Context) (Outcome, error)

// RandSource supplies the fallback predicate's randomness.
type RandSource interface {
	Float64() float64
}

// DefaultFallbackProbability is the per-cycle chance that a plan without a
// dedicated predicate fires.
const DefaultFallbackProbability = 0.05

// Evaluator maps plan ids to predicates. Register must not race with
// Evaluate; configure the evaluator before handing it to an engine.
type Evaluator struct {
	predicates map[string]Predicate
	fallback   Predicate
}

// EvaluatorOption customizes an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithFallback sets the fallback probability and its random source. A nil
// source uses the process-wide generator; p <= 0 disables the fallback.
func WithFallback(p float64, src RandSource) EvaluatorOption {
	return func(e *Evaluator) {
		e.fallback = Chance(p, src)
	}
}

// WithPredicate installs or replaces the predicate for a plan id.
func WithPredicate(id string, pred Predicate) EvaluatorOption {
	return func(e *Evaluator) {
		e.Register(id, pred)
	}
}

// NewEvaluator returns an evaluator preloaded with the built-in predicates.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		predicates: builtinPredicates(),
		fallback:   Chance(DefaultFallbackProbability, nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register installs pred for plan id. A nil pred removes the entry so the
// plan falls back.
func (e *Evaluator) Register(id string, pred Predicate) {
	if pred == nil {
		delete(e.predicates, id)
		return
	}
	e.predicates[id] = pred
}

// Has reports whether id has a dedicated predicate.
func (e *Evaluator) Has(id string) bool {
	_, ok := e.predicates[id]
	return ok
}

// Evaluate runs the predicate for plan, or the fallback when none exists.
func (e *Evaluator) Evaluate(plan Plan, c Context) (Outcome, error) {
	if pred, ok := e.predicates[plan.ID]; ok {
		return pred(plan, c)
	}
	if e.fallback == nil {
		return Outcome{}, nil
	}
	return e.fallback(plan, c)
}

// HourWindow is a half-open range of local hours [From, Until). Until 24
// runs through midnight.
type HourWindow struct {
	From  int
	Until int
}

// Contains reports whether hour h lies in the window.
func (w HourWindow) Contains(h int) bool {
	return h >= w.From && h < w.Until
}

func (w HourWindow) String() string {
	return fmt.Sprintf("[%d,%d)", w.From, w.Until)
}

// InWindow fires while the local hour is inside w.
func InWindow(w HourWindow) Predicate {
	return func(_ Plan, c Context) (Outcome, error) {
		return Outcome{Trigger: w.Contains(c.Now.Hour())}, nil
	}
}

// AtHour fires during the given local hour.
func AtHour(hour int) Predicate {
	return func(_ Plan, c Context) (Outcome, error) {
		return Outcome{Trigger: c.Now.Hour() == hour}, nil
	}
}

// InactiveFor fires once the subject has gone threshold whole days without
// activity. render builds the message for the exact gap.
func InactiveFor(threshold int, render func(days int) string) Predicate {
	return func(p Plan, c Context) (Outcome, error) {
		if c.Subject == nil {
			return Outcome{}, nil
		}
		days, ok := InactiveDays(*c.Subject, c.Now)
		if !ok || days < threshold {
			return Outcome{}, nil
		}
		payload := p.ActionPayload
		payload.Message = render(days)
		return Outcome{Trigger: true, Override: &payload}, nil
	}
}

// InactiveDays returns the whole days between now and the subject's last
// activity, falling back to the join date.
func InactiveDays(s Subject, now time.Time) (int, bool) {
	last := s.JoinedAt
	if s.LastActiveAt != nil {
		last = *s.LastActiveAt
	}
	if last.IsZero() || last.After(now) {
		return 0, false
	}
	return int(now.Sub(last) / (24 * time.Hour)), true
}

// OnBirthday fires when the subject's date of birth falls on today. Dates
// that cannot be parsed never match.
func OnBirthday(render func(s Subject) ActionPayload) Predicate {
	return func(_ Plan, c Context) (Outcome, error) {
		if c.Subject == nil {
			return Outcome{}, nil
		}
		dob, err := ParseDate(c.Subject.DateOfBirth)
		if err != nil {
			return Outcome{}, nil
		}
		if !SameDayOfYear(dob, c.Now) {
			return Outcome{}, nil
		}
		payload := render(*c.Subject)
		return Outcome{Trigger: true, Override: &payload}, nil
	}
}

// OnAnniversary fires when today is a whole-year anniversary of the
// subject's join date.
func OnAnniversary(render func(s Subject, years int) ActionPayload) Predicate {
	return func(_ Plan, c Context) (Outcome, error) {
		if c.Subject == nil || c.Subject.JoinedAt.IsZero() {
			return Outcome{}, nil
		}
		joined := c.Subject.JoinedAt.In(c.Now.Location())
		years := c.Now.Year() - joined.Year()
		if years < 1 || !SameDayOfYear(joined, c.Now) {
			return Outcome{}, nil
		}
		payload := render(*c.Subject, years)
		return Outcome{Trigger: true, Override: &payload}, nil
	}
}

// AfterWorkout fires when the newest recorded workout happened within d.
func AfterWorkout(d time.Duration) Predicate {
	return func(_ Plan, c Context) (Outcome, error) {
		if len(c.Workouts) == 0 {
			return Outcome{}, nil
		}
		age := c.Now.Sub(c.Workouts[0].PerformedAt)
		return Outcome{Trigger: age >= 0 && age <= d}, nil
	}
}

// Chance fires with probability p on each evaluation.
func Chance(p float64, src RandSource) Predicate {
	if p <= 0 {
		return nil
	}
	if src == nil {
		src = globalRand{}
	}
	return func(Plan, Context) (Outcome, error) {
		return Outcome{Trigger: src.Float64() < p}, nil
	}
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"2006/01/02",
	"02-01-2006",
	time.RFC3339,
}

// ParseDate accepts the date formats members commonly enter.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("parse date: empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date: unrecognized format %q", raw)
}

// SameDayOfYear compares day and month only.
func SameDayOfYear(a, b time.Time) bool {
	return a.Day() == b.Day() && a.Month() == b.Month()
}

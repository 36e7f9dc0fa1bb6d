package automation

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func at(hour, minute int) time.Time {
	return time.Date(2026, time.March, 10, hour, minute, 0, 0, time.UTC)
}

func planByID(t *testing.T, id string) Plan {
	t.Helper()
	for _, p := range DefaultPlans() {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("no built-in plan %q", id)
	return Plan{}
}

func TestHourWindowContains(t *testing.T) {
	tests := []struct {
		w    HourWindow
		hour int
		want bool
	}{
		{MorningWindow, 5, false},
		{MorningWindow, 6, true},
		{MorningWindow, 8, true},
		{MorningWindow, 9, false},
		{BedtimeWindow, 21, false},
		{BedtimeWindow, 22, true},
		{BedtimeWindow, 23, true},
		{BedtimeWindow, 0, false},
	}

	for _, tt := range tests {
		if got := tt.w.Contains(tt.hour); got != tt.want {
			t.Errorf("%s.Contains(%d) = %v, want %v", tt.w, tt.hour, got, tt.want)
		}
	}
}

func TestBuiltinTimePredicates(t *testing.T) {
	ev := NewEvaluator(WithFallback(0, nil))
	tests := []struct {
		plan string
		now  time.Time
		want bool
	}{
		{"energy_001", at(7, 0), true},
		{"energy_001", at(9, 0), false},
		{"energy_002", at(22, 30), true},
		{"energy_002", at(21, 59), false},
		{"training_001", at(15, 10), true},
		{"training_001", at(16, 0), false},
		{"nutrition_001", at(14, 0), true},
		{"nutrition_002", at(19, 45), true},
		{"nutrition_002", at(20, 0), false},
	}

	for _, tt := range tests {
		out, err := ev.Evaluate(planByID(t, tt.plan), Context{Now: tt.now})
		if err != nil {
			t.Fatalf("Evaluate(%s): %v", tt.plan, err)
		}
		if out.Trigger != tt.want {
			t.Errorf("Evaluate(%s) at %s = %v, want %v", tt.plan, tt.now.Format("15:04"), out.Trigger, tt.want)
		}
	}
}

func TestInactivityInterpolatesGap(t *testing.T) {
	now := at(10, 0)
	last := now.Add(-72 * time.Hour)
	c := Context{Now: now, Subject: &Subject{ID: "m1", Name: "An", LastActiveAt: &last, JoinedAt: now.AddDate(-1, 0, 0)}}

	out, err := NewEvaluator().Evaluate(planByID(t, "mindset_001"), c)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !out.Trigger {
		t.Fatal("expected trigger after exactly 3 idle days")
	}
	if out.Override == nil || !strings.Contains(out.Override.Message, "3") {
		t.Fatalf("override message should mention the gap, got %+v", out.Override)
	}
	if out.Override.Title != planByID(t, "mindset_001").ActionPayload.Title {
		t.Errorf("override should keep the plan title, got %q", out.Override.Title)
	}

	last = now.Add(-71 * time.Hour)
	out, _ = NewEvaluator().Evaluate(planByID(t, "mindset_001"), c)
	if out.Trigger {
		t.Error("2 whole idle days should not trigger")
	}
}

func TestInactiveDaysFallsBackToJoinDate(t *testing.T) {
	now := at(10, 0)
	tests := []struct {
		name   string
		s      Subject
		want   int
		wantOk bool
	}{
		{"join date only", Subject{JoinedAt: now.Add(-5 * 24 * time.Hour)}, 5, true},
		{"no dates", Subject{}, 0, false},
		{"future join", Subject{JoinedAt: now.Add(time.Hour)}, 0, false},
	}

	for _, tt := range tests {
		got, ok := InactiveDays(tt.s, now)
		if got != tt.want || ok != tt.wantOk {
			t.Errorf("%s: InactiveDays = (%d, %v), want (%d, %v)", tt.name, got, ok, tt.want, tt.wantOk)
		}
	}
}

func TestBirthdayIgnoresMalformedDates(t *testing.T) {
	ev := NewEvaluator()
	plan := planByID(t, "mindset_002")
	now := at(9, 0)

	for _, dob := range []string{"", "not a date", "1990-13-45", "10/03"} {
		out, err := ev.Evaluate(plan, Context{Now: now, Subject: &Subject{Name: "An", DateOfBirth: dob}})
		if err != nil {
			t.Errorf("dob %q: unexpected error %v", dob, err)
		}
		if out.Trigger {
			t.Errorf("dob %q: malformed date should not trigger", dob)
		}
	}

	out, err := ev.Evaluate(plan, Context{Now: now, Subject: &Subject{Name: "An", DateOfBirth: "10/03/1995"}})
	if err != nil || !out.Trigger {
		t.Fatalf("birthday on 10 March: trigger=%v err=%v", out.Trigger, err)
	}
	if !strings.Contains(out.Override.Title, "An") {
		t.Errorf("birthday title should greet the member, got %q", out.Override.Title)
	}
}

func TestAnniversaryCountsYears(t *testing.T) {
	now := at(9, 0)
	ev := NewEvaluator()
	plan := planByID(t, "mindset_003")

	out, _ := ev.Evaluate(plan, Context{Now: now, Subject: &Subject{Name: "An", JoinedAt: now.AddDate(-2, 0, 0)}})
	if !out.Trigger || !strings.Contains(out.Override.Message, "2 năm") {
		t.Fatalf("two-year anniversary: %+v", out)
	}

	out, _ = ev.Evaluate(plan, Context{Now: now, Subject: &Subject{Name: "An", JoinedAt: now.Add(-24 * time.Hour)}})
	if out.Trigger {
		t.Error("join date yesterday should not trigger")
	}
}

func TestAfterWorkout(t *testing.T) {
	now := at(18, 0)
	pred := AfterWorkout(2 * time.Hour)
	tests := []struct {
		name     string
		workouts []Workout
		want     bool
	}{
		{"none", nil, false},
		{"recent", []Workout{{Exercise: "Squat", PerformedAt: now.Add(-30 * time.Minute)}}, true},
		{"stale", []Workout{{Exercise: "Squat", PerformedAt: now.Add(-3 * time.Hour)}}, false},
	}

	for _, tt := range tests {
		out, _ := pred(Plan{}, Context{Now: now, Workouts: tt.workouts})
		if out.Trigger != tt.want {
			t.Errorf("%s: trigger = %v, want %v", tt.name, out.Trigger, tt.want)
		}
	}
}

func TestFallbackIsInjectable(t *testing.T) {
	plan := planByID(t, "energy_003")
	c := Context{Now: at(12, 0)}

	out, _ := NewEvaluator(WithFallback(0.05, fixedRand(0.01))).Evaluate(plan, c)
	if !out.Trigger {
		t.Error("roll below probability should trigger")
	}
	out, _ = NewEvaluator(WithFallback(0.05, fixedRand(0.9))).Evaluate(plan, c)
	if out.Trigger {
		t.Error("roll above probability should not trigger")
	}
	out, _ = NewEvaluator(WithFallback(0, fixedRand(0))).Evaluate(plan, c)
	if out.Trigger {
		t.Error("disabled fallback should never trigger")
	}
}

func TestRegisterOverridesAndRemoves(t *testing.T) {
	boom := errors.New("boom")
	ev := NewEvaluator(WithFallback(0, nil), WithPredicate("energy_001", func(Plan, Context) (Outcome, error) {
		return Outcome{}, boom
	}))

	if _, err := ev.Evaluate(planByID(t, "energy_001"), Context{Now: at(7, 0)}); !errors.Is(err, boom) {
		t.Fatalf("expected registered predicate error, got %v", err)
	}

	ev.Register("energy_001", nil)
	if ev.Has("energy_001") {
		t.Fatal("nil predicate should remove the entry")
	}
	out, err := ev.Evaluate(planByID(t, "energy_001"), Context{Now: at(7, 0)})
	if err != nil || out.Trigger {
		t.Errorf("removed predicate should use the disabled fallback, got %+v %v", out, err)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		wantDay int
		wantMon time.Month
		wantErr bool
	}{
		{"1995-06-15", 15, time.June, false},
		{"15/06/1995", 15, time.June, false},
		{"5/6/1995", 5, time.June, false},
		{"1995/06/15", 15, time.June, false},
		{"15-06-1995", 15, time.June, false},
		{"1995-06-15T08:00:00Z", 15, time.June, false},
		{"  1995-06-15 ", 15, time.June, false},
		{"", 0, 0, true},
		{"June 15", 0, 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (got.Day() != tt.wantDay || got.Month() != tt.wantMon) {
			t.Errorf("ParseDate(%q) = %s, want day %d month %s", tt.in, got, tt.wantDay, tt.wantMon)
		}
	}
}

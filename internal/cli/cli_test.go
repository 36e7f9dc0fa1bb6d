package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sbenjam1n/autopilot/internal/automation"
	"github.com/sbenjam1n/autopilot/internal/engine"
	"github.com/sbenjam1n/autopilot/internal/queue"
)

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	reg, err := automation.NewRegistry(automation.DefaultPlans())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	now := time.Date(2026, time.March, 10, 7, 0, 0, 0, time.UTC)
	eng, err := engine.New(reg, emptySource{},
		engine.WithClock(func() time.Time { return now }),
		engine.WithEvaluator(automation.NewEvaluator(automation.WithFallback(0, nil))),
		engine.WithChecks(nil),
	)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return eng
}

func TestCommandHandler(t *testing.T) {
	eng := testEngine(t)
	handle := commandHandler(eng)
	ctx := context.Background()

	if err := handle(ctx, queue.Command{Kind: queue.CommandRunCycle}); err != nil {
		t.Fatalf("run_cycle: %v", err)
	}
	pending := eng.ListSuggestions()
	if len(pending) != 1 {
		t.Fatalf("pending after run_cycle = %d", len(pending))
	}

	if err := handle(ctx, queue.Command{Kind: queue.CommandDismissSuggestion, Target: pending[0].ID}); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if len(eng.ListSuggestions()) != 0 {
		t.Error("dismiss command did not remove the suggestion")
	}

	if err := handle(ctx, queue.Command{Kind: queue.CommandTogglePlan, Target: "energy_001"}); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	for _, p := range eng.ListPlans() {
		if p.ID == "energy_001" && p.Enabled {
			t.Error("toggle command did not disable the plan")
		}
	}

	for _, c := range []queue.Command{
		{Kind: queue.CommandTogglePlan, Target: "missing"},
		{Kind: queue.CommandDismissSuggestion, Target: "missing"},
		{Kind: "reboot"},
	} {
		if err := handle(ctx, c); err == nil {
			t.Errorf("%s %q should fail", c.Kind, c.Target)
		}
	}
}

func TestRenderers(t *testing.T) {
	eng := testEngine(t)
	report, err := eng.RunCycleNow(context.Background())
	if err != nil {
		t.Fatalf("RunCycleNow: %v", err)
	}

	var buf bytes.Buffer
	renderPlans(&buf, eng.ListPlans())
	renderSuggestions(&buf, eng.ListSuggestions())
	renderLog(&buf, eng.ListLog(0))
	renderStatus(&buf, eng.Status(), time.Date(2026, time.March, 10, 7, 1, 0, 0, time.UTC))
	report.TimedOut = true
	renderReport(&buf, report)
	out := buf.String()

	for _, want := range []string{
		"energy_001", "training_003", "triggered 1×",
		"☀️ Khởi động ngày mới", "plan=energy_001",
		"Created suggestion",
		"Last cycle: 2026-03-10 07:00 (1m0s ago)",
		"1 created", "deadline",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	renderSuggestions(&buf, nil)
	renderLog(&buf, nil)
	if !strings.Contains(buf.String(), "(none)") || !strings.Contains(buf.String(), "(empty)") {
		t.Errorf("empty output:\n%s", buf.String())
	}
}

func TestDashboardActions(t *testing.T) {
	now := time.Date(2026, time.March, 10, 7, 0, 0, 0, time.UTC)
	data := dashboardData{
		plans:       automation.DefaultPlans(),
		suggestions: []automation.Suggestion{{ID: "s1", Title: "first"}, {ID: "s2", Title: "second"}},
	}
	var sent []queue.Command
	handle := func(_ context.Context, c queue.Command) error {
		sent = append(sent, c)
		return nil
	}
	var m tea.Model = newDashboardModel(func() dashboardData { return data }, handle, func() time.Time { return now })

	press := func(k string) tea.Cmd {
		var msg tea.KeyMsg
		switch k {
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		var cmd tea.Cmd
		m, cmd = m.Update(msg)
		return cmd
	}

	m, _ = m.Update(dataMsg(data))
	press("j")
	cmd := press("d")
	if cmd == nil {
		t.Fatal("dismiss produced no command")
	}
	m, _ = m.Update(cmd())
	if len(sent) != 1 || sent[0].Kind != queue.CommandDismissSuggestion || sent[0].Target != "s2" {
		t.Fatalf("sent = %+v", sent)
	}
	if !strings.Contains(m.View(), "dismissed second") {
		t.Errorf("view should report the action:\n%s", m.View())
	}

	// Toggle only applies on the plans tab.
	if cmd := press("t"); cmd != nil {
		t.Error("toggle on the suggestions tab should be ignored")
	}
	press("2")
	cmd = press("t")
	if cmd == nil {
		t.Fatal("toggle produced no command")
	}
	cmd()
	if sent[1].Kind != queue.CommandTogglePlan || sent[1].Target != data.plans[0].ID {
		t.Errorf("toggle sent %+v", sent[1])
	}

	press("tab")
	if !strings.Contains(m.View(), "[3:Log]") {
		t.Errorf("tab should move to the log view:\n%s", m.View())
	}
	if cmd := press("q"); cmd == nil {
		t.Error("q should quit")
	}
}

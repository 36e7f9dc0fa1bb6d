package automation

import (
	"strings"
	"testing"
	"time"
)

func TestNewRegistryRejectsBadPlans(t *testing.T) {
	valid := planByID(t, "energy_001")

	tests := []struct {
		name    string
		mutate  func(p *Plan)
		wantErr string
	}{
		{"empty id", func(p *Plan) { p.ID = " " }, "id is required"},
		{"reserved id", func(p *Plan) { p.ID = SystemPlanID }, "reserved"},
		{"no name", func(p *Plan) { p.Name = "" }, "name is required"},
		{"bad trigger", func(p *Plan) { p.TriggerType = "cron" }, "trigger type"},
		{"bad action", func(p *Plan) { p.ActionType = "email" }, "action type"},
		{"bad category", func(p *Plan) { p.Category = "sleep" }, "category"},
		{"no title", func(p *Plan) { p.ActionPayload.Title = "" }, "title"},
		{"bad priority", func(p *Plan) { p.ActionPayload.Priority = "urgent" }, "priority"},
		{"negative ttl", func(p *Plan) { p.ActionPayload.TTL = -time.Minute }, "ttl"},
	}

	for _, tt := range tests {
		p := valid
		tt.mutate(&p)
		_, err := NewRegistry([]Plan{p})
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("%s: error = %v, want containing %q", tt.name, err, tt.wantErr)
		}
	}

	if _, err := NewRegistry([]Plan{valid, valid}); err == nil {
		t.Error("duplicate ids should be rejected")
	}
}

func TestRegistryPreservesOrder(t *testing.T) {
	plans := DefaultPlans()
	r, err := NewRegistry(plans)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	got := r.List()
	if len(got) != len(plans) {
		t.Fatalf("List() returned %d plans, want %d", len(got), len(plans))
	}
	for i := range plans {
		if got[i].ID != plans[i].ID {
			t.Errorf("List()[%d] = %s, want %s", i, got[i].ID, plans[i].ID)
		}
	}
}

func TestRegistryToggle(t *testing.T) {
	r, _ := NewRegistry(DefaultPlans())

	p, ok := r.Toggle("energy_001")
	if !ok || p.Enabled {
		t.Fatalf("Toggle(energy_001) = (%v, %v), want disabled", p.Enabled, ok)
	}
	p, _ = r.Get("energy_001")
	if p.Enabled {
		t.Error("toggle should persist in the registry")
	}
	p, _ = r.Toggle("energy_001")
	if !p.Enabled {
		t.Error("second toggle should re-enable")
	}

	before := r.List()
	if _, ok := r.Toggle("missing"); ok {
		t.Error("Toggle(missing) should report false")
	}
	after := r.List()
	for i := range before {
		if before[i].Enabled != after[i].Enabled {
			t.Errorf("Toggle(missing) changed %s", before[i].ID)
		}
	}
}

func TestRegistryRecordTrigger(t *testing.T) {
	r, _ := NewRegistry(DefaultPlans())
	now := at(7, 0)

	r.RecordTrigger("energy_001", now)
	r.RecordTrigger("energy_001", now.Add(time.Hour))

	p, _ := r.Get("energy_001")
	if p.TriggerCount != 2 {
		t.Errorf("TriggerCount = %d, want 2", p.TriggerCount)
	}
	if p.LastTriggered == nil || !p.LastTriggered.Equal(now.Add(time.Hour)) {
		t.Errorf("LastTriggered = %v, want %v", p.LastTriggered, now.Add(time.Hour))
	}
	if r.RecordTrigger("missing", now) {
		t.Error("RecordTrigger(missing) should report false")
	}

	// Returned plans are copies.
	*p.LastTriggered = time.Time{}
	again, _ := r.Get("energy_001")
	if again.LastTriggered.IsZero() {
		t.Error("mutating a returned plan leaked into the registry")
	}
}

func TestRegistryRestore(t *testing.T) {
	r, _ := NewRegistry(DefaultPlans())
	when := at(8, 0)

	r.Restore([]Plan{
		{ID: "energy_001", Name: "renamed", Enabled: false, TriggerCount: 4, LastTriggered: &when},
		{ID: "mindset_001", Enabled: true, TriggerCount: -3},
		{ID: "retired_plan", Enabled: true, TriggerCount: 9},
	})

	p, _ := r.Get("energy_001")
	if p.Enabled || p.TriggerCount != 4 || p.LastTriggered == nil || !p.LastTriggered.Equal(when) {
		t.Errorf("energy_001 restored as %+v", p)
	}
	if p.Name == "renamed" {
		t.Error("restore must not change plan definitions")
	}
	p, _ = r.Get("mindset_001")
	if p.TriggerCount != 0 {
		t.Errorf("negative counter should clamp to 0, got %d", p.TriggerCount)
	}
	if _, ok := r.Get("retired_plan"); ok {
		t.Error("unknown saved plans should be dropped")
	}
	if r.Len() != len(DefaultPlans()) {
		t.Errorf("Len() = %d after restore", r.Len())
	}
}

package automation

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Registry owns the automation plans in a stable order. Only Enabled and the
// trigger counters change after construction.
type Registry struct {
	mu    sync.RWMutex
	order []string
	plans map[string]*Plan
}

// NewRegistry validates plans and returns a registry preserving their order.
func NewRegistry(plans []Plan) (*Registry, error) {
	r := &Registry{plans: make(map[string]*Plan, len(plans))}
	for _, p := range plans {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.plans[p.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate plan id %q", p.ID)
		}
		plan := p
		r.plans[p.ID] = &plan
		r.order = append(r.order, p.ID)
	}
	return r, nil
}

// Validate checks that a plan is well formed.
func (p Plan) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("plan: id is required")
	}
	if p.ID == SystemPlanID || p.ID == SystemCorePlanID {
		return fmt.Errorf("plan %s: id is reserved", p.ID)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("plan %s: name is required", p.ID)
	}
	if !p.TriggerType.Valid() {
		return fmt.Errorf("plan %s: unknown trigger type %q", p.ID, p.TriggerType)
	}
	if !p.ActionType.Valid() {
		return fmt.Errorf("plan %s: unknown action type %q", p.ID, p.ActionType)
	}
	if !p.Category.Valid() {
		return fmt.Errorf("plan %s: unknown category %q", p.ID, p.Category)
	}
	if strings.TrimSpace(p.ActionPayload.Title) == "" {
		return fmt.Errorf("plan %s: payload title is required", p.ID)
	}
	if !p.ActionPayload.Priority.Valid() {
		return fmt.Errorf("plan %s: unknown priority %q", p.ID, p.ActionPayload.Priority)
	}
	if p.ActionPayload.TTL < 0 {
		return fmt.Errorf("plan %s: negative ttl", p.ID)
	}
	return nil
}

// List returns copies of every plan in registry order.
func (r *Registry) List() []Plan {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plan, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.plans[id].clone())
	}
	return out
}

// Get returns a copy of the plan with the given id.
func (r *Registry) Get(id string) (Plan, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[id]
	if !ok {
		return Plan{}, false
	}
	return p.clone(), true
}

// Toggle flips a plan's Enabled flag and returns the updated plan. Unknown
// ids are a no-op and report false.
func (r *Registry) Toggle(id string) (Plan, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return Plan{}, false
	}
	p.Enabled = !p.Enabled
	return p.clone(), true
}

// RecordTrigger counts one successful activation of a plan.
func (r *Registry) RecordTrigger(id string, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return false
	}
	p.TriggerCount++
	t := at
	p.LastTriggered = &t
	return true
}

// Len returns the number of registered plans.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Restore applies persisted runtime fields onto the registered plans.
// Definitions stay as registered; plans absent from the registry are dropped
// and counters never move backwards past zero.
func (r *Registry) Restore(saved []Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range saved {
		p, ok := r.plans[s.ID]
		if !ok {
			continue
		}
		p.Enabled = s.Enabled
		p.TriggerCount = max(s.TriggerCount, 0)
		p.LastTriggered = nil
		if s.LastTriggered != nil {
			t := *s.LastTriggered
			p.LastTriggered = &t
		}
	}
}

func (p *Plan) clone() Plan {
	out := *p
	if p.LastTriggered != nil {
		t := *p.LastTriggered
		out.LastTriggered = &t
	}
	return out
}

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sbenjam1n/autopilot/internal/automation"
)

// CycleReport summarizes one evaluation pass.
type CycleReport struct {
	StartedAt time.Time
	Expired   []automation.Suggestion
	Created   []automation.Suggestion
	Deduped   int
	Failures  int
	TimedOut  bool
}

// RunCycleNow runs one cycle immediately, subject to the same guard as the
// scheduler.
func (e *Engine) RunCycleNow(ctx context.Context) (CycleReport, error) {
	return e.RunCycle(ctx)
}

// RunCycle sweeps expired suggestions, evaluates every enabled plan and the
// system checks, and records new suggestions. A cycle requested while
// another is running returns ErrCycleInProgress without touching state.
func (e *Engine) RunCycle(ctx context.Context) (CycleReport, error) {
	if !e.running.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleInProgress
	}
	now := e.clock()
	report := CycleReport{StartedAt: now}
	e.notifyStatus()
	defer func() {
		e.statusMu.Lock()
		e.lastRunAt = &now
		e.statusMu.Unlock()
		e.persist(context.WithoutCancel(ctx))
		e.running.Store(false)
		e.notifyStatus()
	}()

	report.Expired = e.suggestions.SweepExpired(now)

	cycleCtx := ctx
	if e.cycleTimeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, e.cycleTimeout)
		defer cancel()
	}

	snapshot, err := e.source.Snapshot(cycleCtx, now)
	if err != nil {
		report.Failures++
		e.systemWarning(now, fmt.Sprintf("Cycle aborted: context snapshot failed: %v", err))
		e.logger.Warn("context snapshot failed", "err", err)
		return report, fmt.Errorf("load context: %w", err)
	}
	snapshot.Now = now

	for _, plan := range e.registry.List() {
		if !plan.Enabled {
			continue
		}
		if e.deadlineExceeded(cycleCtx, now, &report) {
			break
		}
		e.evaluatePlan(ctx, plan, snapshot, &report)
	}
	for _, check := range e.checks {
		if e.deadlineExceeded(cycleCtx, now, &report) {
			break
		}
		e.runCheck(ctx, check, snapshot, &report)
	}

	e.logger.Debug("cycle complete",
		"expired", len(report.Expired),
		"created", len(report.Created),
		"deduped", report.Deduped,
		"failures", report.Failures,
	)
	return report, nil
}

func (e *Engine) evaluatePlan(ctx context.Context, plan automation.Plan, c automation.Context, report *CycleReport) {
	outcome, err := guard(func() (automation.Outcome, error) {
		return e.evaluator.Evaluate(plan, c)
	})
	if err != nil {
		report.Failures++
		e.log.Append(automation.LogEntry{
			PlanID:    plan.ID,
			PlanName:  plan.Name,
			Timestamp: c.Now,
			Message:   fmt.Sprintf("Evaluation failed: %v", err),
			Type:      automation.LogWarning,
		})
		e.logger.Warn("plan evaluation failed", "plan", plan.ID, "err", err)
		return
	}
	if !outcome.Trigger {
		return
	}
	payload := plan.ActionPayload
	if outcome.Override != nil {
		payload = *outcome.Override
	}
	candidate := automation.NewSuggestion(plan.ID, automation.PlanKey(plan.ID), payload, c.Now)
	stored, ok := e.suggestions.Add(candidate)
	if !ok {
		report.Deduped++
		return
	}
	e.registry.RecordTrigger(plan.ID, c.Now)
	e.log.Append(automation.LogEntry{
		PlanID:    plan.ID,
		PlanName:  plan.Name,
		Timestamp: c.Now,
		Message:   fmt.Sprintf("Created suggestion %q", stored.Title),
		Type:      automation.LogSuccess,
	})
	report.Created = append(report.Created, stored)
	e.publish(ctx, stored)
}

func (e *Engine) runCheck(ctx context.Context, check automation.Check, c automation.Context, report *CycleReport) {
	var payload automation.ActionPayload
	fired, err := guard(func() (bool, error) {
		p, ok, err := check.Run(c)
		payload = p
		return ok, err
	})
	if err != nil {
		report.Failures++
		e.log.Append(automation.LogEntry{
			PlanID:    automation.SystemPlanID,
			PlanName:  check.Name,
			Timestamp: c.Now,
			Message:   fmt.Sprintf("Check %s failed: %v", check.ID, err),
			Type:      automation.LogWarning,
		})
		e.logger.Warn("system check failed", "check", check.ID, "err", err)
		return
	}
	if !fired {
		return
	}
	candidate := automation.NewSuggestion(automation.SystemPlanID, automation.TitleKey(payload.Title), payload, c.Now)
	stored, ok := e.suggestions.Add(candidate)
	if !ok {
		report.Deduped++
		return
	}
	e.log.Append(automation.LogEntry{
		PlanID:    automation.SystemPlanID,
		PlanName:  check.Name,
		Timestamp: c.Now,
		Message:   stored.Message,
		Type:      automation.LogWarning,
	})
	report.Created = append(report.Created, stored)
	e.publish(ctx, stored)
}

func (e *Engine) deadlineExceeded(ctx context.Context, now time.Time, report *CycleReport) bool {
	if ctx.Err() == nil {
		return false
	}
	if !report.TimedOut {
		report.TimedOut = true
		e.systemWarning(now, fmt.Sprintf("Cycle stopped early: %v", ctx.Err()))
		e.logger.Warn("cycle deadline exceeded", "err", ctx.Err())
	}
	return true
}

func (e *Engine) systemWarning(now time.Time, msg string) {
	e.log.Append(automation.LogEntry{
		PlanID:    automation.SystemCorePlanID,
		PlanName:  automation.SystemCoreName,
		Timestamp: now,
		Message:   msg,
		Type:      automation.LogWarning,
	})
}

func (e *Engine) publish(ctx context.Context, s automation.Suggestion) {
	if e.sink == nil {
		return
	}
	if err := e.sink.PublishSuggestion(ctx, s); err != nil {
		e.logger.Warn("publish suggestion failed", "suggestion", s.ID, "plan", s.PlanID, "err", err)
	}
}

// guard converts a panic inside fn into an error.
func guard[T any](fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			out = zero
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

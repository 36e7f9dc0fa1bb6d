package engine

import (
	"context"
	"errors"
	"time"
)

// Start runs the first cycle after the startup delay and then one cycle per
// interval until Stop is called or ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	if e.cancel != nil {
		return ErrAlreadyStarted
	}
	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.loop(loopCtx, e.done)
	e.logger.Info("scheduler started", "startup_delay", e.startupDelay, "interval", e.interval)
	return nil
}

// Stop cancels the pending startup delay and the interval, then waits for
// an in-flight cycle to finish.
func (e *Engine) Stop() {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel = nil
	e.done = nil
	e.logger.Info("scheduler stopped")
}

func (e *Engine) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	delay := time.NewTimer(e.startupDelay)
	defer delay.Stop()
	select {
	case <-ctx.Done():
		return
	case <-delay.C:
	}
	e.tick(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	report, err := e.RunCycle(ctx)
	switch {
	case errors.Is(err, ErrCycleInProgress):
		e.logger.Debug("tick skipped: cycle in progress")
	case err != nil:
		e.logger.Warn("cycle failed", "err", err)
	default:
		e.logger.Info("cycle finished",
			"created", len(report.Created),
			"expired", len(report.Expired),
			"failures", report.Failures,
			"timed_out", report.TimedOut,
		)
	}
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/ecswait/internal/lister"
	"github.com/me/ecswait/internal/sensor"
	"github.com/me/ecswait/internal/store"
	"github.com/me/ecswait/pkg/model"
)

// Config holds scheduler configuration.
type Config struct {
	TickInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{TickInterval: 2 * time.Second}
}

// Loop implements the Scheduler interface. Every tick it checks the
// WAITING waits whose interval has elapsed and records the outcome.
type Loop struct {
	store  store.Store
	lister lister.TaskLister
	config Config
	logger *slog.Logger
	now    func() time.Time
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewLoop creates a new scheduler loop.
func NewLoop(st store.Store, l lister.TaskLister, cfg Config, logger *slog.Logger) *Loop {
	return &Loop{
		store:  st,
		lister: l,
		config: cfg,
		logger: logger.With("component", "scheduler"),
		now:    time.Now,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the scheduling loop. Blocks until ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	l.logger.Info("scheduler started", "tick_interval", l.config.TickInterval)
	ticker := time.NewTicker(l.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scheduler stopping (context cancelled)")
			close(l.doneCh)
			return ctx.Err()
		case <-l.stopCh:
			l.logger.Info("scheduler stopping (stop called)")
			close(l.doneCh)
			return nil
		case <-ticker.C:
			if err := l.Tick(ctx); err != nil {
				l.logger.Error("tick error", "error", err)
			}
		}
	}
}

// Stop gracefully shuts down the scheduler and waits for the current tick to finish.
func (l *Loop) Stop() error {
	close(l.stopCh)
	<-l.doneCh
	return nil
}

// Tick runs a single scheduling iteration.
func (l *Loop) Tick(ctx context.Context) error {
	waiting, err := l.store.GetWaitsByState(ctx, model.WaitStateWaiting)
	if err != nil {
		return fmt.Errorf("load waiting: %w", err)
	}

	for _, w := range waiting {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !w.Due(l.now()) {
			continue
		}
		if err := l.pollWait(ctx, w); err != nil {
			l.logger.Error("poll wait", "wait_id", w.ID, "error", err)
		}
	}
	return nil
}

// pollWait runs one completion check for w and persists the outcome.
func (l *Loop) pollWait(ctx context.Context, w *model.Wait) error {
	poller := sensor.NewWithFilter(w.Filter, l.lister, l.logger)
	decision := poller.Check(ctx)

	now := l.now().UTC()
	w.Polls++
	w.LastCount = decision.Count
	w.LastPolledAt = &now

	next := model.WaitStateFor(decision.State)
	switch decision.State {
	case model.DecisionFailed:
		w.Error = decision.Message()
	case model.DecisionPending:
		if deadline := w.Deadline(); !deadline.IsZero() && now.Add(w.Interval).After(deadline) {
			timeoutErr := &model.TimeoutError{
				Cluster:   w.Cluster,
				Timeout:   w.Timeout,
				Polls:     w.Polls,
				LastCount: w.LastCount,
			}
			w.Error = timeoutErr.Error()
			next = model.WaitStateTimedOut
			if w.SoftFail {
				next = model.WaitStateSkipped
			}
		}
	}

	from := w.State
	if next != model.WaitStateWaiting {
		if !from.CanTransitionTo(next) {
			return &model.InvalidTransitionError{Entity: "wait", ID: w.ID, From: string(from), To: string(next)}
		}
		w.State = next
		w.CompletedAt = &now
	}

	// The wait may have been cancelled while the check was in flight.
	err := l.store.UpdateWait(ctx, w, from)
	if errors.Is(err, store.ErrStateConflict) || errors.Is(err, store.ErrNotFound) {
		l.logger.Debug("wait left WAITING during check", "wait_id", w.ID, "dropped", next)
		return nil
	}
	if err != nil {
		return err
	}
	if next != model.WaitStateWaiting {
		l.logger.Info("wait finished", "wait_id", w.ID, "cluster", w.Cluster, "state", next, "polls", w.Polls)
	}
	return nil
}

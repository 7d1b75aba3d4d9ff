package sensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/ecswait/pkg/model"
)

// CheckFunc is a single completion check. (*Poller).Check satisfies it.
type CheckFunc func(ctx context.Context) model.Decision

// Clock abstracts time for PollUntil.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Options configures PollUntil.
type Options struct {
	Interval time.Duration // time between checks
	Timeout  time.Duration // overall deadline; 0 disables it
	SoftFail bool          // report a timeout as model.ErrSkipped
	Clock    Clock         // defaults to the wall clock
	Logger   *slog.Logger  // optional
}

// DefaultOptions returns the usual sensor cadence: poll every minute for
// up to a week.
func DefaultOptions() Options {
	return Options{
		Interval: 60 * time.Second,
		Timeout:  7 * 24 * time.Hour,
	}
}

// Result describes a finished PollUntil run.
type Result struct {
	Polls   int
	Elapsed time.Duration
	Last    model.Decision
}

// PollUntil calls check immediately and then once per Interval until it
// returns a terminal decision. It returns nil on DecisionComplete and the
// decision's error on DecisionFailed. If the next check would start after
// the deadline it stops with a *model.TimeoutError (wrapped in
// model.ErrSkipped when SoftFail is set). Cancelling ctx stops the loop
// between checks; an in-flight check is left to the lister.
func PollUntil(ctx context.Context, check CheckFunc, opts Options) (Result, error) {
	if opts.Interval <= 0 {
		return Result{}, fmt.Errorf("poll interval must be positive, got %s", opts.Interval)
	}
	if opts.Timeout < 0 {
		return Result{}, fmt.Errorf("poll timeout must not be negative, got %s", opts.Timeout)
	}
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	start := clock.Now()
	var res Result

	for {
		res.Last = check(ctx)
		res.Polls++
		res.Elapsed = clock.Now().Sub(start)

		switch res.Last.State {
		case model.DecisionComplete:
			logger.Info("cluster drained", "cluster", res.Last.Cluster, "polls", res.Polls, "elapsed", res.Elapsed)
			return res, nil
		case model.DecisionFailed:
			return res, res.Last.Err
		}

		if opts.Timeout > 0 && res.Elapsed+opts.Interval > opts.Timeout {
			timeoutErr := &model.TimeoutError{
				Cluster:   res.Last.Cluster,
				Timeout:   opts.Timeout,
				Polls:     res.Polls,
				LastCount: res.Last.Count,
			}
			if opts.SoftFail {
				logger.Warn("wait skipped after timeout", "cluster", res.Last.Cluster, "polls", res.Polls)
				return res, fmt.Errorf("%w: %w", model.ErrSkipped, timeoutErr)
			}
			return res, timeoutErr
		}

		logger.Debug("tasks still running", "cluster", res.Last.Cluster, "count", res.Last.Count, "next_poll_in", opts.Interval)

		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-clock.After(opts.Interval):
		}
	}
}

// IsTimeout reports whether err came from a PollUntil deadline, soft or
// hard.
func IsTimeout(err error) bool {
	var te *model.TimeoutError
	return errors.As(err, &te)
}

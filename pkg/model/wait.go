package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wait is a persisted request to block until a cluster has no matching
// tasks. The host scheduler owns its polling cadence and deadline.
type Wait struct {
	ID           string            `json:"id"`
	Cluster      string            `json:"cluster"`
	Filter       QueryFilter       `json:"filter"`
	State        WaitState         `json:"state"`
	Interval     time.Duration     `json:"interval"`
	Timeout      time.Duration     `json:"timeout"`
	SoftFail     bool              `json:"soft_fail"`
	Polls        int               `json:"polls"`
	LastCount    int               `json:"last_count"`
	Error        string            `json:"error,omitempty"`
	Labels       map[string]string `json:"labels"`
	CreatedAt    time.Time         `json:"created_at"`
	LastPolledAt *time.Time        `json:"last_polled_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// waitAlias drops Wait's JSON methods so the default encoding can be reused.
type waitAlias Wait

type waitJSON struct {
	*waitAlias
	Interval jsonDuration `json:"interval"`
	Timeout  jsonDuration `json:"timeout"`
}

// MarshalJSON encodes Interval and Timeout as duration strings such as
// "1m0s".
func (w Wait) MarshalJSON() ([]byte, error) {
	return json.Marshal(waitJSON{
		waitAlias: (*waitAlias)(&w),
		Interval:  jsonDuration(w.Interval),
		Timeout:   jsonDuration(w.Timeout),
	})
}

// UnmarshalJSON accepts Interval and Timeout as duration strings or as
// integer nanoseconds.
func (w *Wait) UnmarshalJSON(data []byte) error {
	aux := waitJSON{waitAlias: (*waitAlias)(w)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	w.Interval = time.Duration(aux.Interval)
	w.Timeout = time.Duration(aux.Timeout)
	return nil
}

type jsonDuration time.Duration

func (d jsonDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *jsonDuration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = jsonDuration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("duration must be a string or integer nanoseconds, got %s", data)
	}
	*d = jsonDuration(n)
	return nil
}

// Deadline returns the time after which the wait times out, or the zero
// time if it has no timeout.
func (w *Wait) Deadline() time.Time {
	if w.Timeout <= 0 {
		return time.Time{}
	}
	return w.CreatedAt.Add(w.Timeout)
}

// Due reports whether the wait should be polled at now.
func (w *Wait) Due(now time.Time) bool {
	if w.State != WaitStateWaiting {
		return false
	}
	if w.LastPolledAt == nil {
		return true
	}
	return !now.Before(w.LastPolledAt.Add(w.Interval))
}

// WaitSummary counts waits by state.
type WaitSummary struct {
	Total     int `json:"total"`
	Waiting   int `json:"waiting"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	TimedOut  int `json:"timed_out"`
	Skipped   int `json:"skipped"`
	Cancelled int `json:"cancelled"`
}

// Summarize builds a WaitSummary for waits.
func Summarize(waits []*Wait) WaitSummary {
	s := WaitSummary{Total: len(waits)}
	for _, w := range waits {
		switch w.State {
		case WaitStateWaiting:
			s.Waiting++
		case WaitStateCompleted:
			s.Completed++
		case WaitStateFailed:
			s.Failed++
		case WaitStateTimedOut:
			s.TimedOut++
		case WaitStateSkipped:
			s.Skipped++
		case WaitStateCancelled:
			s.Cancelled++
		}
	}
	return s
}

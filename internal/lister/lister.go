// Package lister provides the task listing collaborators consumed by the
// completion poller: an ECS-backed implementation and in-memory fakes.
package lister

import (
	"context"
	"sync"

	"github.com/me/ecswait/pkg/model"
)

// TaskLister returns the identifiers of the tasks currently matching a
// query filter.
type TaskLister interface {
	ListTasks(ctx context.Context, filter model.QueryFilter) ([]string, error)
}

// Func adapts a plain function to the TaskLister interface.
type Func func(ctx context.Context, filter model.QueryFilter) ([]string, error)

// ListTasks calls f.
func (f Func) ListTasks(ctx context.Context, filter model.QueryFilter) ([]string, error) {
	return f(ctx, filter)
}

// Static always returns the same task identifiers (or error).
type Static struct {
	TaskIDs []string
	Err     error
}

// ListTasks returns a copy of s.TaskIDs, or s.Err.
func (s Static) ListTasks(_ context.Context, _ model.QueryFilter) ([]string, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]string(nil), s.TaskIDs...), nil
}

// Response is one scripted reply of a Sequence.
type Response struct {
	TaskIDs []string
	Err     error
}

// Sequence replays scripted responses in order and repeats the last one
// once exhausted. It records every filter it receives. Safe for
// concurrent use.
type Sequence struct {
	mu        sync.Mutex
	responses []Response
	calls     []model.QueryFilter
}

// NewSequence creates a Sequence lister.
func NewSequence(responses ...Response) *Sequence {
	return &Sequence{responses: responses}
}

// ListTasks returns the next scripted response.
func (s *Sequence) ListTasks(_ context.Context, filter model.QueryFilter) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, filter)
	if len(s.responses) == 0 {
		return nil, nil
	}
	idx := len(s.calls) - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	r := s.responses[idx]
	if r.Err != nil {
		return nil, r.Err
	}
	return append([]string(nil), r.TaskIDs...), nil
}

// Calls returns the filters received so far.
func (s *Sequence) Calls() []model.QueryFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.QueryFilter(nil), s.calls...)
}

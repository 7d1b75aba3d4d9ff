// Package sensor decides whether a cluster has drained: Poller classifies a
// single task listing, PollUntil repeats a check on a fixed cadence until
// it is terminal or a deadline passes.
package sensor

import (
	"context"
	"log/slog"

	"github.com/me/ecswait/internal/lister"
	"github.com/me/ecswait/pkg/model"
)

// Poller checks one cluster for remaining tasks. It holds no state between
// checks other than its immutable filter, so Check may be called any
// number of times.
type Poller struct {
	filter model.QueryFilter
	lister lister.TaskLister
	logger *slog.Logger
}

// New builds a Poller for group. opts are extra query filter options;
// a "cluster" entry in opts is ignored in favour of group.
func New(group string, opts map[string]any, l lister.TaskLister, logger *slog.Logger) (*Poller, error) {
	filter, err := model.NewQueryFilter(group, opts)
	if err != nil {
		return nil, err
	}
	return NewWithFilter(filter, l, logger), nil
}

// NewWithFilter builds a Poller from an already validated filter.
func NewWithFilter(filter model.QueryFilter, l lister.TaskLister, logger *slog.Logger) *Poller {
	return &Poller{
		filter: filter,
		lister: l,
		logger: logger.With("component", "sensor"),
	}
}

// Cluster returns the cluster the poller is scoped to.
func (p *Poller) Cluster() string {
	return p.filter.Cluster()
}

// Filter returns the query filter sent on every check.
func (p *Poller) Filter() model.QueryFilter {
	return p.filter
}

// Check lists the cluster's tasks once and classifies the result. A lister
// error yields DecisionFailed carrying a *model.QueryError; it is never
// retried here.
func (p *Poller) Check(ctx context.Context) model.Decision {
	cluster := p.filter.Cluster()
	p.logger.Info("check for tasks", "cluster", cluster)

	taskIDs, err := p.lister.ListTasks(ctx, p.filter)
	if err != nil {
		p.logger.Error("list tasks failed", "cluster", cluster, "error", err)
		return model.Decision{
			State:   model.DecisionFailed,
			Cluster: cluster,
			Err:     &model.QueryError{Cluster: cluster, Cause: err},
		}
	}

	p.logger.Info("tasks left", "cluster", cluster, "count", len(taskIDs))

	state := model.DecisionPending
	if len(taskIDs) == 0 {
		state = model.DecisionComplete
	}
	return model.Decision{
		State:   state,
		Cluster: cluster,
		Count:   len(taskIDs),
		TaskIDs: taskIDs,
	}
}

package model

import (
	"encoding/json"
	"errors"
)

// DecisionState classifies the outcome of a single completion check.
type DecisionState string

const (
	DecisionPending  DecisionState = "PENDING"
	DecisionComplete DecisionState = "COMPLETE"
	DecisionFailed   DecisionState = "FAILED"
)

// String returns the string representation of the decision state.
func (s DecisionState) String() string {
	return string(s)
}

// IsTerminal returns true if polling should stop.
func (s DecisionState) IsTerminal() bool {
	return s == DecisionComplete || s == DecisionFailed
}

// Decision is produced fresh by every completion check. Err is set only
// when State is DecisionFailed.
type Decision struct {
	State   DecisionState
	Cluster string
	Count   int
	TaskIDs []string
	Err     error
}

// Message returns the failure message, or "" for non-failed decisions.
func (d Decision) Message() string {
	if d.Err == nil {
		return ""
	}
	return d.Err.Error()
}

// Cause returns the error reported by the task lister, with any
// QueryError wrapping removed.
func (d Decision) Cause() error {
	var qe *QueryError
	if errors.As(d.Err, &qe) {
		return qe.Cause
	}
	return d.Err
}

// MarshalJSON renders the decision for API responses.
func (d Decision) MarshalJSON() ([]byte, error) {
	out := struct {
		State   DecisionState `json:"state"`
		Cluster string        `json:"cluster"`
		Count   int           `json:"count"`
		TaskIDs []string      `json:"task_ids"`
		Error   string        `json:"error,omitempty"`
	}{
		State:   d.State,
		Cluster: d.Cluster,
		Count:   d.Count,
		TaskIDs: d.TaskIDs,
		Error:   d.Message(),
	}
	if out.TaskIDs == nil {
		out.TaskIDs = []string{}
	}
	return json.Marshal(out)
}

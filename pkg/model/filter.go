package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Recognized query filter keys. These match the ECS ListTasks request fields.
const (
	FilterCluster           = "cluster"
	FilterContainerInstance = "containerInstance"
	FilterFamily            = "family"
	FilterNextToken         = "nextToken"
	FilterMaxResults        = "maxResults"
	FilterStartedBy         = "startedBy"
	FilterServiceName       = "serviceName"
	FilterDesiredStatus     = "desiredStatus"
	FilterLaunchType        = "launchType"
)

// KnownFilterKeys lists every key the task lister understands.
var KnownFilterKeys = []string{
	FilterCluster,
	FilterContainerInstance,
	FilterFamily,
	FilterNextToken,
	FilterMaxResults,
	FilterStartedBy,
	FilterServiceName,
	FilterDesiredStatus,
	FilterLaunchType,
}

// DesiredStatus restricts listed tasks by their desired status.
type DesiredStatus string

const (
	DesiredStatusRunning DesiredStatus = "RUNNING"
	DesiredStatusPending DesiredStatus = "PENDING"
	DesiredStatusStopped DesiredStatus = "STOPPED"
)

// LaunchType restricts listed tasks by launch type.
type LaunchType string

const (
	LaunchTypeOnDemand   LaunchType = "ON_DEMAND"
	LaunchTypeServerless LaunchType = "SERVERLESS"
)

// QueryFilter is the immutable set of options sent to the task lister on
// every poll. The cluster key is always present.
type QueryFilter struct {
	values map[string]any
}

// NewQueryFilter builds a filter scoped to group. opts is copied; any
// "cluster" entry in it is overwritten by group. Other keys are passed
// through without validation.
func NewQueryFilter(group string, opts map[string]any) (QueryFilter, error) {
	if strings.TrimSpace(group) == "" {
		return QueryFilter{}, &InvalidGroupError{Group: group}
	}
	values := make(map[string]any, len(opts)+1)
	maps.Copy(values, opts)
	values[FilterCluster] = group
	return QueryFilter{values: values}, nil
}

// Cluster returns the group identifier the filter is scoped to.
func (f QueryFilter) Cluster() string {
	s, _ := f.values[FilterCluster].(string)
	return s
}

// Get returns the value stored under key.
func (f QueryFilter) Get(key string) (any, bool) {
	v, ok := f.values[key]
	return v, ok
}

// Map returns a copy of the underlying options.
func (f QueryFilter) Map() map[string]any {
	return maps.Clone(f.values)
}

// Keys returns the filter keys in sorted order.
func (f QueryFilter) Keys() []string {
	return slices.Sorted(maps.Keys(f.values))
}

// Len returns the number of keys in the filter, cluster included.
func (f QueryFilter) Len() int {
	return len(f.values)
}

// String renders the filter as sorted key=value pairs for logging.
func (f QueryFilter) String() string {
	parts := make([]string, 0, len(f.values))
	for _, k := range f.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%v", k, f.values[k]))
	}
	return strings.Join(parts, " ")
}

// Validate checks the filter against the keys and enum values the ECS
// lister recognizes. The builder never calls it; callers opt in.
func (f QueryFilter) Validate() error {
	var details []FieldError
	for _, k := range f.Keys() {
		v := f.values[k]
		switch k {
		case FilterCluster, FilterContainerInstance, FilterFamily, FilterNextToken,
			FilterStartedBy, FilterServiceName:
			if _, ok := v.(string); !ok {
				details = append(details, FieldError{Field: k, Message: "must be a string"})
			}
		case FilterMaxResults:
			n, err := IntValue(v)
			if err != nil {
				details = append(details, FieldError{Field: k, Message: err.Error()})
			} else if n < 1 || n > 100 {
				details = append(details, FieldError{Field: k, Message: "must be between 1 and 100"})
			}
		case FilterDesiredStatus:
			s, _ := v.(string)
			switch DesiredStatus(s) {
			case DesiredStatusRunning, DesiredStatusPending, DesiredStatusStopped:
			default:
				details = append(details, FieldError{Field: k, Message: "must be one of RUNNING, PENDING, STOPPED"})
			}
		case FilterLaunchType:
			s, _ := v.(string)
			switch s {
			case string(LaunchTypeOnDemand), string(LaunchTypeServerless), "EC2", "FARGATE", "EXTERNAL":
			default:
				details = append(details, FieldError{Field: k, Message: "must be one of ON_DEMAND, SERVERLESS"})
			}
		default:
			details = append(details, FieldError{Field: k, Message: "unknown filter key"})
		}
	}
	if len(details) > 0 {
		return NewValidationError("invalid query filter", details...)
	}
	return nil
}

// MarshalJSON encodes the filter as a flat JSON object.
func (f QueryFilter) MarshalJSON() ([]byte, error) {
	if f.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f.values)
}

// UnmarshalJSON decodes a flat JSON object. The cluster invariant is
// re-checked.
func (f *QueryFilter) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	group, _ := raw[FilterCluster].(string)
	built, err := NewQueryFilter(group, raw)
	if err != nil {
		return err
	}
	*f = built
	return nil
}

// IntValue converts the numeric shapes produced by JSON, YAML and flag
// parsing into an int.
func IntValue(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("must be an integer, got %v", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("must be an integer: %w", err)
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("must be an integer, got %q", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("must be an integer, got %T", v)
	}
}

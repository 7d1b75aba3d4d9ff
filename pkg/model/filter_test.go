package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewQueryFilter_OverridesCluster(t *testing.T) {
	tests := []struct {
		name  string
		group string
		opts  map[string]any
	}{
		{"nil options", "grp-1", nil},
		{"empty options", "grp-1", map[string]any{}},
		{"conflicting cluster", "grp-1", map[string]any{"cluster": "other"}},
		{"non-string cluster", "grp-1", map[string]any{"cluster": 42}},
		{"with other keys", "arn:aws:ecs:us-east-1:123:cluster/batch", map[string]any{
			"family":        "etl",
			"desiredStatus": "RUNNING",
			"cluster":       "stale",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewQueryFilter(tt.group, tt.opts)
			if err != nil {
				t.Fatalf("NewQueryFilter: %v", err)
			}
			if f.Cluster() != tt.group {
				t.Errorf("Cluster() = %q, want %q", f.Cluster(), tt.group)
			}
			v, _ := f.Get(FilterCluster)
			if v != tt.group {
				t.Errorf("Get(cluster) = %v, want %q", v, tt.group)
			}
		})
	}
}

func TestNewQueryFilter_InvalidGroup(t *testing.T) {
	for _, group := range []string{"", "   ", "\t\n"} {
		_, err := NewQueryFilter(group, map[string]any{"cluster": "fallback"})
		var ige *InvalidGroupError
		if !errors.As(err, &ige) {
			t.Errorf("NewQueryFilter(%q) error = %v, want *InvalidGroupError", group, err)
		}
	}
}

func TestNewQueryFilter_PassesUnknownKeys(t *testing.T) {
	f, err := NewQueryFilter("grp-1", map[string]any{"bogus": true, "maxResults": "lots"})
	if err != nil {
		t.Fatalf("NewQueryFilter: %v", err)
	}
	if v, ok := f.Get("bogus"); !ok || v != true {
		t.Errorf("Get(bogus) = %v, %v; want true, true", v, ok)
	}
	if f.Len() != 3 {
		t.Errorf("Len() = %d, want 3", f.Len())
	}
}

func TestQueryFilter_Immutable(t *testing.T) {
	opts := map[string]any{"family": "etl"}
	f, err := NewQueryFilter("grp-1", opts)
	if err != nil {
		t.Fatalf("NewQueryFilter: %v", err)
	}

	opts["family"] = "changed"
	opts["cluster"] = "hijacked"
	if v, _ := f.Get("family"); v != "etl" {
		t.Errorf("family = %v after caller mutation, want etl", v)
	}

	m := f.Map()
	m["cluster"] = "hijacked"
	if f.Cluster() != "grp-1" {
		t.Errorf("Cluster() = %q after Map() mutation, want grp-1", f.Cluster())
	}
	if _, ok := opts["cluster"]; !ok {
		t.Error("caller map should keep its own entries")
	}
}

func TestQueryFilter_String(t *testing.T) {
	f, _ := NewQueryFilter("grp-1", map[string]any{"family": "etl", "desiredStatus": "RUNNING"})
	want := "cluster=grp-1 desiredStatus=RUNNING family=etl"
	if got := f.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestQueryFilter_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    map[string]any
		wantErr bool
	}{
		{"cluster only", nil, false},
		{"all valid", map[string]any{
			"containerInstance": "ci-1",
			"family":            "etl",
			"nextToken":         "tok",
			"maxResults":        50,
			"startedBy":         "airflow",
			"serviceName":       "svc",
			"desiredStatus":     "STOPPED",
			"launchType":        "SERVERLESS",
		}, false},
		{"float max results from json", map[string]any{"maxResults": float64(10)}, false},
		{"raw ecs launch type", map[string]any{"launchType": "FARGATE"}, false},
		{"unknown key", map[string]any{"bogus": "x"}, true},
		{"max results out of range", map[string]any{"maxResults": 500}, true},
		{"max results not a number", map[string]any{"maxResults": "ten"}, true},
		{"bad desired status", map[string]any{"desiredStatus": "DONE"}, true},
		{"bad launch type", map[string]any{"launchType": "SPOT"}, true},
		{"family not a string", map[string]any{"family": 3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewQueryFilter("grp-1", tt.opts)
			if err != nil {
				t.Fatalf("NewQueryFilter: %v", err)
			}
			err = f.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.Code != ErrValidation {
					t.Errorf("Validate() error = %v, want VALIDATION_ERROR", err)
				}
			}
		})
	}
}

func TestQueryFilter_JSON(t *testing.T) {
	f, _ := NewQueryFilter("grp-1", map[string]any{"family": "etl"})
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got QueryFilter
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Cluster() != "grp-1" {
		t.Errorf("Cluster() = %q, want grp-1", got.Cluster())
	}

	var empty QueryFilter
	err = json.Unmarshal([]byte(`{"family":"etl"}`), &empty)
	var ige *InvalidGroupError
	if !errors.As(err, &ige) {
		t.Errorf("Unmarshal without cluster error = %v, want *InvalidGroupError", err)
	}
}

func TestIntValue(t *testing.T) {
	tests := []struct {
		in      any
		want    int
		wantErr bool
	}{
		{5, 5, false},
		{int64(7), 7, false},
		{float64(9), 9, false},
		{"12", 12, false},
		{json.Number("3"), 3, false},
		{1.5, 0, true},
		{"x", 0, true},
		{true, 0, true},
	}
	for _, tt := range tests {
		got, err := IntValue(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("IntValue(%v) = %d, %v; want %d, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

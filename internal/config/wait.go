package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WaitSpec describes one wait: which cluster to watch, the filter to apply
// and the orchestrator policy (interval, timeout, soft-fail). It is the
// shape of wait YAML files and of POST /api/v1/waits bodies.
type WaitSpec struct {
	Cluster  string            `yaml:"cluster" json:"cluster"`
	Filter   map[string]any    `yaml:"filter,omitempty" json:"filter,omitempty"`
	Interval Duration          `yaml:"interval,omitempty" json:"interval,omitempty"`
	Timeout  Duration          `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	SoftFail bool              `yaml:"soft_fail,omitempty" json:"soft_fail,omitempty"`
	Params   map[string]any    `yaml:"params,omitempty" json:"params,omitempty"`
	Labels   map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// Default wait policy.
const (
	DefaultInterval = 60 * time.Second
	DefaultTimeout  = 7 * 24 * time.Hour
)

// ApplyDefaults fills in a zero interval or timeout.
func (s *WaitSpec) ApplyDefaults() {
	if s.Interval <= 0 {
		s.Interval = Duration(DefaultInterval)
	}
	if s.Timeout == 0 {
		s.Timeout = Duration(DefaultTimeout)
	}
}

// PollTimeout returns the deadline to enforce, or 0 for a negative
// timeout, which disables the deadline.
func (s *WaitSpec) PollTimeout() time.Duration {
	if s.Timeout < 0 {
		return 0
	}
	return s.Timeout.Std()
}

// LoadWaitSpec reads a YAML (or JSON) wait spec from path.
func LoadWaitSpec(path string) (*WaitSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wait spec: %w", err)
	}
	return ParseWaitSpec(data)
}

// ParseWaitSpec decodes a YAML (or JSON) wait spec.
func ParseWaitSpec(data []byte) (*WaitSpec, error) {
	var spec WaitSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse wait spec: %w", err)
	}
	if spec.Filter == nil {
		spec.Filter = map[string]any{}
	}
	return &spec, nil
}

// Duration is a time.Duration that reads and writes as a Go duration
// string ("30s", "5m") in YAML and JSON. Bare numbers are seconds.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML accepts "90s"-style strings and integer seconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := parseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = parsed
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalJSON accepts "90s"-style strings and numeric seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON writes the duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func parseDuration(s string) (Duration, error) {
	if s == "" || s == "null" {
		return 0, nil
	}
	if dur, err := time.ParseDuration(s); err == nil {
		return Duration(dur), nil
	}
	var secs float64
	if _, err := fmt.Sscanf(s, "%g", &secs); err == nil {
		return Duration(time.Duration(secs * float64(time.Second))), nil
	}
	return 0, fmt.Errorf("invalid duration %q", s)
}

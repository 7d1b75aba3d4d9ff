// Package config holds configuration for the ecswait server, wait specs
// and the AWS client.
package config

import "time"

// ServerConfig holds configuration for the ecswait server.
type ServerConfig struct {
	Addr         string        // Listen address (default ":8080")
	LogLevel     string        // Log level: debug, info, warn, error
	LogFormat    string        // Log format: text, json
	DBPath       string        // SQLite database path (default ~/.ecswait/ecswait.db, ":memory:" for testing)
	TickInterval time.Duration // How often the scheduler looks for due waits
	AWS          AWSConfig

	// TemplateEnv names the process environment variables templated
	// fields may read through env. Nothing else is exposed.
	TemplateEnv     []string
	// TemplateTimeout bounds the evaluation of one templated field.
	TemplateTimeout time.Duration
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         ":8080",
		LogLevel:     "info",
		LogFormat:    "text",
		TickInterval: 2 * time.Second,

		TemplateTimeout: time.Second,
	}
}

// AWSConfig selects the account and region the ECS client talks to. Every
// field is explicit; nothing here is read from the environment by the
// core.
type AWSConfig struct {
	Region      string // e.g. us-east-1
	Profile     string // shared config profile
	Endpoint    string // ECS endpoint override (LocalStack and the like)
	MaxAttempts int    // SDK-level attempts per request; 0 keeps the SDK default
	Retry       bool   // retry throttled ListTasks calls before reporting failure
}

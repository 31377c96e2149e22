// Package config loads and validates nexusd's YAML configuration
// (spec §6 Environment/config), grounded on the teacher's internal/config
// package: a typed struct per concern, loaded from a single YAML document,
// overridable via prefixed environment variables, and schema-validated at
// startup before anything else starts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is nexusd's top-level configuration.
type Config struct {
	Paths   PathsConfig   `yaml:"paths"`
	Model   ModelConfig   `yaml:"model"`
	Checkin CheckinConfig `yaml:"checkin"`
	Watch   WatchConfig   `yaml:"watch"`
	Shell   ShellConfig   `yaml:"shell"`
	Tasks   TasksConfig   `yaml:"tasks"`
	Slack   SlackConfig   `yaml:"slack"`
	Logging LoggingConfig `yaml:"logging"`
}

// PathsConfig locates every text-file store nexusd reads or writes
// (spec §6 Filesystem layout).
type PathsConfig struct {
	Templates string `yaml:"templates"`
	Sessions  string `yaml:"sessions"`
	Tasks     string `yaml:"tasks"`
	Storage   string `yaml:"storage"`
}

// ModelConfig selects the completion provider and default model (spec §1(b)
// "out of scope: the completion service itself", but nexusd still needs to
// know which adapter to construct and which model id to request).
type ModelConfig struct {
	// Provider is "anthropic" or "openai".
	Provider string `yaml:"provider"`
	// APIKeyEnv names the environment variable holding the provider's API
	// key — credentials themselves are out of scope (spec §6), only the
	// variable name is configuration.
	APIKeyEnv string `yaml:"api_key_env"`
	Default   string `yaml:"default"`
}

// CheckinConfig configures the planner check-in timer (spec §4.7).
type CheckinConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	PlannerAgentID  string `yaml:"planner_agent_id"`
}

// WatchConfig configures the watch-mode reactor (spec §4.6).
type WatchConfig struct {
	DebounceMillis int `yaml:"debounce_millis"`
	TickSeconds    int `yaml:"tick_seconds"`
}

// ShellConfig names the allowlist file execute_command consults before
// gating (spec §4.3, §6).
type ShellConfig struct {
	AllowlistFile string `yaml:"allowlist_file"`
}

// TasksConfig configures the external task-tracking CLI adapter
// (spec §1 Out of scope (c)).
type TasksConfig struct {
	Binary string   `yaml:"binary"`
	Args   []string `yaml:"args"`
}

// SlackConfig configures the Slack channel adapter (optional — nil Slack
// client in toolregistry.Deps when the TokenEnv variable is unset or empty).
type SlackConfig struct {
	TokenEnv       string `yaml:"token_env"`
	DefaultChannel string `yaml:"default_channel"`
}

// LoggingConfig configures zerolog output (spec §6 "Structured logging").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// CheckinInterval returns the configured interval as a Duration, applying
// the spec's documented default (60s) when unset.
func (c Config) CheckinInterval() time.Duration {
	if c.Checkin.IntervalSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Checkin.IntervalSeconds) * time.Second
}

// WatchDebounce returns the configured debounce window, applying the
// spec's documented default (500ms) when unset.
func (c Config) WatchDebounce() time.Duration {
	if c.Watch.DebounceMillis <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Watch.DebounceMillis) * time.Millisecond
}

// WatchTick returns the configured periodic-tick interval, capped at 5s so
// the watch loop ticks at least once every 5s; 5s when unset.
func (c Config) WatchTick() time.Duration {
	if c.Watch.TickSeconds <= 0 {
		return 5 * time.Second
	}
	tick := time.Duration(c.Watch.TickSeconds) * time.Second
	if tick > 5*time.Second {
		return 5 * time.Second
	}
	return tick
}

// Validate checks required fields once the YAML has been decoded and env
// overrides applied (fatal per spec §7: "missing required directories",
// "credential acquisition failure" are both startup-fatal).
func (c Config) Validate() error {
	if c.Paths.Templates == "" || c.Paths.Sessions == "" || c.Paths.Tasks == "" || c.Paths.Storage == "" {
		return fmt.Errorf("config: paths.templates, paths.sessions, paths.tasks, and paths.storage are all required")
	}
	switch c.Model.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("config: model.provider must be %q or %q, got %q", "anthropic", "openai", c.Model.Provider)
	}
	if c.Model.Default == "" {
		return fmt.Errorf("config: model.default is required")
	}
	if c.Model.APIKeyEnv == "" {
		return fmt.Errorf("config: model.api_key_env is required")
	}
	if os.Getenv(c.Model.APIKeyEnv) == "" {
		return fmt.Errorf("config: environment variable %q (model.api_key_env) is not set", c.Model.APIKeyEnv)
	}
	return nil
}

// Load reads, env-overrides, schema-validates, and field-validates a
// nexusd config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := validateSchema(doc); err != nil {
		return nil, fmt.Errorf("config: schema validation: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides applies NEXUSD_-prefixed environment variables over
// whatever the YAML document set, grounded on the teacher's NEXUS_-prefixed
// override convention in internal/config/config.go.
func applyEnvOverrides(c *Config) {
	if v := strings.TrimSpace(os.Getenv("NEXUSD_MODEL_PROVIDER")); v != "" {
		c.Model.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("NEXUSD_MODEL_DEFAULT")); v != "" {
		c.Model.Default = v
	}
	if v := strings.TrimSpace(os.Getenv("NEXUSD_CHECKIN_INTERVAL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Checkin.IntervalSeconds = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("NEXUSD_WATCH_DEBOUNCE_MILLIS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Watch.DebounceMillis = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("NEXUSD_LOG_LEVEL")); v != "" {
		c.Logging.Level = v
	}
}

// Package config loads answerhound configuration from YAML with
// environment overrides for credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"answerhound/internal/browser"
)

// Config holds all answerhound configuration.
type Config struct {
	// Target holds where and as whom to log in.
	Target TargetConfig `yaml:"target"`

	// Browser holds Chrome connection settings.
	Browser browser.Config `yaml:"browser"`

	// Timing holds the acquisition poll bounds.
	Timing TimingConfig `yaml:"timing"`

	// Output holds artifact locations.
	Output OutputConfig `yaml:"output"`

	// Logging.
	Logging LoggingConfig `yaml:"logging"`
}

// TargetConfig identifies the UI under observation.
type TargetConfig struct {
	BaseURL   string `yaml:"base_url"`
	LoginPath string `yaml:"login_path"`
	ChatName  string `yaml:"chat_name"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// LoginURL joins the base URL with the login path.
func (t TargetConfig) LoginURL() string {
	return t.BaseURL + t.LoginPath
}

// Timeout returns the page-object timeout.
func (t TargetConfig) Timeout() time.Duration {
	if t.TimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

// TimingConfig configures the confirmation and observation windows.
type TimingConfig struct {
	TickMs         int `yaml:"tick_ms"`
	AwaitBusySec   int `yaml:"await_busy_sec"`
	AwaitReadySec  int `yaml:"await_ready_sec"`
	SoftTimeoutSec int `yaml:"soft_timeout_sec"`
	WatchdogSec    int `yaml:"watchdog_sec"`
}

// OutputConfig configures where run artifacts land.
type OutputConfig struct {
	Root string `yaml:"root"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			BaseURL:   "https://qommons.ai",
			LoginPath: "/login",
			ChatName:  "プライベートナレッジ",
			TimeoutMs: 30000,
		},
		Browser: browser.DefaultConfig(),
		Timing: TimingConfig{
			TickMs:         400,
			AwaitBusySec:   10,
			AwaitReadySec:  90,
			SoftTimeoutSec: 120,
			WatchdogSec:    100,
		},
		Output: OutputConfig{
			Root: "output",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; credentials always honor the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Credentials in
// the environment always win over the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ANSWERHOUND_USERNAME"); v != "" {
		c.Target.Username = v
	}
	if v := os.Getenv("ANSWERHOUND_PASSWORD"); v != "" {
		c.Target.Password = v
	}
	if v := os.Getenv("ANSWERHOUND_BASE_URL"); v != "" {
		c.Target.BaseURL = v
	}
	if v := os.Getenv("ANSWERHOUND_DEBUGGER_URL"); v != "" {
		c.Browser.DebuggerURL = v
	}
}

// Validate rejects configurations the run loop cannot operate under.
func (c *Config) Validate() error {
	if c.Target.BaseURL == "" {
		return fmt.Errorf("target.base_url is required")
	}
	if c.Target.ChatName == "" {
		return fmt.Errorf("target.chat_name is required")
	}
	if c.Target.Username == "" || c.Target.Password == "" {
		return fmt.Errorf("credentials are required (config or ANSWERHOUND_USERNAME / ANSWERHOUND_PASSWORD)")
	}
	if c.Timing.WatchdogSec >= c.Timing.SoftTimeoutSec {
		return fmt.Errorf("timing.watchdog_sec (%d) must be below timing.soft_timeout_sec (%d)",
			c.Timing.WatchdogSec, c.Timing.SoftTimeoutSec)
	}
	return nil
}

// EngineTiming converts the configured seconds into the engine's timing
// values.
func (c *Config) EngineTiming() TimingValues {
	return TimingValues{
		Tick:       time.Duration(c.Timing.TickMs) * time.Millisecond,
		AwaitBusy:  time.Duration(c.Timing.AwaitBusySec) * time.Second,
		AwaitReady: time.Duration(c.Timing.AwaitReadySec) * time.Second,
		Soft:       time.Duration(c.Timing.SoftTimeoutSec) * time.Second,
		Watchdog:   time.Duration(c.Timing.WatchdogSec) * time.Second,
	}
}

// TimingValues is the duration form of TimingConfig.
type TimingValues struct {
	Tick       time.Duration
	AwaitBusy  time.Duration
	AwaitReady time.Duration
	Soft       time.Duration
	Watchdog   time.Duration
}

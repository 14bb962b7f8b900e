package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds awsinventory configuration loaded from .awsinventory.yaml.
type Config struct {
	Profiles     []string                `yaml:"profiles"`
	AllProfiles  bool                    `yaml:"all_profiles"`
	Accounts     []string                `yaml:"accounts"`
	AccountsFile string                  `yaml:"accounts_file"`
	RoleName     string                  `yaml:"role_name"`
	ExternalID   string                  `yaml:"external_id"`
	BaseProfile  string                  `yaml:"base_profile"`
	Regions      []string                `yaml:"regions"`
	Types        []string                `yaml:"types"`
	OutputDir    string                  `yaml:"output_dir"`
	Formats      []string                `yaml:"formats"`
	Concurrency  int                     `yaml:"concurrency"`
	Timeout      string                  `yaml:"timeout"`
	CallTimeout  string                  `yaml:"call_timeout"`
	Archive      *bool                   `yaml:"archive"`
	MetricsFile  string                  `yaml:"metrics_file"`
	Metrics      map[string]MetricWindow `yaml:"metrics"`
}

// MetricWindow overrides how CloudWatch metrics are read for one resource
// type. Empty fields keep the built-in default.
type MetricWindow struct {
	Stat   string `yaml:"stat"`
	Period string `yaml:"period"`
	Window string `yaml:"window"`
}

// Durations parses the period and window. Unset values are zero.
func (m MetricWindow) Durations() (period, window time.Duration, err error) {
	if m.Period != "" {
		if period, err = time.ParseDuration(m.Period); err != nil {
			return 0, 0, fmt.Errorf("period: %w", err)
		}
	}
	if m.Window != "" {
		if window, err = time.ParseDuration(m.Window); err != nil {
			return 0, 0, fmt.Errorf("window: %w", err)
		}
	}
	return period, window, nil
}

// TimeoutDuration parses the timeout string as a duration.
func (c Config) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout)
}

// CallTimeoutDuration parses the per-call timeout string as a duration.
func (c Config) CallTimeoutDuration() time.Duration {
	return parseDuration(c.CallTimeout)
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, _ := time.ParseDuration(s)
	return d
}

// Validate checks values that cannot be fixed up later.
func (c Config) Validate() error {
	for key, v := range map[string]string{"timeout": c.Timeout, "call_timeout": c.CallTimeout} {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, v)
		}
	}
	for kind, m := range c.Metrics {
		if _, _, err := m.Durations(); err != nil {
			return fmt.Errorf("metrics.%s: %w", kind, err)
		}
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	return nil
}

// Load searches for .awsinventory.yaml or .awsinventory.yml in the given
// directory and returns the parsed config. Returns an empty Config if no
// file is found.
func Load(dir string) (Config, error) {
	candidates := []string{
		filepath.Join(dir, ".awsinventory.yaml"),
		filepath.Join(dir, ".awsinventory.yml"),
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}

		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := cfg.Validate(); err != nil {
			return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
		}
		return cfg, nil
	}

	return Config{}, nil
}

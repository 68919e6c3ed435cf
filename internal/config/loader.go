package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors and normalizes an empty
// tunnel to no tunnel.
func Validate(cfg *Config) error {
	a := &cfg.Adapter

	required := []struct {
		key   string
		value *bool
	}{
		{"ignore_cert", a.IgnoreCert},
		{"conn_reuse", a.ConnReuse},
		{"store_cookies", a.StoreCookies},
		{"verbose", a.Verbose},
		{"http2_only", a.HTTP2Only},
	}

	if a.URL == "" {
		return fmt.Errorf("adapter.url is required")
	}
	for _, r := range required {
		if r.value == nil {
			return fmt.Errorf("adapter.%s is required", r.key)
		}
	}

	if a.Tunnel != nil && *a.Tunnel == "" {
		a.Tunnel = nil
	}

	if err := a.HTTPConfig().Validate(); err != nil {
		return fmt.Errorf("adapter: %w", err)
	}

	if cfg.Probe.Count <= 0 {
		return fmt.Errorf("probe.count must be positive")
	}
	if cfg.Probe.Rate < 0 {
		return fmt.Errorf("probe.rate must not be negative")
	}
	if cfg.Probe.Timeout < 0 {
		return fmt.Errorf("probe.timeout must not be negative")
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Address == "" {
			return fmt.Errorf("metrics.address is required when metrics are enabled")
		}
		if cfg.Metrics.Path == "" {
			cfg.Metrics.Path = "/metrics"
		}
	}

	return nil
}

package config

import (
	"time"

	"github.com/svcbench/pkg/protocol"
)

// Config is the root configuration structure.
type Config struct {
	Adapter Adapter `yaml:"adapter"`
	Probe   Probe   `yaml:"probe"`
	Metrics Metrics `yaml:"metrics"`
	Log     Log     `yaml:"log"`
}

// Adapter holds the HTTP adapter settings. Flags are pointers so that a
// missing key can be told apart from false.
type Adapter struct {
	URL          string  `yaml:"url"`
	Tunnel       *string `yaml:"tunnel,omitempty"`
	IgnoreCert   *bool   `yaml:"ignore_cert"`
	ConnReuse    *bool   `yaml:"conn_reuse"`
	StoreCookies *bool   `yaml:"store_cookies"`
	Verbose      *bool   `yaml:"verbose"`
	HTTP2Only    *bool   `yaml:"http2_only"`
}

// HTTPConfig converts a validated Adapter into the protocol configuration.
func (a Adapter) HTTPConfig() protocol.HTTPConfig {
	return protocol.HTTPConfig{
		URL:          a.URL,
		Tunnel:       a.Tunnel,
		IgnoreCert:   deref(a.IgnoreCert),
		ConnReuse:    deref(a.ConnReuse),
		StoreCookies: deref(a.StoreCookies),
		Verbose:      deref(a.Verbose),
		HTTP2Only:    deref(a.HTTP2Only),
	}
}

// FromHTTPConfig builds an Adapter with every key present.
func FromHTTPConfig(cfg protocol.HTTPConfig) Adapter {
	return Adapter{
		URL:          cfg.URL,
		Tunnel:       cfg.Tunnel,
		IgnoreCert:   &cfg.IgnoreCert,
		ConnReuse:    &cfg.ConnReuse,
		StoreCookies: &cfg.StoreCookies,
		Verbose:      &cfg.Verbose,
		HTTP2Only:    &cfg.HTTP2Only,
	}
}

func deref(b *bool) bool {
	return b != nil && *b
}

// Probe configures the sequential probe run.
type Probe struct {
	Count   int           `yaml:"count"`
	Rate    float64       `yaml:"rate"`    // Requests per second, 0 = unpaced
	Timeout time.Duration `yaml:"timeout"` // Per-request deadline, 0 = none
}

// Metrics configures Prometheus metrics.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// Log configures the zap logger.
type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns a configuration with sensible defaults.
// Adapter settings have no defaults and must come from the file.
func DefaultConfig() *Config {
	return &Config{
		Probe: Probe{
			Count: 1,
		},
		Metrics: Metrics{
			Enabled: false,
			Address: ":9090",
			Path:    "/metrics",
		},
		Log: Log{
			Level: "info",
		},
	}
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/eventbus/internal/bus"
	"github.com/dshills/eventbus/internal/event/dispatch"
	"github.com/dshills/eventbus/internal/logging"
)

// Config is the bus configuration read from a file and the environment.
type Config struct {
	Bus     BusConfig     `toml:"bus" yaml:"bus"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`

	// Buses names the buses installed at startup besides the main bus.
	Buses []string `toml:"buses" yaml:"buses"`
}

// BusConfig contains the settings applied to every installed bus.
type BusConfig struct {
	// QueueLimit is the worker queue capacity.
	QueueLimit int `toml:"queue_limit" yaml:"queue_limit"`

	// Quiet disables per-post info logs.
	Quiet bool `toml:"quiet" yaml:"quiet"`

	// DrainTimeout bounds how long closing a bus waits for queued
	// deliveries, as a Go duration string.
	DrainTimeout string `toml:"drain_timeout" yaml:"drain_timeout"`
}

// LoggingConfig mirrors logging.Config in file form.
type LoggingConfig struct {
	Level      string `toml:"level" yaml:"level"`
	Pretty     bool   `toml:"pretty" yaml:"pretty"`
	TimeFormat string `toml:"time_format" yaml:"time_format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Bus: BusConfig{
			QueueLimit:   dispatch.DefaultQueueLimit,
			DrainTimeout: "5s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks every setting.
func (c *Config) Validate() error {
	if c.Bus.QueueLimit <= 0 {
		return &ValidationError{Setting: "bus.queue_limit", Value: c.Bus.QueueLimit, Message: "must be positive"}
	}
	d, err := time.ParseDuration(c.Bus.DrainTimeout)
	if err != nil {
		return &ValidationError{Setting: "bus.drain_timeout", Value: c.Bus.DrainTimeout, Message: err.Error()}
	}
	if d <= 0 {
		return &ValidationError{Setting: "bus.drain_timeout", Value: c.Bus.DrainTimeout, Message: "must be positive"}
	}
	if !validLevel(c.Logging.Level) {
		return &ValidationError{Setting: "logging.level", Value: c.Logging.Level, Message: "unknown level"}
	}
	seen := make(map[string]bool, len(c.Buses))
	for _, name := range c.Buses {
		if name == "" {
			return &ValidationError{Setting: "buses", Value: c.Buses, Message: "empty bus name"}
		}
		if name == bus.MainBus {
			return &ValidationError{Setting: "buses", Value: name, Message: "main bus is always installed"}
		}
		if seen[name] {
			return &ValidationError{Setting: "buses", Value: name, Message: "listed twice"}
		}
		seen[name] = true
	}
	return nil
}

func validLevel(level string) bool {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "", "DEBUG", "INFO", "WARN", "WARNING", "ERROR", "FATAL":
		return true
	}
	return false
}

// DrainDuration returns the drain timeout. Call Validate first.
func (c *Config) DrainDuration() time.Duration {
	d, err := time.ParseDuration(c.Bus.DrainTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// LoggingConfig returns the logging setup.
func (c *Config) LoggingConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(c.Logging.Level)
	lc.Pretty = c.Logging.Pretty
	if c.Logging.TimeFormat != "" {
		lc.TimeFormat = c.Logging.TimeFormat
	}
	return lc
}

// BusOptions returns the options for every installed bus.
func (c *Config) BusOptions() []bus.Option {
	return []bus.Option{
		bus.WithQueueLimit(c.Bus.QueueLimit),
		bus.WithQuiet(c.Bus.Quiet),
	}
}

// String returns a one-line summary.
func (c *Config) String() string {
	return fmt.Sprintf("queue_limit=%d quiet=%v drain_timeout=%s level=%s buses=%v",
		c.Bus.QueueLimit, c.Bus.Quiet, c.Bus.DrainTimeout, c.Logging.Level, c.Buses)
}

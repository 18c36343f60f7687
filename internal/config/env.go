package config

import (
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EVENTBUS_"

// Environment variables read by ApplyEnv.
const (
	EnvQueueLimit   = EnvPrefix + "QUEUE_LIMIT"
	EnvQuiet        = EnvPrefix + "QUIET"
	EnvDrainTimeout = EnvPrefix + "DRAIN_TIMEOUT"
	EnvLogLevel     = EnvPrefix + "LOG_LEVEL"
	EnvLogPretty    = EnvPrefix + "LOG_PRETTY"
	EnvBuses        = EnvPrefix + "BUSES"
)

// LookupFunc looks up an environment variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with the EVENTBUS_* variables that are set.
// Empty values are treated as set. EVENTBUS_BUSES is a comma-separated
// list that replaces the configured one.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if v, ok := lookup(EnvQueueLimit); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &ValidationError{Setting: EnvQueueLimit, Value: v, Message: "not an integer"}
		}
		cfg.Bus.QueueLimit = n
	}
	if v, ok := lookup(EnvQuiet); ok {
		b, err := parseBool(v)
		if err != nil {
			return &ValidationError{Setting: EnvQuiet, Value: v, Message: err.Error()}
		}
		cfg.Bus.Quiet = b
	}
	if v, ok := lookup(EnvDrainTimeout); ok {
		cfg.Bus.DrainTimeout = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok {
		cfg.Logging.Level = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogPretty); ok {
		b, err := parseBool(v)
		if err != nil {
			return &ValidationError{Setting: EnvLogPretty, Value: v, Message: err.Error()}
		}
		cfg.Logging.Pretty = b
	}
	if v, ok := lookup(EnvBuses); ok {
		cfg.Buses = splitList(v)
	}
	return nil
}

// parseBool accepts the usual spellings of true and false.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0", "":
		return false, nil
	}
	return strconv.ParseBool(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

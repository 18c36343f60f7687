// Package config loads the event bus configuration.
//
// Settings are layered, higher layers overriding lower:
//
//  1. Built-in defaults (Default)
//  2. A TOML or YAML file, chosen by extension
//  3. EVENTBUS_* environment variables
//
// Example TOML file:
//
//	buses = ["chat", "combat"]
//
//	[bus]
//	queue_limit = 200
//	quiet = false
//	drain_timeout = "5s"
//
//	[logging]
//	level = "info"
//	pretty = true
//
// The same keys are used in YAML.
package config

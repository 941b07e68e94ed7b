// Package config provides public SDK types for agent configuration.
// These types are re-exported from the internal config package to provide
// a stable public API for external consumers.
package config

import (
	internal "github.com/visarisk/agent/internal/config"
)

// Config is the agent configuration as loaded from config.yaml and the
// VISARISK_ environment.
type Config = internal.Config

// DefaultConfig returns the configuration used when nothing is set.
var DefaultConfig = internal.DefaultConfig

// Load reads the configuration from file, or the default locations when
// file is empty.
var Load = internal.Load

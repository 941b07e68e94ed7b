package config

import (
	internal "github.com/visarisk/agent/internal/config"
)

// LogFilter selects events from the agent's in-memory log buffer.
type LogFilter = internal.LogFilter

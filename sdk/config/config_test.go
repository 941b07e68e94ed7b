package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigIsUsable(t *testing.T) {
	cfg := DefaultConfig()

	assert.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.GetLocalServerUrl())

	events := cfg.GetEventsWithFilter(LogFilter{Limit: 10})
	assert.LessOrEqual(t, len(events), 10)
}

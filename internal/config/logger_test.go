package config

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fire(t *testing.T, buffer *LogBuffer, level logrus.Level, message string, fields logrus.Fields) {
	t.Helper()
	entry := logrus.NewEntry(logrus.New()).WithFields(fields)
	entry.Level = level
	entry.Message = message
	entry.Time = time.Now()
	require.NoError(t, buffer.Fire(entry))
}

func TestLogBuffer_KeepsNewestInOrder(t *testing.T) {
	buffer := NewLogBuffer(3)

	for i := range 5 {
		fire(t, buffer, logrus.InfoLevel, fmt.Sprintf("event %d", i), nil)
	}

	events := buffer.GetEvents()
	require.Len(t, events, 3)
	assert.Equal(t, "event 2", events[0].Message)
	assert.Equal(t, "event 4", events[2].Message)

	buffer.Clear()
	assert.Empty(t, buffer.GetEvents())
}

func TestLogBuffer_RedactsCredentials(t *testing.T) {
	buffer := NewLogBuffer(10)

	fire(t, buffer, logrus.WarnLevel, "login", logrus.Fields{
		"password":      "hunter2",
		"access_token":  "T1",
		"email":         "sam@example.com",
		logrus.ErrorKey: errors.New("boom"),
	})

	events := buffer.GetEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "[redacted]", events[0].Data["password"])
	assert.Equal(t, "[redacted]", events[0].Data["access_token"])
	assert.Equal(t, "sam@example.com", events[0].Data["email"])
	assert.Equal(t, "boom", events[0].Data[logrus.ErrorKey])
	assert.NotEmpty(t, events[0].Data["run"])
}

func TestLogBuffer_Filter(t *testing.T) {
	buffer := NewLogBuffer(10)

	fire(t, buffer, logrus.InfoLevel, "one", nil)
	fire(t, buffer, logrus.ErrorLevel, "two", nil)
	fire(t, buffer, logrus.InfoLevel, "three", nil)
	fire(t, buffer, logrus.InfoLevel, "four", nil)

	errorsOnly := buffer.GetEventsWithFilter(LogFilter{Levels: []logrus.Level{logrus.ErrorLevel}})
	require.Len(t, errorsOnly, 1)
	assert.Equal(t, "two", errorsOnly[0].Message)

	latest := buffer.GetEventsWithFilter(LogFilter{Limit: 2})
	require.Len(t, latest, 2)
	assert.Equal(t, "three", latest[0].Message)
	assert.Equal(t, "four", latest[1].Message)

	future := time.Now().Add(time.Hour)
	assert.Empty(t, buffer.GetEventsWithFilter(LogFilter{Since: &future}))
}

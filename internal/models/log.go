package models

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const redacted = "[redacted]"

// sensitiveFields never reach the /logs endpoint with their value.
var sensitiveFields = []string{"password", "token", "authorization", "secret", "cookie"}

// LogEntry is one event kept by the in-memory log buffer.
type LogEntry struct {
	Data          logrus.Fields `json:"data,omitempty"`
	Time          time.Time     `json:"time"`
	Level         string        `json:"level"`
	Message       string        `json:"message,omitempty"`
	CorrelationID string        `json:"correlation_id,omitempty"`
}

func NewLogEntry(entry *logrus.Entry) *LogEntry {
	logEntry := &LogEntry{
		Time:    entry.Time,
		Level:   entry.Level.String(),
		Message: entry.Message,
	}

	if len(entry.Data) == 0 {
		return logEntry
	}

	// The hook must not share the map with the entry that is still being formatted
	logEntry.Data = make(logrus.Fields, len(entry.Data))
	for key, value := range entry.Data {
		if isSensitiveField(key) {
			value = redacted
		}
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		logEntry.Data[key] = value
	}

	if id, ok := entry.Data["correlation_id"].(string); ok {
		logEntry.CorrelationID = id
	}

	return logEntry
}

// ParsedLevel returns the logrus level of the entry.
func (e *LogEntry) ParsedLevel() logrus.Level {
	level, err := logrus.ParseLevel(e.Level)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func isSensitiveField(key string) bool {
	key = strings.ToLower(key)
	for _, name := range sensitiveFields {
		if strings.Contains(key, name) {
			return true
		}
	}
	return false
}

package config

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/visarisk/agent/internal/models"
)

const defaultRingSize = 1000

// LogBuffer is a logrus hook keeping the most recent entries in memory.
// Fields that look like credentials are dropped before an entry is kept.
type LogBuffer struct {
	sessionUID uuid.UUID
	buffer     []*models.LogEntry
	maxSize    int
	currentPos int
	isFull     bool
	mu         sync.RWMutex
}

func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = defaultRingSize
	}
	return &LogBuffer{
		sessionUID: uuid.New(),
		buffer:     make([]*models.LogEntry, size),
		maxSize:    size,
	}
}

func (t *LogBuffer) Fire(entry *logrus.Entry) error {
	logEntry := models.NewLogEntry(entry)
	if logEntry.Data == nil {
		logEntry.Data = logrus.Fields{}
	}
	logEntry.Data["run"] = t.sessionUID.String()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.buffer[t.currentPos] = logEntry
	t.currentPos = (t.currentPos + 1) % t.maxSize

	if t.currentPos == 0 {
		t.isFull = true
	}

	return nil
}

func (t *LogBuffer) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
		logrus.WarnLevel,
		logrus.InfoLevel,
	}
}

func (t *LogBuffer) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buffer = make([]*models.LogEntry, t.maxSize)
	t.currentPos = 0
	t.isFull = false
}

// GetEvents returns all kept entries, oldest first.
func (t *LogBuffer) GetEvents() []*models.LogEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ordered()
}

// LogFilter contains the filtering criteria for log events
type LogFilter struct {
	Levels []logrus.Level `json:"levels,omitempty"`
	Since  *time.Time     `json:"since,omitempty"`
	// Limit keeps the newest entries; 0 means no limit
	Limit int `json:"limit,omitempty"`
}

func (t *LogBuffer) GetEventsWithFilter(filter LogFilter) []*models.LogEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	levels := make(map[logrus.Level]bool, len(filter.Levels))
	for _, level := range filter.Levels {
		levels[level] = true
	}

	var filtered []*models.LogEntry

	for _, entry := range t.ordered() {
		if len(levels) > 0 && !levels[entry.ParsedLevel()] {
			continue
		}
		if filter.Since != nil && entry.Time.Before(*filter.Since) {
			continue
		}
		filtered = append(filtered, entry)
	}

	if filter.Limit > 0 && len(filtered) > filter.Limit {
		filtered = filtered[len(filtered)-filter.Limit:]
	}

	return filtered
}

// ordered assumes the caller holds the lock.
func (t *LogBuffer) ordered() []*models.LogEntry {
	if !t.isFull {
		result := make([]*models.LogEntry, t.currentPos)
		copy(result, t.buffer[:t.currentPos])
		return result
	}

	result := make([]*models.LogEntry, t.maxSize)
	copy(result, t.buffer[t.currentPos:])
	copy(result[t.maxSize-t.currentPos:], t.buffer[:t.currentPos])
	return result
}

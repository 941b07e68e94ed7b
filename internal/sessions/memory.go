package sessions

import (
	"sync"
	"time"

	"github.com/visarisk/agent/internal/models"
)

// MemoryStore keeps the session for the lifetime of the process only.
type MemoryStore struct {
	lock       sync.Mutex
	credential *models.Credential
	modified   time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Read() (*models.Credential, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.credential.IsZero() {
		return nil, nil
	}
	out := *m.credential
	return &out, nil
}

func (m *MemoryStore) Write(credential models.Credential) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.credential = &credential
	m.modified = time.Now().UTC()
	return nil
}

func (m *MemoryStore) Clear() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.credential = nil
	m.modified = time.Now().UTC()
	return nil
}

func (m *MemoryStore) Modified() (time.Time, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.modified, nil
}

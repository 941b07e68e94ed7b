package sessions

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/visarisk/agent/internal/models"
	"gopkg.in/yaml.v3"
)

const RecordVersion = "1.0"

var DefaultSessionPath = "~/.config/visarisk/"

// FileStore keeps one YAML record per backend host, e.g.
// ~/.config/visarisk/127.0.0.1.yaml. Records are replaced with a rename so
// another agent instance never observes a partial write.
type FileStore struct {
	lock sync.Mutex
	path string
}

// NewFileStore returns a store for the given backend hostname under dir.
// An empty dir uses DefaultSessionPath.
func NewFileStore(dir string, backendHost string) (*FileStore, error) {

	if len(dir) == 0 {
		dir = DefaultSessionPath
	}

	dir, err := expandHome(dir)
	if err != nil {
		return nil, err
	}

	backendHost = normalizeHostname(backendHost)
	if len(backendHost) == 0 {
		backendHost = "localhost"
	}

	if strings.ContainsAny(backendHost, `/\`) || strings.Contains(backendHost, "..") {
		return nil, fmt.Errorf("invalid backend hostname: %s", backendHost)
	}

	// Only the owner may read or list the session directory
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	return &FileStore{
		path: filepath.Join(dir, fmt.Sprintf("%s.yaml", backendHost)),
	}, nil
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Read() (*models.Credential, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	record, err := f.load()
	if err != nil {
		return nil, err
	}

	if record == nil || record.Session.IsZero() {
		return nil, nil
	}

	return record.Session, nil
}

func (f *FileStore) Write(credential models.Credential) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	logrus.WithFields(logrus.Fields{
		"path":       f.path,
		"hasRefresh": len(credential.RefreshToken) > 0,
	}).Debugln("Writing session record")

	record := models.StoredSession{
		Version:   RecordVersion,
		Timestamp: time.Now().UTC(),
		Session:   &credential,
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(record); err != nil {
		return fmt.Errorf("failed to encode session record: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to encode session record: %w", err)
	}

	return f.replace(buf.Bytes())
}

func (f *FileStore) Clear() error {
	f.lock.Lock()
	defer f.lock.Unlock()

	logrus.WithField("path", f.path).Debugln("Clearing session record")

	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session record: %w", err)
	}
	return nil
}

// Modified returns the timestamp of the current record, or the zero time
// when nothing is stored.
func (f *FileStore) Modified() (time.Time, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	record, err := f.load()
	if err != nil {
		return time.Time{}, err
	}
	if record == nil {
		return time.Time{}, nil
	}
	return record.Timestamp, nil
}

func (f *FileStore) load() (*models.StoredSession, error) {

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read session record: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var record models.StoredSession
	if err := yaml.Unmarshal(data, &record); err != nil {
		logrus.WithError(err).WithField("path", f.path).Errorln("Failed to parse session record")
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	return &record, nil
}

func (f *FileStore) replace(data []byte) error {

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create session record: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func(cause error) error {
		tmp.Close()
		os.Remove(tmpName)
		return cause
	}

	if err := tmp.Chmod(0o600); err != nil {
		return cleanup(fmt.Errorf("failed to restrict session record: %w", err))
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(fmt.Errorf("failed to write session record: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("failed to flush session record: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close session record: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit session record: %w", err)
	}

	return nil
}

// normalizeHostname accepts either a bare hostname or a full backend URL.
func normalizeHostname(backend string) string {
	backend = strings.TrimSpace(backend)
	if strings.Contains(backend, "://") {
		parsed, err := url.Parse(backend)
		if err != nil {
			return ""
		}
		return parsed.Hostname()
	}
	return backend
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	usr, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}

	return filepath.Join(usr.HomeDir, strings.TrimPrefix(path, "~")), nil
}

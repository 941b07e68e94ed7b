package sessions

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/visarisk/agent/internal/models"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()

	dir := t.TempDir()
	store, err := NewFileStore(dir, "api.visarisk.test")
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}
	return store, dir
}

func TestFileStore_ReadAbsent(t *testing.T) {
	store, _ := newTestFileStore(t)

	credential, err := store.Read()
	if err != nil {
		t.Fatalf("Absent record should not be an error: %v", err)
	}
	if credential != nil {
		t.Errorf("Expected no credential, got %+v", credential)
	}
}

func TestFileStore_WriteAndRead(t *testing.T) {
	store, _ := newTestFileStore(t)

	err := store.Write(models.Credential{AccessToken: "T1", RefreshToken: "R1"})
	if err != nil {
		t.Fatalf("Failed to write credential: %v", err)
	}

	credential, err := store.Read()
	if err != nil {
		t.Fatalf("Failed to read credential: %v", err)
	}
	if credential == nil {
		t.Fatal("Expected credential, got nil")
	}
	if credential.AccessToken != "T1" || credential.RefreshToken != "R1" {
		t.Errorf("Expected {T1 R1}, got %+v", credential)
	}
}

func TestFileStore_RecordLayout(t *testing.T) {
	store, _ := newTestFileStore(t)

	if err := store.Write(models.Credential{AccessToken: "T1"}); err != nil {
		t.Fatalf("Failed to write credential: %v", err)
	}
	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("Failed to read record: %v", err)
	}
	if strings.Contains(string(data), "refresh_token") {
		t.Errorf("Empty refresh token should be omitted, got:\n%s", data)
	}

	if err := store.Write(models.Credential{AccessToken: "T1", RefreshToken: "R1"}); err != nil {
		t.Fatalf("Failed to write credential: %v", err)
	}
	data, err = os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("Failed to read record: %v", err)
	}
	if !strings.Contains(string(data), "refresh_token: R1") {
		t.Errorf("Expected a plain refresh_token entry, got:\n%s", data)
	}
}

func TestFileStore_WriteOverwrites(t *testing.T) {
	store, _ := newTestFileStore(t)

	if err := store.Write(models.Credential{AccessToken: "T1", RefreshToken: "R1"}); err != nil {
		t.Fatalf("Failed to write credential: %v", err)
	}
	if err := store.Write(models.Credential{AccessToken: "T2"}); err != nil {
		t.Fatalf("Failed to write credential: %v", err)
	}

	credential, err := store.Read()
	if err != nil {
		t.Fatalf("Failed to read credential: %v", err)
	}
	if credential.AccessToken != "T2" || credential.RefreshToken != "" {
		t.Errorf("Expected {T2 \"\"}, got %+v", credential)
	}
}

func TestFileStore_VisibleToSecondInstance(t *testing.T) {
	store, dir := newTestFileStore(t)

	if err := store.Write(models.Credential{AccessToken: "T1", RefreshToken: "R1"}); err != nil {
		t.Fatalf("Failed to write credential: %v", err)
	}

	// A freshly started instance reads the same record from disk
	other, err := NewFileStore(dir, "https://api.visarisk.test:8443/api")
	if err != nil {
		t.Fatalf("Failed to create second store: %v", err)
	}

	credential, err := other.Read()
	if err != nil {
		t.Fatalf("Failed to read credential: %v", err)
	}
	if credential == nil || credential.AccessToken != "T1" {
		t.Errorf("Expected T1 from second instance, got %+v", credential)
	}
}

func TestFileStore_ClearIsIdempotent(t *testing.T) {
	store, _ := newTestFileStore(t)

	if err := store.Write(models.Credential{AccessToken: "T1"}); err != nil {
		t.Fatalf("Failed to write credential: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear %d failed: %v", i, err)
		}
	}

	credential, err := store.Read()
	if err != nil {
		t.Fatalf("Failed to read after clear: %v", err)
	}
	if credential != nil {
		t.Errorf("Expected no credential after clear, got %+v", credential)
	}

	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Errorf("Expected record %s to be removed", store.Path())
	}
}

func TestFileStore_FilePermissions(t *testing.T) {
	store, _ := newTestFileStore(t)

	if err := store.Write(models.Credential{AccessToken: "T1"}); err != nil {
		t.Fatalf("Failed to write credential: %v", err)
	}

	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatalf("Failed to stat record: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Expected 0600 permissions, got %o", info.Mode().Perm())
	}
}

func TestFileStore_CorruptAndEmptyRecords(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		expectError bool
	}{
		{
			name:        "empty file reads as absent",
			content:     "",
			expectError: false,
		},
		{
			name:        "record without session reads as absent",
			content:     "version: \"1.0\"\ntimestamp: 2025-01-01T00:00:00Z\n",
			expectError: false,
		},
		{
			name:        "record with blank access token reads as absent",
			content:     "version: \"1.0\"\nsession:\n  access_token: \"\"\n",
			expectError: false,
		},
		{
			name:        "invalid yaml is corrupt",
			content:     "session: [this is: not valid",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newTestFileStore(t)

			if err := os.WriteFile(store.Path(), []byte(tt.content), 0o600); err != nil {
				t.Fatalf("Failed to seed record: %v", err)
			}

			credential, err := store.Read()

			if tt.expectError {
				if !errors.Is(err, ErrCorruptRecord) {
					t.Errorf("Expected ErrCorruptRecord, got %v", err)
				}
				return
			}

			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if credential != nil {
				t.Errorf("Expected no credential, got %+v", credential)
			}
		})
	}
}

func TestFileStore_Modified(t *testing.T) {
	store, _ := newTestFileStore(t)

	modified, err := store.Modified()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !modified.IsZero() {
		t.Errorf("Expected zero timestamp before first write, got %v", modified)
	}

	before := time.Now().UTC().Add(-time.Second)
	if err := store.Write(models.Credential{AccessToken: "T1"}); err != nil {
		t.Fatalf("Failed to write credential: %v", err)
	}

	modified, err = store.Modified()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if modified.Before(before) {
		t.Errorf("Expected timestamp after %v, got %v", before, modified)
	}
}

func TestFileStore_ConcurrentWritesNeverTear(t *testing.T) {
	store, _ := newTestFileStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Go(func() {
			token := "token-" + string(rune('a'+i))
			if err := store.Write(models.Credential{AccessToken: token, RefreshToken: token}); err != nil {
				t.Errorf("Write failed: %v", err)
			}
		})
	}
	wg.Wait()

	credential, err := store.Read()
	if err != nil {
		t.Fatalf("Failed to read credential: %v", err)
	}
	if credential == nil || credential.AccessToken != credential.RefreshToken {
		t.Errorf("Expected a complete record, got %+v", credential)
	}

	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(store.Path()), ".session-*"))
	if len(leftovers) != 0 {
		t.Errorf("Expected no temporary files, found %v", leftovers)
	}
}

func TestNewFileStore_NormalizesHostname(t *testing.T) {
	tests := []struct {
		name         string
		backend      string
		expectedFile string
		expectError  bool
	}{
		{
			name:         "URL with scheme is normalized to hostname",
			backend:      "http://127.0.0.1:8000/api",
			expectedFile: "127.0.0.1.yaml",
		},
		{
			name:         "plain hostname remains unchanged",
			backend:      "api.visarisk.test",
			expectedFile: "api.visarisk.test.yaml",
		},
		{
			name:         "empty hostname falls back to localhost",
			backend:      "",
			expectedFile: "localhost.yaml",
		},
		{
			name:        "path traversal is rejected",
			backend:     "../../etc",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			store, err := NewFileStore(dir, tt.backend)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if store.Path() != filepath.Join(dir, tt.expectedFile) {
				t.Errorf("Expected path %s, got %s", filepath.Join(dir, tt.expectedFile), store.Path())
			}
		})
	}
}

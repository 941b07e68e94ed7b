package sessions

import (
	"testing"

	"github.com/visarisk/agent/internal/models"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	credential, err := store.Read()
	if err != nil || credential != nil {
		t.Fatalf("Expected empty store, got %+v, %v", credential, err)
	}

	if err := store.Write(models.Credential{AccessToken: "T1", RefreshToken: "R1"}); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	credential, _ = store.Read()
	if credential == nil || credential.AccessToken != "T1" {
		t.Fatalf("Expected T1, got %+v", credential)
	}

	// Mutating the returned value must not change the stored record
	credential.AccessToken = "mutated"
	again, _ := store.Read()
	if again.AccessToken != "T1" {
		t.Errorf("Store leaked its internal record")
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Second clear failed: %v", err)
	}

	credential, _ = store.Read()
	if credential != nil {
		t.Errorf("Expected empty store after clear, got %+v", credential)
	}
}

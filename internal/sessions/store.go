package sessions

import (
	"errors"
	"time"

	"github.com/visarisk/agent/internal/models"
)

var ErrCorruptRecord = errors.New("stored session record is corrupt")

// Store persists the credential material of the current session.
//
// Read returns nil with a nil error when no session is stored. An error is
// only returned when a record exists but cannot be used.
type Store interface {
	Read() (*models.Credential, error)
	Write(credential models.Credential) error
	Clear() error
}

// TrackedStore also reports when the stored record last changed, so a
// process can notice a session written by another instance.
type TrackedStore interface {
	Store
	Modified() (time.Time, error)
}

package common

import (
	"crypto/sha256"
	"sync"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
)

const clientIdentifierApp = "visarisk-agent"

var (
	clientIdentifier     uuid.UUID
	clientIdentifierOnce sync.Once
)

// GetClientIdentifier returns a UUID that stays the same for this machine.
// The machine id is hashed with the application name so the raw id never
// leaves the device. If no machine id is available the identifier is
// random for the lifetime of the process.
func GetClientIdentifier() uuid.UUID {
	clientIdentifierOnce.Do(func() {
		id, err := machineid.ProtectedID(clientIdentifierApp)
		if err != nil {
			clientIdentifier = uuid.New()
			return
		}
		hash := sha256.Sum256([]byte(id))
		clientIdentifier = uuid.UUID(hash[:16])
	})
	return clientIdentifier
}

package device

import (
	"strings"

	"github.com/google/uuid"
)

// IdentityStore persists the installation's device id locally.
// Load returns "" when nothing has been stored yet.
type IdentityStore interface {
	Load() (string, error)
	Save(deviceID string) error
}

// ResolveIdentity returns the installation identity, generating and persisting a
// device id the first time it is asked. It never fails: an unreadable store is
// treated as empty, and a failed save still yields a usable id for this cycle.
func ResolveIdentity(store IdentityStore, userAgent string) Identity {
	return Identity{
		DeviceID:   resolveDeviceID(store),
		DeviceType: Classify(userAgent),
		DeviceName: Label(userAgent),
	}
}

func resolveDeviceID(store IdentityStore) string {
	if id, err := store.Load(); err == nil {
		id = strings.TrimSpace(id)
		if ValidateDeviceID(id) == nil {
			return id
		}
	}

	id := NewDeviceID()
	_ = store.Save(id)
	return id
}

// NewDeviceID generates a fresh opaque installation token
func NewDeviceID() string {
	return uuid.NewString()
}

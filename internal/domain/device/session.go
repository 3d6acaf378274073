package device

import (
	"time"

	"github.com/bizops/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// RevokedMessage is shown to an installation whose session was revoked
const RevokedMessage = "This device has been revoked by an administrator."

// Session is the registry row for one (tenant, device) pair.
// CreatedAt is the first registration time and the seniority key.
type Session struct {
	shared.TenantEntity
	PrincipalID  uuid.UUID
	DeviceID     string
	DeviceType   Type
	DeviceName   string
	IsActive     bool
	LastActiveAt time.Time
	RevokedAt    *time.Time
}

// NewSession builds the row written by a check-in at now
func NewSession(tenantID, principalID uuid.UUID, id Identity, now time.Time) (*Session, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant id is required")
	}
	if err := ValidateDeviceID(id.DeviceID); err != nil {
		return nil, err
	}
	if !id.DeviceType.IsValid() {
		return nil, shared.NewDomainError("INVALID_DEVICE_TYPE", "Device type must be desktop or mobile")
	}

	return &Session{
		TenantEntity: shared.NewTenantEntity(tenantID, now),
		PrincipalID:  principalID,
		DeviceID:     id.DeviceID,
		DeviceType:   id.DeviceType,
		DeviceName:   id.DeviceName,
		IsActive:     true,
		LastActiveAt: now,
	}, nil
}

// CountsAt reports whether the session occupies a slot for a window starting at since
func (s *Session) CountsAt(since time.Time) bool {
	return s.IsActive && !s.LastActiveAt.Before(since)
}

// Revoke deactivates the session. Revocation is permanent for this device id.
func (s *Session) Revoke(at time.Time) error {
	if !s.IsActive {
		return shared.NewDomainError("ALREADY_REVOKED", "Device session is already revoked")
	}
	s.IsActive = false
	s.RevokedAt = &at
	s.UpdatedAt = at
	return nil
}

// Window returns the start of the activity window ending at now
func Window(now time.Time, length time.Duration) time.Time {
	return now.Add(-length)
}

// DefaultActivityWindow is how long a silent device keeps its slot
const DefaultActivityWindow = 30 * 24 * time.Hour

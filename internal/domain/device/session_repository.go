package device

import (
	"context"
	"time"

	"github.com/bizops/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// SessionFilter narrows a tenant's session listing
type SessionFilter struct {
	shared.Filter
	Type       Type
	ActiveOnly bool
	Since      *time.Time
}

// SessionRepository is the session registry
type SessionRepository interface {
	// Upsert inserts the session or, when (tenant_id, device_id) already exists,
	// refreshes last_active_at, device_type and device_name only. It returns the stored row.
	Upsert(ctx context.Context, s *Session) (*Session, error)

	// CountActiveByType counts active sessions with last_active_at >= since, per class
	CountActiveByType(ctx context.Context, tenantID uuid.UUID, since time.Time) (Counts, error)

	// FindOldestActive returns up to limit active sessions of class t with
	// last_active_at >= since, ordered by created_at then device_id
	FindOldestActive(ctx context.Context, tenantID uuid.UUID, t Type, since time.Time, limit int) ([]Session, error)

	// FindByID finds a session of the tenant by its row id
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Session, error)

	// FindByTenantAndDevice finds a session by its natural key
	FindByTenantAndDevice(ctx context.Context, tenantID uuid.UUID, deviceID string) (*Session, error)

	// FindByTenant lists the tenant's sessions
	FindByTenant(ctx context.Context, tenantID uuid.UUID, filter SessionFilter) ([]Session, int64, error)

	// Save persists the activation state (is_active, revoked_at) of an existing session
	Save(ctx context.Context, s *Session) error
}

// ContainsDevice reports whether deviceID is among sessions
func ContainsDevice(sessions []Session, deviceID string) bool {
	for i := range sessions {
		if sessions[i].DeviceID == deviceID {
			return true
		}
	}
	return false
}

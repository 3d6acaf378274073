package device

import (
	"time"

	"github.com/bizops/backend/internal/domain/device"
	"github.com/google/uuid"
)

// SessionResponse represents a device session in API responses
type SessionResponse struct {
	ID           uuid.UUID   `json:"id"`
	DeviceID     string      `json:"device_id"`
	DeviceType   device.Type `json:"device_type"`
	DeviceName   string      `json:"device_name"`
	IsActive     bool        `json:"is_active"`
	HoldsSlot    bool        `json:"holds_slot"`
	CreatedAt    time.Time   `json:"created_at"`
	LastActiveAt time.Time   `json:"last_active_at"`
	RevokedAt    *time.Time  `json:"revoked_at,omitempty"`
}

// ToSessionResponse converts a domain Session, marking whether it holds a slot at since
func ToSessionResponse(s *device.Session, since time.Time) SessionResponse {
	return SessionResponse{
		ID:           s.ID,
		DeviceID:     s.DeviceID,
		DeviceType:   s.DeviceType,
		DeviceName:   s.DeviceName,
		IsActive:     s.IsActive,
		HoldsSlot:    s.CountsAt(since),
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
		RevokedAt:    s.RevokedAt,
	}
}

// UsageResponse summarizes a tenant's device quota
type UsageResponse struct {
	TenantID    uuid.UUID     `json:"tenant_id"`
	Plan        string        `json:"plan"`
	Limits      device.Limits `json:"limits"`
	ActiveCount device.Counts `json:"active_count"`
	WindowStart time.Time     `json:"window_start"`
}

// ListSessionsQuery filters a tenant's session listing
type ListSessionsQuery struct {
	Page       int
	PageSize   int
	OrderBy    string
	OrderDir   string
	DeviceType device.Type
	ActiveOnly bool
}

package models

import (
	"time"

	"github.com/bizops/backend/internal/domain/device"
	"github.com/bizops/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DeviceSessionModel is the persistence model for a device session.
// (tenant_id, device_id) is unique; registration upserts on it.
type DeviceSessionModel struct {
	BaseModel
	TenantID     uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:uq_device_sessions_tenant_device,priority:1;index:idx_device_sessions_window,priority:1"`
	PrincipalID  uuid.UUID   `gorm:"type:uuid;not null;index"`
	DeviceID     string      `gorm:"type:varchar(128);not null;uniqueIndex:uq_device_sessions_tenant_device,priority:2"`
	DeviceType   device.Type `gorm:"type:varchar(16);not null;index:idx_device_sessions_window,priority:3"`
	DeviceName   string      `gorm:"type:varchar(100);not null"`
	IsActive     bool        `gorm:"not null;index:idx_device_sessions_window,priority:2"`
	LastActiveAt time.Time   `gorm:"not null;index:idx_device_sessions_window,priority:4"`
	RevokedAt    *time.Time
}

// TableName returns the table name for GORM
func (DeviceSessionModel) TableName() string {
	return "device_sessions"
}

// ToDomain converts the persistence model to a domain Session.
func (m *DeviceSessionModel) ToDomain() *device.Session {
	return &device.Session{
		TenantEntity: shared.TenantEntity{
			BaseEntity: m.BaseModel.ToDomain(),
			TenantID:   m.TenantID,
		},
		PrincipalID:  m.PrincipalID,
		DeviceID:     m.DeviceID,
		DeviceType:   m.DeviceType,
		DeviceName:   m.DeviceName,
		IsActive:     m.IsActive,
		LastActiveAt: m.LastActiveAt,
		RevokedAt:    m.RevokedAt,
	}
}

// FromDomain populates the persistence model from a domain Session.
func (m *DeviceSessionModel) FromDomain(s *device.Session) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.TenantID = s.TenantID
	m.PrincipalID = s.PrincipalID
	m.DeviceID = s.DeviceID
	m.DeviceType = s.DeviceType
	m.DeviceName = s.DeviceName
	m.IsActive = s.IsActive
	m.LastActiveAt = s.LastActiveAt
	m.RevokedAt = s.RevokedAt
}

// DeviceSessionModelFromDomain creates a new persistence model from a domain Session.
func DeviceSessionModelFromDomain(s *device.Session) *DeviceSessionModel {
	m := &DeviceSessionModel{}
	m.FromDomain(s)
	return m
}

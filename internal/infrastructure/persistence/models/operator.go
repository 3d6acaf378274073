package models

import (
	"time"

	"github.com/bizops/backend/internal/domain/identity"
	"github.com/google/uuid"
)

// PlatformOperatorModel is the persistence model for an operator grant.
type PlatformOperatorModel struct {
	UserID    uuid.UUID  `gorm:"type:uuid;primary_key"`
	GrantedBy *uuid.UUID `gorm:"type:uuid"`
	GrantedAt time.Time  `gorm:"not null"`
	RevokedAt *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (PlatformOperatorModel) TableName() string {
	return "platform_operators"
}

// ToDomain converts the persistence model to a domain PlatformOperator.
func (m *PlatformOperatorModel) ToDomain() *identity.PlatformOperator {
	return &identity.PlatformOperator{
		UserID:    m.UserID,
		GrantedBy: m.GrantedBy,
		GrantedAt: m.GrantedAt,
		RevokedAt: m.RevokedAt,
	}
}

// PlatformOperatorModelFromDomain creates a new persistence model from a domain PlatformOperator.
func PlatformOperatorModelFromDomain(op *identity.PlatformOperator) *PlatformOperatorModel {
	return &PlatformOperatorModel{
		UserID:    op.UserID,
		GrantedBy: op.GrantedBy,
		GrantedAt: op.GrantedAt,
		RevokedAt: op.RevokedAt,
	}
}

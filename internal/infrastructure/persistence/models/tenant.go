package models

import (
	"github.com/bizops/backend/internal/domain/identity"
)

// TenantModel is the persistence model for the Tenant aggregate.
type TenantModel struct {
	AggregateModel
	Code              string                `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name              string                `gorm:"type:varchar(200);not null"`
	Status            identity.TenantStatus `gorm:"type:varchar(20);not null;default:'active'"`
	Plan              identity.TenantPlan   `gorm:"type:varchar(20)"`
	MaxDesktopDevices *int
	MaxMobileDevices  *int
}

// TableName returns the table name for GORM
func (TenantModel) TableName() string {
	return "tenants"
}

// ToDomain converts the persistence model to a domain Tenant.
func (m *TenantModel) ToDomain() *identity.Tenant {
	return &identity.Tenant{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Code:              m.Code,
		Name:              m.Name,
		Status:            m.Status,
		Plan:              m.Plan,
		MaxDesktopDevices: m.MaxDesktopDevices,
		MaxMobileDevices:  m.MaxMobileDevices,
	}
}

// FromDomain populates the persistence model from a domain Tenant.
func (m *TenantModel) FromDomain(t *identity.Tenant) {
	m.FromDomainAggregateRoot(t.BaseAggregateRoot)
	m.Code = t.Code
	m.Name = t.Name
	m.Status = t.Status
	m.Plan = t.Plan
	m.MaxDesktopDevices = t.MaxDesktopDevices
	m.MaxMobileDevices = t.MaxMobileDevices
}

// TenantModelFromDomain creates a new persistence model from a domain Tenant.
func TenantModelFromDomain(t *identity.Tenant) *TenantModel {
	m := &TenantModel{}
	m.FromDomain(t)
	return m
}

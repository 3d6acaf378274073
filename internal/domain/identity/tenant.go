package identity

import (
	"strings"
	"time"

	"github.com/bizops/backend/internal/domain/shared"
)

// TenantStatus represents the status of a tenant
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusInactive  TenantStatus = "inactive"
	TenantStatusSuspended TenantStatus = "suspended" // Suspended due to payment issues
	TenantStatusTrial     TenantStatus = "trial"
)

// TenantPlan represents the subscription tier of a tenant
type TenantPlan string

const (
	TenantPlanFree    TenantPlan = "free"
	TenantPlanPro     TenantPlan = "pro"
	TenantPlanPremium TenantPlan = "premium"
)

// String returns the plan identifier
func (p TenantPlan) String() string {
	return string(p)
}

// IsKnown reports whether p is one of the published tiers
func (p TenantPlan) IsKnown() bool {
	switch p {
	case TenantPlanFree, TenantPlanPro, TenantPlanPremium:
		return true
	default:
		return false
	}
}

// Tenant is one customer company using the application.
// Device overrides are nullable: nil means "inherit the tier default for that class".
type Tenant struct {
	shared.BaseAggregateRoot
	Code              string
	Name              string
	Status            TenantStatus
	Plan              TenantPlan
	MaxDesktopDevices *int
	MaxMobileDevices  *int
}

// NewTenant creates a new tenant on the free plan
func NewTenant(code, name string) (*Tenant, error) {
	if err := validateTenantCode(code); err != nil {
		return nil, err
	}
	if err := validateTenantName(name); err != nil {
		return nil, err
	}

	return &Tenant{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(time.Now()),
		Code:              strings.ToUpper(code),
		Name:              name,
		Status:            TenantStatusActive,
		Plan:              TenantPlanFree,
	}, nil
}

// SetPlan sets the tenant's subscription plan
func (t *Tenant) SetPlan(plan TenantPlan) error {
	if !plan.IsKnown() {
		return shared.NewDomainError("INVALID_PLAN", "Invalid tenant plan")
	}

	t.Plan = plan
	t.touch()
	return nil
}

// SetDeviceOverrides replaces both per-class overrides. Pass nil to clear an override.
func (t *Tenant) SetDeviceOverrides(desktop, mobile *int) error {
	if desktop != nil && *desktop < 0 {
		return shared.NewDomainError("INVALID_DEVICE_LIMIT", "Desktop device limit cannot be negative")
	}
	if mobile != nil && *mobile < 0 {
		return shared.NewDomainError("INVALID_DEVICE_LIMIT", "Mobile device limit cannot be negative")
	}

	t.MaxDesktopDevices = copyInt(desktop)
	t.MaxMobileDevices = copyInt(mobile)
	t.touch()
	return nil
}

// Suspend suspends the tenant
func (t *Tenant) Suspend() error {
	if t.Status == TenantStatusSuspended {
		return shared.NewDomainError("ALREADY_SUSPENDED", "Tenant is already suspended")
	}
	t.Status = TenantStatusSuspended
	t.touch()
	return nil
}

// IsActive returns true if the tenant is active
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// HasPlan reports whether the tenant record carries a tier at all.
// A tenant without one has not finished provisioning.
func (t *Tenant) HasPlan() bool {
	return strings.TrimSpace(string(t.Plan)) != ""
}

func (t *Tenant) touch() {
	t.UpdatedAt = time.Now()
	t.IncrementVersion()
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func validateTenantCode(code string) error {
	if code == "" {
		return shared.NewDomainError("INVALID_CODE", "Tenant code cannot be empty")
	}
	if len(code) > 50 {
		return shared.NewDomainError("INVALID_CODE", "Tenant code cannot exceed 50 characters")
	}
	for _, r := range code {
		if !((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-') {
			return shared.NewDomainError("INVALID_CODE", "Tenant code can only contain letters, numbers, underscores, and hyphens")
		}
	}
	return nil
}

func validateTenantName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Tenant name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Tenant name cannot exceed 200 characters")
	}
	return nil
}

package device

import (
	"fmt"
	"strings"

	"github.com/bizops/backend/internal/domain/identity"
)

// Limits is a capacity pair per device class
type Limits struct {
	Desktop int `json:"desktop"`
	Mobile  int `json:"mobile"`
}

// For returns the capacity for the given class
func (l Limits) For(t Type) int {
	if t == TypeMobile {
		return l.Mobile
	}
	return l.Desktop
}

// Counts is the number of active sessions per device class
type Counts struct {
	Desktop int `json:"desktop"`
	Mobile  int `json:"mobile"`
}

// For returns the count for the given class
func (c Counts) For(t Type) int {
	if t == TypeMobile {
		return c.Mobile
	}
	return c.Desktop
}

// Add increments the count for the given class
func (c *Counts) Add(t Type, n int) {
	if t == TypeMobile {
		c.Mobile += n
		return
	}
	c.Desktop += n
}

var planDefaults = map[identity.TenantPlan]Limits{
	identity.TenantPlanFree:    {Desktop: 1, Mobile: 1},
	identity.TenantPlanPro:     {Desktop: 1, Mobile: 2},
	identity.TenantPlanPremium: {Desktop: 1, Mobile: 9},
}

// EffectivePlan maps an unknown or missing tier onto the free tier
func EffectivePlan(plan identity.TenantPlan) identity.TenantPlan {
	if _, ok := planDefaults[plan]; ok {
		return plan
	}
	return identity.TenantPlanFree
}

// DefaultLimits returns the published capacity for a tier
func DefaultLimits(plan identity.TenantPlan) Limits {
	return planDefaults[EffectivePlan(plan)]
}

// ResolveLimits applies per-class overrides on top of the tier defaults.
// Each class resolves independently; a nil override inherits the default.
func ResolveLimits(plan identity.TenantPlan, desktopOverride, mobileOverride *int) Limits {
	limits := DefaultLimits(plan)
	if desktopOverride != nil {
		limits.Desktop = *desktopOverride
	}
	if mobileOverride != nil {
		limits.Mobile = *mobileOverride
	}
	return limits
}

// LimitsForTenant resolves the effective limits from a tenant record
func LimitsForTenant(t *identity.Tenant) Limits {
	return ResolveLimits(t.Plan, t.MaxDesktopDevices, t.MaxMobileDevices)
}

// DenialMessage is the user-facing text shown when a class is full
func DenialMessage(t Type, limit int, plan identity.TenantPlan) string {
	return fmt.Sprintf("Limit of %d %s device(s) reached for the %s plan.",
		limit, t, strings.ToUpper(EffectivePlan(plan).String()))
}

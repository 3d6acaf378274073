package identity

import (
	"context"

	"github.com/google/uuid"
)

// TenantRepository reads and writes tenant records.
// The admission path only ever calls FindByID.
type TenantRepository interface {
	// FindByID finds a tenant by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)

	// Save creates or updates a tenant
	Save(ctx context.Context, tenant *Tenant) error
}

package identity

import (
	"context"
	"time"

	"github.com/bizops/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// PlatformOperator grants a user unconditional access across tenants.
type PlatformOperator struct {
	UserID    uuid.UUID
	GrantedBy *uuid.UUID
	GrantedAt time.Time
	RevokedAt *time.Time
}

// NewPlatformOperator creates a grant for userID effective from at.
// grantedBy is nil for grants made from the command line.
func NewPlatformOperator(userID uuid.UUID, grantedBy *uuid.UUID, at time.Time) (*PlatformOperator, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "Operator user id cannot be empty")
	}
	return &PlatformOperator{UserID: userID, GrantedBy: grantedBy, GrantedAt: at}, nil
}

// IsEffective reports whether the grant is still in force at the given time
func (o *PlatformOperator) IsEffective(at time.Time) bool {
	return o.RevokedAt == nil || o.RevokedAt.After(at)
}

// OperatorChecker answers whether a principal is a platform operator.
type OperatorChecker interface {
	IsOperator(ctx context.Context, userID uuid.UUID) (bool, error)
}

// OperatorRepository persists operator grants
type OperatorRepository interface {
	OperatorChecker
	Find(ctx context.Context, userID uuid.UUID) (*PlatformOperator, error)
	Grant(ctx context.Context, op *PlatformOperator) error
	Revoke(ctx context.Context, userID uuid.UUID, at time.Time) error
}

// Package operator manages platform operator grants.
package operator

import (
	"context"
	"errors"
	"time"

	"github.com/bizops/backend/internal/domain/identity"
	"github.com/bizops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrAlreadyOperator is returned when granting to a user whose grant is in force
var ErrAlreadyOperator = shared.NewDomainError("ALREADY_OPERATOR", "User is already a platform operator")

// CacheInvalidator drops a cached operator answer
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// Service grants and revokes platform operator access
type Service struct {
	repo   identity.OperatorRepository
	cache  CacheInvalidator
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithCache invalidates cached answers after every change
func WithCache(cache CacheInvalidator) Option {
	return func(s *Service) { s.cache = cache }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new Service
func NewService(repo identity.OperatorRepository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{repo: repo, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grant makes userID a platform operator. A revoked grant is re-activated.
func (s *Service) Grant(ctx context.Context, userID uuid.UUID, grantedBy *uuid.UUID) (*identity.PlatformOperator, error) {
	now := s.now().UTC()

	existing, err := s.repo.Find(ctx, userID)
	switch {
	case err == nil && existing.IsEffective(now):
		return nil, ErrAlreadyOperator
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}

	op, err := identity.NewPlatformOperator(userID, grantedBy, now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Grant(ctx, op); err != nil {
		s.logger.Error("Failed to grant operator", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, err
	}
	s.invalidate(ctx, userID)

	s.logger.Info("Operator granted", zap.String("user_id", userID.String()))
	return op, nil
}

// Revoke ends userID's operator grant effective immediately
func (s *Service) Revoke(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Revoke(ctx, userID, s.now().UTC()); err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Error("Failed to revoke operator", zap.String("user_id", userID.String()), zap.Error(err))
		}
		return err
	}
	s.invalidate(ctx, userID)

	s.logger.Info("Operator revoked", zap.String("user_id", userID.String()))
	return nil
}

// Status returns userID's grant record and whether it is in force
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*identity.PlatformOperator, bool, error) {
	op, err := s.repo.Find(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return op, op.IsEffective(s.now().UTC()), nil
}

// invalidate drops the cached answer; a failure leaves it to expire with its TTL.
func (s *Service) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("Failed to invalidate operator cache", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

package device

import (
	"context"
	"errors"
	"time"

	"github.com/bizops/backend/internal/domain/device"
	"github.com/bizops/backend/internal/domain/identity"
	"github.com/bizops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionService exposes a tenant's device sessions to administrators
type SessionService struct {
	sessions device.SessionRepository
	tenants  identity.TenantRepository
	logger   *zap.Logger

	window time.Duration
	now    func() time.Time
}

// NewSessionService creates a new SessionService
func NewSessionService(
	sessions device.SessionRepository,
	tenants identity.TenantRepository,
	logger *zap.Logger,
	config AdmissionServiceConfig,
) *SessionService {
	if config.ActivityWindow <= 0 {
		config.ActivityWindow = device.DefaultActivityWindow
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &SessionService{
		sessions: sessions,
		tenants:  tenants,
		logger:   logger,
		window:   config.ActivityWindow,
		now:      config.Clock,
	}
}

// List returns a page of the tenant's sessions
func (s *SessionService) List(ctx context.Context, tenantID uuid.UUID, query ListSessionsQuery) ([]SessionResponse, int64, error) {
	if query.DeviceType != "" && !query.DeviceType.IsValid() {
		return nil, 0, shared.NewDomainError("INVALID_DEVICE_TYPE", "Device type must be desktop or mobile")
	}

	since := device.Window(s.now().UTC(), s.window)
	filter := device.SessionFilter{
		Filter: shared.Filter{
			Page:     query.Page,
			PageSize: query.PageSize,
			OrderBy:  query.OrderBy,
			OrderDir: query.OrderDir,
		},
		Type:       query.DeviceType,
		ActiveOnly: query.ActiveOnly,
	}
	if query.ActiveOnly {
		filter.Since = &since
	}

	sessions, total, err := s.sessions.FindByTenant(ctx, tenantID, filter)
	if err != nil {
		s.logger.Error("Failed to list device sessions", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		return nil, 0, err
	}

	responses := make([]SessionResponse, len(sessions))
	for i := range sessions {
		responses[i] = ToSessionResponse(&sessions[i], since)
	}
	return responses, total, nil
}

// Usage returns the tenant's effective limits and current active counts
func (s *SessionService) Usage(ctx context.Context, tenantID uuid.UUID) (*UsageResponse, error) {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("TENANT_NOT_FOUND", "Tenant not found")
		}
		return nil, err
	}

	since := device.Window(s.now().UTC(), s.window)
	counts, err := s.sessions.CountActiveByType(ctx, tenantID, since)
	if err != nil {
		s.logger.Error("Failed to count device sessions", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		return nil, err
	}

	return &UsageResponse{
		TenantID:    tenantID,
		Plan:        device.EffectivePlan(tenant.Plan).String(),
		Limits:      device.LimitsForTenant(tenant),
		ActiveCount: counts,
		WindowStart: since,
	}, nil
}

// Revoke deactivates a session. The device stays blocked until the row is removed.
func (s *SessionService) Revoke(ctx context.Context, tenantID, sessionID uuid.UUID) (*SessionResponse, error) {
	session, err := s.sessions.FindByID(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := session.Revoke(now); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("Device session revoked",
		zap.String("tenant_id", tenantID.String()),
		zap.String("device_id", session.DeviceID),
	)

	resp := ToSessionResponse(session, device.Window(now, s.window))
	return &resp, nil
}

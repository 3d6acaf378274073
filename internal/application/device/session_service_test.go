package device

import (
	"context"
	"testing"
	"time"

	"github.com/bizops/backend/internal/domain/device"
	"github.com/bizops/backend/internal/domain/identity"
	"github.com/bizops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSessionServiceForTest(now time.Time) (*SessionService, *mockSessionRepository, *mockTenantRepository) {
	sessions := new(mockSessionRepository)
	tenants := new(mockTenantRepository)
	svc := NewSessionService(sessions, tenants, zap.NewNop(), AdmissionServiceConfig{
		ActivityWindow: 24 * time.Hour,
		Clock:          func() time.Time { return now },
	})
	return svc, sessions, tenants
}

func TestSessionService_List(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	tenantID := uuid.New()

	t.Run("active listing carries the window", func(t *testing.T) {
		svc, sessions, _ := newSessionServiceForTest(now)
		since := now.Add(-24 * time.Hour)
		sessions.On("FindByTenant", mock.Anything, tenantID, mock.MatchedBy(func(f device.SessionFilter) bool {
			return f.ActiveOnly && f.Since != nil && f.Since.Equal(since) && f.Type == device.TypeMobile && f.Page == 2
		})).Return([]device.Session{
			{DeviceID: "phone-1", DeviceType: device.TypeMobile, IsActive: true, LastActiveAt: now.Add(-time.Hour)},
		}, int64(11), nil)

		items, total, err := svc.List(context.Background(), tenantID, ListSessionsQuery{
			Page: 2, PageSize: 10, DeviceType: device.TypeMobile, ActiveOnly: true,
		})

		require.NoError(t, err)
		assert.Equal(t, int64(11), total)
		require.Len(t, items, 1)
		assert.True(t, items[0].HoldsSlot)
	})

	t.Run("stale session does not hold a slot", func(t *testing.T) {
		svc, sessions, _ := newSessionServiceForTest(now)
		sessions.On("FindByTenant", mock.Anything, tenantID, mock.Anything).Return([]device.Session{
			{DeviceID: "laptop-1", DeviceType: device.TypeDesktop, IsActive: true, LastActiveAt: now.Add(-48 * time.Hour)},
		}, int64(1), nil)

		items, _, err := svc.List(context.Background(), tenantID, ListSessionsQuery{})

		require.NoError(t, err)
		assert.False(t, items[0].HoldsSlot)
	})

	t.Run("invalid device type", func(t *testing.T) {
		svc, _, _ := newSessionServiceForTest(now)

		_, _, err := svc.List(context.Background(), tenantID, ListSessionsQuery{DeviceType: "watch"})

		assert.Equal(t, "INVALID_DEVICE_TYPE", shared.CodeOf(err))
	})
}

func TestSessionService_Usage(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	t.Run("reports effective limits and counts", func(t *testing.T) {
		svc, sessions, tenants := newSessionServiceForTest(now)
		tenant, err := identity.NewTenant("ACME", "Acme")
		require.NoError(t, err)
		require.NoError(t, tenant.SetPlan(identity.TenantPlanPro))
		require.NoError(t, tenant.SetDeviceOverrides(intPtr(2), nil))
		tenants.On("FindByID", mock.Anything, tenant.ID).Return(tenant, nil)
		sessions.On("CountActiveByType", mock.Anything, tenant.ID, now.Add(-24*time.Hour)).
			Return(device.Counts{Desktop: 1, Mobile: 2}, nil)

		usage, err := svc.Usage(context.Background(), tenant.ID)

		require.NoError(t, err)
		assert.Equal(t, "pro", usage.Plan)
		assert.Equal(t, device.Limits{Desktop: 2, Mobile: 2}, usage.Limits)
		assert.Equal(t, device.Counts{Desktop: 1, Mobile: 2}, usage.ActiveCount)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		svc, _, tenants := newSessionServiceForTest(now)
		id := uuid.New()
		tenants.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

		_, err := svc.Usage(context.Background(), id)

		assert.Equal(t, "TENANT_NOT_FOUND", shared.CodeOf(err))
	})
}

func TestSessionService_Revoke(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	tenantID := uuid.New()

	t.Run("deactivates the session", func(t *testing.T) {
		svc, sessions, _ := newSessionServiceForTest(now)
		session := &device.Session{DeviceID: "phone-1", IsActive: true}
		session.ID = uuid.New()
		session.TenantID = tenantID
		sessions.On("FindByID", mock.Anything, tenantID, session.ID).Return(session, nil)
		sessions.On("Save", mock.Anything, mock.MatchedBy(func(s *device.Session) bool {
			return !s.IsActive && s.RevokedAt != nil && s.RevokedAt.Equal(now)
		})).Return(nil)

		resp, err := svc.Revoke(context.Background(), tenantID, session.ID)

		require.NoError(t, err)
		assert.False(t, resp.IsActive)
		assert.False(t, resp.HoldsSlot)
		sessions.AssertExpectations(t)
	})

	t.Run("already revoked", func(t *testing.T) {
		svc, sessions, _ := newSessionServiceForTest(now)
		id := uuid.New()
		sessions.On("FindByID", mock.Anything, tenantID, id).Return(&device.Session{IsActive: false}, nil)

		_, err := svc.Revoke(context.Background(), tenantID, id)

		assert.Equal(t, "ALREADY_REVOKED", shared.CodeOf(err))
		sessions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		svc, sessions, _ := newSessionServiceForTest(now)
		id := uuid.New()
		sessions.On("FindByID", mock.Anything, tenantID, id).Return(nil, shared.ErrNotFound)

		_, err := svc.Revoke(context.Background(), tenantID, id)

		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

package device

import (
	"context"
	"sync"
	"time"

	"github.com/bizops/backend/internal/domain/device"
	"github.com/bizops/backend/internal/domain/identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock implementations

type mockSessionRepository struct {
	mock.Mock
}

func (m *mockSessionRepository) Upsert(ctx context.Context, s *device.Session) (*device.Session, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*device.Session), args.Error(1)
}

func (m *mockSessionRepository) CountActiveByType(ctx context.Context, tenantID uuid.UUID, since time.Time) (device.Counts, error) {
	args := m.Called(ctx, tenantID, since)
	return args.Get(0).(device.Counts), args.Error(1)
}

func (m *mockSessionRepository) FindOldestActive(ctx context.Context, tenantID uuid.UUID, t device.Type, since time.Time, limit int) ([]device.Session, error) {
	args := m.Called(ctx, tenantID, t, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]device.Session), args.Error(1)
}

func (m *mockSessionRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*device.Session, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*device.Session), args.Error(1)
}

func (m *mockSessionRepository) FindByTenantAndDevice(ctx context.Context, tenantID uuid.UUID, deviceID string) (*device.Session, error) {
	args := m.Called(ctx, tenantID, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*device.Session), args.Error(1)
}

func (m *mockSessionRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, filter device.SessionFilter) ([]device.Session, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]device.Session), args.Get(1).(int64), args.Error(2)
}

func (m *mockSessionRepository) Save(ctx context.Context, s *device.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

type mockTenantRepository struct {
	mock.Mock
}

func (m *mockTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

func (m *mockTenantRepository) Save(ctx context.Context, tenant *identity.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

type mockOperatorChecker struct {
	mock.Mock
}

func (m *mockOperatorChecker) IsOperator(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// recordingMetrics captures what the service reports
type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	failOpen []string
}

func (r *recordingMetrics) RecordCheck(_ context.Context, outcome, _ string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingMetrics) RecordFailOpen(_ context.Context, stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOpen = append(r.failOpen, stage)
}

func (r *recordingMetrics) RecordActiveDevices(context.Context, uuid.UUID, string, int) {}

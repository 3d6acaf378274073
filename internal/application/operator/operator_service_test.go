package operator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bizops/backend/internal/domain/identity"
	"github.com/bizops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockOperatorRepository struct {
	mock.Mock
}

func (m *mockOperatorRepository) IsOperator(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockOperatorRepository) Find(ctx context.Context, userID uuid.UUID) (*identity.PlatformOperator, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.PlatformOperator), args.Error(1)
}

func (m *mockOperatorRepository) Grant(ctx context.Context, op *identity.PlatformOperator) error {
	return m.Called(ctx, op).Error(0)
}

func (m *mockOperatorRepository) Revoke(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return m.Called(ctx, userID, at).Error(0)
}

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Invalidate(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockOperatorRepository, *mockInvalidator) {
	repo := &mockOperatorRepository{}
	cache := &mockInvalidator{}
	svc := NewService(repo, zap.NewNop(), WithCache(cache), WithClock(func() time.Time { return testNow }))
	return svc, repo, cache
}

func TestService_Grant(t *testing.T) {
	ctx := context.Background()

	t.Run("new grant invalidates cache", func(t *testing.T) {
		svc, repo, cache := newTestService()
		userID, grantor := uuid.New(), uuid.New()

		repo.On("Find", ctx, userID).Return(nil, shared.ErrNotFound)
		repo.On("Grant", ctx, mock.MatchedBy(func(op *identity.PlatformOperator) bool {
			return op.UserID == userID && op.GrantedAt.Equal(testNow) && *op.GrantedBy == grantor
		})).Return(nil)
		cache.On("Invalidate", ctx, userID).Return(nil)

		op, err := svc.Grant(ctx, userID, &grantor)
		require.NoError(t, err)
		assert.Equal(t, userID, op.UserID)
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("revoked grant is re-activated", func(t *testing.T) {
		svc, repo, cache := newTestService()
		userID := uuid.New()
		revoked := testNow.Add(-time.Hour)

		repo.On("Find", ctx, userID).Return(&identity.PlatformOperator{UserID: userID, RevokedAt: &revoked}, nil)
		repo.On("Grant", ctx, mock.Anything).Return(nil)
		cache.On("Invalidate", ctx, userID).Return(nil)

		_, err := svc.Grant(ctx, userID, nil)
		require.NoError(t, err)
		repo.AssertCalled(t, "Grant", ctx, mock.Anything)
	})

	t.Run("effective grant is rejected", func(t *testing.T) {
		svc, repo, cache := newTestService()
		userID := uuid.New()

		repo.On("Find", ctx, userID).Return(&identity.PlatformOperator{UserID: userID}, nil)

		_, err := svc.Grant(ctx, userID, nil)
		assert.ErrorIs(t, err, ErrAlreadyOperator)
		repo.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything)
		cache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	})

	t.Run("lookup failure is returned", func(t *testing.T) {
		svc, repo, _ := newTestService()
		userID := uuid.New()
		boom := errors.New("connection refused")

		repo.On("Find", ctx, userID).Return(nil, boom)

		_, err := svc.Grant(ctx, userID, nil)
		assert.ErrorIs(t, err, boom)
	})
}

func TestService_Revoke(t *testing.T) {
	ctx := context.Background()

	t.Run("revoke invalidates cache", func(t *testing.T) {
		svc, repo, cache := newTestService()
		userID := uuid.New()

		repo.On("Revoke", ctx, userID, testNow).Return(nil)
		cache.On("Invalidate", ctx, userID).Return(nil)

		require.NoError(t, svc.Revoke(ctx, userID))
		cache.AssertExpectations(t)
	})

	t.Run("cache failure does not fail the revoke", func(t *testing.T) {
		svc, repo, cache := newTestService()
		userID := uuid.New()

		repo.On("Revoke", ctx, userID, testNow).Return(nil)
		cache.On("Invalidate", ctx, userID).Return(errors.New("redis down"))

		assert.NoError(t, svc.Revoke(ctx, userID))
	})

	t.Run("no active grant", func(t *testing.T) {
		svc, repo, cache := newTestService()
		userID := uuid.New()

		repo.On("Revoke", ctx, userID, testNow).Return(shared.ErrNotFound)

		assert.ErrorIs(t, svc.Revoke(ctx, userID), shared.ErrNotFound)
		cache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	})
}

func TestService_Status(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()
	userID := uuid.New()
	revoked := testNow.Add(-time.Minute)

	repo.On("Find", ctx, userID).Return(&identity.PlatformOperator{UserID: userID, RevokedAt: &revoked}, nil)

	op, active, err := svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, op.UserID)
	assert.False(t, active)
}

func TestService_WithoutCache(t *testing.T) {
	repo := &mockOperatorRepository{}
	svc := NewService(repo, nil, WithClock(func() time.Time { return testNow }))
	userID := uuid.New()

	repo.On("Revoke", mock.Anything, userID, testNow).Return(nil)
	assert.NoError(t, svc.Revoke(context.Background(), userID))
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/wavelink/gateway-server-go/internal/model"
)

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByTenantID(ctx context.Context, tenantID string) (*model.TenantSession, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TenantSession), args.Error(1)
}

func (m *mockSessionRepo) Ensure(ctx context.Context, tenantID string) (*model.TenantSession, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TenantSession), args.Error(1)
}

func (m *mockSessionRepo) SetPairingCode(ctx context.Context, tenantID, code string) error {
	args := m.Called(ctx, tenantID, code)
	return args.Error(0)
}

func (m *mockSessionRepo) RecordConnected(ctx context.Context, tenantID, phoneNumber string, expiresAt time.Time) error {
	args := m.Called(ctx, tenantID, phoneNumber, expiresAt)
	return args.Error(0)
}

func (m *mockSessionRepo) RecordDisconnected(ctx context.Context, tenantID, reason string) error {
	args := m.Called(ctx, tenantID, reason)
	return args.Error(0)
}

func (m *mockSessionRepo) RecordLoggedOut(ctx context.Context, tenantID string) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *mockSessionRepo) IncrementReconnectAttempts(ctx context.Context, tenantID string) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

func (m *mockSessionRepo) ResetReconnectAttempts(ctx context.Context, tenantID string) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *mockSessionRepo) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSessionRepo) ClearStalePairing(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

func newLifecycleService(repo *mockSessionRepo) *LifecycleService {
	return NewLifecycleService(repo, 3, 30*24*time.Hour, 60*time.Second)
}

func TestLifecycleService_RecordConnected(t *testing.T) {
	t.Run("rolls expiry forward from now", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := newLifecycleService(repo)
		ctx := context.Background()

		before := time.Now().Add(30 * 24 * time.Hour)

		repo.On("RecordConnected", ctx, "tenant-1", "+15551234567", mock.MatchedBy(func(expiresAt time.Time) bool {
			return !expiresAt.Before(before) && expiresAt.Before(before.Add(time.Minute))
		})).Return(nil)

		err := svc.RecordConnected(ctx, "tenant-1", "+15551234567")

		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestLifecycleService_ShouldReconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("allows reconnect under the attempt budget", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := newLifecycleService(repo)

		repo.On("FindByTenantID", ctx, "tenant-1").Return(&model.TenantSession{
			TenantID:          "tenant-1",
			Status:            model.StatusDisconnected,
			ReconnectAttempts: 2,
		}, nil)

		ok, err := svc.ShouldReconnect(ctx, "tenant-1")

		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("denies reconnect once the budget is spent", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := newLifecycleService(repo)

		repo.On("FindByTenantID", ctx, "tenant-1").Return(&model.TenantSession{
			TenantID:          "tenant-1",
			Status:            model.StatusDisconnected,
			ReconnectAttempts: 3,
		}, nil)

		ok, err := svc.ShouldReconnect(ctx, "tenant-1")

		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("never reconnects a logged out session", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := newLifecycleService(repo)

		repo.On("FindByTenantID", ctx, "tenant-1").Return(&model.TenantSession{
			TenantID:          "tenant-1",
			Status:            model.StatusLoggedOut,
			ReconnectAttempts: 0,
		}, nil)

		ok, err := svc.ShouldReconnect(ctx, "tenant-1")

		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("denies reconnect when no session exists", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := newLifecycleService(repo)

		repo.On("FindByTenantID", ctx, "tenant-unknown").Return(nil, nil)

		ok, err := svc.ShouldReconnect(ctx, "tenant-unknown")

		assert.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestLifecycleService_ResetReconnectAttempts(t *testing.T) {
	t.Run("delegates to repository", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := newLifecycleService(repo)
		ctx := context.Background()

		repo.On("ResetReconnectAttempts", ctx, "tenant-1").Return(nil)

		err := svc.ResetReconnectAttempts(ctx, "tenant-1")

		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestLifecycleService_SweepExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("marks expired and clears stale pairing", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := newLifecycleService(repo)

		repo.On("MarkExpired", ctx, mock.AnythingOfType("time.Time")).Return(int64(2), nil)
		repo.On("ClearStalePairing", ctx, mock.MatchedBy(func(olderThan time.Time) bool {
			// The cutoff sits one pairing TTL in the past.
			return time.Since(olderThan) >= 60*time.Second
		})).Return(int64(1), nil)

		count, err := svc.SweepExpired(ctx)

		assert.NoError(t, err)
		assert.Equal(t, int64(3), count)
		repo.AssertExpectations(t)
	})

	t.Run("returns error when marking fails", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := newLifecycleService(repo)

		repo.On("MarkExpired", ctx, mock.AnythingOfType("time.Time")).Return(int64(0), assert.AnError)

		_, err := svc.SweepExpired(ctx)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "mark expired")
	})
}

package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wavelink/gateway-server-go/internal/model"
)

type SessionRepository interface {
	FindByTenantID(ctx context.Context, tenantID string) (*model.TenantSession, error)
	Ensure(ctx context.Context, tenantID string) (*model.TenantSession, error)
	SetPairingCode(ctx context.Context, tenantID, code string) error
	RecordConnected(ctx context.Context, tenantID, phoneNumber string, expiresAt time.Time) error
	RecordDisconnected(ctx context.Context, tenantID, reason string) error
	RecordLoggedOut(ctx context.Context, tenantID string) error
	IncrementReconnectAttempts(ctx context.Context, tenantID string) (int, error)
	ResetReconnectAttempts(ctx context.Context, tenantID string) error
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
	ClearStalePairing(ctx context.Context, olderThan time.Time) (int64, error)
}

type sessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) FindByTenantID(ctx context.Context, tenantID string) (*model.TenantSession, error) {
	var session model.TenantSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM tenant_sessions WHERE tenant_id = $1
	`, tenantID)
	return HandleNotFound(&session, err)
}

// Ensure returns the tenant's durable session row, creating it in the
// disconnected state on first use. The upsert's no-op update makes the
// RETURNING clause yield the existing row under concurrent callers.
func (r *sessionRepo) Ensure(ctx context.Context, tenantID string) (*model.TenantSession, error) {
	var session model.TenantSession
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO tenant_sessions (tenant_id, status)
		VALUES ($1, 'disconnected')
		ON CONFLICT (tenant_id) DO UPDATE SET
			updated_at = NOW()
		RETURNING *
	`, tenantID)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) SetPairingCode(ctx context.Context, tenantID, code string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tenant_sessions SET
			status = 'pairing',
			pairing_code = $2,
			last_error = NULL,
			updated_at = NOW()
		WHERE tenant_id = $1
	`, tenantID, code)
	return err
}

func (r *sessionRepo) RecordConnected(ctx context.Context, tenantID, phoneNumber string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tenant_sessions SET
			status = 'connected',
			phone_number = $2,
			pairing_code = NULL,
			last_error = NULL,
			expires_at = $3,
			last_connected_at = NOW(),
			updated_at = NOW()
		WHERE tenant_id = $1
	`, tenantID, phoneNumber, expiresAt)
	return err
}

func (r *sessionRepo) RecordDisconnected(ctx context.Context, tenantID, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tenant_sessions SET
			status = 'disconnected',
			last_error = $2,
			updated_at = NOW()
		WHERE tenant_id = $1
	`, tenantID, reason)
	return err
}

func (r *sessionRepo) RecordLoggedOut(ctx context.Context, tenantID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tenant_sessions SET
			status = 'logged_out',
			pairing_code = NULL,
			phone_number = NULL,
			updated_at = NOW()
		WHERE tenant_id = $1
	`, tenantID)
	return err
}

// IncrementReconnectAttempts bumps the counter atomically and returns the
// new value, so concurrent disconnect handlers cannot double-count.
func (r *sessionRepo) IncrementReconnectAttempts(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		UPDATE tenant_sessions SET
			reconnect_attempts = reconnect_attempts + 1,
			updated_at = NOW()
		WHERE tenant_id = $1
		RETURNING reconnect_attempts
	`, tenantID)
	return count, err
}

func (r *sessionRepo) ResetReconnectAttempts(ctx context.Context, tenantID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tenant_sessions SET
			reconnect_attempts = 0,
			updated_at = NOW()
		WHERE tenant_id = $1
	`, tenantID)
	return err
}

// MarkExpired soft-marks sessions past their rolling expiry horizon. Auth
// state is left untouched; expiry is operational visibility only.
func (r *sessionRepo) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE tenant_sessions SET
			status = 'expired',
			updated_at = NOW()
		WHERE expires_at IS NOT NULL
		AND expires_at < $1
		AND status != 'expired'
	`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ClearStalePairing drops unconsumed pairing artifacts back to disconnected.
func (r *sessionRepo) ClearStalePairing(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE tenant_sessions SET
			status = 'disconnected',
			pairing_code = NULL,
			updated_at = NOW()
		WHERE status = 'pairing'
		AND updated_at < $1
	`, olderThan)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wavelink/gateway-server-go/internal/model"
)

// AuthStateRepository persists the per-tenant credential blob. Save is the
// commit point for credential rotation: the orchestrator does not proceed
// past a rotation event until the write has returned.
type AuthStateRepository interface {
	Find(ctx context.Context, tenantID string) (*model.AuthState, error)
	Save(ctx context.Context, tenantID string, credentials []byte) error
	Delete(ctx context.Context, tenantID string) error
}

type authStateRepo struct {
	db *sqlx.DB
}

func NewAuthStateRepository(db *sqlx.DB) AuthStateRepository {
	return &authStateRepo{db: db}
}

func (r *authStateRepo) Find(ctx context.Context, tenantID string) (*model.AuthState, error) {
	var state model.AuthState
	err := r.db.GetContext(ctx, &state, `
		SELECT * FROM auth_states WHERE tenant_id = $1
	`, tenantID)
	return HandleNotFound(&state, err)
}

func (r *authStateRepo) Save(ctx context.Context, tenantID string, credentials []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_states (tenant_id, credentials)
		VALUES ($1, $2)
		ON CONFLICT (tenant_id) DO UPDATE SET
			credentials = EXCLUDED.credentials,
			updated_at = NOW()
	`, tenantID, credentials)
	return err
}

// Delete is idempotent: removing a nonexistent record is not an error.
func (r *authStateRepo) Delete(ctx context.Context, tenantID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM auth_states WHERE tenant_id = $1
	`, tenantID)
	return err
}

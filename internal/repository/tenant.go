package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wavelink/gateway-server-go/internal/model"
)

type TenantRepository interface {
	FindByID(ctx context.Context, id string) (*model.Tenant, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.Tenant, error)
	Create(ctx context.Context, params model.CreateTenantParams) (*model.Tenant, error)
}

type tenantRepo struct {
	db *sqlx.DB
}

func NewTenantRepository(db *sqlx.DB) TenantRepository {
	return &tenantRepo{db: db}
}

func (r *tenantRepo) FindByID(ctx context.Context, id string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.GetContext(ctx, &tenant, `SELECT * FROM tenants WHERE id = $1`, id)
	return HandleNotFound(&tenant, err)
}

func (r *tenantRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.GetContext(ctx, &tenant, `
		SELECT * FROM tenants WHERE api_token_hash = $1
	`, tokenHash)
	return HandleNotFound(&tenant, err)
}

func (r *tenantRepo) Create(ctx context.Context, params model.CreateTenantParams) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.GetContext(ctx, &tenant, `
		INSERT INTO tenants (name, api_token_hash)
		VALUES ($1, $2)
		RETURNING *
	`, params.Name, params.APITokenHash)
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

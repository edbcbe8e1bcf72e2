package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/wavelink/gateway-server-go/internal/model"
)

type ContactRepository interface {
	FindByID(ctx context.Context, id string) (*model.Contact, error)
	FindByExternalID(ctx context.Context, tenantID, externalID string) (*model.Contact, error)
	FindByTenantID(ctx context.Context, tenantID string, limit, offset int) ([]model.Contact, error)
	Upsert(ctx context.Context, params model.UpsertContactParams) (*model.Contact, error)
	AddTags(ctx context.Context, id string, tags []string) error
}

type contactRepo struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) ContactRepository {
	return &contactRepo{db: db}
}

func (r *contactRepo) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	var contact model.Contact
	err := r.db.GetContext(ctx, &contact, `SELECT * FROM contacts WHERE id = $1`, id)
	return HandleNotFound(&contact, err)
}

func (r *contactRepo) FindByExternalID(ctx context.Context, tenantID, externalID string) (*model.Contact, error) {
	var contact model.Contact
	err := r.db.GetContext(ctx, &contact, `
		SELECT * FROM contacts WHERE tenant_id = $1 AND external_id = $2
	`, tenantID, externalID)
	return HandleNotFound(&contact, err)
}

func (r *contactRepo) FindByTenantID(ctx context.Context, tenantID string, limit, offset int) ([]model.Contact, error) {
	var contacts []model.Contact
	err := r.db.SelectContext(ctx, &contacts, `
		SELECT * FROM contacts
		WHERE tenant_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	return contacts, err
}

// Upsert creates or refreshes the (tenant_id, external_id) contact. A stored
// display name is only ever replaced by a non-null candidate; COALESCE keeps
// the existing name when the incoming event carried none.
func (r *contactRepo) Upsert(ctx context.Context, params model.UpsertContactParams) (*model.Contact, error) {
	var contact model.Contact
	err := r.db.GetContext(ctx, &contact, `
		INSERT INTO contacts (tenant_id, external_id, display_name, tags)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, external_id) DO UPDATE SET
			display_name = COALESCE(EXCLUDED.display_name, contacts.display_name),
			updated_at = NOW()
		RETURNING *
	`, params.TenantID, params.ExternalID, params.DisplayName, pq.Array(params.Tags))
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *contactRepo) AddTags(ctx context.Context, id string, tags []string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contacts SET
			tags = (SELECT ARRAY(SELECT DISTINCT unnest(tags || $2))),
			updated_at = NOW()
		WHERE id = $1
	`, id, pq.Array(tags))
	return err
}

package model

import (
	"time"

	"github.com/lib/pq"
)

type Contact struct {
	ID          string         `db:"id" json:"id"`
	TenantID    string         `db:"tenant_id" json:"tenantId"`
	ExternalID  string         `db:"external_id" json:"externalId"`
	DisplayName *string        `db:"display_name" json:"displayName,omitempty"`
	Tags        pq.StringArray `db:"tags" json:"tags"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

// UpsertContactParams carries a write to the (tenant_id, external_id) slot.
// DisplayName is only ever a real human name; phone-shaped fallbacks are a
// presentation concern and must not be persisted here.
type UpsertContactParams struct {
	TenantID    string
	ExternalID  string
	DisplayName *string
	Tags        []string
}

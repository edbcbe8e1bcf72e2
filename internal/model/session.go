package model

import (
	"time"
)

type TenantSession struct {
	ID                string           `db:"id" json:"id"`
	TenantID          string           `db:"tenant_id" json:"tenantId"`
	Status            ConnectionStatus `db:"status" json:"status"`
	PairingCode       *string          `db:"pairing_code" json:"pairingCode,omitempty"`
	PhoneNumber       *string          `db:"phone_number" json:"phoneNumber,omitempty"`
	ReconnectAttempts int              `db:"reconnect_attempts" json:"reconnectAttempts"`
	LastError         *string          `db:"last_error" json:"lastError,omitempty"`
	ExpiresAt         *time.Time       `db:"expires_at" json:"expiresAt,omitempty"`
	LastConnectedAt   *time.Time       `db:"last_connected_at" json:"lastConnectedAt,omitempty"`
	CreatedAt         time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updatedAt"`
}

// AuthState is the opaque credential blob a transport needs to resume a
// session without re-pairing. It is overwritten on every rotation event.
type AuthState struct {
	TenantID    string    `db:"tenant_id" json:"tenantId"`
	Credentials []byte    `db:"credentials" json:"-"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

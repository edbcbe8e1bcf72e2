package model

import "time"

type Chat struct {
	ID            string     `db:"id" json:"id"`
	TenantID      string     `db:"tenant_id" json:"tenantId"`
	SessionID     string     `db:"session_id" json:"sessionId"`
	ContactID     string     `db:"contact_id" json:"contactId"`
	ThreadKey     string     `db:"thread_key" json:"threadKey"`
	Title         *string    `db:"title" json:"title,omitempty"`
	LastMessageAt *time.Time `db:"last_message_at" json:"lastMessageAt,omitempty"`
	UnreadCount   int        `db:"unread_count" json:"unreadCount"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
}

type EnsureChatParams struct {
	TenantID  string
	SessionID string
	ContactID string
	ThreadKey string
}

// ChatListItem is a chat joined with its counterparty contact, used by the
// list endpoint so titles can be derived at read time.
type ChatListItem struct {
	Chat
	ContactExternalID  string  `db:"contact_external_id" json:"contactExternalId"`
	ContactDisplayName *string `db:"contact_display_name" json:"contactDisplayName,omitempty"`
}

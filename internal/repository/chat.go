package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wavelink/gateway-server-go/internal/model"
)

type ChatRepository interface {
	FindByID(ctx context.Context, id string) (*model.Chat, error)
	Ensure(ctx context.Context, params model.EnsureChatParams) (*model.Chat, error)
	ListByTenantID(ctx context.Context, tenantID string, limit, offset int) ([]model.ChatListItem, error)
	CountByTenantID(ctx context.Context, tenantID string) (int, error)
	UpdateLastMessageAt(ctx context.Context, id string, at time.Time) error
	IncrementUnread(ctx context.Context, id string) error
	ResetUnread(ctx context.Context, id string) error
}

type chatRepo struct {
	db *sqlx.DB
}

func NewChatRepository(db *sqlx.DB) ChatRepository {
	return &chatRepo{db: db}
}

func (r *chatRepo) FindByID(ctx context.Context, id string) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT * FROM chats WHERE id = $1`, id)
	return HandleNotFound(&chat, err)
}

// Ensure returns the single 1:1 thread for (tenant_id, contact_id), creating
// it on first contact. The unique constraint makes concurrent first messages
// converge on one row.
func (r *chatRepo) Ensure(ctx context.Context, params model.EnsureChatParams) (*model.Chat, error) {
	var chat model.Chat
	err := r.db.GetContext(ctx, &chat, `
		INSERT INTO chats (tenant_id, session_id, contact_id, thread_key)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, contact_id) DO UPDATE SET
			session_id = EXCLUDED.session_id
		RETURNING *
	`, params.TenantID, params.SessionID, params.ContactID, params.ThreadKey)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *chatRepo) ListByTenantID(ctx context.Context, tenantID string, limit, offset int) ([]model.ChatListItem, error) {
	var chats []model.ChatListItem
	err := r.db.SelectContext(ctx, &chats, `
		SELECT c.*,
			ct.external_id AS contact_external_id,
			ct.display_name AS contact_display_name
		FROM chats c
		JOIN contacts ct ON ct.id = c.contact_id
		WHERE c.tenant_id = $1
		ORDER BY c.last_message_at DESC NULLS LAST
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	return chats, err
}

func (r *chatRepo) CountByTenantID(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM chats WHERE tenant_id = $1
	`, tenantID)
	return count, err
}

// UpdateLastMessageAt moves the chat's high-water mark forward. GREATEST
// keeps the timestamp monotonic even when a duplicate delivery replays an
// older message.
func (r *chatRepo) UpdateLastMessageAt(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE chats SET
			last_message_at = GREATEST(COALESCE(last_message_at, 'epoch'::timestamptz), $2)
		WHERE id = $1
	`, id, at)
	return err
}

func (r *chatRepo) IncrementUnread(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE chats SET unread_count = unread_count + 1 WHERE id = $1
	`, id)
	return err
}

func (r *chatRepo) ResetUnread(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE chats SET unread_count = 0 WHERE id = $1
	`, id)
	return err
}

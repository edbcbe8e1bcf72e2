package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/wavelink/gateway-server-go/internal/model"
)

type MessageRepository interface {
	FindByID(ctx context.Context, id string) (*model.Message, error)
	FindByExternalID(ctx context.Context, tenantID, externalID string) (*model.Message, error)
	Insert(ctx context.Context, params model.CreateMessageParams) (*model.Message, bool, error)
	FindByChatID(ctx context.Context, chatID string, limit, offset int) ([]model.Message, error)
	FindRecentByChatID(ctx context.Context, chatID string, n int) ([]model.Message, error)
	CountByChatID(ctx context.Context, chatID string) (int, error)
}

type messageRepo struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) FindByID(ctx context.Context, id string) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `SELECT * FROM messages WHERE id = $1`, id)
	return HandleNotFound(&msg, err)
}

func (r *messageRepo) FindByExternalID(ctx context.Context, tenantID, externalID string) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		SELECT * FROM messages WHERE tenant_id = $1 AND external_id = $2
	`, tenantID, externalID)
	return HandleNotFound(&msg, err)
}

// Insert is the duplicate-delivery firewall. The unique constraint on
// (tenant_id, external_id) turns a replayed delivery into a fetch of the
// already-stored row; the first writer's body wins. The second return value
// reports whether a new row was created.
func (r *messageRepo) Insert(ctx context.Context, params model.CreateMessageParams) (*model.Message, bool, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages
			(tenant_id, chat_id, direction, external_id, from_address, to_address, body, sent_at, raw)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, external_id) DO NOTHING
		RETURNING *
	`, params.TenantID, params.ChatID, params.Direction, params.ExternalID,
		params.FromAddress, params.ToAddress, params.Body, params.SentAt, params.Raw)
	if err == nil {
		return &msg, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	// DO NOTHING returned no row: the external id is already stored.
	existing, err := r.FindByExternalID(ctx, params.TenantID, params.ExternalID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// Lost a race with a concurrent delete; treat as a plain failure.
		return nil, false, sql.ErrNoRows
	}
	return existing, false, nil
}

func (r *messageRepo) FindByChatID(ctx context.Context, chatID string, limit, offset int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE chat_id = $1
		ORDER BY sent_at DESC, created_at DESC
		LIMIT $2 OFFSET $3
	`, chatID, limit, offset)
	return msgs, err
}

// FindRecentByChatID returns the newest n messages, newest first. Callers
// building a transcript reverse the slice to oldest-first order.
func (r *messageRepo) FindRecentByChatID(ctx context.Context, chatID string, n int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE chat_id = $1
		ORDER BY sent_at DESC, created_at DESC
		LIMIT $2
	`, chatID, n)
	return msgs, err
}

func (r *messageRepo) CountByChatID(ctx context.Context, chatID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages WHERE chat_id = $1
	`, chatID)
	return count, err
}

package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wavelink/gateway-server-go/internal/model"
)

type AISettingsRepository interface {
	FindByTenantID(ctx context.Context, tenantID string) (*model.AISettings, error)
	Upsert(ctx context.Context, params model.UpsertAISettingsParams) (*model.AISettings, error)
}

type aiSettingsRepo struct {
	db *sqlx.DB
}

func NewAISettingsRepository(db *sqlx.DB) AISettingsRepository {
	return &aiSettingsRepo{db: db}
}

func (r *aiSettingsRepo) FindByTenantID(ctx context.Context, tenantID string) (*model.AISettings, error) {
	var settings model.AISettings
	err := r.db.GetContext(ctx, &settings, `
		SELECT * FROM ai_settings WHERE tenant_id = $1
	`, tenantID)
	return HandleNotFound(&settings, err)
}

func (r *aiSettingsRepo) Upsert(ctx context.Context, params model.UpsertAISettingsParams) (*model.AISettings, error) {
	var settings model.AISettings
	err := r.db.GetContext(ctx, &settings, `
		INSERT INTO ai_settings
			(tenant_id, enabled, system_prompt, model, reply_delay_seconds, context_window)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			system_prompt = EXCLUDED.system_prompt,
			model = EXCLUDED.model,
			reply_delay_seconds = EXCLUDED.reply_delay_seconds,
			context_window = EXCLUDED.context_window,
			updated_at = NOW()
		RETURNING *
	`, params.TenantID, params.Enabled, params.SystemPrompt, params.Model,
		params.ReplyDelaySeconds, params.ContextWindow)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

type AIConversationRepository interface {
	Create(ctx context.Context, params model.CreateAIConversationParams) (*model.AIConversation, error)
	FindByTenantID(ctx context.Context, tenantID string, limit, offset int) ([]model.AIConversation, error)
	CountByTenantID(ctx context.Context, tenantID string) (int, error)
}

type aiConversationRepo struct {
	db *sqlx.DB
}

func NewAIConversationRepository(db *sqlx.DB) AIConversationRepository {
	return &aiConversationRepo{db: db}
}

func (r *aiConversationRepo) Create(ctx context.Context, params model.CreateAIConversationParams) (*model.AIConversation, error) {
	var conv model.AIConversation
	err := r.db.GetContext(ctx, &conv, `
		INSERT INTO ai_conversations
			(tenant_id, chat_id, user_message, reply, model, prompt_tokens, output_tokens, elapsed_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, params.TenantID, params.ChatID, params.UserMessage, params.Reply,
		params.Model, params.PromptTokens, params.OutputTokens, params.ElapsedMs)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *aiConversationRepo) FindByTenantID(ctx context.Context, tenantID string, limit, offset int) ([]model.AIConversation, error) {
	var convs []model.AIConversation
	err := r.db.SelectContext(ctx, &convs, `
		SELECT * FROM ai_conversations
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	return convs, err
}

func (r *aiConversationRepo) CountByTenantID(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM ai_conversations WHERE tenant_id = $1
	`, tenantID)
	return count, err
}

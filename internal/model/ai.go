package model

import "time"

// AISettings holds the per-tenant auto-reply configuration. A tenant with no
// row is treated as disabled.
type AISettings struct {
	TenantID          string    `db:"tenant_id" json:"tenantId"`
	Enabled           bool      `db:"enabled" json:"enabled"`
	SystemPrompt      string    `db:"system_prompt" json:"systemPrompt"`
	Model             string    `db:"model" json:"model"`
	ReplyDelaySeconds int       `db:"reply_delay_seconds" json:"replyDelaySeconds"`
	ContextWindow     int       `db:"context_window" json:"contextWindow"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

type UpsertAISettingsParams struct {
	TenantID          string
	Enabled           bool
	SystemPrompt      string
	Model             string
	ReplyDelaySeconds int
	ContextWindow     int
}

// AIConversation is one auto-reply exchange, kept for analytics.
type AIConversation struct {
	ID           string    `db:"id" json:"id"`
	TenantID     string    `db:"tenant_id" json:"tenantId"`
	ChatID       string    `db:"chat_id" json:"chatId"`
	UserMessage  string    `db:"user_message" json:"userMessage"`
	Reply        string    `db:"reply" json:"reply"`
	Model        string    `db:"model" json:"model"`
	PromptTokens int       `db:"prompt_tokens" json:"promptTokens"`
	OutputTokens int       `db:"output_tokens" json:"outputTokens"`
	ElapsedMs    int64     `db:"elapsed_ms" json:"elapsedMs"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type CreateAIConversationParams struct {
	TenantID     string
	ChatID       string
	UserMessage  string
	Reply        string
	Model        string
	PromptTokens int
	OutputTokens int
	ElapsedMs    int64
}

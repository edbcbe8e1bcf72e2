package model

import (
	"encoding/json"
	"time"
)

type Message struct {
	ID          string           `db:"id" json:"id"`
	TenantID    string           `db:"tenant_id" json:"tenantId"`
	ChatID      string           `db:"chat_id" json:"chatId"`
	Direction   MessageDirection `db:"direction" json:"direction"`
	ExternalID  string           `db:"external_id" json:"externalId"`
	FromAddress string           `db:"from_address" json:"fromAddress"`
	ToAddress   string           `db:"to_address" json:"toAddress"`
	Body        string           `db:"body" json:"body"`
	SentAt      time.Time        `db:"sent_at" json:"sentAt"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
	Raw         *json.RawMessage `db:"raw" json:"raw,omitempty"`
}

// ToEventData returns the JSON payload fanned out to real-time subscribers.
func (m *Message) ToEventData() json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"id":         m.ID,
		"chatId":     m.ChatID,
		"direction":  m.Direction,
		"externalId": m.ExternalID,
		"from":       m.FromAddress,
		"to":         m.ToAddress,
		"body":       m.Body,
		"sentAt":     m.SentAt,
	})
	return data
}

type CreateMessageParams struct {
	TenantID    string
	ChatID      string
	Direction   MessageDirection
	ExternalID  string
	FromAddress string
	ToAddress   string
	Body        string
	SentAt      time.Time
	Raw         json.RawMessage
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/wavelink/gateway-server-go/internal/errors"
	"github.com/wavelink/gateway-server-go/internal/model"
	"github.com/wavelink/gateway-server-go/internal/repository"
	"github.com/wavelink/gateway-server-go/internal/transport"
	"github.com/wavelink/gateway-server-go/internal/util"
)

// IngestResult is the materialized outcome of one ingested event.
type IngestResult struct {
	Message *model.Message
	Chat    *model.Chat
	Contact *model.Contact

	// Created is false when the external message id had been seen before
	// and the stored row was returned instead (duplicate delivery).
	Created bool
}

// IngestService normalizes raw transport events into Contact, Chat and
// Message writes. The message insert is idempotent on the transport-assigned
// external id, which makes re-delivery of the same event converge on one row.
type IngestService struct {
	contactRepo repository.ContactRepository
	chatRepo    repository.ChatRepository
	messageRepo repository.MessageRepository
}

func NewIngestService(
	contactRepo repository.ContactRepository,
	chatRepo repository.ChatRepository,
	messageRepo repository.MessageRepository,
) *IngestService {
	return &IngestService{
		contactRepo: contactRepo,
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
	}
}

func (s *IngestService) Ingest(ctx context.Context, tenantID, sessionID string, ev transport.MessageEvent) (*IngestResult, error) {
	direction := model.DirectionIn
	counterparty := ev.From
	if ev.FromSelf {
		direction = model.DirectionOut
		counterparty = ev.To
	}
	if counterparty == "" {
		return nil, apperrors.Ingestion("counterparty address missing")
	}
	if ev.ExternalID == "" {
		return nil, apperrors.Ingestion("external message id missing")
	}

	// Only a real human name is stored. Phone-shaped fallbacks stay out of
	// the store; presentation derives them at read time.
	var displayName *string
	if name := strings.TrimSpace(ev.PushName); name != "" && !util.IsPhoneShaped(name) {
		displayName = &name
	}

	contact, err := s.contactRepo.Upsert(ctx, model.UpsertContactParams{
		TenantID:    tenantID,
		ExternalID:  counterparty,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert contact: %w", err)
	}

	chat, err := s.chatRepo.Ensure(ctx, model.EnsureChatParams{
		TenantID:  tenantID,
		SessionID: sessionID,
		ContactID: contact.ID,
		ThreadKey: uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("ensure chat: %w", err)
	}

	sentAt := ev.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	var raw json.RawMessage
	if len(ev.Raw) > 0 {
		raw = ev.Raw
	}

	msg, created, err := s.messageRepo.Insert(ctx, model.CreateMessageParams{
		TenantID:    tenantID,
		ChatID:      chat.ID,
		Direction:   direction,
		ExternalID:  ev.ExternalID,
		FromAddress: ev.From,
		ToAddress:   ev.To,
		Body:        ev.Body,
		SentAt:      sentAt,
		Raw:         raw,
	})
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	// Unconditional, even on a duplicate hit: self-heals a previously
	// missed update. GREATEST in the store keeps it monotonic.
	if err := s.chatRepo.UpdateLastMessageAt(ctx, chat.ID, msg.SentAt); err != nil {
		log.Error().Err(err).
			Str("tenantId", tenantID).
			Str("chatId", chat.ID).
			Msg("failed to update chat last message time")
	}

	if created && direction == model.DirectionIn {
		if err := s.chatRepo.IncrementUnread(ctx, chat.ID); err != nil {
			log.Error().Err(err).
				Str("chatId", chat.ID).
				Msg("failed to increment unread count")
		}
	}

	if !created {
		log.Debug().
			Str("tenantId", tenantID).
			Str("externalId", ev.ExternalID).
			Msg("duplicate delivery ignored")
	}

	return &IngestResult{
		Message: msg,
		Chat:    chat,
		Contact: contact,
		Created: created,
	}, nil
}

// RecordOutbound persists a confirmed outgoing message through the same
// idempotent path as inbound ingestion. The send confirmation's external id
// is the dedup key.
func (s *IngestService) RecordOutbound(ctx context.Context, tenantID, sessionID, from, to, body, externalID string) (*IngestResult, error) {
	return s.Ingest(ctx, tenantID, sessionID, transport.MessageEvent{
		ExternalID: externalID,
		From:       from,
		To:         to,
		FromSelf:   true,
		Body:       body,
		SentAt:     time.Now(),
	})
}

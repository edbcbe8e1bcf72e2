package service

import (
	"context"
	"fmt"

	"github.com/wavelink/gateway-server-go/internal/model"
	"github.com/wavelink/gateway-server-go/internal/repository"
	"github.com/wavelink/gateway-server-go/internal/util"
)

// Shown when nothing better is known about the counterparty. Kept as the
// last resort of the title chain; the store itself never learns it.
const fallbackChatTitle = "Unknown contact"

// ConversationService serves the read side of chats and messages.
type ConversationService struct {
	chatRepo    repository.ChatRepository
	messageRepo repository.MessageRepository
}

func NewConversationService(
	chatRepo repository.ChatRepository,
	messageRepo repository.MessageRepository,
) *ConversationService {
	return &ConversationService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
	}
}

// ChatView is a chat with its display title resolved at read time.
type ChatView struct {
	model.Chat
	DisplayTitle string `json:"displayTitle"`
}

// ChatTitle derives the display title: contact display name, then stored
// chat title, then the formatted phone number, then a placeholder. The
// fallback is computed here and never persisted.
func ChatTitle(item *model.ChatListItem) string {
	if item.ContactDisplayName != nil && *item.ContactDisplayName != "" {
		return *item.ContactDisplayName
	}
	if item.Title != nil && *item.Title != "" {
		return *item.Title
	}
	if item.ContactExternalID != "" {
		return util.FormatPhone(item.ContactExternalID)
	}
	return fallbackChatTitle
}

func (s *ConversationService) ListChats(ctx context.Context, tenantID string, limit, offset int) ([]ChatView, int, error) {
	items, err := s.chatRepo.ListByTenantID(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list chats: %w", err)
	}

	total, err := s.chatRepo.CountByTenantID(ctx, tenantID)
	if err != nil {
		return nil, 0, fmt.Errorf("count chats: %w", err)
	}

	views := make([]ChatView, 0, len(items))
	for i := range items {
		views = append(views, ChatView{
			Chat:         items[i].Chat,
			DisplayTitle: ChatTitle(&items[i]),
		})
	}
	return views, total, nil
}

// GetMessages returns a page of the chat's messages, newest first, plus the
// chat's total message count.
func (s *ConversationService) GetMessages(ctx context.Context, tenantID, chatID string, limit, offset int) ([]model.Message, int, error) {
	chat, err := s.chatRepo.FindByID(ctx, chatID)
	if err != nil {
		return nil, 0, fmt.Errorf("find chat: %w", err)
	}
	if chat == nil || chat.TenantID != tenantID {
		return nil, 0, nil
	}

	msgs, err := s.messageRepo.FindByChatID(ctx, chatID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("find messages: %w", err)
	}

	total, err := s.messageRepo.CountByChatID(ctx, chatID)
	if err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	return msgs, total, nil
}

func (s *ConversationService) MarkChatRead(ctx context.Context, tenantID, chatID string) error {
	chat, err := s.chatRepo.FindByID(ctx, chatID)
	if err != nil {
		return fmt.Errorf("find chat: %w", err)
	}
	if chat == nil || chat.TenantID != tenantID {
		return nil
	}
	return s.chatRepo.ResetUnread(ctx, chatID)
}

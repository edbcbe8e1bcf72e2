package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wavelink/gateway-server-go/internal/model"
)

func strPtr(s string) *string { return &s }

func TestChatTitle(t *testing.T) {
	t.Run("prefers the contact display name", func(t *testing.T) {
		item := &model.ChatListItem{
			Chat:               model.Chat{Title: strPtr("Stored title")},
			ContactExternalID:  "+15551234567",
			ContactDisplayName: strPtr("Alice"),
		}
		assert.Equal(t, "Alice", ChatTitle(item))
	})

	t.Run("falls back to the stored chat title", func(t *testing.T) {
		item := &model.ChatListItem{
			Chat:              model.Chat{Title: strPtr("Stored title")},
			ContactExternalID: "+15551234567",
		}
		assert.Equal(t, "Stored title", ChatTitle(item))
	})

	t.Run("derives a phone title at read time", func(t *testing.T) {
		item := &model.ChatListItem{
			ContactExternalID: "15551234567@s.whatsapp.net",
		}
		assert.Equal(t, "+15551234567", ChatTitle(item))
	})

	t.Run("placeholder when nothing is known", func(t *testing.T) {
		item := &model.ChatListItem{}
		assert.Equal(t, "Unknown contact", ChatTitle(item))
	})

	t.Run("empty display name does not win", func(t *testing.T) {
		item := &model.ChatListItem{
			ContactDisplayName: strPtr(""),
			ContactExternalID:  "+15551234567",
		}
		assert.Equal(t, "+15551234567", ChatTitle(item))
	})
}

func TestConversationService_ListChats(t *testing.T) {
	t.Run("resolves titles per chat", func(t *testing.T) {
		ctx := context.Background()
		chatRepo := new(mockChatRepo)
		messageRepo := new(mockMessageRepo)
		svc := NewConversationService(chatRepo, messageRepo)

		chatRepo.On("ListByTenantID", ctx, "tenant-1", 50, 0).Return([]model.ChatListItem{
			{
				Chat:               model.Chat{ID: "chat-1", TenantID: "tenant-1"},
				ContactExternalID:  "+15551234567",
				ContactDisplayName: strPtr("Alice"),
			},
			{
				Chat:              model.Chat{ID: "chat-2", TenantID: "tenant-1"},
				ContactExternalID: "+15559990000",
			},
		}, nil)
		chatRepo.On("CountByTenantID", ctx, "tenant-1").Return(7, nil)

		views, total, err := svc.ListChats(ctx, "tenant-1", 50, 0)

		assert.NoError(t, err)
		assert.Equal(t, 7, total)
		assert.Len(t, views, 2)
		assert.Equal(t, "Alice", views[0].DisplayTitle)
		assert.Equal(t, "+15559990000", views[1].DisplayTitle)
	})
}

func TestConversationService_GetMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("returns page with total", func(t *testing.T) {
		chatRepo := new(mockChatRepo)
		messageRepo := new(mockMessageRepo)
		svc := NewConversationService(chatRepo, messageRepo)

		chatRepo.On("FindByID", ctx, "chat-1").Return(&model.Chat{ID: "chat-1", TenantID: "tenant-1"}, nil)
		messageRepo.On("FindByChatID", ctx, "chat-1", 20, 0).Return([]model.Message{
			{ID: "msg-2"}, {ID: "msg-1"},
		}, nil)
		messageRepo.On("CountByChatID", ctx, "chat-1").Return(42, nil)

		msgs, total, err := svc.GetMessages(ctx, "tenant-1", "chat-1", 20, 0)

		assert.NoError(t, err)
		assert.Len(t, msgs, 2)
		assert.Equal(t, 42, total)
	})

	t.Run("hides chats of other tenants", func(t *testing.T) {
		chatRepo := new(mockChatRepo)
		messageRepo := new(mockMessageRepo)
		svc := NewConversationService(chatRepo, messageRepo)

		chatRepo.On("FindByID", ctx, "chat-1").Return(&model.Chat{ID: "chat-1", TenantID: "tenant-other"}, nil)

		msgs, total, err := svc.GetMessages(ctx, "tenant-1", "chat-1", 20, 0)

		assert.NoError(t, err)
		assert.Nil(t, msgs)
		assert.Zero(t, total)
		messageRepo.AssertNotCalled(t, "FindByChatID", ctx, "chat-1", 20, 0)
	})
}

func TestConversationService_MarkChatRead(t *testing.T) {
	ctx := context.Background()

	t.Run("resets unread for owned chat", func(t *testing.T) {
		chatRepo := new(mockChatRepo)
		svc := NewConversationService(chatRepo, new(mockMessageRepo))

		chatRepo.On("FindByID", ctx, "chat-1").Return(&model.Chat{ID: "chat-1", TenantID: "tenant-1"}, nil)
		chatRepo.On("ResetUnread", ctx, "chat-1").Return(nil)

		err := svc.MarkChatRead(ctx, "tenant-1", "chat-1")

		assert.NoError(t, err)
		chatRepo.AssertExpectations(t)
	})

	t.Run("ignores chats of other tenants", func(t *testing.T) {
		chatRepo := new(mockChatRepo)
		svc := NewConversationService(chatRepo, new(mockMessageRepo))

		chatRepo.On("FindByID", ctx, "chat-1").Return(&model.Chat{ID: "chat-1", TenantID: "tenant-other"}, nil)

		err := svc.MarkChatRead(ctx, "tenant-1", "chat-1")

		assert.NoError(t, err)
		chatRepo.AssertNotCalled(t, "ResetUnread", ctx, "chat-1")
	})
}

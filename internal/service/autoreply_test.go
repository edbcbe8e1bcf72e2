package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/wavelink/gateway-server-go/internal/ai"
	"github.com/wavelink/gateway-server-go/internal/model"
)

type mockAISettingsRepo struct {
	mock.Mock
}

func (m *mockAISettingsRepo) FindByTenantID(ctx context.Context, tenantID string) (*model.AISettings, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AISettings), args.Error(1)
}

func (m *mockAISettingsRepo) Upsert(ctx context.Context, params model.UpsertAISettingsParams) (*model.AISettings, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AISettings), args.Error(1)
}

type mockAIConvRepo struct {
	mock.Mock
}

func (m *mockAIConvRepo) Create(ctx context.Context, params model.CreateAIConversationParams) (*model.AIConversation, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AIConversation), args.Error(1)
}

func (m *mockAIConvRepo) FindByTenantID(ctx context.Context, tenantID string, limit, offset int) ([]model.AIConversation, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AIConversation), args.Error(1)
}

func (m *mockAIConvRepo) CountByTenantID(ctx context.Context, tenantID string) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

// mockProvider counts calls and fails the first failUntil attempts.
type mockProvider struct {
	mu        sync.Mutex
	calls     int
	failUntil int
	reply     string
}

func (p *mockProvider) Complete(ctx context.Context, systemPrompt string, transcript []ai.Turn, message string) (*ai.Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failUntil {
		return nil, assert.AnError
	}
	return &ai.Completion{Text: p.reply, Model: "test-model", PromptTokens: 10, OutputTokens: 5}, nil
}

func (p *mockProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type mockSender struct {
	mu        sync.Mutex
	sent      []string
	composing []bool
	sendErr   error
}

func (s *mockSender) SendText(ctx context.Context, to, body string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return "", s.sendErr
	}
	s.sent = append(s.sent, body)
	return "ext-reply-1", nil
}

func (s *mockSender) SetComposing(ctx context.Context, to string, composing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composing = append(s.composing, composing)
	return nil
}

func newAutoReplyService(settingsRepo *mockAISettingsRepo, convRepo *mockAIConvRepo, messageRepo *mockMessageRepo, provider ai.Provider) *AutoReplyService {
	svc := NewAutoReplyService(settingsRepo, convRepo, messageRepo, provider, AutoReplyConfig{
		DefaultDelaySeconds:  2,
		DefaultContextWindow: 5,
		MaxRetries:           2,
		ProviderTimeout:      time.Second,
	})
	svc.sleep = func(ctx context.Context, d time.Duration) {}
	return svc
}

func enabledSettings() *model.AISettings {
	return &model.AISettings{
		TenantID:          "tenant-1",
		Enabled:           true,
		SystemPrompt:      "be helpful",
		Model:             "test-model",
		ReplyDelaySeconds: 0,
		ContextWindow:     5,
	}
}

func inboundMsg() *model.Message {
	return &model.Message{
		ID:          "msg-1",
		ChatID:      "chat-1",
		Direction:   model.DirectionIn,
		FromAddress: "+15551234567",
		Body:        "what are your hours?",
	}
}

func TestAutoReplyService_MaybeReply(t *testing.T) {
	ctx := context.Background()
	chat := &model.Chat{ID: "chat-1", TenantID: "tenant-1"}

	t.Run("sends reply when enabled", func(t *testing.T) {
		settingsRepo := new(mockAISettingsRepo)
		convRepo := new(mockAIConvRepo)
		messageRepo := new(mockMessageRepo)
		provider := &mockProvider{reply: "We open at nine."}
		sender := &mockSender{}
		svc := newAutoReplyService(settingsRepo, convRepo, messageRepo, provider)

		settingsRepo.On("FindByTenantID", ctx, "tenant-1").Return(enabledSettings(), nil)
		messageRepo.On("FindRecentByChatID", ctx, "chat-1", 5).Return([]model.Message{}, nil)
		convRepo.On("Create", ctx, mock.MatchedBy(func(p model.CreateAIConversationParams) bool {
			return p.TenantID == "tenant-1" &&
				p.Reply == "We open at nine." &&
				p.UserMessage == "what are your hours?"
		})).Return(&model.AIConversation{ID: "conv-1"}, nil)

		outcome := svc.MaybeReply(ctx, "tenant-1", chat, inboundMsg(), sender)

		assert.Equal(t, ReplySent, outcome)
		assert.Equal(t, []string{"We open at nine."}, sender.sent)
		// Composing is signalled on and then cleared.
		assert.Equal(t, []bool{true, false}, sender.composing)
		convRepo.AssertExpectations(t)
	})

	t.Run("skips when disabled", func(t *testing.T) {
		settingsRepo := new(mockAISettingsRepo)
		convRepo := new(mockAIConvRepo)
		messageRepo := new(mockMessageRepo)
		provider := &mockProvider{reply: "hi"}
		sender := &mockSender{}
		svc := newAutoReplyService(settingsRepo, convRepo, messageRepo, provider)

		settings := enabledSettings()
		settings.Enabled = false
		settingsRepo.On("FindByTenantID", ctx, "tenant-1").Return(settings, nil)

		outcome := svc.MaybeReply(ctx, "tenant-1", chat, inboundMsg(), sender)

		assert.Equal(t, ReplySkipped, outcome)
		assert.Empty(t, sender.sent)
		assert.Zero(t, provider.callCount())
	})

	t.Run("skips without settings row", func(t *testing.T) {
		settingsRepo := new(mockAISettingsRepo)
		convRepo := new(mockAIConvRepo)
		messageRepo := new(mockMessageRepo)
		sender := &mockSender{}
		svc := newAutoReplyService(settingsRepo, convRepo, messageRepo, &mockProvider{})

		settingsRepo.On("FindByTenantID", ctx, "tenant-1").Return(nil, nil)

		outcome := svc.MaybeReply(ctx, "tenant-1", chat, inboundMsg(), sender)

		assert.Equal(t, ReplySkipped, outcome)
	})

	t.Run("skips outbound messages", func(t *testing.T) {
		svc := newAutoReplyService(new(mockAISettingsRepo), new(mockAIConvRepo), new(mockMessageRepo), &mockProvider{})

		msg := inboundMsg()
		msg.Direction = model.DirectionOut

		outcome := svc.MaybeReply(ctx, "tenant-1", chat, msg, &mockSender{})

		assert.Equal(t, ReplySkipped, outcome)
	})

	t.Run("skips empty bodies", func(t *testing.T) {
		svc := newAutoReplyService(new(mockAISettingsRepo), new(mockAIConvRepo), new(mockMessageRepo), &mockProvider{})

		msg := inboundMsg()
		msg.Body = "   "

		outcome := svc.MaybeReply(ctx, "tenant-1", chat, msg, &mockSender{})

		assert.Equal(t, ReplySkipped, outcome)
	})

	t.Run("skips without provider", func(t *testing.T) {
		svc := newAutoReplyService(new(mockAISettingsRepo), new(mockAIConvRepo), new(mockMessageRepo), nil)

		outcome := svc.MaybeReply(ctx, "tenant-1", chat, inboundMsg(), &mockSender{})

		assert.Equal(t, ReplySkipped, outcome)
	})

	t.Run("recovers after transient provider failures", func(t *testing.T) {
		settingsRepo := new(mockAISettingsRepo)
		convRepo := new(mockAIConvRepo)
		messageRepo := new(mockMessageRepo)
		provider := &mockProvider{failUntil: 2, reply: "finally"}
		sender := &mockSender{}
		svc := newAutoReplyService(settingsRepo, convRepo, messageRepo, provider)

		settingsRepo.On("FindByTenantID", ctx, "tenant-1").Return(enabledSettings(), nil)
		messageRepo.On("FindRecentByChatID", ctx, "chat-1", 5).Return([]model.Message{}, nil)
		convRepo.On("Create", ctx, mock.Anything).Return(&model.AIConversation{ID: "conv-1"}, nil)

		outcome := svc.MaybeReply(ctx, "tenant-1", chat, inboundMsg(), sender)

		assert.Equal(t, ReplySent, outcome)
		assert.Equal(t, 3, provider.callCount())
	})

	t.Run("fails after exhausting retries", func(t *testing.T) {
		settingsRepo := new(mockAISettingsRepo)
		messageRepo := new(mockMessageRepo)
		provider := &mockProvider{failUntil: 10}
		sender := &mockSender{}
		svc := newAutoReplyService(settingsRepo, new(mockAIConvRepo), messageRepo, provider)

		settingsRepo.On("FindByTenantID", ctx, "tenant-1").Return(enabledSettings(), nil)
		messageRepo.On("FindRecentByChatID", ctx, "chat-1", 5).Return([]model.Message{}, nil)

		outcome := svc.MaybeReply(ctx, "tenant-1", chat, inboundMsg(), sender)

		assert.Equal(t, ReplyFailed, outcome)
		// Initial attempt plus two retries.
		assert.Equal(t, 3, provider.callCount())
		assert.Empty(t, sender.sent)
	})

	t.Run("fails when send fails", func(t *testing.T) {
		settingsRepo := new(mockAISettingsRepo)
		messageRepo := new(mockMessageRepo)
		sender := &mockSender{sendErr: assert.AnError}
		svc := newAutoReplyService(settingsRepo, new(mockAIConvRepo), messageRepo, &mockProvider{reply: "hi"})

		settingsRepo.On("FindByTenantID", ctx, "tenant-1").Return(enabledSettings(), nil)
		messageRepo.On("FindRecentByChatID", ctx, "chat-1", 5).Return([]model.Message{}, nil)

		outcome := svc.MaybeReply(ctx, "tenant-1", chat, inboundMsg(), sender)

		assert.Equal(t, ReplyFailed, outcome)
	})
}

func TestAutoReplyService_buildTranscript(t *testing.T) {
	ctx := context.Background()

	t.Run("maps history oldest first excluding trigger", func(t *testing.T) {
		messageRepo := new(mockMessageRepo)
		svc := newAutoReplyService(new(mockAISettingsRepo), new(mockAIConvRepo), messageRepo, &mockProvider{})

		current := &model.Message{ID: "msg-3", Body: "third"}

		// Repository returns newest first.
		messageRepo.On("FindRecentByChatID", ctx, "chat-1", 5).Return([]model.Message{
			{ID: "msg-3", Direction: model.DirectionIn, Body: "third"},
			{ID: "msg-2", Direction: model.DirectionOut, Body: "second"},
			{ID: "msg-1", Direction: model.DirectionIn, Body: "first"},
		}, nil)

		turns, err := svc.buildTranscript(ctx, "chat-1", enabledSettings(), current)

		assert.NoError(t, err)
		assert.Len(t, turns, 2)
		assert.Equal(t, ai.Turn{Role: ai.RoleUser, Text: "first"}, turns[0])
		assert.Equal(t, ai.Turn{Role: ai.RoleModel, Text: "second"}, turns[1])
	})

	t.Run("drops empty bodies", func(t *testing.T) {
		messageRepo := new(mockMessageRepo)
		svc := newAutoReplyService(new(mockAISettingsRepo), new(mockAIConvRepo), messageRepo, &mockProvider{})

		messageRepo.On("FindRecentByChatID", ctx, "chat-1", 5).Return([]model.Message{
			{ID: "msg-2", Direction: model.DirectionIn, Body: "  "},
			{ID: "msg-1", Direction: model.DirectionIn, Body: "hello"},
		}, nil)

		turns, err := svc.buildTranscript(ctx, "chat-1", enabledSettings(), &model.Message{ID: "msg-9"})

		assert.NoError(t, err)
		assert.Len(t, turns, 1)
		assert.Equal(t, "hello", turns[0].Text)
	})
}

func TestAutoReplyService_replyDelay(t *testing.T) {
	svc := newAutoReplyService(new(mockAISettingsRepo), new(mockAIConvRepo), new(mockMessageRepo), &mockProvider{})

	t.Run("uses configured delay", func(t *testing.T) {
		settings := enabledSettings()
		settings.ReplyDelaySeconds = 10
		assert.Equal(t, 10*time.Second, svc.replyDelay(settings))
	})

	t.Run("clamps to the upper bound", func(t *testing.T) {
		settings := enabledSettings()
		settings.ReplyDelaySeconds = 600
		assert.Equal(t, 60*time.Second, svc.replyDelay(settings))
	})

	t.Run("negative falls back to the default", func(t *testing.T) {
		settings := enabledSettings()
		settings.ReplyDelaySeconds = -1
		assert.Equal(t, 2*time.Second, svc.replyDelay(settings))
	})
}

package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wavelink/gateway-server-go/internal/ai"
	"github.com/wavelink/gateway-server-go/internal/config"
	"github.com/wavelink/gateway-server-go/internal/model"
	"github.com/wavelink/gateway-server-go/internal/repository"
)

// ReplyOutcome is the result of one auto-reply evaluation.
type ReplyOutcome string

const (
	ReplySkipped ReplyOutcome = "skipped"
	ReplySent    ReplyOutcome = "sent"
	ReplyFailed  ReplyOutcome = "failed"
)

// ReplySender is the slice of a live connection the pipeline needs to answer
// a message. The orchestrator binds it to the tenant's transport so replies
// travel, and are persisted, exactly like manual sends.
type ReplySender interface {
	SendText(ctx context.Context, to, body string) (string, error)
	SetComposing(ctx context.Context, to string, composing bool) error
}

type AutoReplyConfig struct {
	DefaultDelaySeconds  int
	DefaultContextWindow int
	MaxRetries           int
	ProviderTimeout      time.Duration
}

// AutoReplyService decides whether an ingested message deserves a generated
// reply and produces it. Failures never escape this service as errors; the
// counterparty simply receives nothing.
type AutoReplyService struct {
	settingsRepo repository.AISettingsRepository
	aiConvRepo   repository.AIConversationRepository
	messageRepo  repository.MessageRepository
	provider     ai.Provider
	cfg          AutoReplyConfig

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration)
}

func NewAutoReplyService(
	settingsRepo repository.AISettingsRepository,
	aiConvRepo repository.AIConversationRepository,
	messageRepo repository.MessageRepository,
	provider ai.Provider,
	cfg AutoReplyConfig,
) *AutoReplyService {
	if cfg.DefaultContextWindow <= 0 {
		cfg.DefaultContextWindow = 5
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 15 * time.Second
	}
	return &AutoReplyService{
		settingsRepo: settingsRepo,
		aiConvRepo:   aiConvRepo,
		messageRepo:  messageRepo,
		provider:     provider,
		cfg:          cfg,
		sleep:        sleepCtx,
	}
}

// MaybeReply runs the gate conditions and, when they pass, generates and
// sends a reply through sender.
func (s *AutoReplyService) MaybeReply(ctx context.Context, tenantID string, chat *model.Chat, msg *model.Message, sender ReplySender) ReplyOutcome {
	if s.provider == nil || sender == nil {
		return ReplySkipped
	}
	if msg.Direction != model.DirectionIn {
		return ReplySkipped
	}
	if strings.TrimSpace(msg.Body) == "" {
		return ReplySkipped
	}

	settings, err := s.settingsRepo.FindByTenantID(ctx, tenantID)
	if err != nil {
		log.Error().Err(err).Str("tenantId", tenantID).Msg("auto-reply: failed to load settings")
		return ReplySkipped
	}
	if settings == nil || !settings.Enabled {
		return ReplySkipped
	}

	transcript, err := s.buildTranscript(ctx, chat.ID, settings, msg)
	if err != nil {
		log.Error().Err(err).Str("chatId", chat.ID).Msg("auto-reply: failed to build transcript")
		return ReplyFailed
	}

	counterparty := msg.FromAddress

	// Best-effort; a failed presence update never blocks the reply.
	if err := sender.SetComposing(ctx, counterparty, true); err != nil {
		log.Debug().Err(err).Str("tenantId", tenantID).Msg("auto-reply: composing signal failed")
	}
	defer func() {
		if err := sender.SetComposing(ctx, counterparty, false); err != nil {
			log.Debug().Err(err).Str("tenantId", tenantID).Msg("auto-reply: clear composing failed")
		}
	}()

	// A small pause before replying; instant replies read as robotic.
	if delay := s.replyDelay(settings); delay > 0 {
		s.sleep(ctx, delay)
	}

	start := time.Now()
	completion, err := s.complete(ctx, settings, transcript, msg.Body)
	if err != nil {
		log.Warn().Err(err).
			Str("tenantId", tenantID).
			Str("chatId", chat.ID).
			Msg("auto-reply: provider failed after retries")
		return ReplyFailed
	}
	elapsed := time.Since(start)

	externalID, err := sender.SendText(ctx, counterparty, completion.Text)
	if err != nil {
		log.Error().Err(err).
			Str("tenantId", tenantID).
			Str("chatId", chat.ID).
			Msg("auto-reply: send failed")
		return ReplyFailed
	}

	if _, err := s.aiConvRepo.Create(ctx, model.CreateAIConversationParams{
		TenantID:     tenantID,
		ChatID:       chat.ID,
		UserMessage:  msg.Body,
		Reply:        completion.Text,
		Model:        completion.Model,
		PromptTokens: completion.PromptTokens,
		OutputTokens: completion.OutputTokens,
		ElapsedMs:    elapsed.Milliseconds(),
	}); err != nil {
		log.Error().Err(err).Str("tenantId", tenantID).Msg("auto-reply: failed to record conversation")
	}

	log.Info().
		Str("tenantId", tenantID).
		Str("chatId", chat.ID).
		Str("externalId", externalID).
		Dur("elapsed", elapsed).
		Msg("auto-reply sent")

	return ReplySent
}

// buildTranscript fetches the last-N messages of the chat, oldest first,
// mapped to provider roles. The triggering message is passed separately and
// excluded here.
func (s *AutoReplyService) buildTranscript(ctx context.Context, chatID string, settings *model.AISettings, current *model.Message) ([]ai.Turn, error) {
	window := settings.ContextWindow
	if window <= 0 {
		window = s.cfg.DefaultContextWindow
	}

	recent, err := s.messageRepo.FindRecentByChatID(ctx, chatID, window)
	if err != nil {
		return nil, err
	}

	turns := make([]ai.Turn, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		if m.ID == current.ID || strings.TrimSpace(m.Body) == "" {
			continue
		}
		role := ai.RoleUser
		if m.Direction == model.DirectionOut {
			role = ai.RoleModel
		}
		turns = append(turns, ai.Turn{Role: role, Text: m.Body})
	}
	return turns, nil
}

// complete calls the provider with a bounded timeout, retrying with linear
// backoff (1s, 2s) on failure.
func (s *AutoReplyService) complete(ctx context.Context, settings *model.AISettings, transcript []ai.Turn, message string) (*ai.Completion, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			s.sleep(ctx, time.Duration(attempt)*time.Second)
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
		completion, err := s.provider.Complete(callCtx, settings.SystemPrompt, transcript, message)
		cancel()
		if err == nil {
			return completion, nil
		}
		lastErr = err

		log.Warn().Err(err).
			Int("attempt", attempt+1).
			Msg("auto-reply: provider attempt failed")

		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (s *AutoReplyService) replyDelay(settings *model.AISettings) time.Duration {
	seconds := settings.ReplyDelaySeconds
	if seconds < 0 {
		seconds = s.cfg.DefaultDelaySeconds
	}
	if seconds > config.MaxAutoReplyDelaySeconds {
		seconds = config.MaxAutoReplyDelaySeconds
	}
	return time.Duration(seconds) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

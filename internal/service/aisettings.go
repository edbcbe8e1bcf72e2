package service

import (
	"context"
	"fmt"

	apperrors "github.com/wavelink/gateway-server-go/internal/errors"
	"github.com/wavelink/gateway-server-go/internal/config"
	"github.com/wavelink/gateway-server-go/internal/model"
	"github.com/wavelink/gateway-server-go/internal/repository"
)

// AISettingsService manages the per-tenant auto-reply configuration.
type AISettingsService struct {
	settingsRepo repository.AISettingsRepository

	defaultDelaySeconds  int
	defaultContextWindow int
	defaultModel         string
}

func NewAISettingsService(
	settingsRepo repository.AISettingsRepository,
	defaultDelaySeconds, defaultContextWindow int,
	defaultModel string,
) *AISettingsService {
	return &AISettingsService{
		settingsRepo:         settingsRepo,
		defaultDelaySeconds:  defaultDelaySeconds,
		defaultContextWindow: defaultContextWindow,
		defaultModel:         defaultModel,
	}
}

// Get returns the tenant's settings, or the disabled defaults when the
// tenant has never configured auto-reply.
func (s *AISettingsService) Get(ctx context.Context, tenantID string) (*model.AISettings, error) {
	settings, err := s.settingsRepo.FindByTenantID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("find ai settings: %w", err)
	}
	if settings == nil {
		return &model.AISettings{
			TenantID:          tenantID,
			Enabled:           false,
			Model:             s.defaultModel,
			ReplyDelaySeconds: s.defaultDelaySeconds,
			ContextWindow:     s.defaultContextWindow,
		}, nil
	}
	return settings, nil
}

func (s *AISettingsService) Update(ctx context.Context, params model.UpsertAISettingsParams) (*model.AISettings, error) {
	if params.ReplyDelaySeconds < 0 || params.ReplyDelaySeconds > config.MaxAutoReplyDelaySeconds {
		return nil, apperrors.InvalidInput("replyDelaySeconds",
			fmt.Sprintf("must be between 0 and %d", config.MaxAutoReplyDelaySeconds))
	}
	if params.ContextWindow <= 0 {
		params.ContextWindow = s.defaultContextWindow
	}
	if params.Model == "" {
		params.Model = s.defaultModel
	}

	settings, err := s.settingsRepo.Upsert(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("upsert ai settings: %w", err)
	}
	return settings, nil
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/wavelink/gateway-server-go/internal/middleware"
	"github.com/wavelink/gateway-server-go/internal/model"
	"github.com/wavelink/gateway-server-go/internal/repository"
	"github.com/wavelink/gateway-server-go/internal/service"
)

type AIHandler struct {
	settingsService *service.AISettingsService
	convRepo        repository.AIConversationRepository
}

func NewAIHandler(settingsService *service.AISettingsService, convRepo repository.AIConversationRepository) *AIHandler {
	return &AIHandler{
		settingsService: settingsService,
		convRepo:        convRepo,
	}
}

func (h *AIHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)
	r.Get("/conversations", h.ListConversations)

	return r
}

// GET /v1/ai/settings
func (h *AIHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	settings, err := h.settingsService.Get(r.Context(), tenant.ID)
	if err != nil {
		log.Error().Err(err).Str("tenantId", tenant.ID).Msg("failed to load ai settings")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

// PUT /v1/ai/settings
func (h *AIHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req struct {
		Enabled           bool   `json:"enabled"`
		SystemPrompt      string `json:"systemPrompt"`
		Model             string `json:"model"`
		ReplyDelaySeconds int    `json:"replyDelaySeconds"`
		ContextWindow     int    `json:"contextWindow"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	settings, err := h.settingsService.Update(r.Context(), model.UpsertAISettingsParams{
		TenantID:          tenant.ID,
		Enabled:           req.Enabled,
		SystemPrompt:      req.SystemPrompt,
		Model:             req.Model,
		ReplyDelaySeconds: req.ReplyDelaySeconds,
		ContextWindow:     req.ContextWindow,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	log.Info().
		Str("tenantId", tenant.ID).
		Bool("enabled", settings.Enabled).
		Msg("ai settings updated")

	writeJSON(w, http.StatusOK, settings)
}

// GET /v1/ai/conversations
func (h *AIHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	p := ParsePagination(r)
	ctx := r.Context()

	conversations, err := h.convRepo.FindByTenantID(ctx, tenant.ID, p.Limit, p.Offset)
	if err != nil {
		log.Error().Err(err).Str("tenantId", tenant.ID).Msg("failed to list ai conversations")
		writeError(w, err)
		return
	}

	total, err := h.convRepo.CountByTenantID(ctx, tenant.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": conversations,
		"total":         total,
		"limit":         p.Limit,
		"offset":        p.Offset,
	})
}

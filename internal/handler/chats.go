package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/wavelink/gateway-server-go/internal/middleware"
	"github.com/wavelink/gateway-server-go/internal/service"
)

type ChatsHandler struct {
	convService *service.ConversationService
}

func NewChatsHandler(convService *service.ConversationService) *ChatsHandler {
	return &ChatsHandler{convService: convService}
}

func (h *ChatsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{chatID}/messages", h.Messages)
	r.Post("/{chatID}/read", h.MarkRead)

	return r
}

// GET /v1/chats
func (h *ChatsHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	p := ParsePagination(r)

	chats, total, err := h.convService.ListChats(r.Context(), tenant.ID, p.Limit, p.Offset)
	if err != nil {
		log.Error().Err(err).Str("tenantId", tenant.ID).Msg("failed to list chats")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"chats":  chats,
		"total":  total,
		"limit":  p.Limit,
		"offset": p.Offset,
	})
}

// GET /v1/chats/{chatID}/messages
// Newest first.
func (h *ChatsHandler) Messages(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	chatID := chi.URLParam(r, "chatID")
	p := ParsePagination(r)

	messages, total, err := h.convService.GetMessages(r.Context(), tenant.ID, chatID, p.Limit, p.Offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"total":    total,
		"limit":    p.Limit,
		"offset":   p.Offset,
	})
}

// POST /v1/chats/{chatID}/read
func (h *ChatsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	chatID := chi.URLParam(r, "chatID")

	if err := h.convService.MarkChatRead(r.Context(), tenant.ID, chatID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/wavelink/gateway-server-go/internal/middleware"
	"github.com/wavelink/gateway-server-go/internal/orchestrator"
	"github.com/wavelink/gateway-server-go/internal/util"
)

type SessionHandler struct {
	orch *orchestrator.Orchestrator
}

func NewSessionHandler(orch *orchestrator.Orchestrator) *SessionHandler {
	return &SessionHandler{orch: orch}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/init", h.Init)
	r.Get("/status", h.Status)
	r.Get("/pairing-code", h.PairingCode)
	r.Post("/logout", h.Logout)
	r.Post("/restart", h.Restart)

	return r
}

// POST /v1/session/init
// Brings up the tenant's connection. Idempotent: calling while a connection
// is live is a no-op.
func (h *SessionHandler) Init(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	if err := h.orch.InitSession(r.Context(), tenant.ID); err != nil {
		log.Error().Err(err).Str("tenantId", tenant.ID).Msg("session init failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"success": true})
}

// GET /v1/session/status
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	status, err := h.orch.Status(r.Context(), tenant.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	s := status.Session
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            s.Status,
		"connected":         status.Connected,
		"live":              status.Live,
		"phoneNumber":       s.PhoneNumber,
		"reconnectAttempts": s.ReconnectAttempts,
		"lastError":         s.LastError,
		"expiresAt":         formatTime(s.ExpiresAt),
		"lastConnectedAt":   formatTime(s.LastConnectedAt),
	})
}

// GET /v1/session/pairing-code
// Polling-style retrieval of the current pairing artifact. Clients that
// prefer push receive the same code over the event stream.
func (h *SessionHandler) PairingCode(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	code, err := h.orch.PairingCode(r.Context(), tenant.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	if code == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No pairing code available"})
		return
	}

	log.Debug().
		Str("tenantId", tenant.ID).
		Str("code", util.MaskCode(code)).
		Msg("pairing code retrieved")

	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

// POST /v1/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	if err := h.orch.Logout(r.Context(), tenant.ID); err != nil {
		log.Error().Err(err).Str("tenantId", tenant.ID).Msg("logout failed")
		writeError(w, err)
		return
	}

	log.Info().Str("tenantId", tenant.ID).Msg("session logged out")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// POST /v1/session/restart
func (h *SessionHandler) Restart(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	if err := h.orch.Restart(r.Context(), tenant.ID); err != nil {
		log.Error().Err(err).Str("tenantId", tenant.ID).Msg("restart failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"success": true})
}

type MessageHandler struct {
	orch *orchestrator.Orchestrator
}

func NewMessageHandler(orch *orchestrator.Orchestrator) *MessageHandler {
	return &MessageHandler{orch: orch}
}

func (h *MessageHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/send", h.Send)

	return r
}

// POST /v1/messages/send
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req struct {
		To   string `json:"to"`
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if strings.TrimSpace(req.To) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to is required"})
		return
	}
	if req.Body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body is required"})
		return
	}

	result, err := h.orch.SendMessage(r.Context(), tenant.ID, req.To, req.Body)
	if err != nil {
		log.Error().Err(err).Str("tenantId", tenant.ID).Msg("send failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"messageId": result.MessageID,
		"chatId":    result.ChatID,
	})
}

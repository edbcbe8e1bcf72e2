package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wavelink/gateway-server-go/internal/middleware"
	"github.com/wavelink/gateway-server-go/internal/orchestrator"
	"github.com/wavelink/gateway-server-go/internal/sse"
)

type EventsHandler struct {
	broker *sse.Broker
	orch   *orchestrator.Orchestrator
}

func NewEventsHandler(broker *sse.Broker, orch *orchestrator.Orchestrator) *EventsHandler {
	return &EventsHandler{
		broker: broker,
		orch:   orch,
	}
}

// GET /v1/events
// Server-sent event stream of the tenant's session and message events.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(tenant.ID)
	defer h.broker.Unsubscribe(client)

	log.Info().
		Str("tenantId", tenant.ID).
		Msg("sse connection established")

	ctx := r.Context()

	// Opening snapshot so the client does not have to race a status poll.
	connected := false
	if status, err := h.orch.Status(ctx, tenant.ID); err == nil {
		connected = status.Connected
	}
	h.sendEvent(w, flusher, "connected", map[string]any{
		"tenantId":  tenant.ID,
		"connected": connected,
	})

	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("tenantId", tenant.ID).
				Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("tenantId", tenant.ID).
				Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("tenantId", tenant.ID).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

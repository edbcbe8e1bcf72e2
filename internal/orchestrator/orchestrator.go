// Package orchestrator owns the map of live tenant connections and bridges
// transport events to the durable stores, the real-time fan-out and the
// auto-reply pipeline. All mutation of the live map goes through its
// serialized per-tenant entry points; per-tenant operations never block
// other tenants.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/wavelink/gateway-server-go/internal/errors"
	"github.com/wavelink/gateway-server-go/internal/model"
	"github.com/wavelink/gateway-server-go/internal/repository"
	"github.com/wavelink/gateway-server-go/internal/service"
	"github.com/wavelink/gateway-server-go/internal/transport"
)

// Real-time event names fanned out to subscribers.
const (
	EventPairingCode     = "pairing_code"
	EventSessionReady    = "session_ready"
	EventDisconnected    = "session_disconnected"
	EventLoggedOut       = "session_logged_out"
	EventMessageReceived = "message_received"
	EventMessageSent     = "message_sent"
)

// Emitter is the slice of the fan-out broker the orchestrator needs.
type Emitter interface {
	EmitToTenant(ctx context.Context, tenantID, eventType string, payload any) error
}

type Config struct {
	ReconnectDelay time.Duration
	ReinitDelay    time.Duration
}

type SendResult struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

// StatusResult merges the durable session row with live in-memory state.
type StatusResult struct {
	Session   *model.TenantSession `json:"session"`
	Live      bool                 `json:"live"`
	Connected bool                 `json:"connected"`
}

type Orchestrator struct {
	dialer    transport.Dialer
	authRepo  repository.AuthStateRepository
	lifecycle *service.LifecycleService
	ingest    *service.IngestService
	autoReply *service.AutoReplyService
	broker    Emitter
	cfg       Config

	mu       sync.Mutex
	sessions map[string]*liveSession
	locks    map[string]*sync.Mutex
	reinits  map[string]*time.Timer
	closed   bool
}

func New(
	dialer transport.Dialer,
	authRepo repository.AuthStateRepository,
	lifecycle *service.LifecycleService,
	ingest *service.IngestService,
	autoReply *service.AutoReplyService,
	broker Emitter,
	cfg Config,
) *Orchestrator {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	if cfg.ReinitDelay <= 0 {
		cfg.ReinitDelay = 2 * time.Second
	}
	return &Orchestrator{
		dialer:    dialer,
		authRepo:  authRepo,
		lifecycle: lifecycle,
		ingest:    ingest,
		autoReply: autoReply,
		broker:    broker,
		cfg:       cfg,
		sessions:  make(map[string]*liveSession),
		locks:     make(map[string]*sync.Mutex),
		reinits:   make(map[string]*time.Timer),
	}
}

// tenantLock returns the mutex serializing lifecycle operations for one
// tenant. Different tenants hold different mutexes and proceed in parallel.
func (o *Orchestrator) tenantLock(tenantID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[tenantID] = l
	}
	return l
}

func (o *Orchestrator) getLive(tenantID string) *liveSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessions[tenantID]
}

func (o *Orchestrator) setLive(tenantID string, ls *liveSession) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessions[tenantID] = ls
}

// removeLive deletes the map entry only when it still points at ls, so a
// stale handler cannot evict a newer connection.
func (o *Orchestrator) removeLive(tenantID string, ls *liveSession) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sessions[tenantID] == ls {
		delete(o.sessions, tenantID)
	}
}

// InitSession brings up a live connection for the tenant. It is a no-op when
// one already exists: concurrent callers serialize on the tenant lock and
// the second observes the first's registration.
func (o *Orchestrator) InitSession(ctx context.Context, tenantID string) error {
	lock := o.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()
	return o.initLocked(ctx, tenantID)
}

func (o *Orchestrator) initLocked(ctx context.Context, tenantID string) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return apperrors.Internal("orchestrator is shut down")
	}
	o.mu.Unlock()

	if o.getLive(tenantID) != nil {
		return nil
	}

	session, err := o.lifecycle.Ensure(ctx, tenantID)
	if err != nil {
		return err
	}

	// A failed auth load degrades to a fresh pairing flow rather than
	// blocking startup. Recoverable: the tenant re-pairs.
	var credentials []byte
	state, err := o.authRepo.Find(ctx, tenantID)
	if err != nil {
		log.Error().Err(err).
			Str("tenantId", tenantID).
			Msg("auth state load failed, starting fresh pairing")
	} else if state != nil {
		credentials = state.Credentials
	}

	tr, err := o.dialer.Dial(ctx, tenantID, credentials)
	if err != nil {
		return apperrors.External("transport", err)
	}

	ls := &liveSession{
		tenantID:  tenantID,
		sessionID: session.ID,
		transport: tr,
	}
	o.setLive(tenantID, ls)
	go o.runEvents(ls)

	if err := tr.Connect(ctx); err != nil {
		o.removeLive(tenantID, ls)
		_ = tr.Close()
		return apperrors.External("transport", err)
	}

	log.Info().Str("tenantId", tenantID).Msg("session initialized")
	return nil
}

// runEvents is the tenant's single event loop: events are handled strictly
// in delivery order, so a credential rotation is durable before anything
// behind it is processed.
func (o *Orchestrator) runEvents(ls *liveSession) {
	for ev := range ls.transport.Events() {
		o.dispatch(ls, ev)
	}
}

func (o *Orchestrator) dispatch(ls *liveSession, ev transport.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("tenantId", ls.tenantID).
				Interface("panic", r).
				Msg("event handler panicked, connection kept alive")
		}
	}()

	ctx := context.Background()

	switch e := ev.(type) {
	case transport.PairingCodeEvent:
		o.handlePairingCode(ctx, ls, e)
	case transport.CredentialsEvent:
		o.handleCredentials(ctx, ls, e)
	case transport.ConnectedEvent:
		o.handleConnected(ctx, ls, e)
	case transport.MessageEvent:
		o.handleMessage(ctx, ls, e)
	case transport.DisconnectedEvent:
		o.handleDisconnected(ctx, ls, e)
	}
}

func (o *Orchestrator) handlePairingCode(ctx context.Context, ls *liveSession, e transport.PairingCodeEvent) {
	ls.setPairingCode(e.Code)

	if err := o.lifecycle.RecordPairingCode(ctx, ls.tenantID, e.Code); err != nil {
		log.Error().Err(err).Str("tenantId", ls.tenantID).Msg("failed to persist pairing code")
	}

	o.emit(ctx, ls.tenantID, EventPairingCode, map[string]any{"code": e.Code})
}

// handleCredentials is the rotation commit point: the blob must be durable
// before the loop advances to the next event.
func (o *Orchestrator) handleCredentials(ctx context.Context, ls *liveSession, e transport.CredentialsEvent) {
	if err := o.authRepo.Save(ctx, ls.tenantID, e.Credentials); err != nil {
		// A lost rotation risks forcing a future re-pairing.
		log.Error().Err(err).
			Str("tenantId", ls.tenantID).
			Msg("CREDENTIAL SAVE FAILED: session may require re-pairing after restart")
	}
}

func (o *Orchestrator) handleConnected(ctx context.Context, ls *liveSession, e transport.ConnectedEvent) {
	ls.markConnected(e.PhoneNumber)
	ls.cancelReconnect()

	if err := o.lifecycle.RecordConnected(ctx, ls.tenantID, e.PhoneNumber); err != nil {
		log.Error().Err(err).Str("tenantId", ls.tenantID).Msg("failed to record connected state")
	}
	if err := o.lifecycle.ResetReconnectAttempts(ctx, ls.tenantID); err != nil {
		log.Error().Err(err).Str("tenantId", ls.tenantID).Msg("failed to reset reconnect counter")
	}

	o.emit(ctx, ls.tenantID, EventSessionReady, map[string]any{"phoneNumber": e.PhoneNumber})

	o.backfill(ctx, ls)
}

// backfill replays remote history through the normal ingestion path when the
// transport supports it. Best-effort: failures never degrade the connected
// state.
func (o *Orchestrator) backfill(ctx context.Context, ls *liveSession) {
	hp, ok := ls.transport.(transport.HistoryProvider)
	if !ok {
		return
	}

	events, err := hp.History(ctx)
	if err != nil {
		log.Warn().Err(err).Str("tenantId", ls.tenantID).Msg("history backfill failed")
		return
	}

	ingested := 0
	for _, ev := range events {
		if _, err := o.ingest.Ingest(ctx, ls.tenantID, ls.sessionID, ev); err != nil {
			log.Warn().Err(err).
				Str("tenantId", ls.tenantID).
				Str("externalId", ev.ExternalID).
				Msg("backfill message skipped")
			continue
		}
		ingested++
	}

	if ingested > 0 {
		log.Info().
			Str("tenantId", ls.tenantID).
			Int("messages", ingested).
			Msg("history backfill complete")
	}
}

// handleMessage feeds one event through ingestion and then the auto-reply
// pipeline. A failing message is logged and dropped; it never crashes the
// connection or blocks the ones behind it.
func (o *Orchestrator) handleMessage(ctx context.Context, ls *liveSession, e transport.MessageEvent) {
	res, err := o.ingest.Ingest(ctx, ls.tenantID, ls.sessionID, e)
	if err != nil {
		log.Error().Err(err).
			Str("tenantId", ls.tenantID).
			Str("externalId", e.ExternalID).
			Msg("message ingestion failed")
		return
	}

	// A duplicate delivery converged on the stored row; subscribers already
	// saw it, so neither fan-out nor auto-reply fires again.
	if !res.Created {
		return
	}

	eventName := EventMessageReceived
	if res.Message.Direction == model.DirectionOut {
		eventName = EventMessageSent
	}
	o.emit(ctx, ls.tenantID, eventName, res.Message.ToEventData())

	outcome := o.autoReply.MaybeReply(ctx, ls.tenantID, res.Chat, res.Message, &liveSender{orch: o, ls: ls})
	if outcome == service.ReplyFailed {
		log.Warn().
			Str("tenantId", ls.tenantID).
			Str("chatId", res.Chat.ID).
			Msg("auto-reply failed, no reply sent")
	}
}

func (o *Orchestrator) handleDisconnected(ctx context.Context, ls *liveSession, e transport.DisconnectedEvent) {
	ls.markDisconnected()

	if e.LoggedOut {
		// Remote side invalidated the session: terminal, auth wiped.
		if err := o.authRepo.Delete(ctx, ls.tenantID); err != nil {
			log.Error().Err(err).Str("tenantId", ls.tenantID).Msg("failed to delete auth state")
		}
		if err := o.lifecycle.RecordLoggedOut(ctx, ls.tenantID); err != nil {
			log.Error().Err(err).Str("tenantId", ls.tenantID).Msg("failed to record logout")
		}
		o.removeLive(ls.tenantID, ls)
		_ = ls.transport.Close()
		o.emit(ctx, ls.tenantID, EventLoggedOut, map[string]any{"reason": e.Reason})
		return
	}

	if err := o.lifecycle.RecordDisconnected(ctx, ls.tenantID, e.Reason); err != nil {
		log.Error().Err(err).Str("tenantId", ls.tenantID).Msg("failed to record disconnect")
	}

	eligible, err := o.lifecycle.ShouldReconnect(ctx, ls.tenantID)
	if err != nil {
		log.Error().Err(err).Str("tenantId", ls.tenantID).Msg("reconnect eligibility check failed")
		eligible = false
	}

	o.emit(ctx, ls.tenantID, EventDisconnected, map[string]any{
		"reason":    e.Reason,
		"reconnect": eligible,
	})

	if !eligible {
		// Manual intervention required from here.
		log.Warn().Str("tenantId", ls.tenantID).Msg("reconnect attempts exhausted")
		o.removeLive(ls.tenantID, ls)
		_ = ls.transport.Close()
		return
	}

	attempts, err := o.lifecycle.IncrementReconnectAttempts(ctx, ls.tenantID)
	if err != nil {
		log.Error().Err(err).Str("tenantId", ls.tenantID).Msg("failed to count reconnect attempt")
	}

	log.Info().
		Str("tenantId", ls.tenantID).
		Int("attempt", attempts).
		Dur("delay", o.cfg.ReconnectDelay).
		Msg("scheduling reconnect")

	ls.scheduleReconnect(o.cfg.ReconnectDelay, func() {
		o.reconnect(ls)
	})
}

// reconnect tears down the stale live entry and re-runs init under the
// tenant lock.
func (o *Orchestrator) reconnect(ls *liveSession) {
	lock := o.tenantLock(ls.tenantID)
	lock.Lock()
	defer lock.Unlock()

	o.removeLive(ls.tenantID, ls)
	_ = ls.transport.Close()

	if err := o.initLocked(context.Background(), ls.tenantID); err != nil {
		log.Error().Err(err).Str("tenantId", ls.tenantID).Msg("reconnect failed")
	}
}

// SendMessage sends through the tenant's live connection and persists the
// confirmed message via the idempotent insert path.
func (o *Orchestrator) SendMessage(ctx context.Context, tenantID, to, body string) (*SendResult, error) {
	ls := o.getLive(tenantID)
	if ls == nil {
		return nil, apperrors.SessionNotFound(tenantID)
	}
	if !ls.isConnected() {
		return nil, apperrors.NotConnected(tenantID)
	}

	externalID, err := ls.transport.Send(ctx, to, body)
	if err != nil {
		return nil, apperrors.External("transport", err)
	}

	res, err := o.ingest.RecordOutbound(ctx, tenantID, ls.sessionID, ls.phone(), to, body, externalID)
	if err != nil {
		return nil, err
	}

	o.emit(ctx, tenantID, EventMessageSent, res.Message.ToEventData())

	return &SendResult{
		MessageID: res.Message.ID,
		ChatID:    res.Chat.ID,
	}, nil
}

// Logout is the irreversible step: auth state is deleted unconditionally,
// then a fresh init is scheduled so a new pairing code appears without a
// separate manual request.
func (o *Orchestrator) Logout(ctx context.Context, tenantID string) error {
	lock := o.tenantLock(tenantID)
	lock.Lock()

	if ls := o.getLive(tenantID); ls != nil {
		ls.cancelReconnect()
		if err := ls.transport.Logout(ctx); err != nil {
			log.Warn().Err(err).Str("tenantId", tenantID).Msg("transport logout failed")
		}
		_ = ls.transport.Close()
		o.removeLive(tenantID, ls)
	}

	if err := o.authRepo.Delete(ctx, tenantID); err != nil {
		lock.Unlock()
		return apperrors.AuthPersistence("delete", err)
	}

	if err := o.lifecycle.RecordLoggedOut(ctx, tenantID); err != nil {
		log.Error().Err(err).Str("tenantId", tenantID).Msg("failed to record logout")
	}
	lock.Unlock()

	o.emit(ctx, tenantID, EventLoggedOut, map[string]any{"reason": "requested"})

	o.scheduleReinit(tenantID)
	return nil
}

// Restart forces a fresh pairing flow regardless of current state.
func (o *Orchestrator) Restart(ctx context.Context, tenantID string) error {
	if err := o.Logout(ctx, tenantID); err != nil {
		return err
	}
	return o.InitSession(ctx, tenantID)
}

func (o *Orchestrator) scheduleReinit(tenantID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	if t, ok := o.reinits[tenantID]; ok {
		t.Stop()
	}
	o.reinits[tenantID] = time.AfterFunc(o.cfg.ReinitDelay, func() {
		if err := o.InitSession(context.Background(), tenantID); err != nil {
			log.Error().Err(err).Str("tenantId", tenantID).Msg("post-logout init failed")
		}
	})
}

// PairingCode returns the current pairing artifact for polling-style
// retrieval, preferring the live connection's latest code.
func (o *Orchestrator) PairingCode(ctx context.Context, tenantID string) (string, error) {
	if ls := o.getLive(tenantID); ls != nil {
		if code := ls.currentPairingCode(); code != "" {
			return code, nil
		}
	}

	session, err := o.lifecycle.Status(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if session == nil || session.PairingCode == nil {
		return "", nil
	}
	return *session.PairingCode, nil
}

// Status reads the durable row and overlays live-connection flags.
func (o *Orchestrator) Status(ctx context.Context, tenantID string) (*StatusResult, error) {
	session, err := o.lifecycle.Status(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.SessionNotFound(tenantID)
	}

	result := &StatusResult{Session: session}
	if ls := o.getLive(tenantID); ls != nil {
		result.Live = true
		result.Connected = ls.isConnected()
	}
	return result, nil
}

// Close tears down every live connection and pending timer. Used on server
// shutdown only.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	sessions := make([]*liveSession, 0, len(o.sessions))
	for _, ls := range o.sessions {
		sessions = append(sessions, ls)
	}
	o.sessions = make(map[string]*liveSession)
	for _, t := range o.reinits {
		t.Stop()
	}
	o.reinits = make(map[string]*time.Timer)
	o.mu.Unlock()

	for _, ls := range sessions {
		ls.cancelReconnect()
		_ = ls.transport.Close()
	}

	log.Info().Int("sessions", len(sessions)).Msg("orchestrator closed")
}

// liveSender binds the auto-reply pipeline to one live connection so replies
// use the identical send-and-persist path as manual sends.
type liveSender struct {
	orch *Orchestrator
	ls   *liveSession
}

func (s *liveSender) SendText(ctx context.Context, to, body string) (string, error) {
	externalID, err := s.ls.transport.Send(ctx, to, body)
	if err != nil {
		return "", err
	}

	res, err := s.orch.ingest.RecordOutbound(ctx, s.ls.tenantID, s.ls.sessionID, s.ls.phone(), to, body, externalID)
	if err != nil {
		return externalID, err
	}

	s.orch.emit(ctx, s.ls.tenantID, EventMessageSent, res.Message.ToEventData())
	return externalID, nil
}

func (s *liveSender) SetComposing(ctx context.Context, to string, composing bool) error {
	return s.ls.transport.SendPresence(ctx, to, composing)
}

func (o *Orchestrator) emit(ctx context.Context, tenantID, eventType string, payload any) {
	if o.broker == nil {
		return
	}
	if err := o.broker.EmitToTenant(ctx, tenantID, eventType, payload); err != nil {
		log.Debug().Err(err).
			Str("tenantId", tenantID).
			Str("event", eventType).
			Msg("event fan-out failed")
	}
}

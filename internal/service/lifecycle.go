package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wavelink/gateway-server-go/internal/model"
	"github.com/wavelink/gateway-server-go/internal/repository"
)

// LifecycleService owns the durable per-tenant session state machine. The
// orchestrator consults it on every connect/disconnect; status endpoints read
// from it when no live connection exists. All operations are idempotent with
// respect to repeated identical calls.
type LifecycleService struct {
	sessionRepo repository.SessionRepository

	maxReconnectAttempts int
	sessionExpiry        time.Duration
	pairingTTL           time.Duration
}

func NewLifecycleService(
	sessionRepo repository.SessionRepository,
	maxReconnectAttempts int,
	sessionExpiry time.Duration,
	pairingTTL time.Duration,
) *LifecycleService {
	return &LifecycleService{
		sessionRepo:          sessionRepo,
		maxReconnectAttempts: maxReconnectAttempts,
		sessionExpiry:        sessionExpiry,
		pairingTTL:           pairingTTL,
	}
}

// Ensure returns the tenant's durable session row, creating it on first use.
func (s *LifecycleService) Ensure(ctx context.Context, tenantID string) (*model.TenantSession, error) {
	session, err := s.sessionRepo.Ensure(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("ensure session: %w", err)
	}
	return session, nil
}

func (s *LifecycleService) Status(ctx context.Context, tenantID string) (*model.TenantSession, error) {
	return s.sessionRepo.FindByTenantID(ctx, tenantID)
}

func (s *LifecycleService) RecordPairingCode(ctx context.Context, tenantID, code string) error {
	if err := s.sessionRepo.SetPairingCode(ctx, tenantID, code); err != nil {
		return fmt.Errorf("set pairing code: %w", err)
	}
	return nil
}

// RecordConnected marks the session connected and rolls the expiry horizon
// forward from now.
func (s *LifecycleService) RecordConnected(ctx context.Context, tenantID, phoneNumber string) error {
	expiresAt := time.Now().Add(s.sessionExpiry)
	if err := s.sessionRepo.RecordConnected(ctx, tenantID, phoneNumber, expiresAt); err != nil {
		return fmt.Errorf("record connected: %w", err)
	}

	log.Info().
		Str("tenantId", tenantID).
		Str("phoneNumber", phoneNumber).
		Time("expiresAt", expiresAt).
		Msg("session connected")

	return nil
}

func (s *LifecycleService) RecordDisconnected(ctx context.Context, tenantID, reason string) error {
	if err := s.sessionRepo.RecordDisconnected(ctx, tenantID, reason); err != nil {
		return fmt.Errorf("record disconnected: %w", err)
	}

	log.Info().
		Str("tenantId", tenantID).
		Str("reason", reason).
		Msg("session disconnected")

	return nil
}

func (s *LifecycleService) RecordLoggedOut(ctx context.Context, tenantID string) error {
	if err := s.sessionRepo.RecordLoggedOut(ctx, tenantID); err != nil {
		return fmt.Errorf("record logged out: %w", err)
	}

	log.Info().Str("tenantId", tenantID).Msg("session logged out")
	return nil
}

func (s *LifecycleService) IncrementReconnectAttempts(ctx context.Context, tenantID string) (int, error) {
	count, err := s.sessionRepo.IncrementReconnectAttempts(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("increment reconnect attempts: %w", err)
	}
	return count, nil
}

func (s *LifecycleService) ResetReconnectAttempts(ctx context.Context, tenantID string) error {
	if err := s.sessionRepo.ResetReconnectAttempts(ctx, tenantID); err != nil {
		return fmt.Errorf("reset reconnect attempts: %w", err)
	}
	return nil
}

// ShouldReconnect reports whether the tenant is still within its reconnect
// budget. Logged-out sessions never reconnect; a fresh pairing is required.
func (s *LifecycleService) ShouldReconnect(ctx context.Context, tenantID string) (bool, error) {
	session, err := s.sessionRepo.FindByTenantID(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("find session: %w", err)
	}
	if session == nil || session.Status == model.StatusLoggedOut {
		return false, nil
	}
	return session.ReconnectAttempts < s.maxReconnectAttempts, nil
}

// SweepExpired soft-marks sessions past their expiry horizon and releases
// stale unconsumed pairing artifacts. Auth state is never touched here.
func (s *LifecycleService) SweepExpired(ctx context.Context) (int64, error) {
	now := time.Now()

	expired, err := s.sessionRepo.MarkExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("mark expired: %w", err)
	}

	stale, err := s.sessionRepo.ClearStalePairing(ctx, now.Add(-s.pairingTTL))
	if err != nil {
		return expired, fmt.Errorf("clear stale pairing: %w", err)
	}

	if expired > 0 || stale > 0 {
		log.Info().
			Int64("expired", expired).
			Int64("stalePairing", stale).
			Msg("session sweep complete")
	}

	return expired + stale, nil
}

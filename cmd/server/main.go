package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wavelink/gateway-server-go/internal/ai"
	"github.com/wavelink/gateway-server-go/internal/config"
	"github.com/wavelink/gateway-server-go/internal/database"
	"github.com/wavelink/gateway-server-go/internal/handler"
	"github.com/wavelink/gateway-server-go/internal/jobs"
	"github.com/wavelink/gateway-server-go/internal/middleware"
	"github.com/wavelink/gateway-server-go/internal/orchestrator"
	"github.com/wavelink/gateway-server-go/internal/redis"
	"github.com/wavelink/gateway-server-go/internal/repository"
	"github.com/wavelink/gateway-server-go/internal/service"
	"github.com/wavelink/gateway-server-go/internal/sse"
	"github.com/wavelink/gateway-server-go/internal/transport"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	tenantRepo := repository.NewTenantRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	authStateRepo := repository.NewAuthStateRepository(db.DB)
	contactRepo := repository.NewContactRepository(db.DB)
	chatRepo := repository.NewChatRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)
	aiSettingsRepo := repository.NewAISettingsRepository(db.DB)
	aiConvRepo := repository.NewAIConversationRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	lifecycleService := service.NewLifecycleService(
		sessionRepo, cfg.MaxReconnectAttempts, cfg.SessionExpiry(), cfg.PairingTTL(),
	)
	ingestService := service.NewIngestService(contactRepo, chatRepo, messageRepo)
	convService := service.NewConversationService(chatRepo, messageRepo)
	aiSettingsService := service.NewAISettingsService(
		aiSettingsRepo, cfg.AutoReplyDelaySeconds, cfg.ContextWindowMessages, cfg.GeminiModel,
	)

	var provider ai.Provider
	if cfg.GeminiAPIKey != "" {
		provider, err = ai.NewGeminiProvider(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create gemini provider")
		}
		log.Info().Str("model", cfg.GeminiModel).Msg("gemini provider ready")
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, auto-reply disabled")
	}

	autoReplyService := service.NewAutoReplyService(
		aiSettingsRepo, aiConvRepo, messageRepo, provider,
		service.AutoReplyConfig{
			DefaultDelaySeconds:  cfg.AutoReplyDelaySeconds,
			DefaultContextWindow: cfg.ContextWindowMessages,
			MaxRetries:           cfg.MaxAutoReplyRetries,
			ProviderTimeout:      cfg.ProviderTimeout(),
		},
	)

	dialer := selectDialer(cfg.Transport)

	orch := orchestrator.New(
		dialer, authStateRepo, lifecycleService, ingestService, autoReplyService, broker,
		orchestrator.Config{
			ReconnectDelay: cfg.ReconnectDelay(),
			ReinitDelay:    config.ReinitAfterLogoutDelay,
		},
	)
	defer orch.Close()

	authMiddleware := middleware.NewAuthMiddleware(tenantRepo)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)

	sessionHandler := handler.NewSessionHandler(orch)
	messageHandler := handler.NewMessageHandler(orch)
	chatsHandler := handler.NewChatsHandler(convService)
	aiHandler := handler.NewAIHandler(aiSettingsService, aiConvRepo)
	eventsHandler := handler.NewEventsHandler(broker, orch)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.BodyLimit)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)

		// The SSE stream is long-lived; everything else gets the request
		// timeout.
		r.Get("/events", eventsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
			r.Mount("/session", sessionHandler.Routes())
			r.Mount("/messages", messageHandler.Routes())
			r.Mount("/chats", chatsHandler.Routes())
			r.Mount("/ai", aiHandler.Routes())
		})
	})

	sweepJob := jobs.NewSweepJob(lifecycleService, config.SweepJobInterval)
	sweepJob.Start()
	defer sweepJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("transport", cfg.Transport).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func selectDialer(name string) transport.Dialer {
	switch name {
	case "memory":
		return transport.NewMemoryDialer()
	default:
		log.Fatal().Str("transport", name).Msg("unknown transport")
		return nil
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nutrigraph/nutribot/backend/internal/config"
	"github.com/nutrigraph/nutribot/backend/internal/handler"
	"github.com/nutrigraph/nutribot/backend/internal/logger"
	"github.com/nutrigraph/nutribot/backend/internal/model/persona"
	"github.com/nutrigraph/nutribot/backend/internal/service/ai"
	"github.com/nutrigraph/nutribot/backend/internal/service/chat"
	"github.com/nutrigraph/nutribot/backend/internal/service/conversation"
	"github.com/nutrigraph/nutribot/backend/internal/service/food"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", "console")
		log := logger.For("main")
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log := logger.For("main")
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file, using system environment only")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := conversation.NewMetrics(registry)

	opts := chat.Options{
		Timeout: cfg.Chat.Timeout,
		Metrics: metrics,
	}

	if cfg.AI.Enabled() {
		aiCfg := cfg.AI
		opts.Responders = func(ctx context.Context, p persona.Persona) (conversation.Responder, error) {
			svc, err := ai.NewService(ctx, p, aiCfg)
			if err != nil {
				return nil, err
			}
			return svc, nil
		}
		log.Info().Str("provider", cfg.AI.Provider).Dur("timeout", cfg.Chat.Timeout).Msg("remote model configured")
	} else {
		log.Warn().Str("provider", cfg.AI.Provider).Msg("model credentials missing, every reply will be a fallback answer")
	}

	if cfg.Archive.Enabled() {
		archive, err := chat.NewRedisArchive(ctx, cfg.Archive.RedisURL, cfg.Archive.TTL)
		if err != nil {
			log.Warn().Err(err).Msg("transcript archive disabled")
		} else {
			defer archive.Close()
			opts.Archive = archive
			log.Info().Dur("ttl", cfg.Archive.TTL).Msg("transcript archive enabled")
		}
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	chatService := chat.NewService(personaStore, opts)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := chatService.Close(flushCtx); err != nil {
			log.Warn().Err(err).Msg("archive flush incomplete")
		}
	}()

	foods, err := food.Builtin()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load food catalogue")
	}

	router := handler.NewRouter(personaStore, chatService, handler.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Gatherer:       registry,
		AIEnabled:      cfg.AI.Enabled(),
		Foods:          foods,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router *handler.Router) {
	log := logger.For("main")
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	// Shutdown does not touch hijacked connections.
	srv.RegisterOnShutdown(router.WebSockets.CloseAll)

	log.Info().Str("addr", addr).Msg("NutriBot backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

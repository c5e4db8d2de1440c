package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"idphoto/internal/http/handlers"
	httpapi "idphoto/internal/http/httpapi"
	"idphoto/internal/infra"
	"idphoto/internal/intake"
	"idphoto/internal/providers/genai"
	"idphoto/internal/recolor"
	"idphoto/internal/session"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if !cfg.HasGeminiKey() {
		logger.Warn().Msg("GEMINI_API_KEY is not set; generation requests will fail until it is configured")
	}

	client := genai.NewClient(genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	orchestrator := recolor.New(client,
		recolor.WithLogger(&logger),
		recolor.WithTimeout(cfg.GeminiTimeout),
		recolor.WithAttempts(cfg.GeminiAttempts),
	)
	recolorer := session.Limit(orchestrator, int64(cfg.MaxConcurrentGenerations))

	in := intake.New(intake.NewPreviews(), cfg.MaxUploadBytes)
	sessions := session.NewRegistry(recolorer, in)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	group, groupCtx := errgroup.WithContext(ctx)

	app := handlers.NewApp(sessions, in, recolorer, &logger)
	app.BaseContext = groupCtx
	app.MaxUploadBytes = cfg.MaxUploadBytes

	router := httpapi.NewRouter(app, httpapi.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMin,
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
	})
	server := infra.NewHTTPServer(cfg, router)

	group.Go(func() error {
		logger.Info().Str("model", client.Model()).Msgf("API listening on %s", server.Addr())
		return server.Start()
	})
	group.Go(func() error {
		sessions.RunJanitor(groupCtx, time.Minute, cfg.SessionIdleTTL, &logger)
		return nil
	})

	// Graceful shutdown
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}

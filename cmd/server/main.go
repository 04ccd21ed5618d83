package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vocalize/tts-gateway/internal/bot"
	"github.com/vocalize/tts-gateway/internal/config"
	"github.com/vocalize/tts-gateway/internal/observability"
	"github.com/vocalize/tts-gateway/internal/resilience"
	"github.com/vocalize/tts-gateway/internal/server"
	"github.com/vocalize/tts-gateway/internal/store"
	"github.com/vocalize/tts-gateway/internal/tts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before the logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("temp_dir", cfg.TempDir).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("TTS gateway starting")

	// Synthesis client is built here, not on first use: a missing credential
	// stops the process before it accepts any traffic
	synth, err := tts.NewClient(cfg.OpenAIAPIKey,
		tts.WithRetry(&resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    cfg.RetryInitialBackoff,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		}),
		tts.WithBreaker(resilience.NewCircuitBreaker("openai",
			cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerResetTimeout)),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create synthesis client")
	}

	files, err := store.NewTempFiles(cfg.TempDir, cfg.DeleteDelay)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create temp file store")
	}

	prefs := store.NewPreferences()

	botCtx, stopBot := context.WithCancel(context.Background())
	defer stopBot()

	tgBot, err := bot.New(cfg.TelegramBotToken, synth, files, prefs)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Telegram bot")
	}
	if err := tgBot.Start(botCtx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start Telegram bot")
	}

	// Hourly sweep backstops the per-file delayed deletes
	sweeperStop := make(chan struct{})
	go files.RunSweeper(cfg.SweepInterval, cfg.SweepMaxAge, sweeperStop)

	srv := server.New(cfg, synth, files, tgBot)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("frontend_url", cfg.FrontendURL).
			Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	stopBot()
	close(sweeperStop)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Cancel pending delayed deletes and remove every staged file
	files.Close()

	logger.Info().Msg("Server exited gracefully")
}

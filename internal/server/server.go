// Package server exposes the JSON/HTTP surface of the gateway: audio
// generation, reference-table lookups, validation, health, and bot info.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vocalize/tts-gateway/internal/bot"
	"github.com/vocalize/tts-gateway/internal/config"
	"github.com/vocalize/tts-gateway/internal/observability"
	"github.com/vocalize/tts-gateway/internal/store"
)

// Synthesizer produces audio bytes for validated text
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error)
}

// BotInfoProvider reports identity information for the chat bot
type BotInfoProvider interface {
	Info(ctx context.Context) (*bot.Info, error)
}

// Server wires the HTTP handlers to their collaborators
type Server struct {
	cfg       *config.Config
	synth     Synthesizer
	files     *store.TempFiles
	botInfo   BotInfoProvider
	startTime time.Time
}

// New creates a Server. All collaborators are injected; nothing is built
// lazily on first request.
func New(cfg *config.Config, synth Synthesizer, files *store.TempFiles, botInfo BotInfoProvider) *Server {
	return &Server{
		cfg:       cfg,
		synth:     synth,
		files:     files,
		botInfo:   botInfo,
		startTime: time.Now(),
	}
}

// Router builds the chi router with middleware and all routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/ready", observability.ReadinessHandler(s.providerCheck, s.botCheck))

	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate-audio", s.handleGenerateAudio)
		r.Get("/voices", s.handleVoices)
		r.Get("/bot-info", s.handleBotInfo)
		r.Get("/health", s.handleHealth)
		r.Post("/validate-text", s.handleValidateText)
	})

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleNotFound)

	return r
}

// providerCheck verifies the synthesis client is constructed and configured
func (s *Server) providerCheck(ctx context.Context) (bool, error) {
	return s.synth != nil, nil
}

// botCheck verifies the chat transport responds to an identity call
func (s *Server) botCheck(ctx context.Context) (bool, error) {
	if s.botInfo == nil {
		return false, nil
	}
	_, err := s.botInfo.Info(ctx)
	return err == nil, err
}

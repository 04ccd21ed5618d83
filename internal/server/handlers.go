package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vocalize/tts-gateway/internal/tts"
)

const serviceVersion = "1.0.0"

// generateAudioRequest is the body of POST /api/generate-audio
type generateAudioRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
}

// errorResponse is the shape of every error payload on the API
type errorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code"`
	Message       string `json:"message,omitempty"`
	MaxLength     int    `json:"maxLength,omitempty"`
	CurrentLength int    `json:"currentLength,omitempty"`
	Path          string `json:"path,omitempty"`
	Method        string `json:"method,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, resp errorResponse) {
	writeJSON(w, status, resp)
}

// decodeBody decodes a JSON body with the configured size cap. It writes the
// error response itself and reports success via the bool.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error: "Request payload too large",
				Code:  "PAYLOAD_TOO_LARGE",
			})
			return false
		}

		writeError(w, http.StatusBadRequest, errorResponse{
			Error: "Invalid JSON in request body",
			Code:  "INVALID_JSON",
		})
		return false
	}

	return true
}

// handleGenerateAudio synthesizes audio for the request text and streams the
// staged MP3 back, scheduling the delayed cleanup once delivery finishes
func (s *Server) handleGenerateAudio(w http.ResponseWriter, r *http.Request) {
	var req generateAudioRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	// Defaults: first reference-table voice, relaxed speed
	if req.Voice == "" {
		req.Voice = tts.DefaultVoice
	}
	if req.Speed == 0 {
		req.Speed = tts.DefaultSpeed
	}

	validation := tts.ValidateText(req.Text)
	if !validation.IsValid {
		length := tts.TextLength(req.Text)
		if length > tts.MaxTextLength {
			writeError(w, http.StatusBadRequest, errorResponse{
				Error:         "Text too long (max 4096 characters)",
				Code:          "TEXT_TOO_LONG",
				MaxLength:     tts.MaxTextLength,
				CurrentLength: length,
			})
			return
		}
		writeError(w, http.StatusBadRequest, errorResponse{
			Error: "Text is required",
			Code:  "MISSING_TEXT",
		})
		return
	}

	if !tts.ValidVoice(req.Voice) {
		writeError(w, http.StatusBadRequest, errorResponse{
			Error: "Unknown voice: " + req.Voice,
			Code:  "INVALID_VOICE",
		})
		return
	}
	if !tts.ValidSpeed(req.Speed) {
		writeError(w, http.StatusBadRequest, errorResponse{
			Error: "Unknown speed",
			Code:  "INVALID_SPEED",
		})
		return
	}

	audio, err := s.synth.Synthesize(r.Context(), req.Text, req.Voice, req.Speed)
	if err != nil {
		s.writeSynthesisError(w, err)
		return
	}

	ref, err := s.files.Save(audio, req.Voice)
	if err != nil {
		log.Error().Err(err).Msg("Failed to stage audio file")
		writeError(w, http.StatusInternalServerError, errorResponse{
			Error: "Failed to generate audio",
			Code:  "GENERATION_ERROR",
		})
		return
	}
	// Best-effort cleanup after the transport has had time to drain;
	// the hourly sweep is the backstop
	defer s.files.ScheduleDelete(ref)

	f, err := os.Open(ref.Path)
	if err != nil {
		log.Error().Err(err).Str("file", ref.Path).Msg("Failed to open staged audio file")
		writeError(w, http.StatusInternalServerError, errorResponse{
			Error: "Failed to send audio file",
			Code:  "SEND_FILE_ERROR",
		})
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		// Headers already sent; delivery failures are logged, not retried
		log.Error().Err(err).Str("file", ref.Path).Msg("Failed to stream audio file")
	}
}

// writeSynthesisError maps the tagged synthesis error taxonomy onto HTTP codes
func (s *Server) writeSynthesisError(w http.ResponseWriter, err error) {
	switch tts.KindOf(err) {
	case tts.KindCredential:
		writeError(w, http.StatusUnauthorized, errorResponse{
			Error: "OpenAI API key is invalid or missing",
			Code:  "INVALID_API_KEY",
		})
	case tts.KindQuota:
		writeError(w, http.StatusTooManyRequests, errorResponse{
			Error: "OpenAI API quota exceeded",
			Code:  "QUOTA_EXCEEDED",
		})
	default:
		writeError(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to generate audio",
			Code:    "GENERATION_ERROR",
			Message: err.Error(),
		})
	}
}

// handleVoices returns the voice reference table
func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	voices := tts.VoiceOptions()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"voices":  voices,
		"count":   len(voices),
	})
}

// handleBotInfo returns the chat bot identity
func (s *Server) handleBotInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.botInfo.Info(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to get bot info")
		writeError(w, http.StatusInternalServerError, errorResponse{
			Error: "Failed to get bot information",
			Code:  "BOT_INFO_ERROR",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"bot": map[string]any{
			"id":         info.ID,
			"username":   info.Username,
			"first_name": info.FirstName,
			"is_bot":     info.IsBot,
		},
	})
}

// handleHealth reports process health: uptime, memory, runtime version
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startTime).Seconds(),
		"memory": map[string]any{
			"alloc_bytes":       mem.Alloc,
			"total_alloc_bytes": mem.TotalAlloc,
			"sys_bytes":         mem.Sys,
			"num_gc":            mem.NumGC,
		},
		"version": runtime.Version(),
		"env":     s.cfg.Environment,
	})
}

// handleValidateText runs the validator without synthesizing anything
func (s *Server) handleValidateText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"validation": tts.ValidateText(req.Text),
		"textLength": tts.TextLength(req.Text),
		"maxLength":  tts.MaxTextLength,
	})
}

// handleRoot summarizes server and bot status
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	botStatus := map[string]any{"active": false, "error": "Bot not responding"}
	if s.botInfo != nil {
		if info, err := s.botInfo.Info(r.Context()); err == nil {
			botStatus = map[string]any{
				"active":   true,
				"username": info.Username,
				"name":     info.FirstName,
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Telegram Text-to-Audio Bot Server",
		"status":    "running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   serviceVersion,
		"bot":       botStatus,
		"endpoints": map[string]string{
			"health":        "/api/health",
			"generateAudio": "/api/generate-audio",
			"voices":        "/api/voices",
			"botInfo":       "/api/bot-info",
			"validateText":  "/api/validate-text",
		},
	})
}

// handleNotFound is the fallback for unknown routes and methods
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, errorResponse{
		Error:  "Endpoint not found",
		Code:   "NOT_FOUND",
		Path:   r.URL.Path,
		Method: r.Method,
	})
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/vocalize/tts-gateway/internal/bot"
	"github.com/vocalize/tts-gateway/internal/config"
	"github.com/vocalize/tts-gateway/internal/store"
	"github.com/vocalize/tts-gateway/internal/tts"
)

type fakeSynth struct {
	audio []byte
	err   error

	gotText  string
	gotVoice string
	gotSpeed float64
	calls    int
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	f.calls++
	f.gotText = text
	f.gotVoice = voice
	f.gotSpeed = speed
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

type fakeBotInfo struct {
	info *bot.Info
	err  error
}

func (f *fakeBotInfo) Info(ctx context.Context) (*bot.Info, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port:         "3001",
		Environment:  "test",
		FrontendURL:  "http://localhost:3002",
		MaxBodyBytes: 1 << 20,
	}
}

func newTestServer(t *testing.T, synth Synthesizer, botInfo BotInfoProvider) *Server {
	t.Helper()

	files, err := store.NewTempFiles(t.TempDir(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewTempFiles failed: %v", err)
	}
	t.Cleanup(files.Close)

	return New(testConfig(), synth, files, botInfo)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Encoding request body failed: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Decoding error response failed: %v (body %s)", err, rec.Body.String())
	}
	return resp
}

func TestGenerateAudio_Success(t *testing.T) {
	synth := &fakeSynth{audio: []byte("ID3fake-mp3")}
	srv := newTestServer(t, synth, &fakeBotInfo{})
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/generate-audio",
		map[string]any{"text": "Hello world", "voice": "nova", "speed": 1.25})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d (body %s)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Expected audio/mpeg, got %s", ct)
	}
	if rec.Body.String() != "ID3fake-mp3" {
		t.Errorf("Expected audio bytes streamed back, got %q", rec.Body.String())
	}
	if synth.gotVoice != "nova" || synth.gotSpeed != 1.25 {
		t.Errorf("Expected voice/speed passed through, got %s/%v", synth.gotVoice, synth.gotSpeed)
	}
}

func TestGenerateAudio_DefaultsApplied(t *testing.T) {
	synth := &fakeSynth{audio: []byte("x")}
	srv := newTestServer(t, synth, &fakeBotInfo{})

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/generate-audio",
		map[string]any{"text": "Hello"})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if synth.gotVoice != tts.DefaultVoice {
		t.Errorf("Expected default voice, got %s", synth.gotVoice)
	}
	if synth.gotSpeed != tts.DefaultSpeed {
		t.Errorf("Expected default speed, got %v", synth.gotSpeed)
	}
}

func TestGenerateAudio_SchedulesCleanup(t *testing.T) {
	synth := &fakeSynth{audio: []byte("x")}
	files, err := store.NewTempFiles(t.TempDir(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewTempFiles failed: %v", err)
	}
	t.Cleanup(files.Close)
	srv := New(testConfig(), synth, files, &fakeBotInfo{})

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/generate-audio",
		map[string]any{"text": "Hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, err := os.ReadDir(files.Dir())
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		if len(entries) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Expected staged file removed after the delete delay")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGenerateAudio_MissingText(t *testing.T) {
	synth := &fakeSynth{}
	srv := newTestServer(t, synth, &fakeBotInfo{})

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/generate-audio",
		map[string]any{"text": ""})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Code != "MISSING_TEXT" {
		t.Errorf("Expected MISSING_TEXT, got %s", resp.Code)
	}
	if synth.calls != 0 {
		t.Errorf("Expected no synthesis for invalid input, got %d calls", synth.calls)
	}
}

func TestGenerateAudio_BlankText(t *testing.T) {
	srv := newTestServer(t, &fakeSynth{}, &fakeBotInfo{})

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/generate-audio",
		map[string]any{"text": "   "})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "MISSING_TEXT" {
		t.Errorf("Expected MISSING_TEXT, got %s", resp.Code)
	}
}

func TestGenerateAudio_TextTooLong(t *testing.T) {
	srv := newTestServer(t, &fakeSynth{}, &fakeBotInfo{})

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/generate-audio",
		map[string]any{"text": strings.Repeat("x", 4097)})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Code != "TEXT_TOO_LONG" {
		t.Errorf("Expected TEXT_TOO_LONG, got %s", resp.Code)
	}
	if resp.MaxLength != 4096 {
		t.Errorf("Expected maxLength 4096, got %d", resp.MaxLength)
	}
	if resp.CurrentLength != 4097 {
		t.Errorf("Expected currentLength 4097, got %d", resp.CurrentLength)
	}
}

func TestGenerateAudio_InvalidVoiceAndSpeed(t *testing.T) {
	srv := newTestServer(t, &fakeSynth{}, &fakeBotInfo{})
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/generate-audio",
		map[string]any{"text": "Hello", "voice": "robot"})
	if resp := decodeError(t, rec); rec.Code != http.StatusBadRequest || resp.Code != "INVALID_VOICE" {
		t.Errorf("Expected 400 INVALID_VOICE, got %d %s", rec.Code, resp.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/generate-audio",
		map[string]any{"text": "Hello", "speed": 0.9})
	if resp := decodeError(t, rec); rec.Code != http.StatusBadRequest || resp.Code != "INVALID_SPEED" {
		t.Errorf("Expected 400 INVALID_SPEED, got %d %s", rec.Code, resp.Code)
	}
}

func TestGenerateAudio_SynthesisErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"credential", &tts.SynthesisError{Kind: tts.KindCredential, Err: errors.New("bad key")}, http.StatusUnauthorized, "INVALID_API_KEY"},
		{"quota", &tts.SynthesisError{Kind: tts.KindQuota, Err: errors.New("limit")}, http.StatusTooManyRequests, "QUOTA_EXCEEDED"},
		{"provider", &tts.SynthesisError{Kind: tts.KindProvider, Err: errors.New("oops")}, http.StatusInternalServerError, "GENERATION_ERROR"},
		{"untagged", errors.New("anything"), http.StatusInternalServerError, "GENERATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeSynth{err: tt.err}, &fakeBotInfo{})

			rec := doJSON(t, srv.Router(), http.MethodPost, "/api/generate-audio",
				map[string]any{"text": "Hello"})

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if resp := decodeError(t, rec); resp.Code != tt.wantCode {
				t.Errorf("Expected %s, got %s", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestGenerateAudio_InvalidJSON(t *testing.T) {
	srv := newTestServer(t, &fakeSynth{}, &fakeBotInfo{})

	req := httptest.NewRequest(http.MethodPost, "/api/generate-audio", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "INVALID_JSON" {
		t.Errorf("Expected INVALID_JSON, got %s", resp.Code)
	}
}

func TestGenerateAudio_PayloadTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBodyBytes = 64

	files, err := store.NewTempFiles(t.TempDir(), time.Second)
	if err != nil {
		t.Fatalf("NewTempFiles failed: %v", err)
	}
	t.Cleanup(files.Close)
	srv := New(cfg, &fakeSynth{}, files, &fakeBotInfo{})

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/generate-audio",
		map[string]any{"text": strings.Repeat("x", 200)})

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected 413, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "PAYLOAD_TOO_LARGE" {
		t.Errorf("Expected PAYLOAD_TOO_LARGE, got %s", resp.Code)
	}
}

func TestVoices(t *testing.T) {
	srv := newTestServer(t, &fakeSynth{}, &fakeBotInfo{})

	rec := doJSON(t, srv.Router(), http.MethodGet, "/api/voices", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Success bool              `json:"success"`
		Voices  []tts.VoiceOption `json:"voices"`
		Count   int               `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Decoding response failed: %v", err)
	}
	if !resp.Success {
		t.Error("Expected success true")
	}
	if resp.Count != 6 || len(resp.Voices) != 6 {
		t.Errorf("Expected 6 voices, got count=%d len=%d", resp.Count, len(resp.Voices))
	}
}

func TestBotInfo(t *testing.T) {
	info := &bot.Info{ID: 123, Username: "tts_bot", FirstName: "TTS", IsBot: true}
	srv := newTestServer(t, &fakeSynth{}, &fakeBotInfo{info: info})

	rec := doJSON(t, srv.Router(), http.MethodGet, "/api/bot-info", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Success bool `json:"success"`
		Bot     struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
			IsBot    bool   `json:"is_bot"`
		} `json:"bot"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Decoding response failed: %v", err)
	}
	if !resp.Success || resp.Bot.ID != 123 || resp.Bot.Username != "tts_bot" || !resp.Bot.IsBot {
		t.Errorf("Unexpected bot info payload: %s", rec.Body.String())
	}
}

func TestBotInfo_Error(t *testing.T) {
	srv := newTestServer(t, &fakeSynth{}, &fakeBotInfo{err: errors.New("telegram down")})

	rec := doJSON(t, srv.Router(), http.MethodGet, "/api/bot-info", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "BOT_INFO_ERROR" {
		t.Errorf("Expected BOT_INFO_ERROR, got %s", resp.Code)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeSynth{}, &fakeBotInfo{})

	rec := doJSON(t, srv.Router(), http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Decoding response failed: %v", err)
	}
	if resp["success"] != true {
		t.Error("Expected success true")
	}
	if resp["env"] != "test" {
		t.Errorf("Expected env test, got %v", resp["env"])
	}
	if _, ok := resp["memory"]; !ok {
		t.Error("Expected memory stats in health payload")
	}
}

func TestValidateText(t *testing.T) {
	srv := newTestServer(t, &fakeSynth{}, &fakeBotInfo{})

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/validate-text",
		map[string]any{"text": strings.Repeat("x", 3500)})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Success    bool           `json:"success"`
		Validation tts.Validation `json:"validation"`
		TextLength int            `json:"textLength"`
		MaxLength  int            `json:"maxLength"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Decoding response failed: %v", err)
	}
	if !resp.Success || !resp.Validation.IsValid {
		t.Errorf("Expected valid result, got %s", rec.Body.String())
	}
	if len(resp.Validation.Warnings) != 1 {
		t.Errorf("Expected long-text warning, got %v", resp.Validation.Warnings)
	}
	if resp.TextLength != 3500 || resp.MaxLength != 4096 {
		t.Errorf("Expected lengths 3500/4096, got %d/%d", resp.TextLength, resp.MaxLength)
	}
}

func TestRoot(t *testing.T) {
	info := &bot.Info{ID: 1, Username: "tts_bot", FirstName: "TTS", IsBot: true}
	srv := newTestServer(t, &fakeSynth{}, &fakeBotInfo{info: info})

	rec := doJSON(t, srv.Router(), http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Status string `json:"status"`
		Bot    struct {
			Active   bool   `json:"active"`
			Username string `json:"username"`
		} `json:"bot"`
		Endpoints map[string]string `json:"endpoints"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Decoding response failed: %v", err)
	}
	if resp.Status != "running" {
		t.Errorf("Expected status running, got %s", resp.Status)
	}
	if !resp.Bot.Active || resp.Bot.Username != "tts_bot" {
		t.Errorf("Expected active bot status, got %+v", resp.Bot)
	}
	if resp.Endpoints["generateAudio"] != "/api/generate-audio" {
		t.Errorf("Expected endpoint listing, got %v", resp.Endpoints)
	}
}

func TestRoot_BotDown(t *testing.T) {
	srv := newTestServer(t, &fakeSynth{}, &fakeBotInfo{err: errors.New("down")})

	rec := doJSON(t, srv.Router(), http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Bot struct {
			Active bool `json:"active"`
		} `json:"bot"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Decoding response failed: %v", err)
	}
	if resp.Bot.Active {
		t.Error("Expected bot reported inactive")
	}
}

func TestNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeSynth{}, &fakeBotInfo{})
	router := srv.Router()

	rec := doJSON(t, router, http.MethodGet, "/api/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Code != "NOT_FOUND" {
		t.Errorf("Expected NOT_FOUND, got %s", resp.Code)
	}
	if resp.Path != "/api/unknown" || resp.Method != http.MethodGet {
		t.Errorf("Expected path/method echoed, got %s %s", resp.Method, resp.Path)
	}

	// Wrong method on a known route falls through to the same handler
	rec = doJSON(t, router, http.MethodGet, "/api/generate-audio", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for wrong method, got %d", rec.Code)
	}
}

func TestReady(t *testing.T) {
	srv := newTestServer(t, &fakeSynth{}, &fakeBotInfo{info: &bot.Info{ID: 1}})

	rec := doJSON(t, srv.Router(), http.MethodGet, "/ready", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d (body %s)", rec.Code, rec.Body.String())
	}
}

func TestReady_BotUnhealthy(t *testing.T) {
	srv := newTestServer(t, &fakeSynth{}, &fakeBotInfo{err: errors.New("down")})

	rec := doJSON(t, srv.Router(), http.MethodGet, "/ready", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}
}

package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/vocalize/tts-gateway/internal/observability"
)

// requestLogger logs every request with a correlation ID and records HTTP
// metrics once the response is written
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		logger := observability.WithCorrelationID("")
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		observability.RecordHTTPRequest(r.Method, ww.Status(), duration)

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

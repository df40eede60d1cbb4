package middleware

import (
	"net/http"
	"strings"
	"time"

	"travel-backend/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader is echoed back on every response
const RequestIDHeader = "X-Request-ID"

// RequestLogger assigns a request id, attaches a request-scoped logger to the context
// and writes one access log line per request
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > 64 {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			ctx, reqLog := logger.WithRequestID(r.Context(), log, requestID)
			start := time.Now()
			wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			if shouldSkipLogging(r.URL.Path) {
				return
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("ip", clientIP(r)),
			}
			if wrapped.statusCode >= 500 {
				reqLog.Warn("request", fields...)
			} else {
				reqLog.Info("request", fields...)
			}
		})
	}
}

func shouldSkipLogging(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/health")
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	ip := r.RemoteAddr
	if i := strings.LastIndex(ip, ":"); i > 0 {
		ip = ip[:i]
	}
	return ip
}

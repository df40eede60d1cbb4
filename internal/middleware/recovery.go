package middleware

import (
	"net/http"
	"runtime/debug"

	"travel-backend/internal/logger"
	"travel-backend/pkg/utils"

	"go.uber.org/zap"
)

// PanicRecovery turns a handler panic into a 500 and logs the stack
func PanicRecovery(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.FromContext(r.Context(), log).Error("panic recovered",
						zap.Any("panic", err),
						zap.String("path", r.URL.Path),
						zap.ByteString("stack", debug.Stack()))
					utils.JSONError(w, "Internal server error", http.StatusInternalServerError, "internal")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"travel-backend/internal/logger"
	"travel-backend/internal/middleware"
	"travel-backend/internal/services"
	"travel-backend/internal/whatsapp"
	"travel-backend/pkg/utils"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// writeError maps service errors to HTTP statuses. Anything unexpected is logged with
// the handler name and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, base *zap.Logger, handler string, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		utils.JSONError(w, ve.Error(), http.StatusBadRequest, "validation_error")
	case errors.Is(err, services.ErrNotFound):
		utils.JSONError(w, "Not found", http.StatusNotFound, "not_found")
	case errors.Is(err, services.ErrConflict):
		utils.JSONError(w, err.Error(), http.StatusConflict, "conflict")
	case errors.Is(err, services.ErrOutsideSessionWindow):
		utils.JSONError(w, err.Error(), http.StatusUnprocessableEntity, "outside_session_window")
	case errors.Is(err, whatsapp.ErrUnknownProvider):
		utils.JSONError(w, err.Error(), http.StatusUnprocessableEntity, "provider_not_configured")
	case errors.Is(err, services.ErrDeliveryFailed):
		logger.FromContext(r.Context(), base).Warn("delivery failed", zap.String("handler", handler), zap.Error(err))
		utils.JSONError(w, err.Error(), http.StatusBadGateway, "delivery_failed")
	default:
		logger.FromContext(r.Context(), base).Error("request failed", zap.String("handler", handler), zap.Error(err))
		utils.JSONError(w, "Internal server error", http.StatusInternalServerError, "internal_error")
	}
}

// decodeJSON reads the request body into v, answering 400 itself on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.JSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest, "invalid_request_body")
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON that accepts an empty body
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		utils.JSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest, "invalid_request_body")
		return false
	}
	return true
}

// identity returns the caller's organization and user. It answers 401 itself when missing.
func identity(w http.ResponseWriter, r *http.Request) (orgID, userID string, ok bool) {
	orgID, ok = middleware.GetOrgIDFromContext(r.Context())
	if !ok || orgID == "" {
		utils.JSONError(w, "Unauthorized", http.StatusUnauthorized, "unauthorized")
		return "", "", false
	}
	userID, _ = middleware.GetUserIDFromContext(r.Context())
	return orgID, userID, true
}

// queryInt parses an optional non-negative integer query parameter
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &services.ValidationError{Field: key, Message: "must be a non-negative integer"}
	}
	return n, nil
}

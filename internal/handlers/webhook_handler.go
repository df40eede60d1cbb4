package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"travel-backend/internal/logger"
	"travel-backend/internal/services"
	"travel-backend/internal/whatsapp"
	"travel-backend/pkg/utils"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// WebhookSecrets holds what is needed to authenticate provider callbacks.
// An empty secret disables the corresponding signature check (local development).
type WebhookSecrets struct {
	PublicURL       string // scheme://host as the provider sees us; Twilio signs the full URL
	TwilioAuthToken string
	MetaAppSecret   string
	MetaVerifyToken string
}

type WebhookHandler struct {
	Service *services.WebhookService
	Secrets WebhookSecrets
	Logger  *zap.Logger
	Now     func() time.Time
}

func NewWebhookHandler(s *services.WebhookService, secrets WebhookSecrets, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{Service: s, Secrets: secrets, Logger: logger, Now: time.Now}
}

// Twilio handles status callbacks and inbound messages (form encoded)
func (h *WebhookHandler) Twilio(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["org"]
	log := logger.FromContext(r.Context(), h.Logger).With(zap.String("org_id", orgID), zap.String("provider", whatsapp.ProviderTwilio))

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		utils.JSONError(w, "Invalid form body", http.StatusBadRequest, "invalid_request_body")
		return
	}
	if h.Secrets.TwilioAuthToken != "" {
		fullURL := strings.TrimRight(h.Secrets.PublicURL, "/") + r.URL.RequestURI()
		if !whatsapp.VerifyTwilioSignature(h.Secrets.TwilioAuthToken, fullURL, r.PostForm, r.Header.Get("X-Twilio-Signature")) {
			log.Warn("webhook signature rejected")
			utils.JSONError(w, "Invalid signature", http.StatusForbidden, "invalid_signature")
			return
		}
	}

	status, inbound := whatsapp.ParseTwilioWebhook(r.PostForm, h.Now().UTC())
	if status != nil {
		if _, err := h.Service.ApplyStatus(r.Context(), orgID, *status); err != nil {
			// non-2xx makes Twilio retry; failed events release their dedupe mark
			writeError(w, r, h.Logger, "TwilioWebhook", err)
			return
		}
	}
	if inbound != nil {
		if err := h.Service.ApplyInbound(r.Context(), orgID, *inbound); err != nil {
			writeError(w, r, h.Logger, "TwilioWebhook", err)
			return
		}
	}

	// Twilio expects TwiML; an empty response sends no reply
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "<Response></Response>")
}

// MetaVerify answers the Cloud API subscription handshake
func (h *WebhookHandler) MetaVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || h.Secrets.MetaVerifyToken == "" || q.Get("hub.verify_token") != h.Secrets.MetaVerifyToken {
		utils.JSONError(w, "Verification failed", http.StatusForbidden, "verification_failed")
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, q.Get("hub.challenge"))
}

// Meta handles Cloud API notifications (statuses and messages)
func (h *WebhookHandler) Meta(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["org"]
	log := logger.FromContext(r.Context(), h.Logger).With(zap.String("org_id", orgID), zap.String("provider", whatsapp.ProviderMeta))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		utils.JSONError(w, "Invalid request body", http.StatusBadRequest, "invalid_request_body")
		return
	}
	if h.Secrets.MetaAppSecret != "" && !whatsapp.VerifyMetaSignature(h.Secrets.MetaAppSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		log.Warn("webhook signature rejected")
		utils.JSONError(w, "Invalid signature", http.StatusForbidden, "invalid_signature")
		return
	}

	statuses, inbound, err := whatsapp.ParseMetaWebhook(body)
	if err != nil {
		utils.JSONError(w, err.Error(), http.StatusBadRequest, "invalid_request_body")
		return
	}
	for _, s := range statuses {
		if _, err := h.Service.ApplyStatus(r.Context(), orgID, s); err != nil {
			writeError(w, r, h.Logger, "MetaWebhook", err)
			return
		}
	}
	for _, m := range inbound {
		if err := h.Service.ApplyInbound(r.Context(), orgID, m); err != nil {
			writeError(w, r, h.Logger, "MetaWebhook", err)
			return
		}
	}
	utils.JSON(w, http.StatusOK, map[string]int{"statuses": len(statuses), "messages": len(inbound)})
}

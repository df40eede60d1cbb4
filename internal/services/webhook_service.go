package services

import (
	"context"
	"errors"
	"time"

	"travel-backend/internal/cache"
	"travel-backend/internal/metrics"
	"travel-backend/internal/models"
	"travel-backend/internal/store"
	"travel-backend/internal/whatsapp"

	"go.uber.org/zap"
)

// WebhookService applies provider callbacks: delivery receipts move campaign recipients
// forward, inbound messages open the customer's session window
type WebhookService struct {
	Store       store.Store
	Dedupe      cache.Deduper
	DedupeTTL   time.Duration
	CountryCode string
	Logger      *zap.Logger
}

func NewWebhookService(st store.Store, dedupe cache.Deduper, ttl time.Duration, countryCode string, logger *zap.Logger) *WebhookService {
	return &WebhookService{
		Store:       st,
		Dedupe:      dedupe,
		DedupeTTL:   ttl,
		CountryCode: countryCode,
		Logger:      logger.Named("webhooks"),
	}
}

var statusRank = map[string]int{
	models.RecipientStatusPending:   0,
	models.RecipientStatusSent:      1,
	models.RecipientStatusDelivered: 2,
	models.RecipientStatusRead:      3,
}

// canAdvance reports whether a recipient may move from current to next.
// Statuses only move forward; failed is reachable from pending or sent and is final.
func canAdvance(current, next string) bool {
	if current == models.RecipientStatusFailed {
		return false
	}
	if next == models.RecipientStatusFailed {
		return current == models.RecipientStatusPending || current == models.RecipientStatusSent
	}
	cur, ok1 := statusRank[current]
	nxt, ok2 := statusRank[next]
	return ok1 && ok2 && nxt > cur
}

var recipientStatuses = []string{
	models.RecipientStatusPending,
	models.RecipientStatusSent,
	models.RecipientStatusDelivered,
	models.RecipientStatusRead,
	models.RecipientStatusFailed,
}

// advanceFrom lists the statuses a recipient may hold for next to apply
func advanceFrom(next string) []string {
	var from []string
	for _, cur := range recipientStatuses {
		if canAdvance(cur, next) {
			from = append(from, cur)
		}
	}
	return from
}

// seen reports whether key was already handled. Dedupe failures are logged and treated as new.
func (s *WebhookService) seen(ctx context.Context, key string) bool {
	if s.Dedupe == nil {
		return false
	}
	first, err := s.Dedupe.MarkSeen(ctx, key, s.DedupeTTL)
	if err != nil {
		s.Logger.Warn("dedupe check failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return !first
}

// forget releases a dedupe mark after a failed apply so the provider's retry is processed
func (s *WebhookService) forget(ctx context.Context, key string) {
	if s.Dedupe == nil {
		return
	}
	if err := s.Dedupe.Forget(ctx, key); err != nil {
		s.Logger.Warn("dedupe release failed", zap.String("key", key), zap.Error(err))
	}
}

// ApplyStatus applies one delivery receipt. It returns false when the update was a
// duplicate, stale, or about a message this organization did not send through a campaign.
func (s *WebhookService) ApplyStatus(ctx context.Context, orgID string, u whatsapp.StatusUpdate) (bool, error) {
	outcome, err := s.applyStatus(ctx, orgID, u)
	metrics.WebhookEventsTotal.WithLabelValues(u.Provider, outcome).Inc()
	return outcome == "applied", err
}

func (s *WebhookService) applyStatus(ctx context.Context, orgID string, u whatsapp.StatusUpdate) (outcome string, err error) {
	if u.MessageID == "" {
		return "ignored", nil
	}
	key := orgID + ":" + u.Provider + ":" + u.MessageID + ":" + u.Status
	if s.seen(ctx, key) {
		return "duplicate", nil
	}
	// failed and unknown events release their mark: a callback can beat the
	// dispatcher's write of the provider message id, and its retry must be processed
	defer func() {
		if err != nil || outcome == "unknown" {
			s.forget(ctx, key)
		}
	}()

	rec, err := s.Store.Campaigns().GetRecipientByMessageID(ctx, u.MessageID)
	if errors.Is(err, ErrNotFound) {
		return "unknown", nil
	}
	if err != nil {
		return "error", err
	}
	if _, err := s.Store.Campaigns().Get(ctx, orgID, rec.CampaignID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "unknown", nil
		}
		return "error", err
	}

	if !canAdvance(rec.Status, u.Status) {
		return "stale", nil
	}
	errMsg := ""
	if u.Status == models.RecipientStatusFailed {
		errMsg = u.ErrorMessage
	}
	// check and write in one step; a concurrent callback may have moved it on
	advanced, err := s.Store.Campaigns().AdvanceRecipientStatus(ctx, rec.ID, u.Status, errMsg, advanceFrom(u.Status))
	if err != nil {
		return "error", err
	}
	if !advanced {
		return "stale", nil
	}
	s.Logger.Debug("recipient status updated",
		zap.String("campaign_id", rec.CampaignID),
		zap.String("message_id", u.MessageID),
		zap.String("status", u.Status))
	return "applied", nil
}

// ApplyInbound records an inbound message against the sending customer.
// Messages from numbers that are not customers are ignored.
func (s *WebhookService) ApplyInbound(ctx context.Context, orgID string, m whatsapp.InboundMessage) error {
	outcome, err := s.applyInbound(ctx, orgID, m)
	metrics.WebhookEventsTotal.WithLabelValues(m.Provider, outcome).Inc()
	return err
}

func (s *WebhookService) applyInbound(ctx context.Context, orgID string, m whatsapp.InboundMessage) (string, error) {
	key := orgID + ":" + m.Provider + ":in:" + m.MessageID
	if m.MessageID != "" && s.seen(ctx, key) {
		return "duplicate", nil
	}
	phone, err := whatsapp.NormalizePhone(m.From, s.CountryCode)
	if err != nil {
		return "ignored", nil
	}
	at := m.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	err = s.Store.Customers().TouchInbound(ctx, orgID, phone, at)
	if errors.Is(err, ErrNotFound) {
		s.Logger.Info("inbound message from unknown number", zap.String("org_id", orgID), zap.String("phone", phone))
		return "unknown_sender", nil
	}
	if err != nil {
		if m.MessageID != "" {
			s.forget(ctx, key)
		}
		return "error", err
	}
	return "inbound", nil
}

// Package dispatch sends campaign templates to their recipients at a fixed rate.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"travel-backend/internal/events"
	"travel-backend/internal/metrics"
	"travel-backend/internal/models"
	"travel-backend/internal/store"
	"travel-backend/internal/whatsapp"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultRatePerMinute applies when neither the request nor the campaign sets a rate
const DefaultRatePerMinute = 60

// Options control one dispatch run
type Options struct {
	RatePerMinute int
	RetryFailed   bool // also resend recipients whose last attempt failed
	DryRun        bool // report what would be sent without sending or writing
}

// Result summarizes a run
type Result struct {
	CampaignID string        `json:"campaign_id"`
	Status     string        `json:"status"`
	Targeted   int           `json:"targeted"`
	Sent       int           `json:"sent"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	DryRun     bool          `json:"dry_run"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Dispatcher sends one campaign at a time, sequentially, pausing between sends
type Dispatcher struct {
	Store     store.Store
	Providers whatsapp.Registry
	Events    events.Publisher
	Hub       *Hub
	Logger    *zap.Logger

	// Sleep waits for d or until ctx is done
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

func NewDispatcher(st store.Store, providers whatsapp.Registry, pub events.Publisher, hub *Hub, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		Store:     st,
		Providers: providers,
		Events:    pub,
		Hub:       hub,
		Logger:    logger.Named("dispatch"),
		Sleep:     sleepContext,
		Now:       time.Now,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Interval is the pause between two sends at rate messages per minute
func Interval(ratePerMinute int) time.Duration {
	if ratePerMinute <= 0 {
		ratePerMinute = DefaultRatePerMinute
	}
	return time.Minute / time.Duration(ratePerMinute)
}

// Targets splits recipients into those to send now and the number skipped.
// Recipients that already succeeded are always skipped; failed ones only without retryFailed.
func Targets(recipients []*models.CampaignRecipient, retryFailed bool) ([]*models.CampaignRecipient, int) {
	var out []*models.CampaignRecipient
	skipped := 0
	for _, r := range recipients {
		switch {
		case r.Status == models.RecipientStatusPending:
			out = append(out, r)
		case r.Status == models.RecipientStatusFailed && retryFailed:
			out = append(out, r)
		default:
			skipped++
		}
	}
	return out, skipped
}

// Run dispatches campaign. Provider errors are recorded on the recipient and the run
// moves on. When ctx is cancelled the run stops, unsent recipients stay pending and the
// campaign is marked cancelled.
func (d *Dispatcher) Run(ctx context.Context, campaign *models.Campaign, opts Options) (*Result, error) {
	start := d.Now()
	log := d.Logger.With(zap.String("org_id", campaign.OrgID), zap.String("campaign_id", campaign.ID))

	recipients, err := d.Store.Campaigns().ListRecipients(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	targets, skipped := Targets(recipients, opts.RetryFailed)
	result := &Result{
		CampaignID: campaign.ID,
		Targeted:   len(targets),
		Skipped:    skipped,
		DryRun:     opts.DryRun,
	}

	if opts.DryRun {
		for _, r := range targets {
			log.Info("dry run", zap.Int("position", r.Position), zap.String("phone", r.Phone), zap.String("status", r.Status))
		}
		result.Status = campaign.Status
		return result, nil
	}

	provider, err := d.Providers.Get(campaign.Provider)
	if err != nil {
		return nil, err
	}

	// Status writes use a context that outlives cancellation so a stopped run is still recorded
	persistCtx := context.WithoutCancel(ctx)
	if err := d.Store.Campaigns().UpdateStatus(persistCtx, campaign.OrgID, campaign.ID, models.CampaignStatusRunning, d.Now()); err != nil {
		return nil, fmt.Errorf("mark running: %w", err)
	}
	interval := Interval(opts.RatePerMinute)
	log.Info("dispatch started",
		zap.String("provider", provider.Name()),
		zap.Int("targets", len(targets)),
		zap.Int("skipped", skipped),
		zap.Duration("interval", interval))

	cancelled := false
	for i, rec := range targets {
		if i > 0 {
			if err := d.Sleep(ctx, interval); err != nil {
				cancelled = true
				break
			}
		}
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		messageID, sendErr := provider.SendTemplate(ctx, whatsapp.TemplateMessage{
			To:           rec.Phone,
			TemplateName: campaign.TemplateName,
			Language:     campaign.TemplateLanguage,
			Variables:    rec.Variables,
		})
		if sendErr != nil && ctx.Err() != nil {
			// Interrupted mid-send; the recipient stays pending for the next run
			cancelled = true
			break
		}
		d.record(persistCtx, log, campaign, provider.Name(), rec, messageID, sendErr)

		if sendErr != nil {
			result.Failed++
		} else {
			result.Sent++
		}
		d.Hub.Publish(Progress{
			CampaignID: campaign.ID,
			Position:   rec.Position,
			Phone:      rec.Phone,
			Status:     rec.Status,
			Error:      rec.ErrorMessage,
			Sent:       result.Sent,
			Failed:     result.Failed,
			Total:      len(targets),
		})
	}

	result.Status = models.CampaignStatusCompleted
	if cancelled {
		result.Status = models.CampaignStatusCancelled
	}
	if err := d.Store.Campaigns().UpdateStatus(persistCtx, campaign.OrgID, campaign.ID, result.Status, d.Now()); err != nil {
		log.Error("mark finished failed", zap.String("status", result.Status), zap.Error(err))
	}
	result.Elapsed = d.Now().Sub(start)

	metrics.CampaignRunsTotal.WithLabelValues(result.Status).Inc()
	d.Hub.Publish(Progress{
		CampaignID:     campaign.ID,
		Sent:           result.Sent,
		Failed:         result.Failed,
		Total:          len(targets),
		Done:           true,
		CampaignStatus: result.Status,
	})
	if result.Status == models.CampaignStatusCompleted {
		if err := d.Events.Publish(persistCtx, events.New(events.TopicCampaignCompleted, campaign.OrgID, result)); err != nil {
			log.Warn("publish campaign event failed", zap.Error(err))
		}
	}

	log.Info("dispatch finished",
		zap.String("status", result.Status),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

// record persists one attempt on the recipient and in the message log
func (d *Dispatcher) record(ctx context.Context, log *zap.Logger, campaign *models.Campaign, providerName string, rec *models.CampaignRecipient, messageID string, sendErr error) {
	now := d.Now()
	outcome := "sent"
	if sendErr != nil {
		outcome = "failed"
		rec.Status = models.RecipientStatusFailed
		rec.ErrorMessage = sendErr.Error()
		log.Warn("send failed", zap.Int("position", rec.Position), zap.String("phone", rec.Phone), zap.Error(sendErr))
	} else {
		rec.Status = models.RecipientStatusSent
		rec.ProviderMessageID = messageID
		rec.ErrorMessage = ""
		rec.SentAt = &now
	}
	metrics.WhatsAppMessagesTotal.WithLabelValues(providerName, models.MessageTypeCampaign, outcome).Inc()

	if err := d.Store.Campaigns().UpdateRecipientResult(ctx, rec); err != nil {
		log.Error("recipient update failed", zap.String("recipient_id", rec.ID), zap.Error(err))
	}

	campaignID := campaign.ID
	entry := &models.MessageLog{
		ID:                uuid.NewString(),
		OrgID:             campaign.OrgID,
		CustomerID:        rec.CustomerID,
		CampaignID:        &campaignID,
		Phone:             rec.Phone,
		Provider:          providerName,
		MessageType:       models.MessageTypeCampaign,
		Body:              "template:" + campaign.TemplateName,
		Status:            rec.Status,
		ProviderMessageID: rec.ProviderMessageID,
		ErrorMessage:      rec.ErrorMessage,
	}
	if err := d.Store.MessageLogs().Create(ctx, entry); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("message log write failed", zap.String("recipient_id", rec.ID), zap.Error(err))
	}
}

package services

import (
	"context"
	"testing"
	"time"

	"travel-backend/internal/cache"
	"travel-backend/internal/models"
	"travel-backend/internal/store"
	"travel-backend/internal/store/memory"
	"travel-backend/internal/whatsapp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCanAdvance(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{models.RecipientStatusPending, models.RecipientStatusSent, true},
		{models.RecipientStatusSent, models.RecipientStatusDelivered, true},
		{models.RecipientStatusSent, models.RecipientStatusRead, true},
		{models.RecipientStatusDelivered, models.RecipientStatusRead, true},
		{models.RecipientStatusRead, models.RecipientStatusDelivered, false},
		{models.RecipientStatusDelivered, models.RecipientStatusSent, false},
		{models.RecipientStatusSent, models.RecipientStatusSent, false},
		{models.RecipientStatusSent, models.RecipientStatusFailed, true},
		{models.RecipientStatusPending, models.RecipientStatusFailed, true},
		{models.RecipientStatusDelivered, models.RecipientStatusFailed, false},
		{models.RecipientStatusFailed, models.RecipientStatusDelivered, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, canAdvance(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

type webhookFixture struct {
	svc       *WebhookService
	store     *memory.Store
	campaign  *models.Campaign
	recipient *models.CampaignRecipient
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	st := memory.New()
	dedupe := cache.NewMemoryDeduper(time.Hour)
	t.Cleanup(func() { dedupe.Close() })

	campaigns := NewCampaignService(st, &fakeRunner{}, "twilio", 60, "91", zap.NewNop())
	c, err := campaigns.Create(context.Background(), testOrg, "u", &models.CreateCampaignRequest{
		Name: "x", TemplateName: "t",
		Recipients: []models.RecipientInput{{Phone: "9876543210"}},
	})
	require.NoError(t, err)

	recipients, err := st.Campaigns().ListRecipients(context.Background(), c.ID)
	require.NoError(t, err)
	rec := recipients[0]
	rec.Status = models.RecipientStatusSent
	rec.ProviderMessageID = "SM100"
	require.NoError(t, st.Campaigns().UpdateRecipientResult(context.Background(), rec))

	return &webhookFixture{
		svc:       NewWebhookService(st, dedupe, time.Hour, "91", zap.NewNop()),
		store:     st,
		campaign:  c,
		recipient: rec,
	}
}

func (f *webhookFixture) status(t *testing.T) string {
	t.Helper()
	recipients, err := f.store.Campaigns().ListRecipients(context.Background(), f.campaign.ID)
	require.NoError(t, err)
	return recipients[0].Status
}

func TestApplyStatus_Progression(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	update := func(status string) bool {
		applied, err := f.svc.ApplyStatus(ctx, testOrg, whatsapp.StatusUpdate{
			Provider: whatsapp.ProviderTwilio, MessageID: "SM100", Status: status,
		})
		require.NoError(t, err)
		return applied
	}

	assert.True(t, update(models.RecipientStatusRead))
	assert.Equal(t, models.RecipientStatusRead, f.status(t))

	assert.False(t, update(models.RecipientStatusDelivered), "out-of-order receipt is stale")
	assert.Equal(t, models.RecipientStatusRead, f.status(t))

	assert.False(t, update(models.RecipientStatusRead), "duplicate")
}

func TestApplyStatus_Failed(t *testing.T) {
	f := newWebhookFixture(t)

	applied, err := f.svc.ApplyStatus(context.Background(), testOrg, whatsapp.StatusUpdate{
		Provider: whatsapp.ProviderMeta, MessageID: "SM100", Status: models.RecipientStatusFailed, ErrorMessage: "131026: undeliverable",
	})
	require.NoError(t, err)
	assert.True(t, applied)

	recipients, err := f.store.Campaigns().ListRecipients(context.Background(), f.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecipientStatusFailed, recipients[0].Status)
	assert.Equal(t, "131026: undeliverable", recipients[0].ErrorMessage)
}

func TestApplyStatus_IgnoresOtherOrgsAndUnknownMessages(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	applied, err := f.svc.ApplyStatus(ctx, "org-2", whatsapp.StatusUpdate{
		Provider: whatsapp.ProviderTwilio, MessageID: "SM100", Status: models.RecipientStatusDelivered,
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, models.RecipientStatusSent, f.status(t))

	applied, err = f.svc.ApplyStatus(ctx, testOrg, whatsapp.StatusUpdate{
		Provider: whatsapp.ProviderTwilio, MessageID: "SM999", Status: models.RecipientStatusDelivered,
	})
	require.NoError(t, err)
	assert.False(t, applied)
}

// interleavingStore runs afterLookup once, between a receipt's recipient lookup and its write
type interleavingStore struct {
	store.Store
	afterLookup func()
}

func (s *interleavingStore) Campaigns() store.CampaignRepository {
	return &interleavingCampaigns{CampaignRepository: s.Store.Campaigns(), s: s}
}

type interleavingCampaigns struct {
	store.CampaignRepository
	s *interleavingStore
}

func (c *interleavingCampaigns) GetRecipientByMessageID(ctx context.Context, id string) (*models.CampaignRecipient, error) {
	rec, err := c.CampaignRepository.GetRecipientByMessageID(ctx, id)
	if hook := c.s.afterLookup; hook != nil {
		c.s.afterLookup = nil
		hook()
	}
	return rec, err
}

func TestApplyStatus_ConcurrentReceiptsNeverMoveBackwards(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	st := &interleavingStore{Store: f.store}
	dedupe := cache.NewMemoryDeduper(time.Hour)
	t.Cleanup(func() { dedupe.Close() })
	svc := NewWebhookService(st, dedupe, time.Hour, "91", zap.NewNop())

	st.afterLookup = func() {
		applied, err := svc.ApplyStatus(ctx, testOrg, whatsapp.StatusUpdate{
			Provider: whatsapp.ProviderMeta, MessageID: "SM100", Status: models.RecipientStatusRead,
		})
		require.NoError(t, err)
		assert.True(t, applied)
	}

	applied, err := svc.ApplyStatus(ctx, testOrg, whatsapp.StatusUpdate{
		Provider: whatsapp.ProviderMeta, MessageID: "SM100", Status: models.RecipientStatusDelivered,
	})
	require.NoError(t, err)
	assert.False(t, applied, "read landed first")
	assert.Equal(t, models.RecipientStatusRead, f.status(t))
}

func TestApplyStatus_ReceiptBeforeMessageIDIsRetried(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	delivered := whatsapp.StatusUpdate{
		Provider: whatsapp.ProviderTwilio, MessageID: "SM200", Status: models.RecipientStatusDelivered,
	}

	applied, err := f.svc.ApplyStatus(ctx, testOrg, delivered)
	require.NoError(t, err)
	assert.False(t, applied, "message id not stored yet")

	f.recipient.ProviderMessageID = "SM200"
	require.NoError(t, f.store.Campaigns().UpdateRecipientResult(ctx, f.recipient))

	applied, err = f.svc.ApplyStatus(ctx, testOrg, delivered)
	require.NoError(t, err)
	assert.True(t, applied, "the provider's retry is processed")
	assert.Equal(t, models.RecipientStatusDelivered, f.status(t))
}

func TestAdvanceFrom(t *testing.T) {
	assert.Equal(t, []string{models.RecipientStatusPending, models.RecipientStatusSent, models.RecipientStatusDelivered},
		advanceFrom(models.RecipientStatusRead))
	assert.Equal(t, []string{models.RecipientStatusPending, models.RecipientStatusSent},
		advanceFrom(models.RecipientStatusFailed))
	assert.Empty(t, advanceFrom(models.RecipientStatusPending))
}

func TestApplyInbound(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	customers := NewCustomerService(f.store, "91")

	c, err := customers.Create(ctx, testOrg, &models.CustomerRequest{Name: "Ravi", Phone: "9876543210"})
	require.NoError(t, err)

	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, f.svc.ApplyInbound(ctx, testOrg, whatsapp.InboundMessage{
		Provider: whatsapp.ProviderTwilio, MessageID: "SMin1", From: "+919876543210", Body: "hi", Timestamp: at,
	}))

	got, err := customers.Get(ctx, testOrg, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastInboundAt)
	assert.True(t, got.LastInboundAt.Equal(at))

	assert.NoError(t, f.svc.ApplyInbound(ctx, testOrg, whatsapp.InboundMessage{
		Provider: whatsapp.ProviderMeta, MessageID: "wamid.x", From: "14155550100",
	}), "unknown senders are ignored")
}

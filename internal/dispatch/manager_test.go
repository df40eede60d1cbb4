package dispatch

import (
	"context"
	"testing"
	"time"

	"travel-backend/internal/models"
	"travel-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RejectsConcurrentDispatch(t *testing.T) {
	f := newFixture(t, "911111111111", "912222222222")
	release := make(chan struct{})
	f.dispatcher.Sleep = func(ctx context.Context, d time.Duration) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m := NewManager(context.Background(), f.dispatcher)
	require.NoError(t, m.Start(f.campaign, models.DispatchRequest{}))
	assert.True(t, m.Running(f.campaign.ID))

	err := m.Start(f.campaign, models.DispatchRequest{})
	assert.ErrorIs(t, err, store.ErrConflict)

	close(release)
	m.Wait()
	assert.False(t, m.Running(f.campaign.ID))
	assert.Equal(t, models.CampaignStatusCompleted, f.campaignStatus(t))
}

func TestManager_Cancel(t *testing.T) {
	f := newFixture(t, "911111111111", "912222222222")
	f.dispatcher.Sleep = func(ctx context.Context, d time.Duration) error {
		<-ctx.Done()
		return ctx.Err()
	}

	m := NewManager(context.Background(), f.dispatcher)
	require.NoError(t, m.Start(f.campaign, models.DispatchRequest{}))

	require.Eventually(t, func() bool {
		return f.campaignStatus(t) == models.CampaignStatusRunning
	}, time.Second, 5*time.Millisecond)
	assert.True(t, m.Cancel(f.campaign.ID))
	m.Wait()

	assert.Equal(t, models.CampaignStatusCancelled, f.campaignStatus(t))
	assert.False(t, m.Cancel(f.campaign.ID))
}

func TestManager_UnknownProvider(t *testing.T) {
	f := newFixture(t, "911111111111")
	f.campaign.Provider = "meta"
	m := NewManager(context.Background(), f.dispatcher)
	assert.Error(t, m.Start(f.campaign, models.DispatchRequest{}))
	assert.False(t, m.Running(f.campaign.ID))
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe("c1")
	assert.Equal(t, 1, h.Subscribers("c1"))

	h.Publish(Progress{CampaignID: "c1", Sent: 1})
	h.Publish(Progress{CampaignID: "c2", Sent: 9})
	assert.Equal(t, 1, (<-ch).Sent)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, h.Subscribers("c1"))
	_, open := <-ch
	assert.False(t, open)
}

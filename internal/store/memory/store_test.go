package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"travel-backend/internal/models"
	"travel-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const org = "org-1"

func customer(id, phone string) *models.Customer {
	return &models.Customer{ID: id, OrgID: org, Name: id, Phone: phone}
}

func TestInTx_RollbackRestoresTransactionWrites(t *testing.T) {
	st := New()
	ctx := context.Background()
	errBoom := errors.New("boom")

	err := st.InTx(ctx, func(tx store.Store) error {
		require.NoError(t, tx.Customers().Create(ctx, customer("c1", "+919800000001")))
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, err = st.Customers().Get(ctx, org, "c1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestInTx_CommitKeepsWrites(t *testing.T) {
	st := New()
	ctx := context.Background()

	require.NoError(t, st.InTx(ctx, func(tx store.Store) error {
		return tx.Customers().Create(ctx, customer("c1", "+919800000001"))
	}))

	got, err := st.Customers().Get(ctx, org, "c1")
	require.NoError(t, err)
	assert.Equal(t, "+919800000001", got.Phone)
}

func TestInTx_RollbackKeepsWritesMadeOutsideTheTransaction(t *testing.T) {
	st := New()
	ctx := context.Background()

	written := make(chan struct{})
	err := st.InTx(ctx, func(tx store.Store) error {
		require.NoError(t, tx.Customers().Create(ctx, customer("c1", "+919800000001")))

		go func() {
			defer close(written)
			assert.NoError(t, st.Customers().Create(ctx, customer("c2", "+919800000002")))
		}()
		select {
		case <-written:
			t.Error("write outside the transaction landed while it was open")
		case <-time.After(50 * time.Millisecond):
		}
		return errors.New("rollback")
	})
	require.Error(t, err)
	<-written

	_, err = st.Customers().Get(ctx, org, "c1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	got, err := st.Customers().Get(ctx, org, "c2")
	require.NoError(t, err)
	assert.Equal(t, "c2", got.ID)
}

func TestInTx_NestedReusesOuterTransaction(t *testing.T) {
	st := New()
	ctx := context.Background()

	err := st.InTx(ctx, func(tx store.Store) error {
		require.NoError(t, tx.InTx(ctx, func(inner store.Store) error {
			return inner.Customers().Create(ctx, customer("c1", "+919800000001"))
		}))
		return errors.New("outer fails")
	})
	require.Error(t, err)

	_, err = st.Customers().Get(ctx, org, "c1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestInTx_CancelledContextRollsBack(t *testing.T) {
	st := New()
	ctx, cancel := context.WithCancel(context.Background())

	err := st.InTx(ctx, func(tx store.Store) error {
		require.NoError(t, tx.Customers().Create(ctx, customer("c1", "+919800000001")))
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	_, err = st.Customers().Get(context.Background(), org, "c1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAdvanceRecipientStatus(t *testing.T) {
	st := New()
	ctx := context.Background()
	campaigns := st.Campaigns()

	require.NoError(t, campaigns.Create(ctx, &models.Campaign{ID: "camp-1", OrgID: org, Name: "Summer"}))
	require.NoError(t, campaigns.AppendRecipients(ctx, "camp-1", []*models.CampaignRecipient{
		{ID: "r1", Phone: "+919800000001", Status: models.RecipientStatusSent, ErrorMessage: "old"},
	}))

	ok, err := campaigns.AdvanceRecipientStatus(ctx, "r1", models.RecipientStatusRead, "",
		[]string{models.RecipientStatusSent, models.RecipientStatusDelivered})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = campaigns.AdvanceRecipientStatus(ctx, "r1", models.RecipientStatusDelivered, "",
		[]string{models.RecipientStatusSent})
	require.NoError(t, err)
	assert.False(t, ok, "recipient already moved past sent")

	ok, err = campaigns.AdvanceRecipientStatus(ctx, "missing", models.RecipientStatusRead, "",
		[]string{models.RecipientStatusSent})
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := campaigns.ListRecipients(ctx, "camp-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.RecipientStatusRead, list[0].Status)
	assert.Equal(t, "old", list[0].ErrorMessage, "empty message keeps the stored one")
	assert.Equal(t, 1, list[0].Position)
}

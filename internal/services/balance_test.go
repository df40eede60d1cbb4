package services

import (
	"context"
	"testing"

	"travel-backend/internal/events"
	"travel-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBalance(t *testing.T) {
	a := &models.Account{ID: "a", Kind: models.AccountKindBank, OpeningBalance: dec("1000"), CurrentBalance: dec("1000")}
	b := models.AccountRef{Kind: models.AccountKindCash, ID: "b"}

	entries := []*models.LedgerEntry{
		{Kind: models.LedgerEntryReceipt, Account: a.Ref(), Amount: dec("500")},
		{Kind: models.LedgerEntryPayment, Account: a.Ref(), Amount: dec("200")},
		{Kind: models.LedgerEntryIncome, Account: a.Ref(), Amount: dec("50.25")},
		{Kind: models.LedgerEntryExpense, Account: a.Ref(), Amount: dec("25.25")},
	}
	transfers := []*models.Transfer{
		{From: b, To: a.Ref(), Amount: dec("100")},
		{From: a.Ref(), To: b, Amount: dec("30")},
	}

	got := ComputeBalance(a, entries, transfers)

	assert.True(t, got.Inflows.Equal(dec("550.25")), got.Inflows.String())
	assert.True(t, got.Outflows.Equal(dec("225.25")), got.Outflows.String())
	assert.True(t, got.TransfersIn.Equal(dec("100")))
	assert.True(t, got.TransfersOut.Equal(dec("30")))
	assert.True(t, got.Current.Equal(dec("1395")), got.Current.String())
	assert.Equal(t, 4, got.EntryCount)
	assert.True(t, got.Drift().Equal(dec("395")))
}

func TestComputeBalance_SameKindDifferentIDIsNotSelf(t *testing.T) {
	a := &models.Account{ID: "a", Kind: models.AccountKindBank, OpeningBalance: dec("0")}
	other := &models.Account{ID: "a", Kind: models.AccountKindCash}

	got := ComputeBalance(a, []*models.LedgerEntry{
		{Kind: models.LedgerEntryReceipt, Account: other.Ref(), Amount: dec("10")},
	}, nil)
	assert.True(t, got.Current.IsZero(), "an entry on cash:a must not count for bank:a")
}

func TestLedgerScenario_1400(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createAccount(t, models.AccountKindBank, "HDFC Current", "1000")
	b := env.createAccount(t, models.AccountKindCash, "Office Cash", "300")

	env.addEntry(t, models.LedgerEntryReceipt, a, "500", 1)
	env.addEntry(t, models.LedgerEntryPayment, a, "200", 2)
	_, err := env.transfers.Post(ctx, testOrg, "user-1", transferReq(b, a, "100", 3))
	require.NoError(t, err)

	assert.True(t, env.balance(t, a).Equal(dec("1400")), env.balance(t, a).String())
	assert.True(t, env.balance(t, b).Equal(dec("200")), env.balance(t, b).String())

	t.Run("recalculation agrees and is idempotent", func(t *testing.T) {
		first, err := env.balances.Recalculate(ctx, testOrg, a.Ref())
		require.NoError(t, err)
		second, err := env.balances.Recalculate(ctx, testOrg, a.Ref())
		require.NoError(t, err)

		assert.True(t, first.Current.Equal(dec("1400")))
		assert.True(t, second.Current.Equal(first.Current))
		assert.True(t, first.Drift().IsZero())
		assert.True(t, second.Drift().IsZero())
		assert.Len(t, env.events.Events(events.TopicBalanceRecalculated), 2)
	})

	t.Run("transfer event published", func(t *testing.T) {
		assert.Len(t, env.events.Events(events.TopicTransferPosted), 1)
	})
}

func TestLedgerDelete_BalanceIsCurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createAccount(t, models.AccountKindBank, "A", "1000")
	receipt := env.addEntry(t, models.LedgerEntryReceipt, a, "500", 1)
	require.True(t, env.balance(t, a).Equal(dec("1500")))

	require.NoError(t, env.ledger.Delete(ctx, testOrg, receipt.ID))
	assert.True(t, env.balance(t, a).Equal(dec("1000")))

	b, err := env.balances.Recalculate(ctx, testOrg, a.Ref())
	require.NoError(t, err)
	assert.True(t, b.Drift().IsZero(), "delete must leave no drift")
}

func TestLedgerUpdate_MovesBetweenAccounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createAccount(t, models.AccountKindBank, "A", "0")
	c := env.createAccount(t, models.AccountKindCash, "C", "0")
	entry := env.addEntry(t, models.LedgerEntryReceipt, a, "250", 1)

	_, err := env.ledger.Update(ctx, testOrg, entry.ID, &models.LedgerEntryRequest{
		Kind:        models.LedgerEntryExpense,
		AccountKind: c.Kind,
		AccountID:   c.ID,
		Amount:      dec("40"),
		EntryDate:   day(2),
	})
	require.NoError(t, err)

	assert.True(t, env.balance(t, a).IsZero())
	assert.True(t, env.balance(t, c).Equal(dec("-40")))
}

func TestLedgerCreate_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.createAccount(t, models.AccountKindBank, "A", "0")

	tests := []struct {
		name  string
		req   models.LedgerEntryRequest
		field string
	}{
		{"zero amount", models.LedgerEntryRequest{Kind: models.LedgerEntryReceipt, AccountKind: a.Kind, AccountID: a.ID, Amount: dec("0"), EntryDate: day(1)}, "amount"},
		{"negative amount", models.LedgerEntryRequest{Kind: models.LedgerEntryReceipt, AccountKind: a.Kind, AccountID: a.ID, Amount: dec("-5"), EntryDate: day(1)}, "amount"},
		{"missing date", models.LedgerEntryRequest{Kind: models.LedgerEntryReceipt, AccountKind: a.Kind, AccountID: a.ID, Amount: dec("5")}, "entry_date"},
		{"bad kind", models.LedgerEntryRequest{Kind: "refund", AccountKind: a.Kind, AccountID: a.ID, Amount: dec("5"), EntryDate: day(1)}, "kind"},
		{"unknown account", models.LedgerEntryRequest{Kind: models.LedgerEntryReceipt, AccountKind: a.Kind, AccountID: "missing", Amount: dec("5"), EntryDate: day(1)}, "account_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := env.ledger.Create(ctx, testOrg, "user-1", &req)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.True(t, env.balance(t, a).IsZero(), "failed writes must not touch the balance")
}

func TestReconcileAll_CorrectsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createAccount(t, models.AccountKindBank, "A", "1000")
	b := env.createAccount(t, models.AccountKindCash, "B", "50")
	env.addEntry(t, models.LedgerEntryReceipt, a, "500", 1)

	// Simulate a balance written by an older, non-transactional code path
	require.NoError(t, env.store.Accounts().SetCurrentBalance(ctx, testOrg, a.Ref(), dec("1000")))

	report, err := env.balances.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 0, report.Failed)
	require.Len(t, report.Drifted, 1)
	assert.Equal(t, a.Ref(), report.Drifted[0].Account)
	assert.True(t, report.Drifted[0].Drift().Equal(dec("500")))

	assert.True(t, env.balance(t, a).Equal(dec("1500")))
	assert.True(t, env.balance(t, b).Equal(dec("50")))
}

func TestBreakdown_DoesNotPersist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createAccount(t, models.AccountKindBank, "A", "100")
	require.NoError(t, env.store.Accounts().SetCurrentBalance(ctx, testOrg, a.Ref(), dec("7")))

	b, err := env.balances.Breakdown(ctx, testOrg, a.Ref())
	require.NoError(t, err)
	assert.True(t, b.Current.Equal(dec("100")))
	assert.True(t, b.Previous.Equal(dec("7")))
	assert.True(t, env.balance(t, a).Equal(dec("7")))
}

func TestUniqueRefs_SortedAndDeduplicated(t *testing.T) {
	refs := uniqueRefs(
		models.AccountRef{Kind: models.AccountKindCash, ID: "1"},
		models.AccountRef{Kind: models.AccountKindBank, ID: "2"},
		models.AccountRef{Kind: models.AccountKindCash, ID: "1"},
	)
	assert.Equal(t, []models.AccountRef{
		{Kind: models.AccountKindBank, ID: "2"},
		{Kind: models.AccountKindCash, ID: "1"},
	}, refs)
}

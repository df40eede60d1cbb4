package services

import (
	"context"
	"testing"

	"travel-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccountKind(t *testing.T) {
	kind, err := ParseAccountKind("Bank")
	require.NoError(t, err)
	assert.Equal(t, models.AccountKindBank, kind)

	_, err = ParseAccountKind("wallet")
	assert.True(t, IsValidationError(err))
}

func TestAccountCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acct, err := env.accounts.Create(ctx, testOrg, models.AccountKindBank, &models.CreateAccountRequest{
		Name:           "  ICICI  ",
		BankName:       "ICICI Bank",
		IFSC:           "icic0000123",
		OpeningBalance: dec("2500.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, "ICICI", acct.Name)
	assert.Equal(t, "ICIC0000123", acct.IFSC)
	assert.True(t, acct.IsActive)
	assert.True(t, acct.CurrentBalance.Equal(dec("2500.50")))

	cash, err := env.accounts.Create(ctx, testOrg, models.AccountKindCash, &models.CreateAccountRequest{
		Name:     "Petty cash",
		BankName: "ignored",
	})
	require.NoError(t, err)
	assert.Empty(t, cash.BankName)

	_, err = env.accounts.Create(ctx, testOrg, models.AccountKindBank, &models.CreateAccountRequest{})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)

	list, err := env.accounts.List(ctx, testOrg, models.AccountKindBank)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAccountUpdate_OpeningBalanceRecalculates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createAccount(t, models.AccountKindBank, "A", "1000")
	env.addEntry(t, models.LedgerEntryExpense, a, "100", 1)

	updated, err := env.accounts.Update(ctx, testOrg, a.Ref(), &models.UpdateAccountRequest{
		Name:           "A renamed",
		OpeningBalance: dec("2000"),
		IsActive:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, "A renamed", updated.Name)
	assert.True(t, updated.CurrentBalance.Equal(dec("1900")), updated.CurrentBalance.String())
}

func TestAccountDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	used := env.createAccount(t, models.AccountKindBank, "Used", "0")
	unused := env.createAccount(t, models.AccountKindCash, "Unused", "0")
	env.addEntry(t, models.LedgerEntryReceipt, used, "1", 1)

	err := env.accounts.Delete(ctx, testOrg, used.Ref())
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, env.accounts.Delete(ctx, testOrg, unused.Ref()))
	_, err = env.accounts.Get(ctx, testOrg, unused.Ref())
	assert.ErrorIs(t, err, ErrNotFound)

	err = env.accounts.Delete(ctx, "org-2", used.Ref())
	assert.ErrorIs(t, err, ErrNotFound)
}

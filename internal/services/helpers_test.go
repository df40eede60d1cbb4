package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"travel-backend/internal/events"
	"travel-backend/internal/models"
	"travel-backend/internal/store/memory"
	"travel-backend/internal/whatsapp"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testOrg = "org-1"

type testEnv struct {
	store     *memory.Store
	events    *events.Recorder
	balances  *BalanceService
	accounts  *AccountService
	ledger    *LedgerService
	transfers *TransferService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := memory.New()
	rec := &events.Recorder{}
	logger := zap.NewNop()
	balances := NewBalanceService(st, rec, logger)
	return &testEnv{
		store:     st,
		events:    rec,
		balances:  balances,
		accounts:  NewAccountService(st, balances),
		ledger:    NewLedgerService(st, balances, logger),
		transfers: NewTransferService(st, balances, rec, logger),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(d int) time.Time {
	return time.Date(2024, 4, d, 0, 0, 0, 0, time.UTC)
}

func (e *testEnv) createAccount(t *testing.T, kind models.AccountKind, name, opening string) *models.Account {
	t.Helper()
	a, err := e.accounts.Create(context.Background(), testOrg, kind, &models.CreateAccountRequest{
		Name:           name,
		OpeningBalance: dec(opening),
	})
	require.NoError(t, err)
	return a
}

func (e *testEnv) addEntry(t *testing.T, kind models.LedgerEntryKind, acct *models.Account, amount string, d int) *models.LedgerEntry {
	t.Helper()
	entry, err := e.ledger.Create(context.Background(), testOrg, "user-1", &models.LedgerEntryRequest{
		Kind:        kind,
		AccountKind: acct.Kind,
		AccountID:   acct.ID,
		Amount:      dec(amount),
		EntryDate:   day(d),
	})
	require.NoError(t, err)
	return entry
}

func (e *testEnv) balance(t *testing.T, acct *models.Account) decimal.Decimal {
	t.Helper()
	a, err := e.store.Accounts().Get(context.Background(), testOrg, acct.Ref())
	require.NoError(t, err)
	return a.CurrentBalance
}

func transferReq(from, to *models.Account, amount string, d int) *models.TransferRequest {
	return &models.TransferRequest{
		FromAccountType: from.Kind,
		FromAccountID:   from.ID,
		ToAccountType:   to.Kind,
		ToAccountID:     to.ID,
		Amount:          dec(amount),
		TransferDate:    day(d),
	}
}

// fakeProvider records sends and fails for phones listed in failFor
type fakeProvider struct {
	mu       sync.Mutex
	name     string
	failFor  map[string]bool
	sent     []string
	counter  int
	textSent []string
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{name: name, failFor: map[string]bool{}}
}

func (p *fakeProvider) SendTemplate(ctx context.Context, msg whatsapp.TemplateMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[msg.To] {
		return "", errors.New("provider rejected number")
	}
	p.counter++
	p.sent = append(p.sent, msg.To)
	return p.name + "-msg-" + string(rune('0'+p.counter)), nil
}

func (p *fakeProvider) SendText(ctx context.Context, to, body string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[to] {
		return "", errors.New("provider rejected number")
	}
	p.counter++
	p.textSent = append(p.textSent, to)
	return p.name + "-text-" + string(rune('0'+p.counter)), nil
}

func (p *fakeProvider) Name() string { return p.name }

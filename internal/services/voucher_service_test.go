package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"travel-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryObjects struct {
	objects map[string][]byte
}

func (m *memoryObjects) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = body
	return nil
}

func (m *memoryObjects) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://objects.example/" + key + "?sig=1", nil
}

func TestVoucherNumber(t *testing.T) {
	e := &models.LedgerEntry{
		ID:        "3f2a9c1e-0000-4000-8000-000000000000",
		Kind:      models.LedgerEntryReceipt,
		EntryDate: time.Date(2024, 4, 5, 10, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "RCT-20240405-3F2A9C1E", VoucherNumber(e))
}

func TestVoucherRenderAndArchive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createAccount(t, models.AccountKindBank, "HDFC", "0")
	entry := env.addEntry(t, models.LedgerEntryReceipt, a, "1250.50", 5)

	objects := &memoryObjects{}
	svc := NewVoucherService(env.store, objects, time.Minute, zap.NewNop())

	pdf, got, err := svc.Render(ctx, testOrg, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	archived, err := svc.Archive(ctx, testOrg, entry.ID)
	require.NoError(t, err)
	assert.Contains(t, archived.Key, "vouchers/org-1/2024/04/RCT-20240405-")
	assert.Contains(t, archived.URL, archived.Key)
	assert.Contains(t, objects.objects, archived.Key)

	_, _, err = svc.Render(ctx, "org-2", entry.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	disabled := NewVoucherService(env.store, nil, 0, zap.NewNop())
	_, err = disabled.Archive(ctx, testOrg, entry.ID)
	assert.True(t, IsValidationError(err))
}

func TestLedgerCSV(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createAccount(t, models.AccountKindBank, "HDFC", "0")
	c := env.createAccount(t, models.AccountKindCash, "Till", "0")
	env.addEntry(t, models.LedgerEntryReceipt, a, "100", 1)
	env.addEntry(t, models.LedgerEntryExpense, c, "40.5", 2)

	out, err := NewExportService(env.store).LedgerCSV(ctx, models.LedgerFilter{OrgID: testOrg, Limit: 1})
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus every entry, limit ignored")
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, []string{"2024-04-02", "expense", "cash", "Till", "40.50", "-40.50"},
		[]string{rows[1][0], rows[1][2], rows[1][3], rows[1][4], rows[1][5], rows[1][6]})
	assert.Equal(t, "HDFC", rows[2][4])
}

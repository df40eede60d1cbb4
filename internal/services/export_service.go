package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"travel-backend/internal/models"
	"travel-backend/internal/store"
	"travel-backend/internal/timeutil"
)

// ExportService produces spreadsheet exports of the ledger
type ExportService struct {
	Store store.Store
}

func NewExportService(st store.Store) *ExportService {
	return &ExportService{Store: st}
}

// LedgerCSV exports the entries matching filter, newest first, with account names resolved
func (s *ExportService) LedgerCSV(ctx context.Context, filter models.LedgerFilter) ([]byte, error) {
	filter.Limit, filter.Offset = 0, 0
	entries, err := s.Store.Ledger().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	accounts, err := s.Store.Accounts().List(ctx, filter.OrgID, "")
	if err != nil {
		return nil, err
	}
	names := make(map[models.AccountRef]string, len(accounts))
	for _, a := range accounts {
		names[a.Ref()] = a.Name
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"Date", "Voucher", "Kind", "Account Type", "Account", "Amount", "Signed Amount", "Reference", "Description", "Customer ID"})
	for _, e := range entries {
		customerID := ""
		if e.CustomerID != nil {
			customerID = *e.CustomerID
		}
		w.Write([]string{
			timeutil.Format(e.EntryDate, timeutil.DateLayout),
			VoucherNumber(e),
			string(e.Kind),
			string(e.Account.Kind),
			names[e.Account],
			e.Amount.StringFixed(2),
			e.SignedAmount().StringFixed(2),
			e.Reference,
			e.Description,
			customerID,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write ledger csv: %w", err)
	}
	return buf.Bytes(), nil
}

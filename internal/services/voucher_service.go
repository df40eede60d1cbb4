package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"travel-backend/internal/models"
	"travel-backend/internal/store"
	"travel-backend/internal/timeutil"

	"github.com/jung-kurt/gofpdf/v2"
	"go.uber.org/zap"
)

// ObjectStore is where archived vouchers go
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// VoucherService renders receipt/payment vouchers for ledger entries
type VoucherService struct {
	Store      store.Store
	Objects    ObjectStore // nil when object storage is disabled
	PresignTTL time.Duration
	Logger     *zap.Logger
}

func NewVoucherService(st store.Store, objects ObjectStore, presignTTL time.Duration, logger *zap.Logger) *VoucherService {
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}
	return &VoucherService{Store: st, Objects: objects, PresignTTL: presignTTL, Logger: logger.Named("vouchers")}
}

// ArchivedVoucher is the result of archiving a voucher
type ArchivedVoucher struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VoucherNumber is printed on the voucher: RCT/PAY/EXP/INC + date + short id
func VoucherNumber(e *models.LedgerEntry) string {
	prefix := map[models.LedgerEntryKind]string{
		models.LedgerEntryReceipt: "RCT",
		models.LedgerEntryPayment: "PAY",
		models.LedgerEntryExpense: "EXP",
		models.LedgerEntryIncome:  "INC",
	}[e.Kind]
	id := strings.ReplaceAll(e.ID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, timeutil.Format(e.EntryDate, "20060102"), strings.ToUpper(id))
}

// Render returns the voucher PDF for a ledger entry
func (s *VoucherService) Render(ctx context.Context, orgID, entryID string) ([]byte, *models.LedgerEntry, error) {
	entry, err := s.Store.Ledger().Get(ctx, orgID, entryID)
	if err != nil {
		return nil, nil, err
	}
	account, err := s.Store.Accounts().Get(ctx, orgID, entry.Account)
	if err != nil {
		return nil, nil, err
	}
	var customer *models.Customer
	if entry.CustomerID != nil {
		if c, err := s.Store.Customers().Get(ctx, orgID, *entry.CustomerID); err == nil {
			customer = c
		}
	}

	pdf, err := renderVoucher(entry, account, customer)
	if err != nil {
		return nil, nil, err
	}
	return pdf, entry, nil
}

// Archive renders the voucher, uploads it and returns a presigned download URL
func (s *VoucherService) Archive(ctx context.Context, orgID, entryID string) (*ArchivedVoucher, error) {
	if s.Objects == nil {
		return nil, invalid("storage", "object storage is not configured")
	}
	pdf, entry, err := s.Render(ctx, orgID, entryID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("vouchers/%s/%s/%s.pdf", orgID, timeutil.Format(entry.EntryDate, "2006/01"), VoucherNumber(entry))
	if err := s.Objects.Put(ctx, key, pdf, "application/pdf"); err != nil {
		return nil, err
	}
	url, err := s.Objects.PresignGet(ctx, key, s.PresignTTL)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("voucher archived", zap.String("org_id", orgID), zap.String("entry_id", entryID), zap.String("key", key))
	return &ArchivedVoucher{Key: key, URL: url, ExpiresAt: time.Now().Add(s.PresignTTL)}, nil
}

func renderVoucher(entry *models.LedgerEntry, account *models.Account, customer *models.Customer) ([]byte, error) {
	title := map[models.LedgerEntryKind]string{
		models.LedgerEntryReceipt: "Receipt Voucher",
		models.LedgerEntryPayment: "Payment Voucher",
		models.LedgerEntryExpense: "Expense Voucher",
		models.LedgerEntryIncome:  "Income Voucher",
	}[entry.Kind]

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(128, 10, title, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(128, 5, fmt.Sprintf("Generated: %s", timeutil.Now().Format("02-Jan-2006 03:04 PM")), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	row := func(label, value string) {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 7, label, "1", 0, "L", true, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(88, 7, value, "1", 1, "L", false, 0, "")
	}

	pdf.SetFillColor(240, 240, 240)
	row("Voucher No", VoucherNumber(entry))
	row("Date", timeutil.Format(entry.EntryDate, timeutil.DisplayLayout))
	accountLabel := account.Name
	if account.Kind == models.AccountKindBank && account.BankName != "" {
		accountLabel = fmt.Sprintf("%s (%s)", account.Name, account.BankName)
	}
	row("Account", accountLabel)
	if customer != nil {
		row("Customer", fmt.Sprintf("%s, +%s", customer.Name, customer.Phone))
	}
	if entry.Reference != "" {
		row("Reference", entry.Reference)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 14)
	pdf.SetFillColor(220, 235, 255)
	pdf.CellFormat(128, 10, fmt.Sprintf("Amount: Rs. %s", entry.Amount.StringFixed(2)), "1", 1, "C", true, 0, "")

	if entry.Description != "" {
		pdf.Ln(4)
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(128, 5, entry.Description, "", "L", false)
	}

	pdf.Ln(16)
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(64, 5, "Prepared by", "T", 0, "C", false, 0, "")
	pdf.CellFormat(64, 5, "Authorised signatory", "T", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render voucher: %w", err)
	}
	return buf.Bytes(), nil
}

package services

import (
	"context"
	"fmt"
	"strings"

	"travel-backend/internal/models"
	"travel-backend/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerService writes ledger entries and keeps the referenced account's balance
// current inside the same transaction
type LedgerService struct {
	Store    store.Store
	Balances *BalanceService
	Logger   *zap.Logger
}

func NewLedgerService(st store.Store, balances *BalanceService, logger *zap.Logger) *LedgerService {
	return &LedgerService{Store: st, Balances: balances, Logger: logger.Named("ledger")}
}

func validateEntryRequest(req *models.LedgerEntryRequest) error {
	if err := Validate(req); err != nil {
		return err
	}
	if !req.Amount.IsPositive() {
		return invalid("amount", "must be greater than 0")
	}
	if req.EntryDate.IsZero() {
		return invalid("entry_date", "is required")
	}
	return nil
}

func (s *LedgerService) Create(ctx context.Context, orgID, userID string, req *models.LedgerEntryRequest) (*models.LedgerEntry, error) {
	if err := validateEntryRequest(req); err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		CreatedBy: userID,
	}
	applyEntryRequest(entry, req)

	err := s.Store.InTx(ctx, func(tx store.Store) error {
		if err := lockAccounts(ctx, tx, orgID, entry.Account); err != nil {
			return accountMissing(err, "account_id")
		}
		if err := tx.Ledger().Create(ctx, entry); err != nil {
			return fmt.Errorf("create ledger entry: %w", err)
		}
		_, err := s.Balances.RecalculateInTx(ctx, tx, orgID, entry.Account)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("ledger entry created",
		zap.String("org_id", orgID),
		zap.String("id", entry.ID),
		zap.String("kind", string(entry.Kind)),
		zap.String("account", entry.Account.String()),
		zap.String("amount", entry.Amount.StringFixed(2)))
	return entry, nil
}

func (s *LedgerService) Get(ctx context.Context, orgID, id string) (*models.LedgerEntry, error) {
	return s.Store.Ledger().Get(ctx, orgID, id)
}

func (s *LedgerService) List(ctx context.Context, filter models.LedgerFilter) ([]*models.LedgerEntry, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, invalid("kind", "must be one of: receipt payment expense income")
	}
	return s.Store.Ledger().List(ctx, filter)
}

// Update rewrites an entry. If it moves to another account both accounts are recalculated.
// The entry row is locked before its accounts so a concurrent move cannot strand a balance.
func (s *LedgerService) Update(ctx context.Context, orgID, id string, req *models.LedgerEntryRequest) (*models.LedgerEntry, error) {
	if err := validateEntryRequest(req); err != nil {
		return nil, err
	}

	var updated *models.LedgerEntry
	err := s.Store.InTx(ctx, func(tx store.Store) error {
		entry, err := tx.Ledger().GetForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		previous := entry.Account
		applyEntryRequest(entry, req)

		if err := lockAccounts(ctx, tx, orgID, previous, entry.Account); err != nil {
			return accountMissing(err, "account_id")
		}
		if err := tx.Ledger().Update(ctx, entry); err != nil {
			return fmt.Errorf("update ledger entry: %w", err)
		}
		for _, ref := range uniqueRefs(previous, entry.Account) {
			if _, err := s.Balances.RecalculateInTx(ctx, tx, orgID, ref); err != nil {
				return err
			}
		}
		updated = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an entry; the account balance is already correct when this returns
func (s *LedgerService) Delete(ctx context.Context, orgID, id string) error {
	return s.Store.InTx(ctx, func(tx store.Store) error {
		entry, err := tx.Ledger().GetForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		if err := lockAccounts(ctx, tx, orgID, entry.Account); err != nil {
			return err
		}
		if err := tx.Ledger().Delete(ctx, orgID, id); err != nil {
			return err
		}
		_, err = s.Balances.RecalculateInTx(ctx, tx, orgID, entry.Account)
		return err
	})
}

func applyEntryRequest(e *models.LedgerEntry, req *models.LedgerEntryRequest) {
	e.Kind = req.Kind
	e.Account = models.AccountRef{Kind: req.AccountKind, ID: req.AccountID}
	e.Amount = req.Amount
	e.EntryDate = req.EntryDate
	e.CustomerID = emptyToNil(req.CustomerID)
	e.CategoryID = emptyToNil(req.CategoryID)
	e.TourPackageQueryID = emptyToNil(req.TourPackageQueryID)
	e.Reference = strings.TrimSpace(req.Reference)
	e.Description = strings.TrimSpace(req.Description)
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

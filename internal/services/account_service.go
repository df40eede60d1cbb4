package services

import (
	"context"
	"fmt"
	"strings"

	"travel-backend/internal/models"
	"travel-backend/internal/store"

	"github.com/google/uuid"
)

type AccountService struct {
	Store    store.Store
	Balances *BalanceService
}

func NewAccountService(st store.Store, balances *BalanceService) *AccountService {
	return &AccountService{Store: st, Balances: balances}
}

// ParseAccountKind validates the {kind} path segment
func ParseAccountKind(s string) (models.AccountKind, error) {
	kind := models.AccountKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.Valid() {
		return "", invalid("kind", "must be bank or cash")
	}
	return kind, nil
}

func (s *AccountService) Create(ctx context.Context, orgID string, kind models.AccountKind, req *models.CreateAccountRequest) (*models.Account, error) {
	if !kind.Valid() {
		return nil, invalid("kind", "must be bank or cash")
	}
	if err := Validate(req); err != nil {
		return nil, err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	acct := &models.Account{
		ID:             uuid.NewString(),
		OrgID:          orgID,
		Kind:           kind,
		Name:           strings.TrimSpace(req.Name),
		OpeningBalance: req.OpeningBalance,
		CurrentBalance: req.OpeningBalance,
		IsActive:       active,
	}
	if kind == models.AccountKindBank {
		acct.BankName = req.BankName
		acct.AccountNumber = req.AccountNumber
		acct.IFSC = strings.ToUpper(req.IFSC)
	}

	if err := s.Store.Accounts().Create(ctx, acct); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return acct, nil
}

func (s *AccountService) Get(ctx context.Context, orgID string, ref models.AccountRef) (*models.Account, error) {
	return s.Store.Accounts().Get(ctx, orgID, ref)
}

func (s *AccountService) List(ctx context.Context, orgID string, kind models.AccountKind) ([]*models.Account, error) {
	return s.Store.Accounts().List(ctx, orgID, kind)
}

// Update replaces the account's fields. A changed opening balance is folded into
// current_balance in the same transaction.
func (s *AccountService) Update(ctx context.Context, orgID string, ref models.AccountRef, req *models.UpdateAccountRequest) (*models.Account, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	var updated *models.Account
	err := s.Store.InTx(ctx, func(tx store.Store) error {
		acct, err := tx.Accounts().GetForUpdate(ctx, orgID, ref)
		if err != nil {
			return err
		}
		openingChanged := !acct.OpeningBalance.Equal(req.OpeningBalance)

		acct.Name = strings.TrimSpace(req.Name)
		acct.OpeningBalance = req.OpeningBalance
		acct.IsActive = req.IsActive
		if ref.Kind == models.AccountKindBank {
			acct.BankName = req.BankName
			acct.AccountNumber = req.AccountNumber
			acct.IFSC = strings.ToUpper(req.IFSC)
		}
		if err := tx.Accounts().Update(ctx, acct); err != nil {
			return fmt.Errorf("update account: %w", err)
		}

		if openingChanged {
			if _, err := s.Balances.RecalculateInTx(ctx, tx, orgID, ref); err != nil {
				return err
			}
		}
		updated, err = tx.Accounts().Get(ctx, orgID, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an account that no ledger entry or transfer references
func (s *AccountService) Delete(ctx context.Context, orgID string, ref models.AccountRef) error {
	return s.Store.InTx(ctx, func(tx store.Store) error {
		if err := lockAccounts(ctx, tx, orgID, ref); err != nil {
			return err
		}
		entries, err := tx.Ledger().ListByAccount(ctx, orgID, ref)
		if err != nil {
			return err
		}
		transfers, err := tx.Transfers().ListByAccount(ctx, orgID, ref)
		if err != nil {
			return err
		}
		if len(entries) > 0 || len(transfers) > 0 {
			return conflict("account has %d ledger entries and %d transfers", len(entries), len(transfers))
		}
		return tx.Accounts().Delete(ctx, orgID, ref)
	})
}

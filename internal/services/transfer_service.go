package services

import (
	"context"
	"fmt"
	"strings"

	"travel-backend/internal/events"
	"travel-backend/internal/models"
	"travel-backend/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransferService posts transfers between bank and cash accounts
type TransferService struct {
	Store    store.Store
	Balances *BalanceService
	Events   events.Publisher
	Logger   *zap.Logger
}

func NewTransferService(st store.Store, balances *BalanceService, pub events.Publisher, logger *zap.Logger) *TransferService {
	return &TransferService{Store: st, Balances: balances, Events: pub, Logger: logger.Named("transfers")}
}

func validateTransferRequest(req *models.TransferRequest) error {
	if err := Validate(req); err != nil {
		return err
	}
	if req.From() == req.To() {
		return invalid("to_account_id", "source and destination accounts must be different")
	}
	if !req.Amount.IsPositive() {
		return invalid("amount", "must be greater than 0")
	}
	if req.TransferDate.IsZero() {
		return invalid("transfer_date", "is required")
	}
	return nil
}

// Post records a transfer and recomputes both accounts in one transaction
func (s *TransferService) Post(ctx context.Context, orgID, userID string, req *models.TransferRequest) (*models.Transfer, error) {
	if err := validateTransferRequest(req); err != nil {
		return nil, err
	}

	t := &models.Transfer{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		CreatedBy: userID,
	}
	applyTransferRequest(t, req)

	err := s.Store.InTx(ctx, func(tx store.Store) error {
		if err := s.lockSides(ctx, tx, orgID, t.From, t.To); err != nil {
			return err
		}
		if err := tx.Transfers().Create(ctx, t); err != nil {
			return fmt.Errorf("create transfer: %w", err)
		}
		return s.recalculate(ctx, tx, orgID, t.From, t.To)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("transfer posted",
		zap.String("org_id", orgID),
		zap.String("id", t.ID),
		zap.String("from", t.From.String()),
		zap.String("to", t.To.String()),
		zap.String("amount", t.Amount.StringFixed(2)))
	if err := s.Events.Publish(ctx, events.New(events.TopicTransferPosted, orgID, t)); err != nil {
		s.Logger.Warn("publish transfer event failed", zap.String("id", t.ID), zap.Error(err))
	}
	return t, nil
}

func (s *TransferService) Get(ctx context.Context, orgID, id string) (*models.Transfer, error) {
	return s.Store.Transfers().Get(ctx, orgID, id)
}

func (s *TransferService) List(ctx context.Context, filter models.TransferFilter) ([]*models.Transfer, error) {
	return s.Store.Transfers().List(ctx, filter)
}

// Update rewrites a transfer and recomputes every account on either side, before or after
func (s *TransferService) Update(ctx context.Context, orgID, id string, req *models.TransferRequest) (*models.Transfer, error) {
	if err := validateTransferRequest(req); err != nil {
		return nil, err
	}

	var updated *models.Transfer
	err := s.Store.InTx(ctx, func(tx store.Store) error {
		t, err := tx.Transfers().GetForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		oldFrom, oldTo := t.From, t.To
		applyTransferRequest(t, req)

		if err := s.lockSides(ctx, tx, orgID, t.From, t.To, oldFrom, oldTo); err != nil {
			return err
		}
		if err := tx.Transfers().Update(ctx, t); err != nil {
			return fmt.Errorf("update transfer: %w", err)
		}
		if err := s.recalculate(ctx, tx, orgID, oldFrom, oldTo, t.From, t.To); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *TransferService) Delete(ctx context.Context, orgID, id string) error {
	return s.Store.InTx(ctx, func(tx store.Store) error {
		t, err := tx.Transfers().GetForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		if err := lockAccounts(ctx, tx, orgID, t.From, t.To); err != nil {
			return err
		}
		if err := tx.Transfers().Delete(ctx, orgID, id); err != nil {
			return err
		}
		return s.recalculate(ctx, tx, orgID, t.From, t.To)
	})
}

// lockSides locks from, to and any previous sides in one ordered pass.
// A missing from or to account is reported against its request field.
func (s *TransferService) lockSides(ctx context.Context, tx store.Store, orgID string, from, to models.AccountRef, previous ...models.AccountRef) error {
	for _, ref := range uniqueRefs(append([]models.AccountRef{from, to}, previous...)...) {
		if _, err := tx.Accounts().GetForUpdate(ctx, orgID, ref); err != nil {
			err = fmt.Errorf("lock %s: %w", ref, err)
			switch ref {
			case from:
				return accountMissing(err, "from_account_id")
			case to:
				return accountMissing(err, "to_account_id")
			}
			return err
		}
	}
	return nil
}

func (s *TransferService) recalculate(ctx context.Context, tx store.Store, orgID string, refs ...models.AccountRef) error {
	for _, ref := range uniqueRefs(refs...) {
		if _, err := s.Balances.RecalculateInTx(ctx, tx, orgID, ref); err != nil {
			return err
		}
	}
	return nil
}

func applyTransferRequest(t *models.Transfer, req *models.TransferRequest) {
	t.From = req.From()
	t.To = req.To()
	t.Amount = req.Amount
	t.TransferDate = req.TransferDate
	t.Reference = strings.TrimSpace(req.Reference)
	t.Description = strings.TrimSpace(req.Description)
}

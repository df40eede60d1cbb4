package services

import (
	"context"
	"errors"
	"fmt"

	"travel-backend/internal/events"
	"travel-backend/internal/metrics"
	"travel-backend/internal/models"
	"travel-backend/internal/store"

	"go.uber.org/zap"
)

// BalanceService keeps accounts' cached current_balance equal to what the ledger says
type BalanceService struct {
	Store  store.Store
	Events events.Publisher
	Logger *zap.Logger
}

func NewBalanceService(st store.Store, pub events.Publisher, logger *zap.Logger) *BalanceService {
	return &BalanceService{Store: st, Events: pub, Logger: logger.Named("balance")}
}

// ReconcileReport summarizes a reconciliation run
type ReconcileReport struct {
	Checked int                       `json:"checked"`
	Failed  int                       `json:"failed"`
	Drifted []models.BalanceBreakdown `json:"drifted"`
}

// Recalculate recomputes and persists one account's balance in its own transaction
func (s *BalanceService) Recalculate(ctx context.Context, orgID string, ref models.AccountRef) (*models.BalanceBreakdown, error) {
	var result *models.BalanceBreakdown
	err := s.Store.InTx(ctx, func(tx store.Store) error {
		if err := lockAccounts(ctx, tx, orgID, ref); err != nil {
			return err
		}
		b, err := s.RecalculateInTx(ctx, tx, orgID, ref)
		if err != nil {
			return err
		}
		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.Events.Publish(ctx, events.New(events.TopicBalanceRecalculated, orgID, result)); err != nil {
		s.Logger.Warn("publish balance event failed", zap.Error(err), zap.String("account", ref.String()))
	}
	return result, nil
}

// RecalculateInTx recomputes ref inside tx. The caller must already hold the account lock.
func (s *BalanceService) RecalculateInTx(ctx context.Context, tx store.Store, orgID string, ref models.AccountRef) (*models.BalanceBreakdown, error) {
	b, err := s.compute(ctx, tx, orgID, ref)
	if err != nil {
		return nil, err
	}
	if err := tx.Accounts().SetCurrentBalance(ctx, orgID, ref, b.Current); err != nil {
		return nil, fmt.Errorf("set balance of %s: %w", ref, err)
	}

	metrics.BalanceRecalculationsTotal.Inc()
	if !b.Drift().IsZero() {
		metrics.BalanceDriftTotal.Inc()
		s.Logger.Info("balance changed",
			zap.String("org_id", orgID),
			zap.String("account", ref.String()),
			zap.String("previous", b.Previous.StringFixed(2)),
			zap.String("current", b.Current.StringFixed(2)))
	}
	return b, nil
}

// Breakdown computes the balance without persisting it
func (s *BalanceService) Breakdown(ctx context.Context, orgID string, ref models.AccountRef) (*models.BalanceBreakdown, error) {
	return s.compute(ctx, s.Store, orgID, ref)
}

func (s *BalanceService) compute(ctx context.Context, st store.Store, orgID string, ref models.AccountRef) (*models.BalanceBreakdown, error) {
	acct, err := st.Accounts().Get(ctx, orgID, ref)
	if err != nil {
		return nil, err
	}
	entries, err := st.Ledger().ListByAccount(ctx, orgID, ref)
	if err != nil {
		return nil, fmt.Errorf("list entries of %s: %w", ref, err)
	}
	transfers, err := st.Transfers().ListByAccount(ctx, orgID, ref)
	if err != nil {
		return nil, fmt.Errorf("list transfers of %s: %w", ref, err)
	}

	sortTransfers(transfers)
	if s.Logger.Core().Enabled(zap.DebugLevel) {
		for _, t := range transfers {
			direction := "in"
			if t.From == ref {
				direction = "out"
			}
			s.Logger.Debug("transfer",
				zap.String("account", ref.String()),
				zap.String("direction", direction),
				zap.String("amount", t.Amount.StringFixed(2)),
				zap.Time("date", t.TransferDate))
		}
	}

	b := ComputeBalance(acct, entries, transfers)
	return &b, nil
}

// ReconcileAll recalculates every account of every organization. Per-account failures
// are logged and counted; only a failure to list accounts is returned.
func (s *BalanceService) ReconcileAll(ctx context.Context) (*ReconcileReport, error) {
	accounts, err := s.Store.Accounts().ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return s.reconcile(ctx, accounts), nil
}

// ReconcileOrg recalculates the accounts of one organization, optionally one kind
func (s *BalanceService) ReconcileOrg(ctx context.Context, orgID string, kind models.AccountKind) (*ReconcileReport, error) {
	accounts, err := s.Store.Accounts().List(ctx, orgID, kind)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return s.reconcile(ctx, accounts), nil
}

func (s *BalanceService) reconcile(ctx context.Context, accounts []*models.Account) *ReconcileReport {
	report := &ReconcileReport{Drifted: []models.BalanceBreakdown{}}
	for _, a := range accounts {
		if ctx.Err() != nil {
			break
		}
		b, err := s.Recalculate(ctx, a.OrgID, a.Ref())
		report.Checked++
		if err != nil {
			report.Failed++
			s.Logger.Error("reconcile account failed",
				zap.String("org_id", a.OrgID), zap.String("account", a.Ref().String()), zap.Error(err))
			continue
		}
		if !b.Drift().IsZero() {
			report.Drifted = append(report.Drifted, *b)
			s.Logger.Warn("balance drift corrected",
				zap.String("org_id", a.OrgID),
				zap.String("account", a.Ref().String()),
				zap.String("drift", b.Drift().StringFixed(2)))
		}
	}
	s.Logger.Info("reconciliation finished",
		zap.Int("checked", report.Checked),
		zap.Int("failed", report.Failed),
		zap.Int("drifted", len(report.Drifted)))
	return report
}

// lockAccounts takes row locks on refs in a deterministic order
func lockAccounts(ctx context.Context, tx store.Store, orgID string, refs ...models.AccountRef) error {
	for _, ref := range uniqueRefs(refs...) {
		if _, err := tx.Accounts().GetForUpdate(ctx, orgID, ref); err != nil {
			return fmt.Errorf("lock %s: %w", ref, err)
		}
	}
	return nil
}

// accountMissing turns a not-found from lockAccounts into a 400 on field
func accountMissing(err error, field string) error {
	if errors.Is(err, ErrNotFound) {
		return invalid(field, "account not found")
	}
	return err
}

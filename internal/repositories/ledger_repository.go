package repositories

import (
	"context"
	"fmt"
	"strings"

	"travel-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

type LedgerRepository struct {
	DB DBTX
}

const ledgerColumns = `id, org_id, kind, bank_account_id, cash_account_id, amount, entry_date,
	customer_id, category_id, tour_package_query_id, reference, description,
	created_by, created_at, updated_at`

func scanLedgerEntry(row pgx.Row) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	var bank, cash *string
	err := row.Scan(&e.ID, &e.OrgID, &e.Kind, &bank, &cash, &e.Amount, &e.EntryDate,
		&e.CustomerID, &e.CategoryID, &e.TourPackageQueryID, &e.Reference, &e.Description,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	e.Account = refFromColumns(bank, cash)
	return &e, nil
}

func (r *LedgerRepository) Create(ctx context.Context, e *models.LedgerEntry) error {
	bank, cash := refColumns(e.Account)
	err := r.DB.QueryRow(ctx,
		`INSERT INTO ledger_entries(id, org_id, kind, bank_account_id, cash_account_id, amount,
		                            entry_date, customer_id, category_id, tour_package_query_id,
		                            reference, description, created_by)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING created_at, updated_at`,
		e.ID, e.OrgID, e.Kind, bank, cash, e.Amount, e.EntryDate, e.CustomerID, e.CategoryID,
		e.TourPackageQueryID, e.Reference, e.Description, e.CreatedBy,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	return mapError(err)
}

func (r *LedgerRepository) Get(ctx context.Context, orgID, id string) (*models.LedgerEntry, error) {
	return scanLedgerEntry(r.DB.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE id=$1 AND org_id=$2`, id, orgID))
}

// GetForUpdate locks the entry row until the surrounding transaction ends
func (r *LedgerRepository) GetForUpdate(ctx context.Context, orgID, id string) (*models.LedgerEntry, error) {
	return scanLedgerEntry(r.DB.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE id=$1 AND org_id=$2 FOR UPDATE`, id, orgID))
}

// List returns entries newest first
func (r *LedgerRepository) List(ctx context.Context, f models.LedgerFilter) ([]*models.LedgerEntry, error) {
	conditions := []string{"org_id = $1"}
	args := []any{f.OrgID}
	argNum := 2

	if f.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argNum))
		args = append(args, f.Kind)
		argNum++
	}
	if f.Account != nil {
		conditions = append(conditions, refCondition("bank_account_id", "cash_account_id", *f.Account, argNum))
		args = append(args, f.Account.ID)
		argNum++
	}
	if f.CustomerID != "" {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argNum))
		args = append(args, f.CustomerID)
		argNum++
	}
	if f.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("entry_date >= $%d", argNum))
		args = append(args, *f.StartDate)
		argNum++
	}
	if f.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("entry_date <= $%d", argNum))
		args = append(args, *f.EndDate)
		argNum++
	}

	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY entry_date DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, f.Limit)
		argNum++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, f.Offset)
	}
	return r.query(ctx, query, args...)
}

// ListByAccount returns every entry of one account, oldest first
func (r *LedgerRepository) ListByAccount(ctx context.Context, orgID string, ref models.AccountRef) ([]*models.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE org_id = $1 AND ` +
		refCondition("bank_account_id", "cash_account_id", ref, 2) + ` ORDER BY entry_date, created_at`
	return r.query(ctx, query, orgID, ref.ID)
}

func (r *LedgerRepository) query(ctx context.Context, query string, args ...any) ([]*models.LedgerEntry, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *LedgerRepository) Update(ctx context.Context, e *models.LedgerEntry) error {
	bank, cash := refColumns(e.Account)
	err := r.DB.QueryRow(ctx,
		`UPDATE ledger_entries
		 SET kind=$1, bank_account_id=$2, cash_account_id=$3, amount=$4, entry_date=$5,
		     customer_id=$6, category_id=$7, tour_package_query_id=$8, reference=$9,
		     description=$10, updated_at=CURRENT_TIMESTAMP
		 WHERE id=$11 AND org_id=$12
		 RETURNING updated_at`,
		e.Kind, bank, cash, e.Amount, e.EntryDate, e.CustomerID, e.CategoryID,
		e.TourPackageQueryID, e.Reference, e.Description, e.ID, e.OrgID,
	).Scan(&e.UpdatedAt)
	return mapError(err)
}

func (r *LedgerRepository) Delete(ctx context.Context, orgID, id string) error {
	return expectOne(r.DB.Exec(ctx, `DELETE FROM ledger_entries WHERE id=$1 AND org_id=$2`, id, orgID))
}

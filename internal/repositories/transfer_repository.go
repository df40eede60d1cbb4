package repositories

import (
	"context"
	"fmt"
	"strings"

	"travel-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

type TransferRepository struct {
	DB DBTX
}

const transferColumns = `id, org_id, from_bank_account_id, from_cash_account_id,
	to_bank_account_id, to_cash_account_id, amount, transfer_date, reference, description,
	created_by, created_at, updated_at`

func scanTransfer(row pgx.Row) (*models.Transfer, error) {
	var t models.Transfer
	var fromBank, fromCash, toBank, toCash *string
	err := row.Scan(&t.ID, &t.OrgID, &fromBank, &fromCash, &toBank, &toCash, &t.Amount,
		&t.TransferDate, &t.Reference, &t.Description, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	t.From = refFromColumns(fromBank, fromCash)
	t.To = refFromColumns(toBank, toCash)
	return &t, nil
}

// Create writes one row with exactly one column set per side
func (r *TransferRepository) Create(ctx context.Context, t *models.Transfer) error {
	fromBank, fromCash := refColumns(t.From)
	toBank, toCash := refColumns(t.To)
	err := r.DB.QueryRow(ctx,
		`INSERT INTO transfers(id, org_id, from_bank_account_id, from_cash_account_id,
		                       to_bank_account_id, to_cash_account_id, amount, transfer_date,
		                       reference, description, created_by)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at, updated_at`,
		t.ID, t.OrgID, fromBank, fromCash, toBank, toCash, t.Amount, t.TransferDate,
		t.Reference, t.Description, t.CreatedBy,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	return mapError(err)
}

func (r *TransferRepository) Get(ctx context.Context, orgID, id string) (*models.Transfer, error) {
	return scanTransfer(r.DB.QueryRow(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id=$1 AND org_id=$2`, id, orgID))
}

// GetForUpdate locks the transfer row until the surrounding transaction ends
func (r *TransferRepository) GetForUpdate(ctx context.Context, orgID, id string) (*models.Transfer, error) {
	return scanTransfer(r.DB.QueryRow(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id=$1 AND org_id=$2 FOR UPDATE`, id, orgID))
}

func (r *TransferRepository) List(ctx context.Context, f models.TransferFilter) ([]*models.Transfer, error) {
	conditions := []string{"org_id = $1"}
	args := []any{f.OrgID}
	argNum := 2

	if f.Account != nil {
		conditions = append(conditions, "("+
			refCondition("from_bank_account_id", "from_cash_account_id", *f.Account, argNum)+" OR "+
			refCondition("to_bank_account_id", "to_cash_account_id", *f.Account, argNum)+")")
		args = append(args, f.Account.ID)
		argNum++
	}
	if f.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("transfer_date >= $%d", argNum))
		args = append(args, *f.StartDate)
		argNum++
	}
	if f.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("transfer_date <= $%d", argNum))
		args = append(args, *f.EndDate)
		argNum++
	}

	query := `SELECT ` + transferColumns + ` FROM transfers WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY transfer_date DESC, id DESC`
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

func (r *TransferRepository) ListByAccount(ctx context.Context, orgID string, ref models.AccountRef) ([]*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE org_id = $1 AND (` +
		refCondition("from_bank_account_id", "from_cash_account_id", ref, 2) + ` OR ` +
		refCondition("to_bank_account_id", "to_cash_account_id", ref, 2) + `)
		ORDER BY transfer_date, created_at`
	return r.query(ctx, query, orgID, ref.ID)
}

func (r *TransferRepository) query(ctx context.Context, query string, args ...any) ([]*models.Transfer, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*models.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

func (r *TransferRepository) Update(ctx context.Context, t *models.Transfer) error {
	fromBank, fromCash := refColumns(t.From)
	toBank, toCash := refColumns(t.To)
	err := r.DB.QueryRow(ctx,
		`UPDATE transfers
		 SET from_bank_account_id=$1, from_cash_account_id=$2, to_bank_account_id=$3,
		     to_cash_account_id=$4, amount=$5, transfer_date=$6, reference=$7, description=$8,
		     updated_at=CURRENT_TIMESTAMP
		 WHERE id=$9 AND org_id=$10
		 RETURNING updated_at`,
		fromBank, fromCash, toBank, toCash, t.Amount, t.TransferDate, t.Reference, t.Description,
		t.ID, t.OrgID,
	).Scan(&t.UpdatedAt)
	return mapError(err)
}

func (r *TransferRepository) Delete(ctx context.Context, orgID, id string) error {
	return expectOne(r.DB.Exec(ctx, `DELETE FROM transfers WHERE id=$1 AND org_id=$2`, id, orgID))
}

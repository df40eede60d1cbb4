package repositories

import (
	"context"
	"fmt"

	"travel-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type AccountRepository struct {
	DB DBTX
}

func accountTable(kind models.AccountKind) (string, error) {
	switch kind {
	case models.AccountKindBank:
		return "bank_accounts", nil
	case models.AccountKindCash:
		return "cash_accounts", nil
	}
	return "", fmt.Errorf("unknown account kind %q", kind)
}

// accountColumns selects the same shape from both tables
func accountColumns(kind models.AccountKind) string {
	if kind == models.AccountKindBank {
		return `id, org_id, name, bank_name, account_number, ifsc,
		        opening_balance, current_balance, is_active, created_at, updated_at`
	}
	return `id, org_id, name, '' AS bank_name, '' AS account_number, '' AS ifsc,
	        opening_balance, current_balance, is_active, created_at, updated_at`
}

func scanAccount(row pgx.Row, kind models.AccountKind) (*models.Account, error) {
	a := models.Account{Kind: kind}
	err := row.Scan(&a.ID, &a.OrgID, &a.Name, &a.BankName, &a.AccountNumber, &a.IFSC,
		&a.OpeningBalance, &a.CurrentBalance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

func (r *AccountRepository) Create(ctx context.Context, a *models.Account) error {
	var err error
	switch a.Kind {
	case models.AccountKindBank:
		err = r.DB.QueryRow(ctx,
			`INSERT INTO bank_accounts(id, org_id, name, bank_name, account_number, ifsc,
			                           opening_balance, current_balance, is_active)
			 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING created_at, updated_at`,
			a.ID, a.OrgID, a.Name, a.BankName, a.AccountNumber, a.IFSC,
			a.OpeningBalance, a.CurrentBalance, a.IsActive,
		).Scan(&a.CreatedAt, &a.UpdatedAt)
	case models.AccountKindCash:
		err = r.DB.QueryRow(ctx,
			`INSERT INTO cash_accounts(id, org_id, name, opening_balance, current_balance, is_active)
			 VALUES($1, $2, $3, $4, $5, $6)
			 RETURNING created_at, updated_at`,
			a.ID, a.OrgID, a.Name, a.OpeningBalance, a.CurrentBalance, a.IsActive,
		).Scan(&a.CreatedAt, &a.UpdatedAt)
	default:
		return fmt.Errorf("unknown account kind %q", a.Kind)
	}
	return mapError(err)
}

func (r *AccountRepository) get(ctx context.Context, orgID string, ref models.AccountRef, lock bool) (*models.Account, error) {
	table, err := accountTable(ref.Kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1 AND org_id=$2`, accountColumns(ref.Kind), table)
	if lock {
		query += ` FOR UPDATE`
	}
	return scanAccount(r.DB.QueryRow(ctx, query, ref.ID, orgID), ref.Kind)
}

func (r *AccountRepository) Get(ctx context.Context, orgID string, ref models.AccountRef) (*models.Account, error) {
	return r.get(ctx, orgID, ref, false)
}

// GetForUpdate must run inside InTx; the row lock is held until commit
func (r *AccountRepository) GetForUpdate(ctx context.Context, orgID string, ref models.AccountRef) (*models.Account, error) {
	return r.get(ctx, orgID, ref, true)
}

func (r *AccountRepository) List(ctx context.Context, orgID string, kind models.AccountKind) ([]*models.Account, error) {
	kinds := []models.AccountKind{models.AccountKindBank, models.AccountKindCash}
	if kind != "" {
		kinds = []models.AccountKind{kind}
	}

	var accounts []*models.Account
	for _, k := range kinds {
		table, err := accountTable(k)
		if err != nil {
			return nil, err
		}
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE org_id=$1 ORDER BY name`, accountColumns(k), table)
		list, err := r.query(ctx, k, query, orgID)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, list...)
	}
	return accounts, nil
}

func (r *AccountRepository) ListAll(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	for _, k := range []models.AccountKind{models.AccountKindBank, models.AccountKindCash} {
		table, _ := accountTable(k)
		query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY org_id, id`, accountColumns(k), table)
		list, err := r.query(ctx, k, query)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, list...)
	}
	return accounts, nil
}

func (r *AccountRepository) query(ctx context.Context, kind models.AccountKind, query string, args ...any) ([]*models.Account, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows, kind)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Update writes the editable fields. current_balance is only written by SetCurrentBalance.
func (r *AccountRepository) Update(ctx context.Context, a *models.Account) error {
	var row pgx.Row
	switch a.Kind {
	case models.AccountKindBank:
		row = r.DB.QueryRow(ctx,
			`UPDATE bank_accounts
			 SET name=$1, bank_name=$2, account_number=$3, ifsc=$4, opening_balance=$5,
			     is_active=$6, updated_at=CURRENT_TIMESTAMP
			 WHERE id=$7 AND org_id=$8
			 RETURNING current_balance, updated_at`,
			a.Name, a.BankName, a.AccountNumber, a.IFSC, a.OpeningBalance, a.IsActive, a.ID, a.OrgID)
	case models.AccountKindCash:
		row = r.DB.QueryRow(ctx,
			`UPDATE cash_accounts
			 SET name=$1, opening_balance=$2, is_active=$3, updated_at=CURRENT_TIMESTAMP
			 WHERE id=$4 AND org_id=$5
			 RETURNING current_balance, updated_at`,
			a.Name, a.OpeningBalance, a.IsActive, a.ID, a.OrgID)
	default:
		return fmt.Errorf("unknown account kind %q", a.Kind)
	}
	return mapError(row.Scan(&a.CurrentBalance, &a.UpdatedAt))
}

func (r *AccountRepository) SetCurrentBalance(ctx context.Context, orgID string, ref models.AccountRef, balance decimal.Decimal) error {
	table, err := accountTable(ref.Kind)
	if err != nil {
		return err
	}
	return expectOne(r.DB.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET current_balance=$1, updated_at=CURRENT_TIMESTAMP WHERE id=$2 AND org_id=$3`, table),
		balance, ref.ID, orgID))
}

func (r *AccountRepository) Delete(ctx context.Context, orgID string, ref models.AccountRef) error {
	table, err := accountTable(ref.Kind)
	if err != nil {
		return err
	}
	return expectOne(r.DB.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id=$1 AND org_id=$2`, table), ref.ID, orgID))
}

package repositories

import (
	"context"
	"time"

	"travel-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

type CustomerRepository struct {
	DB DBTX
}

const customerColumns = `id, org_id, name, phone, email, city, notes, opted_in, last_inbound_at,
	created_at, updated_at`

func scanCustomer(row pgx.Row) (*models.Customer, error) {
	var c models.Customer
	err := row.Scan(&c.ID, &c.OrgID, &c.Name, &c.Phone, &c.Email, &c.City, &c.Notes, &c.OptedIn,
		&c.LastInboundAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func (r *CustomerRepository) Create(ctx context.Context, c *models.Customer) error {
	return mapError(r.DB.QueryRow(ctx,
		`INSERT INTO customers(id, org_id, name, phone, email, city, notes, opted_in)
         VALUES($1, $2, $3, $4, $5, $6, $7, $8)
         RETURNING created_at, updated_at`,
		c.ID, c.OrgID, c.Name, c.Phone, c.Email, c.City, c.Notes, c.OptedIn,
	).Scan(&c.CreatedAt, &c.UpdatedAt))
}

func (r *CustomerRepository) Get(ctx context.Context, orgID, id string) (*models.Customer, error) {
	return scanCustomer(r.DB.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id=$1 AND org_id=$2`, id, orgID))
}

func (r *CustomerRepository) GetByPhone(ctx context.Context, orgID, phone string) (*models.Customer, error) {
	return scanCustomer(r.DB.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE phone=$1 AND org_id=$2`, phone, orgID))
}

func (r *CustomerRepository) List(ctx context.Context, orgID string) ([]*models.Customer, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE org_id=$1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []*models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (r *CustomerRepository) Update(ctx context.Context, c *models.Customer) error {
	return mapError(r.DB.QueryRow(ctx,
		`UPDATE customers SET name=$1, phone=$2, email=$3, city=$4, notes=$5, opted_in=$6,
                updated_at=CURRENT_TIMESTAMP
         WHERE id=$7 AND org_id=$8
         RETURNING last_inbound_at, updated_at`,
		c.Name, c.Phone, c.Email, c.City, c.Notes, c.OptedIn, c.ID, c.OrgID,
	).Scan(&c.LastInboundAt, &c.UpdatedAt))
}

func (r *CustomerRepository) Delete(ctx context.Context, orgID, id string) error {
	return expectOne(r.DB.Exec(ctx, `DELETE FROM customers WHERE id=$1 AND org_id=$2`, id, orgID))
}

// TouchInbound only moves last_inbound_at forward
func (r *CustomerRepository) TouchInbound(ctx context.Context, orgID, phone string, at time.Time) error {
	return expectOne(r.DB.Exec(ctx,
		`UPDATE customers
         SET last_inbound_at = GREATEST(COALESCE(last_inbound_at, $1), $1)
         WHERE phone=$2 AND org_id=$3`,
		at, phone, orgID))
}

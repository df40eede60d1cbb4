package repositories

import (
	"context"
	"errors"
	"fmt"

	"travel-backend/internal/models"
	"travel-backend/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store implements store.Store on PostgreSQL
type Store struct {
	pool *pgxpool.Pool // nil inside a transaction
	db   DBTX
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

func (s *Store) Accounts() store.AccountRepository       { return &AccountRepository{DB: s.db} }
func (s *Store) Ledger() store.LedgerRepository          { return &LedgerRepository{DB: s.db} }
func (s *Store) Transfers() store.TransferRepository     { return &TransferRepository{DB: s.db} }
func (s *Store) Customers() store.CustomerRepository     { return &CustomerRepository{DB: s.db} }
func (s *Store) Campaigns() store.CampaignRepository     { return &CampaignRepository{DB: s.db} }
func (s *Store) MessageLogs() store.MessageLogRepository { return &MessageLogRepository{DB: s.db} }

// InTx runs fn in a transaction that commits when fn returns nil
func (s *Store) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Store{db: tx})
	})
}

// mapError converts driver errors into store sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503": // unique_violation, foreign_key_violation
			return errors.Join(store.ErrConflict, err)
		}
	}
	return err
}

// expectOne maps a zero-row UPDATE/DELETE to ErrNotFound
func expectOne(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// refColumns splits a reference into the (bank, cash) nullable column pair
func refColumns(ref models.AccountRef) (bank, cash *string) {
	id := ref.ID
	if ref.Kind == models.AccountKindBank {
		return &id, nil
	}
	return nil, &id
}

// refFromColumns is the inverse of refColumns
func refFromColumns(bank, cash *string) models.AccountRef {
	if bank != nil {
		return models.AccountRef{Kind: models.AccountKindBank, ID: *bank}
	}
	if cash != nil {
		return models.AccountRef{Kind: models.AccountKindCash, ID: *cash}
	}
	return models.AccountRef{}
}

// refCondition matches rows whose (bank, cash) column pair points at ref, binding ref.ID as $n
func refCondition(bankCol, cashCol string, ref models.AccountRef, n int) string {
	if ref.Kind == models.AccountKindBank {
		return fmt.Sprintf("%s = $%d", bankCol, n)
	}
	return fmt.Sprintf("%s = $%d", cashCol, n)
}

var _ store.Store = (*Store)(nil)

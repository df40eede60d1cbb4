// Package store declares the persistence boundary used by services.
// repositories implements it on PostgreSQL; store/memory implements it in memory.
package store

import (
	"context"
	"errors"
	"time"

	"travel-backend/internal/models"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a row does not exist in the caller's organization
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness or reference constraint
	ErrConflict = errors.New("conflict")
)

// Store groups the repositories. Repositories obtained from the Store passed to an
// InTx callback run inside that transaction.
type Store interface {
	Accounts() AccountRepository
	Ledger() LedgerRepository
	Transfers() TransferRepository
	Customers() CustomerRepository
	Campaigns() CampaignRepository
	MessageLogs() MessageLogRepository

	// InTx runs fn in a transaction. fn's error rolls the transaction back.
	// Nested calls reuse the outer transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

type AccountRepository interface {
	Create(ctx context.Context, a *models.Account) error
	Get(ctx context.Context, orgID string, ref models.AccountRef) (*models.Account, error)
	// GetForUpdate locks the account row until the surrounding transaction ends
	GetForUpdate(ctx context.Context, orgID string, ref models.AccountRef) (*models.Account, error)
	List(ctx context.Context, orgID string, kind models.AccountKind) ([]*models.Account, error)
	// ListAll returns every account of every organization (reconciliation job)
	ListAll(ctx context.Context) ([]*models.Account, error)
	Update(ctx context.Context, a *models.Account) error
	SetCurrentBalance(ctx context.Context, orgID string, ref models.AccountRef, balance decimal.Decimal) error
	Delete(ctx context.Context, orgID string, ref models.AccountRef) error
}

type LedgerRepository interface {
	Create(ctx context.Context, e *models.LedgerEntry) error
	Get(ctx context.Context, orgID, id string) (*models.LedgerEntry, error)
	// GetForUpdate locks the entry row until the surrounding transaction ends
	GetForUpdate(ctx context.Context, orgID, id string) (*models.LedgerEntry, error)
	List(ctx context.Context, filter models.LedgerFilter) ([]*models.LedgerEntry, error)
	ListByAccount(ctx context.Context, orgID string, ref models.AccountRef) ([]*models.LedgerEntry, error)
	Update(ctx context.Context, e *models.LedgerEntry) error
	Delete(ctx context.Context, orgID, id string) error
}

type TransferRepository interface {
	Create(ctx context.Context, t *models.Transfer) error
	Get(ctx context.Context, orgID, id string) (*models.Transfer, error)
	// GetForUpdate locks the transfer row until the surrounding transaction ends
	GetForUpdate(ctx context.Context, orgID, id string) (*models.Transfer, error)
	List(ctx context.Context, filter models.TransferFilter) ([]*models.Transfer, error)
	// ListByAccount returns transfers touching ref on either side, oldest first
	ListByAccount(ctx context.Context, orgID string, ref models.AccountRef) ([]*models.Transfer, error)
	Update(ctx context.Context, t *models.Transfer) error
	Delete(ctx context.Context, orgID, id string) error
}

type CustomerRepository interface {
	Create(ctx context.Context, c *models.Customer) error
	Get(ctx context.Context, orgID, id string) (*models.Customer, error)
	GetByPhone(ctx context.Context, orgID, phone string) (*models.Customer, error)
	List(ctx context.Context, orgID string) ([]*models.Customer, error)
	Update(ctx context.Context, c *models.Customer) error
	Delete(ctx context.Context, orgID, id string) error
	// TouchInbound records an inbound message time; returns ErrNotFound for unknown phones
	TouchInbound(ctx context.Context, orgID, phone string, at time.Time) error
}

type CampaignRepository interface {
	Create(ctx context.Context, c *models.Campaign) error
	Get(ctx context.Context, orgID, id string) (*models.Campaign, error)
	List(ctx context.Context, orgID string) ([]*models.Campaign, error)
	UpdateStatus(ctx context.Context, orgID, id, status string, at time.Time) error
	Delete(ctx context.Context, orgID, id string) error

	// AppendRecipients assigns positions after the current last one and bumps total_recipients
	AppendRecipients(ctx context.Context, campaignID string, recipients []*models.CampaignRecipient) error
	ListRecipients(ctx context.Context, campaignID string) ([]*models.CampaignRecipient, error)
	UpdateRecipientResult(ctx context.Context, r *models.CampaignRecipient) error
	// AdvanceRecipientStatus sets status only while the recipient is still in one of from.
	// A non-empty errorMessage replaces the stored one. Reports false when nothing matched.
	AdvanceRecipientStatus(ctx context.Context, recipientID, status, errorMessage string, from []string) (bool, error)
	GetRecipientByMessageID(ctx context.Context, providerMessageID string) (*models.CampaignRecipient, error)
	CountByStatus(ctx context.Context, campaignID string) (map[string]int, error)
}

type MessageLogRepository interface {
	Create(ctx context.Context, log *models.MessageLog) error
	ListByCustomer(ctx context.Context, orgID, customerID string, limit int) ([]*models.MessageLog, error)
}

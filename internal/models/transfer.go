package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer moves money between two accounts of either kind.
// In storage exactly one of the bank/cash columns is set on each side.
type Transfer struct {
	ID           string          `json:"id"`
	OrgID        string          `json:"org_id"`
	From         AccountRef      `json:"from"`
	To           AccountRef      `json:"to"`
	Amount       decimal.Decimal `json:"amount"`
	TransferDate time.Time       `json:"transfer_date"`
	Reference    string          `json:"reference"`
	Description  string          `json:"description"`
	CreatedBy    string          `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TransferRequest is the body for POST /api/transfers and PATCH /api/transfers/{id}
type TransferRequest struct {
	FromAccountType AccountKind     `json:"from_account_type" validate:"required,oneof=bank cash"`
	FromAccountID   string          `json:"from_account_id" validate:"required"`
	ToAccountType   AccountKind     `json:"to_account_type" validate:"required,oneof=bank cash"`
	ToAccountID     string          `json:"to_account_id" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	TransferDate    time.Time       `json:"transfer_date"`
	Reference       string          `json:"reference" validate:"max=120"`
	Description     string          `json:"description" validate:"max=1000"`
}

// From returns the source account reference
func (r *TransferRequest) From() AccountRef {
	return AccountRef{Kind: r.FromAccountType, ID: r.FromAccountID}
}

// To returns the destination account reference
func (r *TransferRequest) To() AccountRef {
	return AccountRef{Kind: r.ToAccountType, ID: r.ToAccountID}
}

// TransferFilter is used for listing transfers
type TransferFilter struct {
	OrgID     string
	Account   *AccountRef
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

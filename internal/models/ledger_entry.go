package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntryKind is the type of ledger entry
type LedgerEntryKind string

const (
	LedgerEntryReceipt LedgerEntryKind = "receipt" // money received from a customer
	LedgerEntryPayment LedgerEntryKind = "payment" // money paid to a supplier
	LedgerEntryExpense LedgerEntryKind = "expense" // operating expense
	LedgerEntryIncome  LedgerEntryKind = "income"  // other income
)

// Valid reports whether k is a known entry kind
func (k LedgerEntryKind) Valid() bool {
	switch k {
	case LedgerEntryReceipt, LedgerEntryPayment, LedgerEntryExpense, LedgerEntryIncome:
		return true
	}
	return false
}

// IsInflow reports whether entries of this kind increase the account balance
func (k LedgerEntryKind) IsInflow() bool {
	return k == LedgerEntryReceipt || k == LedgerEntryIncome
}

// LedgerEntry is a dated amount attached to exactly one account.
// Amount is always positive; the kind decides the sign.
type LedgerEntry struct {
	ID                 string          `json:"id"`
	OrgID              string          `json:"org_id"`
	Kind               LedgerEntryKind `json:"kind"`
	Account            AccountRef      `json:"account"`
	Amount             decimal.Decimal `json:"amount"`
	EntryDate          time.Time       `json:"entry_date"`
	CustomerID         *string         `json:"customer_id,omitempty"`
	CategoryID         *string         `json:"category_id,omitempty"`
	TourPackageQueryID *string         `json:"tour_package_query_id,omitempty"`
	Reference          string          `json:"reference"`
	Description        string          `json:"description"`
	CreatedBy          string          `json:"created_by"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// SignedAmount returns the entry's effect on its account balance
func (e *LedgerEntry) SignedAmount() decimal.Decimal {
	if e.Kind.IsInflow() {
		return e.Amount
	}
	return e.Amount.Neg()
}

// LedgerEntryRequest is the body for POST /api/ledger and PATCH /api/ledger/{id}
type LedgerEntryRequest struct {
	Kind               LedgerEntryKind `json:"kind" validate:"required,oneof=receipt payment expense income"`
	AccountKind        AccountKind     `json:"account_kind" validate:"required,oneof=bank cash"`
	AccountID          string          `json:"account_id" validate:"required"`
	Amount             decimal.Decimal `json:"amount"`
	EntryDate          time.Time       `json:"entry_date"`
	CustomerID         *string         `json:"customer_id"`
	CategoryID         *string         `json:"category_id"`
	TourPackageQueryID *string         `json:"tour_package_query_id"`
	Reference          string          `json:"reference" validate:"max=120"`
	Description        string          `json:"description" validate:"max=1000"`
}

// LedgerFilter is used for filtering ledger entries
type LedgerFilter struct {
	OrgID      string
	Kind       LedgerEntryKind
	Account    *AccountRef
	CustomerID string
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
	Offset     int
}

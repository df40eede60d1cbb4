package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind distinguishes bank accounts from cash accounts. Each kind lives in its own table.
type AccountKind string

const (
	AccountKindBank AccountKind = "bank"
	AccountKindCash AccountKind = "cash"
)

// Valid reports whether k is a known account kind
func (k AccountKind) Valid() bool {
	return k == AccountKindBank || k == AccountKindCash
}

// AccountRef identifies one account across both account tables
type AccountRef struct {
	Kind AccountKind `json:"kind"`
	ID   string      `json:"id"`
}

// String returns "kind:id", used as a log field and lock-ordering key
func (r AccountRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// Account is a bank or cash account. CurrentBalance is a projection of the ledger
// and is rewritten by the balance recalculator inside every ledger write transaction.
type Account struct {
	ID             string          `json:"id"`
	OrgID          string          `json:"org_id"`
	Kind           AccountKind     `json:"kind"`
	Name           string          `json:"name"`
	BankName       string          `json:"bank_name,omitempty"`
	AccountNumber  string          `json:"account_number,omitempty"`
	IFSC           string          `json:"ifsc,omitempty"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Ref returns the account's reference
func (a *Account) Ref() AccountRef {
	return AccountRef{Kind: a.Kind, ID: a.ID}
}

// CreateAccountRequest is the body for POST /api/accounts/{kind}
type CreateAccountRequest struct {
	Name           string          `json:"name" validate:"required,max=120"`
	BankName       string          `json:"bank_name" validate:"max=120"`
	AccountNumber  string          `json:"account_number" validate:"max=40"`
	IFSC           string          `json:"ifsc" validate:"max=20"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	IsActive       *bool           `json:"is_active"`
}

// UpdateAccountRequest is the body for PATCH /api/accounts/{kind}/{id} (full-field replace)
type UpdateAccountRequest struct {
	Name           string          `json:"name" validate:"required,max=120"`
	BankName       string          `json:"bank_name" validate:"max=120"`
	AccountNumber  string          `json:"account_number" validate:"max=40"`
	IFSC           string          `json:"ifsc" validate:"max=20"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	IsActive       bool            `json:"is_active"`
}

// BalanceBreakdown explains how a current balance was derived
type BalanceBreakdown struct {
	Account      AccountRef      `json:"account"`
	Opening      decimal.Decimal `json:"opening_balance"`
	Inflows      decimal.Decimal `json:"inflows"`
	Outflows     decimal.Decimal `json:"outflows"`
	TransfersIn  decimal.Decimal `json:"transfers_in"`
	TransfersOut decimal.Decimal `json:"transfers_out"`
	Current      decimal.Decimal `json:"current_balance"`
	Previous     decimal.Decimal `json:"previous_balance"`
	EntryCount   int             `json:"entry_count"`
}

// Drift is the difference between the recomputed and the previously cached balance
func (b BalanceBreakdown) Drift() decimal.Decimal {
	return b.Current.Sub(b.Previous)
}

package services

import (
	"sort"

	"travel-backend/internal/models"

	"github.com/shopspring/decimal"
)

// ComputeBalance derives an account's balance from scratch:
//
//	opening + receipts + incomes - payments - expenses + transfers in - transfers out
//
// entries and transfers must be the rows referencing acct. Previous is the cached balance.
func ComputeBalance(acct *models.Account, entries []*models.LedgerEntry, transfers []*models.Transfer) models.BalanceBreakdown {
	ref := acct.Ref()
	b := models.BalanceBreakdown{
		Account:      ref,
		Opening:      acct.OpeningBalance,
		Previous:     acct.CurrentBalance,
		Inflows:      decimal.Zero,
		Outflows:     decimal.Zero,
		TransfersIn:  decimal.Zero,
		TransfersOut: decimal.Zero,
	}

	for _, e := range entries {
		if e.Account != ref {
			continue
		}
		if e.Kind.IsInflow() {
			b.Inflows = b.Inflows.Add(e.Amount)
		} else {
			b.Outflows = b.Outflows.Add(e.Amount)
		}
		b.EntryCount++
	}

	for _, t := range transfers {
		if t.From == ref {
			b.TransfersOut = b.TransfersOut.Add(t.Amount)
		}
		if t.To == ref {
			b.TransfersIn = b.TransfersIn.Add(t.Amount)
		}
	}

	b.Current = b.Opening.
		Add(b.Inflows).
		Sub(b.Outflows).
		Add(b.TransfersIn).
		Sub(b.TransfersOut)
	return b
}

// sortTransfers orders transfers by date, then creation time
func sortTransfers(transfers []*models.Transfer) {
	sort.SliceStable(transfers, func(i, j int) bool {
		a, b := transfers[i], transfers[j]
		if !a.TransferDate.Equal(b.TransferDate) {
			return a.TransferDate.Before(b.TransferDate)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// uniqueRefs returns refs without duplicates, sorted by their string form.
// Accounts are always locked in this order so concurrent writers cannot deadlock.
func uniqueRefs(refs ...models.AccountRef) []models.AccountRef {
	seen := make(map[models.AccountRef]bool, len(refs))
	out := make([]models.AccountRef, 0, len(refs))
	for _, r := range refs {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

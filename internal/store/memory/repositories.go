package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"travel-backend/internal/models"
	"travel-backend/internal/store"

	"github.com/shopspring/decimal"
)

func copyAccount(a *models.Account) *models.Account {
	c := *a
	return &c
}

func copyEntry(e *models.LedgerEntry) *models.LedgerEntry {
	c := *e
	return &c
}

func copyTransfer(t *models.Transfer) *models.Transfer {
	c := *t
	return &c
}

func copyCustomer(cu *models.Customer) *models.Customer {
	c := *cu
	if cu.LastInboundAt != nil {
		at := *cu.LastInboundAt
		c.LastInboundAt = &at
	}
	return &c
}

func copyCampaign(ca *models.Campaign) *models.Campaign {
	c := *ca
	return &c
}

func copyRecipient(r *models.CampaignRecipient) *models.CampaignRecipient {
	c := *r
	if r.Variables != nil {
		c.Variables = make(map[string]string, len(r.Variables))
		for k, v := range r.Variables {
			c.Variables[k] = v
		}
	}
	return &c
}

func inRange(t time.Time, start, end *time.Time) bool {
	if start != nil && t.Before(*start) {
		return false
	}
	if end != nil && t.After(*end) {
		return false
	}
	return true
}

func page[T any](items []T, limit, offset int) []T {
	if offset > len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

type accountRepo struct {
	db *db
	tx bool
}

func (r *accountRepo) Create(ctx context.Context, a *models.Account) error {
	defer r.db.lockWrite(r.tx)()
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	r.db.data.accounts[a.Ref()] = copyAccount(a)
	return nil
}

func (r *accountRepo) Get(ctx context.Context, orgID string, ref models.AccountRef) (*models.Account, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	a, ok := r.db.data.accounts[ref]
	if !ok || a.OrgID != orgID {
		return nil, store.ErrNotFound
	}
	return copyAccount(a), nil
}

// GetForUpdate relies on InTx serialization for locking
func (r *accountRepo) GetForUpdate(ctx context.Context, orgID string, ref models.AccountRef) (*models.Account, error) {
	return r.Get(ctx, orgID, ref)
}

func (r *accountRepo) List(ctx context.Context, orgID string, kind models.AccountKind) ([]*models.Account, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*models.Account
	for _, a := range r.db.data.accounts {
		if a.OrgID == orgID && (kind == "" || a.Kind == kind) {
			out = append(out, copyAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *accountRepo) ListAll(ctx context.Context) ([]*models.Account, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*models.Account
	for _, a := range r.db.data.accounts {
		out = append(out, copyAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref().String() < out[j].Ref().String() })
	return out, nil
}

func (r *accountRepo) Update(ctx context.Context, a *models.Account) error {
	defer r.db.lockWrite(r.tx)()
	cur, ok := r.db.data.accounts[a.Ref()]
	if !ok || cur.OrgID != a.OrgID {
		return store.ErrNotFound
	}
	next := copyAccount(a)
	next.CreatedAt = cur.CreatedAt
	next.CurrentBalance = cur.CurrentBalance
	next.UpdatedAt = time.Now()
	r.db.data.accounts[a.Ref()] = next
	a.UpdatedAt = next.UpdatedAt
	a.CurrentBalance = next.CurrentBalance
	return nil
}

func (r *accountRepo) SetCurrentBalance(ctx context.Context, orgID string, ref models.AccountRef, balance decimal.Decimal) error {
	defer r.db.lockWrite(r.tx)()
	cur, ok := r.db.data.accounts[ref]
	if !ok || cur.OrgID != orgID {
		return store.ErrNotFound
	}
	next := copyAccount(cur)
	next.CurrentBalance = balance
	next.UpdatedAt = time.Now()
	r.db.data.accounts[ref] = next
	return nil
}

func (r *accountRepo) Delete(ctx context.Context, orgID string, ref models.AccountRef) error {
	defer r.db.lockWrite(r.tx)()
	cur, ok := r.db.data.accounts[ref]
	if !ok || cur.OrgID != orgID {
		return store.ErrNotFound
	}
	delete(r.db.data.accounts, ref)
	return nil
}

// ---------------------------------------------------------------------------
// Ledger entries
// ---------------------------------------------------------------------------

type ledgerRepo struct {
	db *db
	tx bool
}

func (r *ledgerRepo) Create(ctx context.Context, e *models.LedgerEntry) error {
	defer r.db.lockWrite(r.tx)()
	now := time.Now()
	e.CreatedAt, e.UpdatedAt = now, now
	r.db.data.entries[e.ID] = copyEntry(e)
	return nil
}

func (r *ledgerRepo) Get(ctx context.Context, orgID, id string) (*models.LedgerEntry, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	e, ok := r.db.data.entries[id]
	if !ok || e.OrgID != orgID {
		return nil, store.ErrNotFound
	}
	return copyEntry(e), nil
}

// GetForUpdate relies on InTx serialization for locking
func (r *ledgerRepo) GetForUpdate(ctx context.Context, orgID, id string) (*models.LedgerEntry, error) {
	return r.Get(ctx, orgID, id)
}

func (r *ledgerRepo) List(ctx context.Context, f models.LedgerFilter) ([]*models.LedgerEntry, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*models.LedgerEntry
	for _, e := range r.db.data.entries {
		if e.OrgID != f.OrgID {
			continue
		}
		if f.Kind != "" && e.Kind != f.Kind {
			continue
		}
		if f.Account != nil && e.Account != *f.Account {
			continue
		}
		if f.CustomerID != "" && (e.CustomerID == nil || *e.CustomerID != f.CustomerID) {
			continue
		}
		if !inRange(e.EntryDate, f.StartDate, f.EndDate) {
			continue
		}
		out = append(out, copyEntry(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryDate.Equal(out[j].EntryDate) {
			return out[i].ID > out[j].ID
		}
		return out[i].EntryDate.After(out[j].EntryDate)
	})
	return page(out, f.Limit, f.Offset), nil
}

func (r *ledgerRepo) ListByAccount(ctx context.Context, orgID string, ref models.AccountRef) ([]*models.LedgerEntry, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*models.LedgerEntry
	for _, e := range r.db.data.entries {
		if e.OrgID == orgID && e.Account == ref {
			out = append(out, copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryDate.Before(out[j].EntryDate) })
	return out, nil
}

func (r *ledgerRepo) Update(ctx context.Context, e *models.LedgerEntry) error {
	defer r.db.lockWrite(r.tx)()
	cur, ok := r.db.data.entries[e.ID]
	if !ok || cur.OrgID != e.OrgID {
		return store.ErrNotFound
	}
	next := copyEntry(e)
	next.CreatedAt = cur.CreatedAt
	next.CreatedBy = cur.CreatedBy
	next.UpdatedAt = time.Now()
	r.db.data.entries[e.ID] = next
	return nil
}

func (r *ledgerRepo) Delete(ctx context.Context, orgID, id string) error {
	defer r.db.lockWrite(r.tx)()
	cur, ok := r.db.data.entries[id]
	if !ok || cur.OrgID != orgID {
		return store.ErrNotFound
	}
	delete(r.db.data.entries, id)
	return nil
}

// ---------------------------------------------------------------------------
// Transfers
// ---------------------------------------------------------------------------

type transferRepo struct {
	db *db
	tx bool
}

func (r *transferRepo) Create(ctx context.Context, t *models.Transfer) error {
	defer r.db.lockWrite(r.tx)()
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	r.db.data.transfers[t.ID] = copyTransfer(t)
	return nil
}

func (r *transferRepo) Get(ctx context.Context, orgID, id string) (*models.Transfer, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	t, ok := r.db.data.transfers[id]
	if !ok || t.OrgID != orgID {
		return nil, store.ErrNotFound
	}
	return copyTransfer(t), nil
}

// GetForUpdate relies on InTx serialization for locking
func (r *transferRepo) GetForUpdate(ctx context.Context, orgID, id string) (*models.Transfer, error) {
	return r.Get(ctx, orgID, id)
}

func (r *transferRepo) List(ctx context.Context, f models.TransferFilter) ([]*models.Transfer, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*models.Transfer
	for _, t := range r.db.data.transfers {
		if t.OrgID != f.OrgID {
			continue
		}
		if f.Account != nil && t.From != *f.Account && t.To != *f.Account {
			continue
		}
		if !inRange(t.TransferDate, f.StartDate, f.EndDate) {
			continue
		}
		out = append(out, copyTransfer(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransferDate.After(out[j].TransferDate) })
	return page(out, f.Limit, f.Offset), nil
}

func (r *transferRepo) ListByAccount(ctx context.Context, orgID string, ref models.AccountRef) ([]*models.Transfer, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*models.Transfer
	for _, t := range r.db.data.transfers {
		if t.OrgID == orgID && (t.From == ref || t.To == ref) {
			out = append(out, copyTransfer(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransferDate.Before(out[j].TransferDate) })
	return out, nil
}

func (r *transferRepo) Update(ctx context.Context, t *models.Transfer) error {
	defer r.db.lockWrite(r.tx)()
	cur, ok := r.db.data.transfers[t.ID]
	if !ok || cur.OrgID != t.OrgID {
		return store.ErrNotFound
	}
	next := copyTransfer(t)
	next.CreatedAt = cur.CreatedAt
	next.CreatedBy = cur.CreatedBy
	next.UpdatedAt = time.Now()
	r.db.data.transfers[t.ID] = next
	return nil
}

func (r *transferRepo) Delete(ctx context.Context, orgID, id string) error {
	defer r.db.lockWrite(r.tx)()
	cur, ok := r.db.data.transfers[id]
	if !ok || cur.OrgID != orgID {
		return store.ErrNotFound
	}
	delete(r.db.data.transfers, id)
	return nil
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

type customerRepo struct {
	db *db
	tx bool
}

func (r *customerRepo) Create(ctx context.Context, c *models.Customer) error {
	defer r.db.lockWrite(r.tx)()
	if r.phoneTaken(c.OrgID, c.Phone, c.ID) {
		return store.ErrConflict
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	r.db.data.customers[c.ID] = copyCustomer(c)
	return nil
}

// phoneTaken must be called with the lock held
func (r *customerRepo) phoneTaken(orgID, phone, exceptID string) bool {
	for id, c := range r.db.data.customers {
		if id != exceptID && c.OrgID == orgID && c.Phone == phone {
			return true
		}
	}
	return false
}

func (r *customerRepo) Get(ctx context.Context, orgID, id string) (*models.Customer, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	c, ok := r.db.data.customers[id]
	if !ok || c.OrgID != orgID {
		return nil, store.ErrNotFound
	}
	return copyCustomer(c), nil
}

func (r *customerRepo) GetByPhone(ctx context.Context, orgID, phone string) (*models.Customer, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, c := range r.db.data.customers {
		if c.OrgID == orgID && c.Phone == phone {
			return copyCustomer(c), nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *customerRepo) List(ctx context.Context, orgID string) ([]*models.Customer, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*models.Customer
	for _, c := range r.db.data.customers {
		if c.OrgID == orgID {
			out = append(out, copyCustomer(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *customerRepo) Update(ctx context.Context, c *models.Customer) error {
	defer r.db.lockWrite(r.tx)()
	cur, ok := r.db.data.customers[c.ID]
	if !ok || cur.OrgID != c.OrgID {
		return store.ErrNotFound
	}
	if r.phoneTaken(c.OrgID, c.Phone, c.ID) {
		return store.ErrConflict
	}
	next := copyCustomer(c)
	next.CreatedAt = cur.CreatedAt
	next.LastInboundAt = cur.LastInboundAt
	next.UpdatedAt = time.Now()
	r.db.data.customers[c.ID] = next
	return nil
}

func (r *customerRepo) Delete(ctx context.Context, orgID, id string) error {
	defer r.db.lockWrite(r.tx)()
	cur, ok := r.db.data.customers[id]
	if !ok || cur.OrgID != orgID {
		return store.ErrNotFound
	}
	delete(r.db.data.customers, id)
	return nil
}

func (r *customerRepo) TouchInbound(ctx context.Context, orgID, phone string, at time.Time) error {
	defer r.db.lockWrite(r.tx)()
	for id, c := range r.db.data.customers {
		if c.OrgID == orgID && c.Phone == phone {
			if c.LastInboundAt != nil && !at.After(*c.LastInboundAt) {
				return nil
			}
			next := copyCustomer(c)
			next.LastInboundAt = &at
			r.db.data.customers[id] = next
			return nil
		}
	}
	return store.ErrNotFound
}

// ---------------------------------------------------------------------------
// Campaigns
// ---------------------------------------------------------------------------

type campaignRepo struct {
	db *db
	tx bool
}

func (r *campaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	defer r.db.lockWrite(r.tx)()
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	r.db.data.campaigns[c.ID] = copyCampaign(c)
	return nil
}

func (r *campaignRepo) Get(ctx context.Context, orgID, id string) (*models.Campaign, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	c, ok := r.db.data.campaigns[id]
	if !ok || c.OrgID != orgID {
		return nil, store.ErrNotFound
	}
	return copyCampaign(c), nil
}

func (r *campaignRepo) List(ctx context.Context, orgID string) ([]*models.Campaign, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*models.Campaign
	for _, c := range r.db.data.campaigns {
		if c.OrgID == orgID {
			out = append(out, copyCampaign(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *campaignRepo) UpdateStatus(ctx context.Context, orgID, id, status string, at time.Time) error {
	defer r.db.lockWrite(r.tx)()
	cur, ok := r.db.data.campaigns[id]
	if !ok || cur.OrgID != orgID {
		return store.ErrNotFound
	}
	next := copyCampaign(cur)
	next.Status = status
	next.UpdatedAt = at
	switch status {
	case models.CampaignStatusRunning:
		next.StartedAt = &at
		next.CompletedAt = nil
	case models.CampaignStatusCompleted, models.CampaignStatusCancelled:
		next.CompletedAt = &at
	}
	r.db.data.campaigns[id] = next
	return nil
}

func (r *campaignRepo) Delete(ctx context.Context, orgID, id string) error {
	defer r.db.lockWrite(r.tx)()
	cur, ok := r.db.data.campaigns[id]
	if !ok || cur.OrgID != orgID {
		return store.ErrNotFound
	}
	delete(r.db.data.campaigns, id)
	delete(r.db.data.recipients, id)
	return nil
}

func (r *campaignRepo) AppendRecipients(ctx context.Context, campaignID string, recipients []*models.CampaignRecipient) error {
	defer r.db.lockWrite(r.tx)()
	cur, ok := r.db.data.campaigns[campaignID]
	if !ok {
		return store.ErrNotFound
	}
	existing := r.db.data.recipients[campaignID]
	next := 1
	if n := len(existing); n > 0 {
		next = existing[n-1].Position + 1
	}
	now := time.Now()
	list := append([]*models.CampaignRecipient(nil), existing...)
	for _, rec := range recipients {
		rec.CampaignID = campaignID
		rec.Position = next
		rec.UpdatedAt = now
		next++
		list = append(list, copyRecipient(rec))
	}
	r.db.data.recipients[campaignID] = list

	camp := copyCampaign(cur)
	camp.TotalRecipients += len(recipients)
	r.db.data.campaigns[campaignID] = camp
	return nil
}

func (r *campaignRepo) ListRecipients(ctx context.Context, campaignID string) ([]*models.CampaignRecipient, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	list := r.db.data.recipients[campaignID]
	out := make([]*models.CampaignRecipient, 0, len(list))
	for _, rec := range list {
		out = append(out, copyRecipient(rec))
	}
	return out, nil
}

func (r *campaignRepo) UpdateRecipientResult(ctx context.Context, rec *models.CampaignRecipient) error {
	defer r.db.lockWrite(r.tx)()
	list := r.db.data.recipients[rec.CampaignID]
	for i, cur := range list {
		if cur.ID == rec.ID {
			next := copyRecipient(rec)
			next.Position = cur.Position
			next.UpdatedAt = time.Now()
			updated := append([]*models.CampaignRecipient(nil), list...)
			updated[i] = next
			r.db.data.recipients[rec.CampaignID] = updated
			return nil
		}
	}
	return store.ErrNotFound
}

func (r *campaignRepo) AdvanceRecipientStatus(ctx context.Context, recipientID, status, errorMessage string, from []string) (bool, error) {
	defer r.db.lockWrite(r.tx)()
	for campaignID, list := range r.db.data.recipients {
		for i, cur := range list {
			if cur.ID != recipientID {
				continue
			}
			if !slices.Contains(from, cur.Status) {
				return false, nil
			}
			next := copyRecipient(cur)
			next.Status = status
			if errorMessage != "" {
				next.ErrorMessage = errorMessage
			}
			next.UpdatedAt = time.Now()
			updated := append([]*models.CampaignRecipient(nil), list...)
			updated[i] = next
			r.db.data.recipients[campaignID] = updated
			return true, nil
		}
	}
	return false, nil
}

func (r *campaignRepo) GetRecipientByMessageID(ctx context.Context, providerMessageID string) (*models.CampaignRecipient, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if strings.TrimSpace(providerMessageID) == "" {
		return nil, store.ErrNotFound
	}
	for _, list := range r.db.data.recipients {
		for _, rec := range list {
			if rec.ProviderMessageID == providerMessageID {
				return copyRecipient(rec), nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (r *campaignRepo) CountByStatus(ctx context.Context, campaignID string) (map[string]int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	counts := make(map[string]int)
	for _, rec := range r.db.data.recipients[campaignID] {
		counts[rec.Status]++
	}
	return counts, nil
}

// ---------------------------------------------------------------------------
// Message logs
// ---------------------------------------------------------------------------

type messageLogRepo struct {
	db *db
	tx bool
}

func (r *messageLogRepo) Create(ctx context.Context, log *models.MessageLog) error {
	defer r.db.lockWrite(r.tx)()
	log.CreatedAt = time.Now()
	c := *log
	r.db.data.logs = append(r.db.data.logs, &c)
	return nil
}

func (r *messageLogRepo) ListByCustomer(ctx context.Context, orgID, customerID string, limit int) ([]*models.MessageLog, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []*models.MessageLog
	for i := len(r.db.data.logs) - 1; i >= 0; i-- {
		l := r.db.data.logs[i]
		if l.OrgID == orgID && l.CustomerID != nil && *l.CustomerID == customerID {
			c := *l
			out = append(out, &c)
		}
	}
	return page(out, limit, 0), nil
}

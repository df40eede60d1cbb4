// Package memory is an in-memory implementation of store.Store.
// Transactions are serialized and roll back by restoring a snapshot taken at begin.
// Writes outside a transaction wait for the open one to finish, so a rollback never
// discards them. Reads are not isolated from an open transaction.
package memory

import (
	"context"
	"sync"

	"travel-backend/internal/models"
	"travel-backend/internal/store"
)

type state struct {
	accounts   map[models.AccountRef]*models.Account
	entries    map[string]*models.LedgerEntry
	transfers  map[string]*models.Transfer
	customers  map[string]*models.Customer
	campaigns  map[string]*models.Campaign
	recipients map[string][]*models.CampaignRecipient // by campaign id, ordered by position
	logs       []*models.MessageLog
}

func newState() *state {
	return &state{
		accounts:   make(map[models.AccountRef]*models.Account),
		entries:    make(map[string]*models.LedgerEntry),
		transfers:  make(map[string]*models.Transfer),
		customers:  make(map[string]*models.Customer),
		campaigns:  make(map[string]*models.Campaign),
		recipients: make(map[string][]*models.CampaignRecipient),
	}
}

// clone copies the maps; the values are treated as immutable (every write stores a fresh copy)
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for k, v := range s.transfers {
		c.transfers[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.campaigns {
		c.campaigns[k] = v
	}
	for k, v := range s.recipients {
		c.recipients[k] = append([]*models.CampaignRecipient(nil), v...)
	}
	c.logs = append([]*models.MessageLog(nil), s.logs...)
	return c
}

type db struct {
	mu   sync.RWMutex
	data *state
	txMu sync.Mutex
}

// lockWrite takes the data lock for a write and returns its release. Outside a
// transaction it also holds txMu so the write cannot land inside another
// transaction's snapshot window.
func (d *db) lockWrite(inTx bool) func() {
	if !inTx {
		d.txMu.Lock()
	}
	d.mu.Lock()
	return func() {
		d.mu.Unlock()
		if !inTx {
			d.txMu.Unlock()
		}
	}
}

// Store implements store.Store
type Store struct {
	db   *db
	inTx bool
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{db: &db{data: newState()}}
}

func (s *Store) Accounts() store.AccountRepository   { return &accountRepo{db: s.db, tx: s.inTx} }
func (s *Store) Ledger() store.LedgerRepository      { return &ledgerRepo{db: s.db, tx: s.inTx} }
func (s *Store) Transfers() store.TransferRepository { return &transferRepo{db: s.db, tx: s.inTx} }
func (s *Store) Customers() store.CustomerRepository { return &customerRepo{db: s.db, tx: s.inTx} }
func (s *Store) Campaigns() store.CampaignRepository { return &campaignRepo{db: s.db, tx: s.inTx} }
func (s *Store) MessageLogs() store.MessageLogRepository {
	return &messageLogRepo{db: s.db, tx: s.inTx}
}

// InTx serializes transactions; on error the state is restored to what it was at begin
func (s *Store) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.db.txMu.Lock()
	defer s.db.txMu.Unlock()

	s.db.mu.RLock()
	snapshot := s.db.data.clone()
	s.db.mu.RUnlock()

	err := fn(&Store{db: s.db, inTx: true})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.db.mu.Lock()
		s.db.data = snapshot
		s.db.mu.Unlock()
	}
	return err
}

// Compile-time check
var _ store.Store = (*Store)(nil)

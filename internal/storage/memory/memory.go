// Package memory provides a simple in-memory implementation used for development and tests.
// A unit of work holds the store's write lock for its whole duration and stages its
// writes, so concurrent movements serialize and a failed unit leaves no trace.
package memory

import (
    "context"
    "sort"
    "sync"

    "github.com/tinoosan/banking/internal/errs"
    "github.com/tinoosan/banking/internal/ledger"
    "github.com/tinoosan/banking/internal/service/account"
)

// Store is an in-memory implementation of the account repository and writer.
// It is guarded by an RWMutex for concurrent reads/writes.
type Store struct {
    mu       sync.RWMutex
    accounts map[int64]ledger.Account
    // Per-account transactions in append order.
    txns   map[int64][]ledger.Transaction
    lastID struct{ account, txn int64 }
}

// New constructs an empty in-memory store.
func New() *Store {
    return &Store{
        accounts: make(map[int64]ledger.Account),
        txns:     make(map[int64][]ledger.Transaction),
    }
}

// GetAccount implements account.Repo.
func (s *Store) GetAccount(_ context.Context, id int64) (ledger.Account, error) {
    s.mu.RLock(); defer s.mu.RUnlock()
    a, ok := s.accounts[id]
    if !ok { return ledger.Account{}, errs.ErrNotFound }
    return a, nil
}

// ListAccounts returns every account ordered by id.
func (s *Store) ListAccounts(_ context.Context) ([]ledger.Account, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    out := make([]ledger.Account, 0, len(s.accounts))
    for _, a := range s.accounts {
        out = append(out, a)
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
    return out, nil
}

// ListTransactions returns the account's transactions, newest first.
func (s *Store) ListTransactions(_ context.Context, accountID int64) ([]ledger.Transaction, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    src := s.txns[accountID]
    out := make([]ledger.Transaction, len(src))
    copy(out, src)
    sort.Slice(out, func(i, j int) bool {
        if !out[i].Timestamp.Equal(out[j].Timestamp) { return out[i].Timestamp.After(out[j].Timestamp) }
        return out[i].ID > out[j].ID
    })
    return out, nil
}

// CreateAccount persists a new account under the next id.
func (s *Store) CreateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.lastID.account++
    a.ID = s.lastID.account
    s.accounts[a.ID] = a
    return a, nil
}

// DeleteAccount removes the account; its transactions stay behind.
func (s *Store) DeleteAccount(_ context.Context, id int64) error {
    s.mu.Lock(); defer s.mu.Unlock()
    if _, ok := s.accounts[id]; !ok { return errs.ErrNotFound }
    delete(s.accounts, id)
    return nil
}

// WithinTx implements account.Writer.
func (s *Store) WithinTx(ctx context.Context, fn func(context.Context, account.Tx) error) error {
    if err := ctx.Err(); err != nil { return err }
    s.mu.Lock()
    defer s.mu.Unlock()
    u := &unit{store: s, staged: make(map[int64]ledger.Account)}
    if err := fn(ctx, u); err != nil { return err }
    for id, a := range u.staged {
        s.accounts[id] = a
    }
    for _, t := range u.appended {
        s.txns[t.AccountID] = append(s.txns[t.AccountID], t)
    }
    return nil
}

// unit stages writes made inside WithinTx. The store lock is already held.
type unit struct {
    store    *Store
    staged   map[int64]ledger.Account
    appended []ledger.Transaction
}

func (u *unit) LockAccount(_ context.Context, id int64) (ledger.Account, error) {
    if a, ok := u.staged[id]; ok { return a, nil }
    a, ok := u.store.accounts[id]
    if !ok { return ledger.Account{}, errs.ErrNotFound }
    return a, nil
}

func (u *unit) UpdateAccount(_ context.Context, a ledger.Account) error {
    if _, ok := u.store.accounts[a.ID]; !ok { return errs.ErrNotFound }
    u.staged[a.ID] = a
    return nil
}

// AppendTransaction assigns the next id; ids consumed by a discarded unit are not reused.
func (u *unit) AppendTransaction(_ context.Context, t ledger.Transaction) (ledger.Transaction, error) {
    u.store.lastID.txn++
    t.ID = u.store.lastID.txn
    u.appended = append(u.appended, t)
    return t, nil
}

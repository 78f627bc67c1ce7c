// Package postgres provides a pgx-backed storage implementation that satisfies
// the repository and writer interfaces used by the account service.
//
// Units of work are pgx transactions; LockAccount takes a row lock with
// SELECT ... FOR UPDATE so concurrent movements on one account serialize.
package postgres

import (
    "context"
    _ "embed"
    "errors"
    "fmt"
    "strings"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"

    "github.com/tinoosan/banking/internal/errs"
    "github.com/tinoosan/banking/internal/ledger"
    "github.com/tinoosan/banking/internal/service/account"
)

//go:embed schema.sql
var schemaSQL string

// Store holds a pgx connection pool and implements the read/write interfaces
// used across the service layer. All methods are safe for concurrent use.
type Store struct {
    pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
    cfg, err := pgxpool.ParseConfig(dsn)
    if err != nil { return nil, err }
    pool, err := pgxpool.NewWithConfig(ctx, cfg)
    if err != nil { return nil, err }
    // Verify connection
    if err := pool.Ping(ctx); err != nil { pool.Close(); return nil, err }
    return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() { if s.pool != nil { s.pool.Close() } }

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
    if _, err := s.pool.Exec(ctx, schemaSQL); err != nil { return fmt.Errorf("apply schema: %w", err) }
    return nil
}

const accountColumns = `id, holder_name, currency, balance_minor`

const transactionColumns = `id, reference, account_id, counterparty_id, amount_minor, currency, transaction_type, created_at`

func scanAccount(row pgx.Row) (ledger.Account, error) {
    var a ledger.Account
    var curr string
    var minor int64
    if err := row.Scan(&a.ID, &a.HolderName, &curr, &minor); err != nil {
        if errors.Is(err, pgx.ErrNoRows) { return ledger.Account{}, errs.ErrNotFound }
        return ledger.Account{}, err
    }
    bal, err := ledger.FromMinor(strings.TrimSpace(curr), minor)
    if err != nil { return ledger.Account{}, fmt.Errorf("account %d balance: %w", a.ID, err) }
    a.Balance = bal
    return a, nil
}

func scanTransaction(row pgx.Row) (ledger.Transaction, error) {
    var t ledger.Transaction
    var counterparty *int64
    var minor int64
    var curr, typ string
    if err := row.Scan(&t.ID, &t.Reference, &t.AccountID, &counterparty, &minor, &curr, &typ, &t.Timestamp); err != nil {
        return ledger.Transaction{}, err
    }
    if counterparty != nil { t.CounterpartyID = *counterparty }
    amt, err := ledger.FromMinor(strings.TrimSpace(curr), minor)
    if err != nil { return ledger.Transaction{}, fmt.Errorf("transaction %d amount: %w", t.ID, err) }
    t.Amount = amt
    if t.Type, err = ledger.ParseTransactionType(typ); err != nil { return ledger.Transaction{}, err }
    t.Timestamp = t.Timestamp.UTC()
    return t, nil
}

// --- Account reads ---

// GetAccount fetches a single account by id.
func (s *Store) GetAccount(ctx context.Context, id int64) (ledger.Account, error) {
    return scanAccount(s.pool.QueryRow(ctx, `select `+accountColumns+` from accounts where id = $1`, id))
}

// ListAccounts returns all accounts ordered by id.
func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
    rows, err := s.pool.Query(ctx, `select `+accountColumns+` from accounts order by id`)
    if err != nil { return nil, err }
    defer rows.Close()
    out := make([]ledger.Account, 0)
    for rows.Next() {
        a, err := scanAccount(rows)
        if err != nil { return nil, err }
        out = append(out, a)
    }
    return out, rows.Err()
}

// ListTransactions returns the account's transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, accountID int64) ([]ledger.Transaction, error) {
    rows, err := s.pool.Query(ctx, `
        select `+transactionColumns+`
        from transactions
        where account_id = $1
        order by created_at desc, id desc
    `, accountID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := make([]ledger.Transaction, 0)
    for rows.Next() {
        t, err := scanTransaction(rows)
        if err != nil { return nil, err }
        out = append(out, t)
    }
    return out, rows.Err()
}

// --- Writes ---

// CreateAccount inserts the account and returns it with its generated id.
func (s *Store) CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
    err := s.pool.QueryRow(ctx, `
        insert into accounts (holder_name, currency, balance_minor)
        values ($1, $2, $3)
        returning id
    `, a.HolderName, a.Balance.Curr().Code(), ledger.Minor(a.Balance)).Scan(&a.ID)
    if err != nil { return ledger.Account{}, fmt.Errorf("insert account: %w", err) }
    return a, nil
}

// DeleteAccount removes the account row. Transactions are left in place.
func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
    ct, err := s.pool.Exec(ctx, `delete from accounts where id = $1`, id)
    if err != nil { return err }
    if ct.RowsAffected() == 0 { return errs.ErrNotFound }
    return nil
}

// WithinTx runs fn inside a pgx transaction, committing only if fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(context.Context, account.Tx) error) error {
    tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
    if err != nil { return fmt.Errorf("begin: %w", err) }
    defer func() { _ = tx.Rollback(ctx) }()
    if err := fn(ctx, &unit{tx: tx}); err != nil { return err }
    if err := tx.Commit(ctx); err != nil { return fmt.Errorf("commit: %w", err) }
    return nil
}

type unit struct {
    tx pgx.Tx
}

func (u *unit) LockAccount(ctx context.Context, id int64) (ledger.Account, error) {
    return scanAccount(u.tx.QueryRow(ctx, `select `+accountColumns+` from accounts where id = $1 for update`, id))
}

func (u *unit) UpdateAccount(ctx context.Context, a ledger.Account) error {
    ct, err := u.tx.Exec(ctx, `update accounts set balance_minor = $2 where id = $1`, a.ID, ledger.Minor(a.Balance))
    if err != nil { return err }
    if ct.RowsAffected() == 0 { return errs.ErrNotFound }
    return nil
}

func (u *unit) AppendTransaction(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error) {
    var counterparty *int64
    if t.CounterpartyID != 0 { counterparty = &t.CounterpartyID }
    err := u.tx.QueryRow(ctx, `
        insert into transactions (reference, account_id, counterparty_id, amount_minor, currency, transaction_type, created_at)
        values ($1, $2, $3, $4, $5, $6, $7)
        returning id
    `, t.Reference, t.AccountID, counterparty, ledger.Minor(t.Amount), t.Amount.Curr().Code(), string(t.Type), t.Timestamp).Scan(&t.ID)
    if err != nil { return ledger.Transaction{}, fmt.Errorf("insert transaction: %w", err) }
    return t, nil
}

var (
    _ account.Repo   = (*Store)(nil)
    _ account.Writer = (*Store)(nil)
    _ account.Tx     = (*unit)(nil)
)

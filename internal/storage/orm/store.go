// Package orm is a GORM-backed ledger store that runs on MySQL or Postgres.
// Row locks inside a unit of work use SELECT ... FOR UPDATE via clause.Locking.
package orm

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/google/uuid"
    "gorm.io/driver/mysql"
    "gorm.io/driver/postgres"
    "gorm.io/gorm"
    "gorm.io/gorm/clause"
    "gorm.io/gorm/logger"

    "github.com/tinoosan/banking/internal/errs"
    "github.com/tinoosan/banking/internal/ledger"
    "github.com/tinoosan/banking/internal/service/account"
)

type accountRow struct {
    ID           int64  `gorm:"primaryKey;autoIncrement"`
    HolderName   string `gorm:"size:255;not null"`
    Currency     string `gorm:"size:3;not null"`
    BalanceMinor int64  `gorm:"not null"`
}

func (accountRow) TableName() string { return "accounts" }

// transactionRow carries no foreign key to accounts; rows outlive their account.
// CreatedAt keeps microseconds so mysql datetime round-trips the service clock.
type transactionRow struct {
    ID              int64     `gorm:"primaryKey;autoIncrement"`
    Reference       string    `gorm:"size:36;not null;uniqueIndex"`
    AccountID       int64     `gorm:"not null;index:idx_transactions_account_created,priority:1"`
    CounterpartyID  *int64
    AmountMinor     int64     `gorm:"not null"`
    Currency        string    `gorm:"size:3;not null"`
    TransactionType string    `gorm:"size:16;not null"`
    CreatedAt       time.Time `gorm:"precision:6;not null;index:idx_transactions_account_created,priority:2"`
}

func (transactionRow) TableName() string { return "transactions" }

// Config selects the SQL dialect and connection.
type Config struct {
    Dialect  string // postgres or mysql
    DSN      string
    LogLevel string // silent, error, warn, info
}

// Store implements the account service's repo and writer on top of *gorm.DB.
type Store struct {
    db *gorm.DB
}

// Open connects using the configured dialect.
func Open(cfg Config) (*Store, error) {
    var dialector gorm.Dialector
    switch strings.ToLower(cfg.Dialect) {
    case "", "postgres", "postgresql":
        dialector = postgres.Open(cfg.DSN)
    case "mysql":
        dialector = mysql.Open(cfg.DSN)
    default:
        return nil, fmt.Errorf("unsupported orm dialect %q", cfg.Dialect)
    }
    db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(parseLogLevel(cfg.LogLevel))})
    if err != nil { return nil, fmt.Errorf("open %s: %w", cfg.Dialect, err) }
    return New(db), nil
}

// New wraps an existing GORM handle.
func New(db *gorm.DB) *Store { return &Store{db: db} }

func parseLogLevel(s string) logger.LogLevel {
    switch strings.ToLower(s) {
    case "info":
        return logger.Info
    case "warn", "warning":
        return logger.Warn
    case "error":
        return logger.Error
    default:
        return logger.Silent
    }
}

// Migrate creates or updates the accounts and transactions tables.
func (s *Store) Migrate(ctx context.Context) error {
    return s.db.WithContext(ctx).AutoMigrate(&accountRow{}, &transactionRow{})
}

// Ready pings the underlying connection pool.
func (s *Store) Ready(ctx context.Context) error {
    sqlDB, err := s.db.DB()
    if err != nil { return err }
    return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
    sqlDB, err := s.db.DB()
    if err != nil { return err }
    return sqlDB.Close()
}

func toAccount(r accountRow) (ledger.Account, error) {
    bal, err := ledger.FromMinor(strings.TrimSpace(r.Currency), r.BalanceMinor)
    if err != nil { return ledger.Account{}, fmt.Errorf("account %d balance: %w", r.ID, err) }
    return ledger.Account{ID: r.ID, HolderName: r.HolderName, Balance: bal}, nil
}

func toTransaction(r transactionRow) (ledger.Transaction, error) {
    t := ledger.Transaction{ID: r.ID, AccountID: r.AccountID, Timestamp: r.CreatedAt.UTC()}
    var err error
    if t.Reference, err = uuid.Parse(r.Reference); err != nil { return ledger.Transaction{}, fmt.Errorf("transaction %d reference: %w", r.ID, err) }
    if r.CounterpartyID != nil { t.CounterpartyID = *r.CounterpartyID }
    if t.Amount, err = ledger.FromMinor(strings.TrimSpace(r.Currency), r.AmountMinor); err != nil { return ledger.Transaction{}, fmt.Errorf("transaction %d amount: %w", r.ID, err) }
    if t.Type, err = ledger.ParseTransactionType(r.TransactionType); err != nil { return ledger.Transaction{}, err }
    return t, nil
}

func notFound(err error) error {
    if errors.Is(err, gorm.ErrRecordNotFound) { return errs.ErrNotFound }
    return err
}

func (s *Store) GetAccount(ctx context.Context, id int64) (ledger.Account, error) {
    var row accountRow
    if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil { return ledger.Account{}, notFound(err) }
    return toAccount(row)
}

func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
    var rows []accountRow
    if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil { return nil, err }
    out := make([]ledger.Account, 0, len(rows))
    for _, r := range rows {
        a, err := toAccount(r)
        if err != nil { return nil, err }
        out = append(out, a)
    }
    return out, nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID int64) ([]ledger.Transaction, error) {
    var rows []transactionRow
    err := s.db.WithContext(ctx).
        Where("account_id = ?", accountID).
        Order("created_at desc").Order("id desc").
        Find(&rows).Error
    if err != nil { return nil, err }
    out := make([]ledger.Transaction, 0, len(rows))
    for _, r := range rows {
        t, err := toTransaction(r)
        if err != nil { return nil, err }
        out = append(out, t)
    }
    return out, nil
}

func (s *Store) CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
    row := accountRow{HolderName: a.HolderName, Currency: a.Balance.Curr().Code(), BalanceMinor: ledger.Minor(a.Balance)}
    if err := s.db.WithContext(ctx).Create(&row).Error; err != nil { return ledger.Account{}, fmt.Errorf("insert account: %w", err) }
    a.ID = row.ID
    return a, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
    res := s.db.WithContext(ctx).Delete(&accountRow{}, id)
    if res.Error != nil { return res.Error }
    if res.RowsAffected == 0 { return errs.ErrNotFound }
    return nil
}

// WithinTx runs fn inside db.Transaction; any error rolls the unit back.
func (s *Store) WithinTx(ctx context.Context, fn func(context.Context, account.Tx) error) error {
    return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
        return fn(ctx, &unit{db: tx})
    })
}

type unit struct {
    db *gorm.DB
}

func (u *unit) LockAccount(ctx context.Context, id int64) (ledger.Account, error) {
    var row accountRow
    err := u.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, id).Error
    if err != nil { return ledger.Account{}, notFound(err) }
    return toAccount(row)
}

func (u *unit) UpdateAccount(ctx context.Context, a ledger.Account) error {
    res := u.db.WithContext(ctx).Model(&accountRow{}).Where("id = ?", a.ID).Update("balance_minor", ledger.Minor(a.Balance))
    if res.Error != nil { return res.Error }
    if res.RowsAffected == 0 { return errs.ErrNotFound }
    return nil
}

func (u *unit) AppendTransaction(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error) {
    row := transactionRow{
        Reference:       t.Reference.String(),
        AccountID:       t.AccountID,
        AmountMinor:     ledger.Minor(t.Amount),
        Currency:        t.Amount.Curr().Code(),
        TransactionType: string(t.Type),
        CreatedAt:       t.Timestamp,
    }
    if t.CounterpartyID != 0 { cp := t.CounterpartyID; row.CounterpartyID = &cp }
    if err := u.db.WithContext(ctx).Create(&row).Error; err != nil { return ledger.Transaction{}, fmt.Errorf("insert transaction: %w", err) }
    t.ID = row.ID
    return t, nil
}

var (
    _ account.Repo   = (*Store)(nil)
    _ account.Writer = (*Store)(nil)
    _ account.Tx     = (*unit)(nil)
)

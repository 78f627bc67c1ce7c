// Package account implements the banking rules: opening accounts, deposits,
// withdrawals, transfers and the per-account transaction history.
//
// Every money movement runs inside a single store unit of work so the balance
// change and its transaction record commit together or not at all.
package account

import (
    "context"
    "fmt"
    "io"
    "log/slog"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"
    "github.com/tinoosan/banking/internal/errs"
    "github.com/tinoosan/banking/internal/ledger"
)

type Repo interface {
    GetAccount(ctx context.Context, id int64) (ledger.Account, error)
    ListAccounts(ctx context.Context) ([]ledger.Account, error)
    // ListTransactions returns the account's transactions newest first.
    ListTransactions(ctx context.Context, accountID int64) ([]ledger.Transaction, error)
}

type Writer interface {
    CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
    DeleteAccount(ctx context.Context, id int64) error
    // WithinTx runs fn as one atomic unit. If fn returns an error nothing it
    // did is kept and the error is returned unchanged.
    WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the view of the store inside a unit of work.
type Tx interface {
    // LockAccount reads the account and holds it exclusively until the unit ends.
    LockAccount(ctx context.Context, id int64) (ledger.Account, error)
    UpdateAccount(ctx context.Context, a ledger.Account) error
    AppendTransaction(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error)
}

// Publisher is notified of each committed transaction.
type Publisher interface {
    Publish(ctx context.Context, t ledger.Transaction) error
}

type Service interface {
    Currency() money.Currency
    CreateAccount(ctx context.Context, holderName string, initial money.Amount) (ledger.Account, error)
    GetAccount(ctx context.Context, id int64) (ledger.Account, error)
    ListAccounts(ctx context.Context) ([]ledger.Account, error)
    DeleteAccount(ctx context.Context, id int64) error
    Deposit(ctx context.Context, id int64, amount money.Amount) (ledger.Account, error)
    Withdraw(ctx context.Context, id int64, amount money.Amount) (ledger.Account, error)
    Transfer(ctx context.Context, fromID, toID int64, amount money.Amount) (ledger.Transfer, error)
    AccountTransactions(ctx context.Context, accountID int64) ([]ledger.Transaction, error)
}

type service struct {
    repo      Repo
    writer    Writer
    curr      money.Currency
    now       func() time.Time
    publisher Publisher
    log       *slog.Logger
}

// Option customizes the service.
type Option func(*service)

// WithCurrency sets the currency every balance is held in (default USD).
func WithCurrency(c money.Currency) Option { return func(s *service) { s.curr = c } }

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option { return func(s *service) { s.now = now } }

func WithPublisher(p Publisher) Option { return func(s *service) { s.publisher = p } }

func WithLogger(l *slog.Logger) Option { return func(s *service) { s.log = l } }

func New(repo Repo, writer Writer, opts ...Option) Service {
    usd, _ := money.ParseCurr("USD")
    s := &service{
        repo:   repo,
        writer: writer,
        curr:   usd,
        now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
        log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
    }
    for _, opt := range opts { opt(s) }
    return s
}

func (s *service) Currency() money.Currency { return s.curr }

// CreateAccount opens an account with the given opening balance. The opening
// balance may be zero but not negative, and is not recorded as a transaction.
func (s *service) CreateAccount(ctx context.Context, holderName string, initial money.Amount) (ledger.Account, error) {
    holderName = strings.TrimSpace(holderName)
    if holderName == "" { return ledger.Account{}, fmt.Errorf("%w: holder name is required", errs.ErrInvalid) }
    bal, err := ledger.Normalize(s.curr, initial)
    if err != nil { return ledger.Account{}, err }
    if bal.IsNeg() { return ledger.Account{}, fmt.Errorf("%w: opening balance must not be negative", errs.ErrInvalidAmount) }
    return s.writer.CreateAccount(ctx, ledger.Account{HolderName: holderName, Balance: bal})
}

func (s *service) GetAccount(ctx context.Context, id int64) (ledger.Account, error) {
    return s.repo.GetAccount(ctx, id)
}

func (s *service) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
    return s.repo.ListAccounts(ctx)
}

// DeleteAccount removes the account. Its transactions are kept.
func (s *service) DeleteAccount(ctx context.Context, id int64) error {
    return s.writer.DeleteAccount(ctx, id)
}

func (s *service) AccountTransactions(ctx context.Context, accountID int64) ([]ledger.Transaction, error) {
    return s.repo.ListTransactions(ctx, accountID)
}

func (s *service) Deposit(ctx context.Context, id int64, amount money.Amount) (ledger.Account, error) {
    amount, err := s.movementAmount(amount)
    if err != nil { return ledger.Account{}, err }
    var acc ledger.Account
    var rec ledger.Transaction
    err = s.writer.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
        var err error
        if acc, err = tx.LockAccount(ctx, id); err != nil { return err }
        if acc.Balance, err = s.credit(acc.Balance, amount); err != nil { return err }
        if err := tx.UpdateAccount(ctx, acc); err != nil { return err }
        rec, err = tx.AppendTransaction(ctx, s.newTransaction(ledger.TransactionTypeDeposit, id, 0, amount))
        return err
    })
    if err != nil { return ledger.Account{}, err }
    s.committed(ctx, rec)
    return acc, nil
}

func (s *service) Withdraw(ctx context.Context, id int64, amount money.Amount) (ledger.Account, error) {
    amount, err := s.movementAmount(amount)
    if err != nil { return ledger.Account{}, err }
    var acc ledger.Account
    var rec ledger.Transaction
    err = s.writer.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
        var err error
        if acc, err = tx.LockAccount(ctx, id); err != nil { return err }
        if acc.Balance, err = debit(acc.Balance, amount); err != nil { return err }
        if err := tx.UpdateAccount(ctx, acc); err != nil { return err }
        rec, err = tx.AppendTransaction(ctx, s.newTransaction(ledger.TransactionTypeWithdraw, id, 0, amount))
        return err
    })
    if err != nil { return ledger.Account{}, err }
    s.committed(ctx, rec)
    return acc, nil
}

// Transfer moves amount from one account to another and records a single
// TRANSFER transaction against the source. Both accounts are locked in
// ascending id order whatever the direction of the transfer.
func (s *service) Transfer(ctx context.Context, fromID, toID int64, amount money.Amount) (ledger.Transfer, error) {
    if fromID == toID { return ledger.Transfer{}, fmt.Errorf("%w: source and destination are the same account", errs.ErrInvalidTransfer) }
    amount, err := s.movementAmount(amount)
    if err != nil { return ledger.Transfer{}, err }
    var out ledger.Transfer
    err = s.writer.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
        order := lockOrder(fromID, toID)
        locked := make(map[int64]ledger.Account, 2)
        for _, id := range order {
            a, err := tx.LockAccount(ctx, id)
            if err != nil { return err }
            locked[id] = a
        }
        from, to := locked[fromID], locked[toID]
        var err error
        if from.Balance, err = debit(from.Balance, amount); err != nil { return err }
        if to.Balance, err = s.credit(to.Balance, amount); err != nil { return err }
        locked[fromID], locked[toID] = from, to
        for _, id := range order {
            if err := tx.UpdateAccount(ctx, locked[id]); err != nil { return err }
        }
        rec, err := tx.AppendTransaction(ctx, s.newTransaction(ledger.TransactionTypeTransfer, fromID, toID, amount))
        if err != nil { return err }
        out = ledger.Transfer{From: from, To: to, Transaction: rec}
        return nil
    })
    if err != nil { return ledger.Transfer{}, err }
    s.committed(ctx, out.Transaction)
    return out, nil
}

// lockOrder returns the ids in ascending order.
func lockOrder(a, b int64) [2]int64 {
    if b < a { return [2]int64{b, a} }
    return [2]int64{a, b}
}

// movementAmount validates the amount of a deposit, withdrawal or transfer.
func (s *service) movementAmount(a money.Amount) (money.Amount, error) {
    a, err := ledger.Normalize(s.curr, a)
    if err != nil { return money.Amount{}, err }
    if !a.IsPos() { return money.Amount{}, fmt.Errorf("%w: amount must be greater than zero", errs.ErrInvalidAmount) }
    return a, nil
}

// credit adds amount to balance. The sum must still fit in int64 minor units,
// which is what the durable stores persist.
func (s *service) credit(balance, amount money.Amount) (money.Amount, error) {
    out, err := balance.Add(amount)
    if err != nil { return money.Amount{}, fmt.Errorf("%w: %v", errs.ErrInvalidAmount, err) }
    return ledger.Normalize(s.curr, out)
}

func debit(balance, amount money.Amount) (money.Amount, error) {
    c, err := balance.Cmp(amount)
    if err != nil { return money.Amount{}, fmt.Errorf("%w: %v", errs.ErrInvalidAmount, err) }
    if c < 0 { return money.Amount{}, errs.ErrInsufficientFunds }
    out, err := balance.Sub(amount)
    if err != nil { return money.Amount{}, fmt.Errorf("%w: %v", errs.ErrInvalidAmount, err) }
    return out, nil
}

func (s *service) newTransaction(typ ledger.TransactionType, accountID, counterpartyID int64, amount money.Amount) ledger.Transaction {
    return ledger.Transaction{
        Reference:      uuid.New(),
        AccountID:      accountID,
        CounterpartyID: counterpartyID,
        Amount:         amount,
        Type:           typ,
        Timestamp:      s.now(),
    }
}

// committed logs the movement and hands it to the publisher. Publish failures
// never affect the already committed operation.
func (s *service) committed(ctx context.Context, t ledger.Transaction) {
    s.log.Debug("transaction committed",
        "transaction_id", t.ID,
        "reference", t.Reference.String(),
        "type", string(t.Type),
        "account_id", t.AccountID,
        "amount", ledger.FormatAmount(t.Amount),
    )
    if s.publisher == nil { return }
    if err := s.publisher.Publish(context.WithoutCancel(ctx), t); err != nil {
        s.log.Warn("publish transaction failed", "reference", t.Reference.String(), "err", err)
    }
}

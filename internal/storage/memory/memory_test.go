package memory

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/google/uuid"
    "github.com/tinoosan/banking/internal/errs"
    "github.com/tinoosan/banking/internal/ledger"
    "github.com/tinoosan/banking/internal/service/account"
)

func usd(t *testing.T, minor int64) ledger.Account {
    t.Helper()
    bal, err := ledger.FromMinor("USD", minor)
    if err != nil { t.Fatalf("amount: %v", err) }
    return ledger.Account{HolderName: "Alice", Balance: bal}
}

func seedAccount(t *testing.T, s *Store, a ledger.Account) ledger.Account {
    t.Helper()
    a, err := s.CreateAccount(context.Background(), a)
    if err != nil { t.Fatalf("create account: %v", err) }
    return a
}

func TestWithinTx_DiscardsWritesOnError(t *testing.T) {
    ctx := context.Background()
    s := New()
    acc := seedAccount(t, s, usd(t, 1000))
    boom := errors.New("boom")

    err := s.WithinTx(ctx, func(ctx context.Context, tx account.Tx) error {
        a, err := tx.LockAccount(ctx, acc.ID)
        if err != nil { return err }
        a.Balance, _ = ledger.FromMinor("USD", 0)
        if err := tx.UpdateAccount(ctx, a); err != nil { return err }
        if _, err := tx.AppendTransaction(ctx, ledger.Transaction{AccountID: a.ID, Type: ledger.TransactionTypeWithdraw, Amount: acc.Balance}); err != nil { return err }
        return boom
    })
    if !errors.Is(err, boom) {
        t.Fatalf("expected boom, got %v", err)
    }
    got, err := s.GetAccount(ctx, acc.ID)
    if err != nil { t.Fatalf("get: %v", err) }
    if ledger.Minor(got.Balance) != 1000 {
        t.Fatalf("balance changed after rollback: %d", ledger.Minor(got.Balance))
    }
    txns, _ := s.ListTransactions(ctx, acc.ID)
    if len(txns) != 0 {
        t.Fatalf("expected no transactions after rollback, got %d", len(txns))
    }
}

func TestWithinTx_LockSeesStagedWrites(t *testing.T) {
    ctx := context.Background()
    s := New()
    acc := seedAccount(t, s, usd(t, 500))
    err := s.WithinTx(ctx, func(ctx context.Context, tx account.Tx) error {
        a, _ := tx.LockAccount(ctx, acc.ID)
        a.Balance, _ = ledger.FromMinor("USD", 700)
        if err := tx.UpdateAccount(ctx, a); err != nil { return err }
        again, err := tx.LockAccount(ctx, acc.ID)
        if err != nil { return err }
        if ledger.Minor(again.Balance) != 700 {
            t.Errorf("expected staged balance 700, got %d", ledger.Minor(again.Balance))
        }
        return nil
    })
    if err != nil { t.Fatalf("within tx: %v", err) }
}

func TestLockAccount_Missing(t *testing.T) {
    s := New()
    err := s.WithinTx(context.Background(), func(ctx context.Context, tx account.Tx) error {
        _, err := tx.LockAccount(ctx, 42)
        return err
    })
    if !errors.Is(err, errs.ErrNotFound) {
        t.Fatalf("expected not found, got %v", err)
    }
}

func TestCreateListDelete(t *testing.T) {
    ctx := context.Background()
    s := New()
    a, _ := s.CreateAccount(ctx, usd(t, 100))
    b, _ := s.CreateAccount(ctx, usd(t, 200))
    if a.ID != 1 || b.ID != 2 {
        t.Fatalf("expected ids 1 and 2, got %d and %d", a.ID, b.ID)
    }
    list, _ := s.ListAccounts(ctx)
    if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
        t.Fatalf("unexpected list: %+v", list)
    }
    if err := s.DeleteAccount(ctx, a.ID); err != nil { t.Fatalf("delete: %v", err) }
    if err := s.DeleteAccount(ctx, a.ID); !errors.Is(err, errs.ErrNotFound) {
        t.Fatalf("expected not found on second delete, got %v", err)
    }
    c, _ := s.CreateAccount(ctx, usd(t, 0))
    if c.ID != 3 {
        t.Fatalf("ids must not be reused, got %d", c.ID)
    }
}

func TestListTransactions_NewestFirstAndKeptAfterDelete(t *testing.T) {
    ctx := context.Background()
    s := New()
    acc := seedAccount(t, s, usd(t, 0))
    base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
    stamps := []time.Time{base, base.Add(time.Second), base.Add(time.Second)}
    for _, ts := range stamps {
        err := s.WithinTx(ctx, func(ctx context.Context, tx account.Tx) error {
            _, err := tx.AppendTransaction(ctx, ledger.Transaction{Reference: uuid.New(), AccountID: acc.ID, Type: ledger.TransactionTypeDeposit, Amount: acc.Balance, Timestamp: ts})
            return err
        })
        if err != nil { t.Fatalf("append: %v", err) }
    }
    if err := s.DeleteAccount(ctx, acc.ID); err != nil { t.Fatalf("delete: %v", err) }
    txns, _ := s.ListTransactions(ctx, acc.ID)
    if len(txns) != 3 {
        t.Fatalf("expected 3 orphaned transactions, got %d", len(txns))
    }
    if txns[0].ID != 3 || txns[1].ID != 2 || txns[2].ID != 1 {
        t.Fatalf("unexpected order: %d %d %d", txns[0].ID, txns[1].ID, txns[2].ID)
    }
}

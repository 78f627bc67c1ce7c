package ledger

import (
    "fmt"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/govalues/money"
)

// TransactionType classifies a recorded money movement.
type TransactionType string

const (
    // TransactionTypeDeposit credits an account from outside the bank.
    TransactionTypeDeposit TransactionType = "DEPOSIT"
    // TransactionTypeWithdraw debits an account to outside the bank.
    TransactionTypeWithdraw TransactionType = "WITHDRAW"
    // TransactionTypeTransfer moves funds between two accounts.
    TransactionTypeTransfer TransactionType = "TRANSFER"
)

// ParseTransactionType accepts the stored or wire form of a type, case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
    switch t := TransactionType(strings.ToUpper(strings.TrimSpace(s))); t {
    case TransactionTypeDeposit, TransactionTypeWithdraw, TransactionTypeTransfer:
        return t, nil
    default:
        return "", fmt.Errorf("unknown transaction type %q", s)
    }
}

// Account is a customer account holding a single-currency balance.
type Account struct {
    ID         int64
    HolderName string
    Balance    money.Amount
}

// Transaction is an immutable record of a movement against an account.
// AccountID is a weak reference: the account may have been deleted since.
type Transaction struct {
    ID        int64
    Reference uuid.UUID
    AccountID int64
    // CounterpartyID is the credited account of a transfer, zero otherwise.
    CounterpartyID int64
    Amount         money.Amount
    Type           TransactionType
    Timestamp      time.Time
}

// Transfer is the outcome of a committed transfer.
type Transfer struct {
    From        Account
    To          Account
    Transaction Transaction
}

package v1

import (
    "bytes"
    "encoding/json"
    "fmt"
    "strings"
    "time"

    "github.com/tinoosan/banking/internal/ledger"
)

// amountInput accepts either a JSON number (150.5) or a decimal string ("150.50").
// Numbers are kept as their literal text so no float rounding happens.
type amountInput string

func (a *amountInput) UnmarshalJSON(b []byte) error {
    b = bytes.TrimSpace(b)
    if bytes.Equal(b, []byte("null")) { *a = ""; return nil }
    if len(b) > 0 && b[0] == '"' {
        var s string
        if err := json.Unmarshal(b, &s); err != nil { return err }
        *a = amountInput(strings.TrimSpace(s))
        return nil
    }
    var n json.Number
    if err := json.Unmarshal(b, &n); err != nil { return fmt.Errorf("amount must be a number or decimal string") }
    *a = amountInput(n.String())
    return nil
}

type postAccountRequest struct {
    HolderName string      `json:"account_holder_name" validate:"required,max=255"`
    Balance    amountInput `json:"balance"`
}

type movementRequest struct {
    Amount amountInput `json:"amount" validate:"required"`
}

type transferRequest struct {
    FromAccountID int64       `json:"from_account_id" validate:"required,gt=0"`
    ToAccountID   int64       `json:"to_account_id" validate:"required,gt=0"`
    Amount        amountInput `json:"amount" validate:"required"`
}

type accountResponse struct {
    ID           int64  `json:"id"`
    HolderName   string `json:"account_holder_name"`
    Balance      string `json:"balance"`
    BalanceMinor int64  `json:"balance_minor"`
    Currency     string `json:"currency"`
}

type transactionResponse struct {
    ID              int64     `json:"id"`
    Reference       string    `json:"reference"`
    AccountID       int64     `json:"account_id"`
    CounterpartyID  int64     `json:"counterparty_id,omitempty"`
    Amount          string    `json:"amount"`
    AmountMinor     int64     `json:"amount_minor"`
    TransactionType string    `json:"transaction_type"`
    Timestamp       time.Time `json:"timestamp"`
}

type transferResponse struct {
    From        accountResponse     `json:"from_account"`
    To          accountResponse     `json:"to_account"`
    Transaction transactionResponse `json:"transaction"`
}

func toAccountResponse(a ledger.Account) accountResponse {
    return accountResponse{
        ID:           a.ID,
        HolderName:   a.HolderName,
        Balance:      ledger.FormatAmount(a.Balance),
        BalanceMinor: ledger.Minor(a.Balance),
        Currency:     a.Balance.Curr().Code(),
    }
}

func toTransactionResponse(t ledger.Transaction) transactionResponse {
    return transactionResponse{
        ID:              t.ID,
        Reference:       t.Reference.String(),
        AccountID:       t.AccountID,
        CounterpartyID:  t.CounterpartyID,
        Amount:          ledger.FormatAmount(t.Amount),
        AmountMinor:     ledger.Minor(t.Amount),
        TransactionType: string(t.Type),
        Timestamp:       t.Timestamp,
    }
}

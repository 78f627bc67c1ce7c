package v1

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "io"
    "log/slog"
    "net/http"
    "net/http/httptest"
    "strconv"
    "strings"
    "testing"

    "github.com/tinoosan/banking/internal/service/account"
    "github.com/tinoosan/banking/internal/storage/memory"
)

func testLogger() *slog.Logger {
    return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type acctResp struct {
    ID           int64  `json:"id"`
    HolderName   string `json:"account_holder_name"`
    Balance      string `json:"balance"`
    BalanceMinor int64  `json:"balance_minor"`
    Currency     string `json:"currency"`
}

type txnResp struct {
    ID              int64  `json:"id"`
    Reference       string `json:"reference"`
    AccountID       int64  `json:"account_id"`
    CounterpartyID  int64  `json:"counterparty_id"`
    Amount          string `json:"amount"`
    AmountMinor     int64  `json:"amount_minor"`
    TransactionType string `json:"transaction_type"`
}

type transferResp struct {
    From        acctResp `json:"from_account"`
    To          acctResp `json:"to_account"`
    Transaction txnResp  `json:"transaction"`
}

type errResp struct {
    Error string `json:"error"`
    Code  string `json:"code"`
}

type readyFunc func(context.Context) error

func (f readyFunc) Ready(ctx context.Context) error { return f(ctx) }

func setup(t *testing.T, ready ...ReadyChecker) http.Handler {
    t.Helper()
    store := memory.New()
    svc := account.New(store, store, account.WithLogger(testLogger()))
    return New(svc, testLogger(), ready...).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
    t.Helper()
    var rdr io.Reader
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil { t.Fatalf("marshal: %v", err) }
        rdr = bytes.NewReader(b)
    }
    req := httptest.NewRequest(method, path, rdr)
    if body != nil { req.Header.Set("Content-Type", "application/json") }
    rec := httptest.NewRecorder()
    h.ServeHTTP(rec, req)
    return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
    t.Helper()
    var v T
    if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
        t.Fatalf("decode %q: %v", rec.Body.String(), err)
    }
    return v
}

func createAccount(t *testing.T, h http.Handler, name string, balance any) acctResp {
    t.Helper()
    rec := do(t, h, http.MethodPost, "/v1/accounts", map[string]any{"account_holder_name": name, "balance": balance})
    if rec.Code != http.StatusCreated {
        t.Fatalf("create account expected 201, got %d: %s", rec.Code, rec.Body.String())
    }
    return decode[acctResp](t, rec)
}

func accountPath(id int64, suffix string) string {
    return "/v1/accounts/" + strconv.FormatInt(id, 10) + suffix
}

func TestPostAccount_ValidAndInvalid(t *testing.T) {
    h := setup(t)

    rec := do(t, h, http.MethodPost, "/v1/accounts", map[string]any{"account_holder_name": "Alice", "balance": 100})
    if rec.Code != http.StatusCreated {
        t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
    }
    a := decode[acctResp](t, rec)
    if a.ID == 0 || a.HolderName != "Alice" || a.Balance != "100.00" || a.BalanceMinor != 10000 || a.Currency != "USD" {
        t.Fatalf("unexpected response: %+v", a)
    }
    if loc := rec.Header().Get("Location"); loc != accountPath(a.ID, "") {
        t.Fatalf("unexpected Location %q", loc)
    }

    // string amounts and a missing balance are accepted
    b := createAccount(t, h, "Bob", "12.50")
    if b.BalanceMinor != 1250 { t.Fatalf("expected 1250 minor, got %d", b.BalanceMinor) }
    rec = do(t, h, http.MethodPost, "/v1/accounts", map[string]any{"account_holder_name": "Carol"})
    if rec.Code != http.StatusCreated { t.Fatalf("expected 201, got %d", rec.Code) }
    if c := decode[acctResp](t, rec); c.BalanceMinor != 0 { t.Fatalf("expected zero balance, got %+v", c) }

    cases := []struct {
        name string
        body map[string]any
        code string
    }{
        {"missing name", map[string]any{"balance": 1}, "validation_error"},
        {"blank name", map[string]any{"account_holder_name": "   ", "balance": 1}, "validation_error"},
        {"negative balance", map[string]any{"account_holder_name": "Eve", "balance": -5}, "invalid_amount"},
        {"too many decimals", map[string]any{"account_holder_name": "Eve", "balance": "1.001"}, "invalid_amount"},
        {"not a number", map[string]any{"account_holder_name": "Eve", "balance": "lots"}, "invalid_amount"},
        {"unknown field", map[string]any{"account_holder_name": "Eve", "nickname": "E"}, "validation_error"},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            rec := do(t, h, http.MethodPost, "/v1/accounts", tc.body)
            if rec.Code != http.StatusBadRequest {
                t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
            }
            if e := decode[errResp](t, rec); e.Code != tc.code {
                t.Fatalf("expected code %s, got %+v", tc.code, e)
            }
        })
    }
}

func TestPostAccount_RequiresJSON(t *testing.T) {
    h := setup(t)
    req := httptest.NewRequest(http.MethodPost, "/v1/accounts", strings.NewReader("account_holder_name=Alice"))
    req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
    rec := httptest.NewRecorder()
    h.ServeHTTP(rec, req)
    if rec.Code != http.StatusUnsupportedMediaType {
        t.Fatalf("expected 415, got %d", rec.Code)
    }
}

func TestPostAccount_RejectsTrailingData(t *testing.T) {
    h := setup(t)
    for _, body := range []string{
        `{"account_holder_name":"A","balance":100}{"x":1}`,
        `{"account_holder_name":"A","balance":100} 7`,
        `{"account_holder_name":"A","balance":100}}`,
    } {
        req := httptest.NewRequest(http.MethodPost, "/v1/accounts", strings.NewReader(body))
        req.Header.Set("Content-Type", "application/json")
        rec := httptest.NewRecorder()
        h.ServeHTTP(rec, req)
        if rec.Code != http.StatusBadRequest {
            t.Fatalf("%s: expected 400, got %d", body, rec.Code)
        }
    }
    rec := do(t, h, http.MethodGet, "/v1/accounts", nil)
    if list := decode[[]acctResp](t, rec); len(list) != 0 {
        t.Fatalf("rejected bodies created accounts: %+v", list)
    }
}

func TestAccounts_GetListDelete(t *testing.T) {
    h := setup(t)
    a := createAccount(t, h, "Alice", 10)
    b := createAccount(t, h, "Bob", 20)

    rec := do(t, h, http.MethodGet, accountPath(a.ID, ""), nil)
    if rec.Code != http.StatusOK { t.Fatalf("get expected 200, got %d", rec.Code) }
    if got := decode[acctResp](t, rec); got != a { t.Fatalf("get mismatch: %+v vs %+v", got, a) }

    rec = do(t, h, http.MethodGet, "/v1/accounts", nil)
    list := decode[[]acctResp](t, rec)
    if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
        t.Fatalf("unexpected list: %+v", list)
    }

    rec = do(t, h, http.MethodDelete, accountPath(a.ID, ""), nil)
    if rec.Code != http.StatusNoContent { t.Fatalf("delete expected 204, got %d", rec.Code) }
    rec = do(t, h, http.MethodDelete, accountPath(a.ID, ""), nil)
    if rec.Code != http.StatusNotFound { t.Fatalf("second delete expected 404, got %d", rec.Code) }
    rec = do(t, h, http.MethodGet, accountPath(a.ID, ""), nil)
    if rec.Code != http.StatusNotFound { t.Fatalf("get deleted expected 404, got %d", rec.Code) }
    if e := decode[errResp](t, rec); e.Code != "not_found" { t.Fatalf("unexpected error: %+v", e) }

    rec = do(t, h, http.MethodGet, "/v1/accounts", nil)
    if list := decode[[]acctResp](t, rec); len(list) != 1 || list[0].ID != b.ID {
        t.Fatalf("unexpected list after delete: %+v", list)
    }

    rec = do(t, h, http.MethodGet, "/v1/accounts/abc", nil)
    if rec.Code != http.StatusBadRequest { t.Fatalf("bad id expected 400, got %d", rec.Code) }
}

func TestDepositWithdraw(t *testing.T) {
    h := setup(t)
    a := createAccount(t, h, "Alice", 100)

    rec := do(t, h, http.MethodPut, accountPath(a.ID, "/deposit"), map[string]any{"amount": 50})
    if rec.Code != http.StatusOK { t.Fatalf("deposit expected 200, got %d: %s", rec.Code, rec.Body.String()) }
    if got := decode[acctResp](t, rec); got.Balance != "150.00" { t.Fatalf("expected 150.00, got %+v", got) }

    rec = do(t, h, http.MethodPut, accountPath(a.ID, "/withdraw"), map[string]any{"amount": "30.25"})
    if rec.Code != http.StatusOK { t.Fatalf("withdraw expected 200, got %d: %s", rec.Code, rec.Body.String()) }
    if got := decode[acctResp](t, rec); got.BalanceMinor != 11975 { t.Fatalf("expected 11975 minor, got %+v", got) }

    rec = do(t, h, http.MethodPut, accountPath(a.ID, "/withdraw"), map[string]any{"amount": 1000})
    if rec.Code != http.StatusConflict { t.Fatalf("overdraft expected 409, got %d", rec.Code) }
    if e := decode[errResp](t, rec); e.Code != "insufficient_funds" { t.Fatalf("unexpected error: %+v", e) }

    for _, amt := range []any{0, -1, "0.001"} {
        rec = do(t, h, http.MethodPut, accountPath(a.ID, "/deposit"), map[string]any{"amount": amt})
        if rec.Code != http.StatusBadRequest { t.Fatalf("deposit %v expected 400, got %d", amt, rec.Code) }
    }
    rec = do(t, h, http.MethodPut, accountPath(a.ID, "/deposit"), map[string]any{})
    if rec.Code != http.StatusBadRequest { t.Fatalf("missing amount expected 400, got %d", rec.Code) }

    rec = do(t, h, http.MethodPut, accountPath(9999, "/deposit"), map[string]any{"amount": 1})
    if rec.Code != http.StatusNotFound { t.Fatalf("unknown account expected 404, got %d", rec.Code) }

    rec = do(t, h, http.MethodGet, accountPath(a.ID, ""), nil)
    if got := decode[acctResp](t, rec); got.BalanceMinor != 11975 { t.Fatalf("failed movements changed balance: %+v", got) }
}

func TestTransfer(t *testing.T) {
    h := setup(t)
    a := createAccount(t, h, "Alice", 100)
    b := createAccount(t, h, "Bob", 5)

    rec := do(t, h, http.MethodPost, "/v1/accounts/transfer", map[string]any{"from_account_id": a.ID, "to_account_id": b.ID, "amount": 40})
    if rec.Code != http.StatusOK { t.Fatalf("transfer expected 200, got %d: %s", rec.Code, rec.Body.String()) }
    tr := decode[transferResp](t, rec)
    if tr.From.BalanceMinor != 6000 || tr.To.BalanceMinor != 4500 {
        t.Fatalf("unexpected balances: %+v", tr)
    }
    if tr.Transaction.TransactionType != "TRANSFER" || tr.Transaction.AccountID != a.ID || tr.Transaction.CounterpartyID != b.ID {
        t.Fatalf("unexpected transaction: %+v", tr.Transaction)
    }

    cases := []struct {
        name   string
        body   map[string]any
        status int
        code   string
    }{
        {"same account", map[string]any{"from_account_id": a.ID, "to_account_id": a.ID, "amount": 1}, http.StatusBadRequest, "invalid_transfer"},
        {"insufficient", map[string]any{"from_account_id": b.ID, "to_account_id": a.ID, "amount": 46}, http.StatusConflict, "insufficient_funds"},
        {"unknown destination", map[string]any{"from_account_id": a.ID, "to_account_id": 9999, "amount": 1}, http.StatusNotFound, "not_found"},
        {"missing source", map[string]any{"to_account_id": b.ID, "amount": 1}, http.StatusBadRequest, "validation_error"},
        {"zero amount", map[string]any{"from_account_id": a.ID, "to_account_id": b.ID, "amount": 0}, http.StatusBadRequest, "invalid_amount"},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            rec := do(t, h, http.MethodPost, "/v1/accounts/transfer", tc.body)
            if rec.Code != tc.status {
                t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
            }
            if e := decode[errResp](t, rec); e.Code != tc.code {
                t.Fatalf("expected code %s, got %+v", tc.code, e)
            }
        })
    }

    rec = do(t, h, http.MethodGet, "/v1/accounts", nil)
    var total int64
    for _, acc := range decode[[]acctResp](t, rec) { total += acc.BalanceMinor }
    if total != 10500 { t.Fatalf("total balance changed: %d", total) }
}

func TestTransactions_NewestFirst(t *testing.T) {
    h := setup(t)
    a := createAccount(t, h, "Alice", 0)
    b := createAccount(t, h, "Bob", 0)

    do(t, h, http.MethodPut, accountPath(a.ID, "/deposit"), map[string]any{"amount": 100})
    do(t, h, http.MethodPut, accountPath(a.ID, "/withdraw"), map[string]any{"amount": 30})
    do(t, h, http.MethodPost, "/v1/accounts/transfer", map[string]any{"from_account_id": a.ID, "to_account_id": b.ID, "amount": 20})

    rec := do(t, h, http.MethodGet, accountPath(a.ID, "/transactions"), nil)
    if rec.Code != http.StatusOK { t.Fatalf("expected 200, got %d", rec.Code) }
    txns := decode[[]txnResp](t, rec)
    if len(txns) != 3 { t.Fatalf("expected 3 transactions, got %+v", txns) }
    want := []string{"TRANSFER", "WITHDRAW", "DEPOSIT"}
    for i, typ := range want {
        if txns[i].TransactionType != typ { t.Fatalf("position %d: expected %s, got %+v", i, typ, txns[i]) }
        if txns[i].Reference == "" { t.Fatalf("missing reference: %+v", txns[i]) }
    }
    if txns[1].Amount != "30.00" || txns[1].AmountMinor != 3000 { t.Fatalf("unexpected withdraw: %+v", txns[1]) }

    // history survives deletion
    do(t, h, http.MethodDelete, accountPath(a.ID, ""), nil)
    rec = do(t, h, http.MethodGet, accountPath(a.ID, "/transactions"), nil)
    if got := decode[[]txnResp](t, rec); len(got) != 3 { t.Fatalf("expected history to remain, got %d", len(got)) }

    rec = do(t, h, http.MethodGet, accountPath(9999, "/transactions"), nil)
    if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
        t.Fatalf("unknown account expected empty list, got %d %s", rec.Code, rec.Body.String())
    }
}

func TestAPIAlias(t *testing.T) {
    h := setup(t)
    rec := do(t, h, http.MethodPost, "/api/accounts", map[string]any{"account_holder_name": "Alice", "balance": 1})
    if rec.Code != http.StatusCreated { t.Fatalf("expected 201, got %d", rec.Code) }
    a := decode[acctResp](t, rec)
    rec = do(t, h, http.MethodGet, accountPath(a.ID, ""), nil)
    if rec.Code != http.StatusOK { t.Fatalf("alias and v1 should share state, got %d", rec.Code) }
}

func TestAuxEndpoints(t *testing.T) {
    h := setup(t)
    if rec := do(t, h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
        t.Fatalf("healthz expected 200, got %d", rec.Code)
    }
    if rec := do(t, h, http.MethodGet, "/readyz", nil); rec.Code != http.StatusOK {
        t.Fatalf("readyz expected 200, got %d", rec.Code)
    }

    a := createAccount(t, h, "Alice", 1)
    do(t, h, http.MethodPut, accountPath(a.ID, "/withdraw"), map[string]any{"amount": 5})
    rec := do(t, h, http.MethodGet, "/metrics", nil)
    if rec.Code != http.StatusOK { t.Fatalf("metrics expected 200, got %d", rec.Code) }
    body := rec.Body.String()
    for _, want := range []string{"bank_http_requests_total", `bank_money_movements_total{outcome="insufficient_funds",type="WITHDRAW"}`} {
        if !strings.Contains(body, want) { t.Fatalf("metrics missing %s", want) }
    }

    down := setup(t, readyFunc(func(context.Context) error { return nil }), readyFunc(func(context.Context) error { return errors.New("db down") }))
    if rec := do(t, down, http.MethodGet, "/readyz", nil); rec.Code != http.StatusServiceUnavailable {
        t.Fatalf("readyz expected 503, got %d", rec.Code)
    }
}

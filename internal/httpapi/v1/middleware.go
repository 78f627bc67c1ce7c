// Package v1 contains the HTTP handlers and middleware of the banking API.
package v1

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strconv"
    "strings"

    chi "github.com/go-chi/chi/v5"
    "github.com/go-playground/validator/v10"
    "github.com/govalues/money"

    "github.com/tinoosan/banking/internal/ledger"
)

type ctxKey string

const ctxKeyPostAccount ctxKey = "validatedPostAccount"
const ctxKeyMovement ctxKey = "validatedMovement"
const ctxKeyTransfer ctxKey = "validatedTransfer"

type createAccountInput struct {
    HolderName string
    Balance    money.Amount
}

type transferInput struct {
    FromID int64
    ToID   int64
    Amount money.Amount
}

// decodeAndValidate requires a JSON body holding exactly one value, decodes it strictly into dst and runs
// the struct's validate tags. It writes the error response and returns false on failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
    if !requireJSON(w, r) { return false }
    dec := json.NewDecoder(r.Body)
    dec.DisallowUnknownFields()
    if err := dec.Decode(dst); err != nil {
        badRequest(w, "invalid JSON: "+err.Error())
        return false
    }
    if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
        badRequest(w, "invalid JSON: body must hold a single object")
        return false
    }
    if err := s.validate.Struct(dst); err != nil {
        badRequest(w, validationMessage(err))
        return false
    }
    return true
}

// validationMessage flattens validator errors into "field: rule" pairs.
func validationMessage(err error) string {
    var verrs validator.ValidationErrors
    if !errors.As(err, &verrs) { return err.Error() }
    parts := make([]string, 0, len(verrs))
    for _, fe := range verrs {
        parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
    }
    return "validation failed: " + strings.Join(parts, ", ")
}

// parseAmount converts a request amount into the service currency.
func (s *Server) parseAmount(w http.ResponseWriter, raw amountInput) (money.Amount, bool) {
    amt, err := ledger.ParseAmount(s.svc.Currency(), string(raw))
    if err != nil {
        writeErr(w, http.StatusBadRequest, err.Error(), "invalid_amount")
        return money.Amount{}, false
    }
    return amt, true
}

// validatePostAccount parses POST /accounts and stores a createAccountInput.
// A missing balance opens the account at zero.
func (s *Server) validatePostAccount() func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            var req postAccountRequest
            if !s.decodeAndValidate(w, r, &req) { return }
            in := createAccountInput{HolderName: req.HolderName, Balance: ledger.Zero(s.svc.Currency())}
            if req.Balance != "" {
                amt, ok := s.parseAmount(w, req.Balance)
                if !ok { return }
                in.Balance = amt
            }
            ctx := context.WithValue(r.Context(), ctxKeyPostAccount, in)
            next.ServeHTTP(w, r.WithContext(ctx))
        })
    }
}

// validateMovement parses the {"amount": ...} body of deposit and withdraw.
func (s *Server) validateMovement() func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            var req movementRequest
            if !s.decodeAndValidate(w, r, &req) { return }
            amt, ok := s.parseAmount(w, req.Amount)
            if !ok { return }
            ctx := context.WithValue(r.Context(), ctxKeyMovement, amt)
            next.ServeHTTP(w, r.WithContext(ctx))
        })
    }
}

// validateTransfer parses POST /accounts/transfer.
func (s *Server) validateTransfer() func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            var req transferRequest
            if !s.decodeAndValidate(w, r, &req) { return }
            amt, ok := s.parseAmount(w, req.Amount)
            if !ok { return }
            in := transferInput{FromID: req.FromAccountID, ToID: req.ToAccountID, Amount: amt}
            ctx := context.WithValue(r.Context(), ctxKeyTransfer, in)
            next.ServeHTTP(w, r.WithContext(ctx))
        })
    }
}

// accountID reads the {id} path parameter.
func accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
    id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
    if err != nil || id <= 0 {
        badRequest(w, "invalid account id")
        return 0, false
    }
    return id, true
}

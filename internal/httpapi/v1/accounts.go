package v1

import (
    "context"
    "net/http"
    "strconv"

    "github.com/govalues/money"

    "github.com/tinoosan/banking/internal/ledger"
)

func (s *Server) postAccount(w http.ResponseWriter, r *http.Request) {
    in, ok := r.Context().Value(ctxKeyPostAccount).(createAccountInput)
    if !ok {
        toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
        return
    }
    acc, err := s.svc.CreateAccount(r.Context(), in.HolderName, in.Balance)
    if err != nil { s.writeDomainErr(w, r, err, "could not create account"); return }
    w.Header().Set("Location", r.URL.Path+"/"+strconv.FormatInt(acc.ID, 10))
    toJSON(w, http.StatusCreated, toAccountResponse(acc))
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
    accs, err := s.svc.ListAccounts(r.Context())
    if err != nil { s.writeDomainErr(w, r, err, "could not fetch accounts"); return }
    out := make([]accountResponse, 0, len(accs))
    for _, a := range accs {
        out = append(out, toAccountResponse(a))
    }
    toJSON(w, http.StatusOK, out)
}

// getAccount handles GET /accounts/{id}
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
    id, ok := accountID(w, r)
    if !ok { return }
    acc, err := s.svc.GetAccount(r.Context(), id)
    if err != nil { s.writeDomainErr(w, r, err, "could not fetch account"); return }
    toJSON(w, http.StatusOK, toAccountResponse(acc))
}

// deleteAccount handles DELETE /accounts/{id}. The account's history is kept.
func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
    id, ok := accountID(w, r)
    if !ok { return }
    if err := s.svc.DeleteAccount(r.Context(), id); err != nil {
        s.writeDomainErr(w, r, err, "could not delete account")
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
    s.movement(w, r, ledger.TransactionTypeDeposit, s.svc.Deposit)
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
    s.movement(w, r, ledger.TransactionTypeWithdraw, s.svc.Withdraw)
}

// movement runs a single-account deposit or withdrawal and renders the updated account.
func (s *Server) movement(w http.ResponseWriter, r *http.Request, typ ledger.TransactionType, apply func(ctx context.Context, id int64, amount money.Amount) (ledger.Account, error)) {
    id, ok := accountID(w, r)
    if !ok { return }
    amt, ok := r.Context().Value(ctxKeyMovement).(money.Amount)
    if !ok {
        toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
        return
    }
    acc, err := apply(r.Context(), id, amt)
    observeMovement(typ, err)
    if err != nil { s.writeDomainErr(w, r, err, "could not apply "+string(typ)); return }
    toJSON(w, http.StatusOK, toAccountResponse(acc))
}

func (s *Server) postTransfer(w http.ResponseWriter, r *http.Request) {
    in, ok := r.Context().Value(ctxKeyTransfer).(transferInput)
    if !ok {
        toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
        return
    }
    res, err := s.svc.Transfer(r.Context(), in.FromID, in.ToID, in.Amount)
    observeMovement(ledger.TransactionTypeTransfer, err)
    if err != nil { s.writeDomainErr(w, r, err, "could not transfer funds"); return }
    toJSON(w, http.StatusOK, transferResponse{
        From:        toAccountResponse(res.From),
        To:          toAccountResponse(res.To),
        Transaction: toTransactionResponse(res.Transaction),
    })
}

// listTransactions handles GET /accounts/{id}/transactions, newest first.
// Unknown or deleted accounts yield whatever history remains, possibly none.
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
    id, ok := accountID(w, r)
    if !ok { return }
    txns, err := s.svc.AccountTransactions(r.Context(), id)
    if err != nil { s.writeDomainErr(w, r, err, "could not fetch transactions"); return }
    out := make([]transactionResponse, 0, len(txns))
    for _, t := range txns {
        out = append(out, toTransactionResponse(t))
    }
    toJSON(w, http.StatusOK, out)
}

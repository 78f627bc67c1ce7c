package v1

import (
    "encoding/json"
    "errors"
    "net/http"

    "github.com/tinoosan/banking/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
    Error string `json:"error"`
    Code  string `json:"code,omitempty"`
}

// toJSON writes a JSON response with status code.
func toJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
    toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "validation_error") }

// errorCode maps a domain error to its HTTP status and response code.
// Unknown errors map to 500 with an empty code.
func errorCode(err error) (int, string) {
    switch {
    case errors.Is(err, errs.ErrNotFound):
        return http.StatusNotFound, "not_found"
    case errors.Is(err, errs.ErrInsufficientFunds):
        return http.StatusConflict, "insufficient_funds"
    case errors.Is(err, errs.ErrInvalidAmount):
        return http.StatusBadRequest, "invalid_amount"
    case errors.Is(err, errs.ErrInvalidTransfer):
        return http.StatusBadRequest, "invalid_transfer"
    case errors.Is(err, errs.ErrInvalid):
        return http.StatusBadRequest, "validation_error"
    default:
        return http.StatusInternalServerError, ""
    }
}

// writeDomainErr renders err. Internal failures are logged and hidden behind msg.
func (s *Server) writeDomainErr(w http.ResponseWriter, r *http.Request, err error, msg string) {
    status, code := errorCode(err)
    if status == http.StatusInternalServerError {
        s.log.Error(msg, "req_id", reqID(r), "err", err)
        writeErr(w, status, msg, "")
        return
    }
    writeErr(w, status, err.Error(), code)
}

package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
    ErrNotFound = errors.New("not_found")
    // ErrInsufficientFunds is returned when a debit would take a balance below zero.
    ErrInsufficientFunds = errors.New("insufficient_funds")
    // ErrInvalidAmount covers non-positive amounts, foreign currencies and excess precision.
    ErrInvalidAmount   = errors.New("invalid_amount")
    ErrInvalidTransfer = errors.New("invalid_transfer")
    ErrInvalid         = errors.New("invalid")
)

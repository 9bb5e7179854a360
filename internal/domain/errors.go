package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found in catalog")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrSessionExpired  = errors.New("session expired")
	ErrDialogClosed    = errors.New("dialog is closed")
	ErrDialogNotReady  = errors.New("dialog is not ready")
	ErrSubmitInFlight  = errors.New("submission already in progress")
)

// StockExceededError reports a rejected cart mutation that would have pushed a
// line past the snapshot's stock figure. Available is the ceiling at the time
// of validation, not a live server value.
type StockExceededError struct {
	ItemID    string
	Requested int
	Available int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("stock exceeded for %s: requested %d, available %d", e.ItemID, e.Requested, e.Available)
}

// IsStockExceeded unwraps err into a StockExceededError when it is one.
func IsStockExceeded(err error) (*StockExceededError, bool) {
	var se *StockExceededError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

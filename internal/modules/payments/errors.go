package payments

import (
	"errors"
	"fmt"

	"lojinha.com/app/internal/modules/checkout"
)

var (
	ErrPaymentNotFound = errors.New("payment not found for transaction id")
	ErrEmptyCart       = errors.New("no items to check out")
)

// ValidationFailedError carries the full validator result so the handler
// can return the per-item reasons.
type ValidationFailedError struct {
	Result checkout.Result
}

func (e *ValidationFailedError) Error() string {
	if len(e.Result.Errors) > 0 {
		return fmt.Sprintf("checkout validation failed: %s", e.Result.Errors[0])
	}
	return "checkout validation failed"
}

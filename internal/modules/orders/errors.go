package orders

import "errors"

var (
	ErrNoItems              = errors.New("order has no items")
	ErrProductUnavailable   = errors.New("product unavailable")
	ErrVariantUnknown       = errors.New("variant unknown")
	ErrPaymentMethodUnknown = errors.New("payment method unknown")
	ErrAddressUnknown       = errors.New("shipping address unknown")
	ErrDiscountInvalid      = errors.New("discount code invalid or expired")
)

package domain

import "errors"

var (
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrInvalidProductPrice = errors.New("invalid product price")
	ErrProductNotFound     = errors.New("product not found")
	ErrItemNotFound        = errors.New("item not found in cart")
	ErrCartUnavailable     = errors.New("cart store unavailable")
	ErrCatalogUnavailable  = errors.New("product catalog unavailable")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrOrderNotFound       = errors.New("order not found")
	ErrDuplicateOrder      = errors.New("order for this checkout and seller already exists")
	ErrIllegalTransition   = errors.New("illegal transition of order status")
	ErrCheckoutInProgress  = errors.New("checkout with this idempotency key is in progress")
	ErrNotifyFailed        = errors.New("seller notification failed")
)

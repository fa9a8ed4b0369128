package cart

import "errors"

var (
	// -- Identity --
	ErrMissingIdentity = errors.New("user id or guest session is required")

	// -- Validation & Input --
	ErrInvalidQuantity = errors.New("quantity must be a non-negative integer")

	// -- Resource State --
	ErrCartItemNotFound  = errors.New("cart item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

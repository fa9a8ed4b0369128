package order

import "errors"

var (
	// -- Validation & Input --
	ErrNoItems             = errors.New("order must contain at least one item")
	ErrInvalidQuantity     = errors.New("item quantity must be at least 1")
	ErrAddressRequired     = errors.New("shipping address is required")
	ErrEmailRequired       = errors.New("contact email is required")
	ErrInvalidOrderID      = errors.New("invalid order id")
	ErrInvalidStatus       = errors.New("invalid order status")
	ErrInvalidTransition   = errors.New("order status transition not allowed")
	ErrInvalidPaymentState = errors.New("order is not awaiting payment")

	// -- Resource State --
	ErrOrderNotFound        = errors.New("order not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
)

var ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")

package checkout

import "errors"

var (
	ErrMalformedEvent = errors.New("malformed webhook event")
	ErrMissingToken   = errors.New("missing paypal token")
	ErrTokenMismatch  = errors.New("paypal token does not match order")
	ErrNotCompleted   = errors.New("paypal capture not completed")
)

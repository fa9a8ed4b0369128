package payment

import (
	"errors"
	"fmt"
)

var (
	ErrMissingSignature = errors.New("missing signature header")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrSignatureExpired = errors.New("webhook timestamp outside tolerance")
	ErrNotConfigured    = errors.New("payment processor not configured")
)

// ProcessorError is a non-success answer from a payment processor. Message is
// the processor's own description and is safe to show to the caller.
type ProcessorError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("%s error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

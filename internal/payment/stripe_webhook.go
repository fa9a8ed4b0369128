package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StripeSignatureTolerance bounds the age of a signed webhook.
const StripeSignatureTolerance = 5 * time.Minute

const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventCheckoutExpired      = "checkout.session.expired"
	EventCheckoutAsyncFailed  = "checkout.session.async_payment_failed"
	EventCheckoutAsyncSuccess = "checkout.session.async_payment_succeeded"
)

type StripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type StripeCheckoutSession struct {
	ID                string            `json:"id"`
	PaymentIntent     string            `json:"payment_intent"`
	PaymentStatus     string            `json:"payment_status"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

// OrderID returns the order correlation id attached at session creation.
func (s StripeCheckoutSession) OrderID() string {
	if id := s.Metadata["orderId"]; id != "" {
		return id
	}
	return s.ClientReferenceID
}

func stripeSign(payload []byte, ts int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// GenerateStripeSignature builds a Stripe-Signature header for payload.
func GenerateStripeSignature(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, stripeSign(payload, ts, secret))
}

// VerifyStripeSignature checks header against an HMAC-SHA256 of "t.payload"
// and rejects timestamps older than StripeSignatureTolerance.
func VerifyStripeSignature(payload []byte, header, secret string, now time.Time) error {
	if header == "" {
		return ErrMissingSignature
	}
	if secret == "" {
		return fmt.Errorf("stripe webhook: %w", ErrNotConfigured)
	}

	var (
		ts         int64
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			ts = parsed
		case "v1":
			signatures = append(signatures, v)
		}
	}
	if ts == 0 || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	if now.Sub(time.Unix(ts, 0)) > StripeSignatureTolerance {
		return ErrSignatureExpired
	}

	expected := []byte(stripeSign(payload, ts, secret))
	for _, sig := range signatures {
		if hmac.Equal(expected, []byte(sig)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// ConstructEvent verifies and decodes a webhook delivery.
func (s *StripeClient) ConstructEvent(payload []byte, header string) (*StripeEvent, error) {
	if err := VerifyStripeSignature(payload, header, s.webhookSecret, s.now()); err != nil {
		return nil, err
	}

	var ev StripeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode stripe event: %w", err)
	}
	return &ev, nil
}

// CheckoutSession decodes the event object as a checkout session.
func (e *StripeEvent) CheckoutSession() (*StripeCheckoutSession, error) {
	var cs StripeCheckoutSession
	if err := json.Unmarshal(e.Data.Object, &cs); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	return &cs, nil
}

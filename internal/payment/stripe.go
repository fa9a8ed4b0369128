package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

const stripeBaseURL = "https://api.stripe.com"

type StripeLineItem struct {
	Name      string
	Currency  string
	UnitCents int64
	Quantity  int
}

type CheckoutSessionParams struct {
	OrderID       string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	LineItems     []StripeLineItem
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type StripeClient struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
	now           func() time.Time
}

func NewStripeClient(secretKey, webhookSecret string) *StripeClient {
	if secretKey == "" {
		logger.L().Warn("Stripe secret key is empty")
	}
	return &StripeClient{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		baseURL:       stripeBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		now: time.Now,
	}
}

// encodeSession builds the form body of a checkout session request.
func encodeSession(p CheckoutSessionParams) url.Values {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	form.Set("client_reference_id", p.OrderID)
	form.Set("metadata[orderId]", p.OrderID)
	form.Set("payment_intent_data[metadata][orderId]", p.OrderID)
	if p.CustomerEmail != "" {
		form.Set("customer_email", p.CustomerEmail)
	}
	for i, li := range p.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", li.Currency)
		form.Set(prefix+"[price_data][product_data][name]", li.Name)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(li.UnitCents, 10))
		form.Set(prefix+"[quantity]", strconv.Itoa(li.Quantity))
	}
	return form
}

func (s *StripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*CheckoutSession, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "payment"),
		zap.String("method", "CreateCheckoutSession"),
		zap.String("order_id", p.OrderID),
	)

	if s.secretKey == "" {
		return nil, fmt.Errorf("stripe: %w", ErrNotConfigured)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/v1/checkout/sessions",
		strings.NewReader(encodeSession(p).Encode()),
	)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(s.secretKey, "")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", "checkout-"+p.OrderID)

	log.Info("creating stripe checkout session", zap.Int("line_items", len(p.LineItems)))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Error("stripe request failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read stripe response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		perr := &ProcessorError{Provider: ProviderStripe, StatusCode: resp.StatusCode, Message: stripeErrorMessage(body)}
		log.Error("stripe returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", body),
		)
		return nil, perr
	}

	var session CheckoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		log.Error("failed decoding stripe response", zap.Error(err))
		return nil, err
	}

	log.Info("stripe checkout session created", zap.String("session_id", session.ID))
	return &session, nil
}

func stripeErrorMessage(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(body))
}

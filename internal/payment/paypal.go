package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

const (
	paypalSandboxURL = "https://api-m.sandbox.paypal.com"
	paypalLiveURL    = "https://api-m.paypal.com"

	CaptureStatusCompleted = "COMPLETED"
)

type PayPalAddress struct {
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	AdminArea2   string `json:"admin_area_2"`
	AdminArea1   string `json:"admin_area_1,omitempty"`
	PostalCode   string `json:"postal_code"`
	CountryCode  string `json:"country_code"`
}

type PayPalItem struct {
	Name     string
	Quantity int
	Price    string
}

// PayPalOrderParams describes one purchase unit. Amounts are decimal strings
// and must add up: Total = ItemTotal + Shipping + Tax.
type PayPalOrderParams struct {
	OrderID      string
	Currency     string
	Total        string
	ItemTotal    string
	Shipping     string
	Tax          string
	Items        []PayPalItem
	ShipToName   string
	ShipTo       PayPalAddress
	ReturnURL    string
	CancelURL    string
	BrandName    string
	PayerEmail   string
	InvoiceLabel string
}

type PayPalOrder struct {
	ID         string
	Status     string
	ApproveURL string
}

type PayPalCapture struct {
	OrderID   string
	Status    string
	CaptureID string
}

type PayPalClient struct {
	clientID   string
	secret     string
	baseURL    string
	httpClient *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewPayPalClient(clientID, secret, mode string) *PayPalClient {
	if clientID == "" || secret == "" {
		logger.L().Warn("PayPal credentials are empty")
	}
	base := paypalSandboxURL
	if strings.EqualFold(mode, "live") {
		base = paypalLiveURL
	}
	return &PayPalClient{
		clientID: clientID,
		secret:   secret,
		baseURL:  base,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (p *PayPalClient) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.expiresAt) {
		return p.token, nil
	}
	if p.clientID == "" || p.secret == "" {
		return "", fmt.Errorf("paypal: %w", ErrNotConfigured)
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.clientID, p.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := p.do(req, http.StatusOK, &out); err != nil {
		return "", err
	}

	p.token = out.AccessToken
	// refresh a minute early
	p.expiresAt = time.Now().Add(time.Duration(out.ExpiresIn)*time.Second - time.Minute)
	return p.token, nil
}

func (p *PayPalClient) do(req *http.Request, want int, out any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read paypal response: %w", err)
	}
	if resp.StatusCode != want && !(want == http.StatusCreated && resp.StatusCode == http.StatusOK) {
		return &ProcessorError{Provider: ProviderPayPal, StatusCode: resp.StatusCode, Message: paypalErrorMessage(body)}
	}
	return json.Unmarshal(body, out)
}

func (p *PayPalClient) authorized(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

type paypalMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

func buildPayPalOrder(o PayPalOrderParams) map[string]any {
	currency := strings.ToUpper(o.Currency)
	money := func(v string) paypalMoney { return paypalMoney{CurrencyCode: currency, Value: v} }

	items := make([]map[string]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]any{
			"name":        it.Name,
			"quantity":    fmt.Sprint(it.Quantity),
			"unit_amount": money(it.Price),
		})
	}

	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": o.OrderID,
			"custom_id":    o.OrderID,
			"invoice_id":   o.InvoiceLabel,
			"amount": map[string]any{
				"currency_code": currency,
				"value":         o.Total,
				"breakdown": map[string]any{
					"item_total": money(o.ItemTotal),
					"shipping":   money(o.Shipping),
					"tax_total":  money(o.Tax),
				},
			},
			"items": items,
			"shipping": map[string]any{
				"name":    map[string]string{"full_name": o.ShipToName},
				"address": o.ShipTo,
			},
		}},
		"application_context": map[string]any{
			"brand_name":          o.BrandName,
			"shipping_preference": "SET_PROVIDED_ADDRESS",
			"user_action":         "PAY_NOW",
			"return_url":          o.ReturnURL,
			"cancel_url":          o.CancelURL,
		},
	}
	if o.PayerEmail != "" {
		body["payer"] = map[string]string{"email_address": o.PayerEmail}
	}
	return body
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

func (p *PayPalClient) CreateOrder(ctx context.Context, o PayPalOrderParams) (*PayPalOrder, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "payment"),
		zap.String("method", "CreatePayPalOrder"),
		zap.String("order_id", o.OrderID),
	)

	req, err := p.authorized(ctx, http.MethodPost, "/v2/checkout/orders", buildPayPalOrder(o))
	if err != nil {
		log.Error("failed to build paypal request", zap.Error(err))
		return nil, err
	}
	req.Header.Set("PayPal-Request-Id", "order-"+o.OrderID)

	var out struct {
		ID     string       `json:"id"`
		Status string       `json:"status"`
		Links  []paypalLink `json:"links"`
	}
	if err := p.do(req, http.StatusCreated, &out); err != nil {
		log.Error("paypal create order failed", zap.Error(err))
		return nil, err
	}

	res := &PayPalOrder{ID: out.ID, Status: out.Status}
	for _, l := range out.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			res.ApproveURL = l.Href
			break
		}
	}

	log.Info("paypal order created", zap.String("paypal_order_id", res.ID))
	return res, nil
}

// CaptureOrder captures an approved PayPal order identified by token.
func (p *PayPalClient) CaptureOrder(ctx context.Context, token string) (*PayPalCapture, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "payment"),
		zap.String("method", "CapturePayPalOrder"),
		zap.String("paypal_order_id", token),
	)

	req, err := p.authorized(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(token)+"/capture", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("PayPal-Request-Id", "capture-"+token)

	var out struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	if err := p.do(req, http.StatusCreated, &out); err != nil {
		log.Error("paypal capture failed", zap.Error(err))
		return nil, err
	}

	res := &PayPalCapture{OrderID: out.ID, Status: out.Status}
	for _, pu := range out.PurchaseUnits {
		if len(pu.Payments.Captures) > 0 {
			res.CaptureID = pu.Payments.Captures[0].ID
			break
		}
	}

	log.Info("paypal capture finished",
		zap.String("status", res.Status),
		zap.String("capture_id", res.CaptureID),
	)
	return res, nil
}

func paypalErrorMessage(body []byte) string {
	var e struct {
		Name             string `json:"name"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Details          []struct {
			Issue       string `json:"issue"`
			Description string `json:"description"`
		} `json:"details"`
	}
	if json.Unmarshal(body, &e) != nil {
		return strings.TrimSpace(string(body))
	}
	if len(e.Details) > 0 && e.Details[0].Description != "" {
		return e.Details[0].Issue + ": " + e.Details[0].Description
	}
	if e.Message != "" {
		return e.Message
	}
	if e.ErrorDescription != "" {
		return e.ErrorDescription
	}
	return strings.TrimSpace(string(body))
}

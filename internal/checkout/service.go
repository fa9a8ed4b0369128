package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"storefront-be/internal/logger"
	"storefront-be/internal/metrics"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"

	"go.uber.org/zap"
)

type StripeGateway interface {
	CreateCheckoutSession(ctx context.Context, p payment.CheckoutSessionParams) (*payment.CheckoutSession, error)
	ConstructEvent(payload []byte, header string) (*payment.StripeEvent, error)
}

type PayPalGateway interface {
	CreateOrder(ctx context.Context, p payment.PayPalOrderParams) (*payment.PayPalOrder, error)
	CaptureOrder(ctx context.Context, token string) (*payment.PayPalCapture, error)
}

// Settings carries the public URLs and store data sent to processors.
type Settings struct {
	ClientURL string
	ServerURL string
	Currency  string
	BrandName string
}

type Session struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Provider    string `json:"provider"`
	URL         string `json:"url"`
}

type Service interface {
	// CreatePayment creates a pending order and hands it to the processor
	// named by the payment method. The returned URL is where the browser
	// completes the payment.
	CreatePayment(ctx context.Context, in order.PlaceInput) (*Session, error)
	HandleStripeEvent(ctx context.Context, payload []byte, signature string) error
	// CapturePayPal captures an approved PayPal order and returns the client
	// page to redirect to. The URL is always set, also when err is not nil.
	CapturePayPal(ctx context.Context, orderID, token string) (string, error)
	CancelPayPal(ctx context.Context, orderID string) string
}

type service struct {
	orders   order.Service
	stripe   StripeGateway
	paypal   PayPalGateway
	webhooks payment.Repository
	settings Settings

	sessions   *metrics.Counter
	applied    *metrics.Counter
	duplicates *metrics.Counter
	failures   *metrics.Counter
}

func NewService(
	orders order.Service,
	stripe StripeGateway,
	paypal PayPalGateway,
	webhooks payment.Repository,
	settings Settings,
	reg *metrics.Registry,
) Service {
	if reg == nil {
		reg = metrics.Default
	}
	settings.ClientURL = strings.TrimRight(settings.ClientURL, "/")
	settings.ServerURL = strings.TrimRight(settings.ServerURL, "/")
	settings.Currency = strings.ToLower(settings.Currency)

	return &service{
		orders:     orders,
		stripe:     stripe,
		paypal:     paypal,
		webhooks:   webhooks,
		settings:   settings,
		sessions:   reg.Counter("checkout.sessions_created"),
		applied:    reg.Counter("checkout.payments_applied"),
		duplicates: reg.Counter("checkout.duplicate_confirmations"),
		failures:   reg.Counter("checkout.reconcile_failures"),
	}
}

func (s *service) clientPage(path, orderID string) string {
	return s.settings.ClientURL + path + "?orderId=" + url.QueryEscape(orderID)
}

func (s *service) successURL(orderID string) string {
	return s.clientPage("/order-success", orderID)
}

func (s *service) failureURL(orderID string) string {
	return s.clientPage("/payment-failed", orderID)
}

func (s *service) CreatePayment(ctx context.Context, in order.PlaceInput) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreatePayment"),
		zap.String("payment_method", string(in.PaymentMethod)),
	)

	o, err := s.orders.CreatePendingOrder(ctx, in)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("order_id", o.ID.String()))

	var redirect string
	switch o.PaymentMethod {
	case order.MethodStripe:
		redirect, err = s.startStripe(ctx, o)
	case order.MethodPayPal:
		redirect, err = s.startPayPal(ctx, o)
	default:
		log.Warn("unsupported payment method, order left pending")
		return nil, fmt.Errorf("%w: %q", order.ErrUnsupportedPaymentMethod, o.PaymentMethod)
	}
	if err != nil {
		log.Error("payment session not created, order left pending", zap.Error(err))
		return nil, err
	}

	s.sessions.Inc()
	log.Info("payment session created")
	return &Session{
		OrderID:     o.ID.String(),
		OrderNumber: o.OrderNumber,
		Provider:    string(o.PaymentMethod),
		URL:         redirect,
	}, nil
}

func (s *service) startStripe(ctx context.Context, o *order.Order) (string, error) {
	currency := s.settings.Currency
	items := make([]payment.StripeLineItem, 0, len(o.Items)+2)
	for _, it := range o.Items {
		items = append(items, payment.StripeLineItem{
			Name:      it.Name,
			Currency:  currency,
			UnitCents: payment.MinorUnits(it.UnitPrice),
			Quantity:  it.Quantity,
		})
	}
	if o.ShippingFee.IsPositive() {
		items = append(items, payment.StripeLineItem{
			Name: "Shipping", Currency: currency, UnitCents: payment.MinorUnits(o.ShippingFee), Quantity: 1,
		})
	}
	if o.Tax.IsPositive() {
		items = append(items, payment.StripeLineItem{
			Name: "Tax", Currency: currency, UnitCents: payment.MinorUnits(o.Tax), Quantity: 1,
		})
	}

	id := o.ID.String()
	session, err := s.stripe.CreateCheckoutSession(ctx, payment.CheckoutSessionParams{
		OrderID:       id,
		CustomerEmail: o.Email,
		SuccessURL:    s.successURL(id) + "&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.clientPage("/cart", id),
		LineItems:     items,
	})
	if err != nil {
		return "", err
	}

	if err := s.orders.AttachStripeSession(ctx, o.ID, session.ID); err != nil {
		return "", err
	}
	return session.URL, nil
}

func (s *service) startPayPal(ctx context.Context, o *order.Order) (string, error) {
	items := make([]payment.PayPalItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, payment.PayPalItem{
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    payment.FormatAmount(it.UnitPrice),
		})
	}

	addr := o.ShippingAddress
	id := o.ID.String()
	q := "?orderId=" + url.QueryEscape(id)

	res, err := s.paypal.CreateOrder(ctx, payment.PayPalOrderParams{
		OrderID:    id,
		Currency:   s.settings.Currency,
		Total:      payment.FormatAmount(o.Total),
		ItemTotal:  payment.FormatAmount(o.Subtotal),
		Shipping:   payment.FormatAmount(o.ShippingFee),
		Tax:        payment.FormatAmount(o.Tax),
		Items:      items,
		ShipToName: addr.FullName,
		ShipTo: payment.PayPalAddress{
			AddressLine1: addr.Line1,
			AddressLine2: addr.Line2,
			AdminArea2:   addr.City,
			AdminArea1:   addr.State,
			PostalCode:   addr.PostalCode,
			CountryCode:  payment.CountryCode(addr.Country),
		},
		ReturnURL:    s.settings.ServerURL + "/payment/paypal-success" + q,
		CancelURL:    s.settings.ServerURL + "/payment/paypal-cancel" + q,
		BrandName:    s.settings.BrandName,
		PayerEmail:   o.Email,
		InvoiceLabel: o.OrderNumber,
	})
	if err != nil {
		return "", err
	}
	if res.ApproveURL == "" {
		return "", &payment.ProcessorError{
			Provider: payment.ProviderPayPal,
			Message:  "paypal order has no approval link",
		}
	}

	if err := s.orders.AttachPayPalOrder(ctx, o.ID, res.ID); err != nil {
		return "", err
	}
	return res.ApproveURL, nil
}

func (s *service) HandleStripeEvent(ctx context.Context, payload []byte, signature string) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "HandleStripeEvent"),
	)

	ev, err := s.stripe.ConstructEvent(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) ||
			errors.Is(err, payment.ErrMissingSignature) ||
			errors.Is(err, payment.ErrSignatureExpired) ||
			errors.Is(err, payment.ErrNotConfigured) {
			log.Warn("stripe webhook rejected", zap.Error(err))
			return err
		}
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	log = log.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))

	var cs *payment.StripeCheckoutSession
	switch ev.Type {
	case payment.EventCheckoutCompleted,
		payment.EventCheckoutAsyncSuccess,
		payment.EventCheckoutExpired,
		payment.EventCheckoutAsyncFailed:
		cs, err = ev.CheckoutSession()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
	default:
		log.Debug("stripe event ignored")
		return nil
	}

	webhookID, dup, err := s.webhooks.SaveWebhook(ctx, payment.WebhookEvent{
		Provider:       payment.ProviderStripe,
		EventID:        ev.ID,
		EventType:      ev.Type,
		ExternalID:     cs.OrderID(),
		SignatureValid: true,
		Payload:        json.RawMessage(payload),
	})
	if err != nil {
		return err
	}
	if dup {
		s.duplicates.Inc()
		log.Info("stripe event already processed")
		return nil
	}

	if err := s.applyStripeSession(ctx, ev.Type, cs); err != nil {
		s.failures.Inc()
		if mErr := s.webhooks.MarkWebhookFailed(ctx, webhookID, err.Error()); mErr != nil {
			log.Error("failed to record webhook failure", zap.Error(mErr))
		}
		// unknown orders are acknowledged, retrying cannot fix them
		if errors.Is(err, order.ErrOrderNotFound) || errors.Is(err, order.ErrInvalidOrderID) {
			log.Warn("stripe event references unknown order", zap.Error(err))
			return nil
		}
		log.Error("stripe event processing failed", zap.Error(err))
		return err
	}

	if err := s.webhooks.MarkWebhookProcessed(ctx, webhookID); err != nil {
		log.Error("failed to mark webhook processed", zap.Error(err))
	}
	return nil
}

func (s *service) applyStripeSession(ctx context.Context, eventType string, cs *payment.StripeCheckoutSession) error {
	log := logger.FromCtx(ctx).With(
		zap.String("session_id", cs.ID),
		zap.String("order_id", cs.OrderID()),
	)

	oid, err := order.ParseID(cs.OrderID())
	if err != nil {
		return err
	}

	switch eventType {
	case payment.EventCheckoutCompleted, payment.EventCheckoutAsyncSuccess:
		// delayed methods complete the session before the money arrives
		if eventType == payment.EventCheckoutCompleted && cs.PaymentStatus == "unpaid" {
			log.Info("checkout completed, awaiting async payment")
			return nil
		}
		_, applied, err := s.orders.MarkPaid(ctx, oid, order.PaymentConfirmation{
			StripePaymentIntentID: cs.PaymentIntent,
		})
		if err != nil {
			return err
		}
		s.countConfirmation(applied)

	case payment.EventCheckoutExpired, payment.EventCheckoutAsyncFailed:
		if _, err := s.orders.MarkPaymentFailed(ctx, oid); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) countConfirmation(applied bool) {
	if applied {
		s.applied.Inc()
		return
	}
	s.duplicates.Inc()
}

func (s *service) CapturePayPal(ctx context.Context, orderID, token string) (string, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CapturePayPal"),
		zap.String("order_id", orderID),
	)
	fail := s.failureURL(orderID)

	if strings.TrimSpace(token) == "" {
		return fail, ErrMissingToken
	}

	o, err := s.orders.Lookup(ctx, orderID)
	if err != nil {
		return fail, err
	}
	success := s.successURL(o.ID.String())

	// The token must be the PayPal order created for this very order.
	if o.PaymentMethod != order.MethodPayPal || o.PayPalOrderID == nil || *o.PayPalOrderID != token {
		log.Warn("paypal token does not belong to order",
			zap.String("token", token),
			zap.String("payment_method", string(o.PaymentMethod)),
		)
		return fail, ErrTokenMismatch
	}
	if o.PaymentStatus == order.PaymentPaid {
		s.duplicates.Inc()
		log.Info("order already paid, skipping capture")
		return success, nil
	}
	if o.PaymentStatus != order.PaymentUnpaid {
		return fail, order.ErrInvalidPaymentState
	}

	capture, err := s.paypal.CaptureOrder(ctx, token)
	if err != nil {
		s.failures.Inc()
		return fail, err
	}
	s.recordCapture(ctx, o.ID.String(), token, capture)

	if capture.Status != payment.CaptureStatusCompleted {
		log.Info("paypal capture not completed, order untouched", zap.String("status", capture.Status))
		return fail, fmt.Errorf("%w: %s", ErrNotCompleted, capture.Status)
	}

	_, applied, err := s.orders.MarkPaid(ctx, o.ID, order.PaymentConfirmation{
		PayPalCaptureID: capture.CaptureID,
	})
	if err != nil {
		s.failures.Inc()
		log.Error("paypal captured but order not updated",
			zap.String("capture_id", capture.CaptureID),
			zap.Error(err),
		)
		return fail, err
	}
	s.countConfirmation(applied)
	return success, nil
}

// recordCapture keeps an audit row of the capture answer. It is best effort.
func (s *service) recordCapture(ctx context.Context, orderID, token string, c *payment.PayPalCapture) {
	payload, _ := json.Marshal(c)
	id, dup, err := s.webhooks.SaveWebhook(ctx, payment.WebhookEvent{
		Provider:       payment.ProviderPayPal,
		EventID:        "capture:" + token,
		EventType:      "capture." + strings.ToLower(c.Status),
		ExternalID:     orderID,
		SignatureValid: true,
		Payload:        payload,
	})
	if err != nil {
		logger.FromCtx(ctx).Warn("paypal capture not recorded", zap.Error(err))
		return
	}
	if !dup && c.Status == payment.CaptureStatusCompleted {
		_ = s.webhooks.MarkWebhookProcessed(ctx, id)
	}
}

func (s *service) CancelPayPal(ctx context.Context, orderID string) string {
	logger.FromCtx(ctx).Info("paypal checkout cancelled by buyer",
		zap.String("layer", "service"),
		zap.String("order_id", orderID),
	)
	return s.clientPage("/cart", orderID)
}

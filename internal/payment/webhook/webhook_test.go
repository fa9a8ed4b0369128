package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront-be/internal/checkout"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockCheckout struct {
	mock.Mock
}

func (m *MockCheckout) CreatePayment(ctx context.Context, in order.PlaceInput) (*checkout.Session, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.Session), args.Error(1)
}

func (m *MockCheckout) HandleStripeEvent(ctx context.Context, payload []byte, signature string) error {
	args := m.Called(ctx, payload, signature)
	return args.Error(0)
}

func (m *MockCheckout) CapturePayPal(ctx context.Context, orderID, token string) (string, error) {
	args := m.Called(ctx, orderID, token)
	return args.String(0), args.Error(1)
}

func (m *MockCheckout) CancelPayPal(ctx context.Context, orderID string) string {
	return m.Called(ctx, orderID).String(0)
}

func TestHandler_StripeWebhook(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"Processed", nil, http.StatusOK},
		{"BadSignature", payment.ErrInvalidSignature, http.StatusBadRequest},
		{"MissingSignature", payment.ErrMissingSignature, http.StatusBadRequest},
		{"Stale", payment.ErrSignatureExpired, http.StatusBadRequest},
		{"Malformed", fmt.Errorf("%w: eof", checkout.ErrMalformedEvent), http.StatusBadRequest},
		{"Transient", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockCheckout)
			svc.On("HandleStripeEvent", mock.Anything, body, "t=1,v1=abc").Return(tt.err)

			req := httptest.NewRequest(http.MethodPost, "/payment/stripe-webhook", bytes.NewReader(body))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			w := httptest.NewRecorder()

			NewHandler(svc).StripeWebhook(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_PayPalSuccess(t *testing.T) {
	t.Run("Completed", func(t *testing.T) {
		svc := new(MockCheckout)
		svc.On("CapturePayPal", mock.Anything, "order-1", "TOKEN").
			Return("http://shop.local/order-success?orderId=order-1", nil)

		req := httptest.NewRequest(http.MethodGet, "/payment/paypal-success?orderId=order-1&token=TOKEN&PayerID=P1", nil)
		w := httptest.NewRecorder()
		NewHandler(svc).PayPalSuccess(w, req)

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "http://shop.local/order-success?orderId=order-1", w.Header().Get("Location"))
	})

	t.Run("NotCompleted", func(t *testing.T) {
		svc := new(MockCheckout)
		svc.On("CapturePayPal", mock.Anything, "order-1", "TOKEN").
			Return("http://shop.local/payment-failed?orderId=order-1", checkout.ErrNotCompleted)

		req := httptest.NewRequest(http.MethodGet, "/payment/paypal-success?orderId=order-1&token=TOKEN", nil)
		w := httptest.NewRecorder()
		NewHandler(svc).PayPalSuccess(w, req)

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "http://shop.local/payment-failed?orderId=order-1", w.Header().Get("Location"))
	})
}

func TestHandler_PayPalCancel(t *testing.T) {
	svc := new(MockCheckout)
	svc.On("CancelPayPal", mock.Anything, "order-1").Return("http://shop.local/cart?orderId=order-1")

	req := httptest.NewRequest(http.MethodGet, "/payment/paypal-cancel?orderId=order-1&token=TOKEN", nil)
	w := httptest.NewRecorder()
	NewHandler(svc).PayPalCancel(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "http://shop.local/cart?orderId=order-1", w.Header().Get("Location"))
}

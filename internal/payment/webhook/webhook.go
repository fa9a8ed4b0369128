package webhook

import (
	"errors"
	"io"
	"net/http"

	"storefront-be/internal/checkout"
	"storefront-be/internal/logger"
	"storefront-be/internal/payment"
	"storefront-be/internal/utils"

	"go.uber.org/zap"
)

// maxPayloadBytes bounds a webhook body; Stripe events are far smaller.
const maxPayloadBytes = 1 << 20

type Handler struct {
	checkout checkout.Service
}

func NewHandler(svc checkout.Service) *Handler {
	return &Handler{checkout: svc}
}

// StripeWebhook handles POST /payment/stripe-webhook. The body is read raw;
// it is only decoded after the signature has been verified.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context()).With(zap.String("handler", "StripeWebhook"))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		utils.WriteJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	err = h.checkout.HandleStripeEvent(r.Context(), body, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		utils.WriteJSON(w, http.StatusOK, map[string]any{"received": true})
	case errors.Is(err, payment.ErrMissingSignature),
		errors.Is(err, payment.ErrInvalidSignature),
		errors.Is(err, payment.ErrSignatureExpired):
		utils.WriteJSONError(w, "Webhook Error: "+err.Error(), http.StatusBadRequest)
	case errors.Is(err, checkout.ErrMalformedEvent):
		utils.WriteJSONError(w, "Webhook Error: "+err.Error(), http.StatusBadRequest)
	default:
		log.Error("stripe webhook processing failed", zap.Error(err))
		utils.WriteJSONError(w, "webhook processing failed", http.StatusInternalServerError)
	}
}

// PayPalSuccess handles the buyer's return from PayPal approval.
func (h *Handler) PayPalSuccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orderID := q.Get("orderId")

	dest, err := h.checkout.CapturePayPal(r.Context(), orderID, q.Get("token"))
	if err != nil {
		logger.FromCtx(r.Context()).Warn("paypal return not settled",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

func (h *Handler) PayPalCancel(w http.ResponseWriter, r *http.Request) {
	dest := h.checkout.CancelPayPal(r.Context(), r.URL.Query().Get("orderId"))
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

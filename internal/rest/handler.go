package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"storefront-be/internal/auth"
	"storefront-be/internal/cart"
	"storefront-be/internal/checkout"
	"storefront-be/internal/metrics"
	"storefront-be/internal/middleware"
	"storefront-be/internal/order"
	"storefront-be/internal/payment/webhook"
	"storefront-be/internal/product"
	"storefront-be/internal/user"
	"storefront-be/internal/utils"

	"github.com/google/uuid"
)

const maxJSONBytes = 1 << 20

type Handler struct {
	products product.Service
	carts    cart.Service
	orders   order.Service
	checkout checkout.Service
	users    user.Service
	webhooks *webhook.Handler
	metrics  *metrics.Registry

	// SecureCookies marks issued cookies Secure.
	SecureCookies bool
}

func NewHandler(
	products product.Service,
	carts cart.Service,
	orders order.Service,
	checkoutSvc checkout.Service,
	users user.Service,
	reg *metrics.Registry,
) *Handler {
	if reg == nil {
		reg = metrics.Default
	}
	return &Handler{
		products: products,
		carts:    carts,
		orders:   orders,
		checkout: checkoutSvc,
		users:    users,
		webhooks: webhook.NewHandler(checkoutSvc),
		metrics:  reg,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)

	mux.HandleFunc("GET /products", h.listProducts)
	mux.HandleFunc("GET /products/{id}", h.getProduct)
	mux.HandleFunc("POST /products", middleware.RequireAdmin(h.createProduct))
	mux.HandleFunc("PUT /products/{id}", middleware.RequireAdmin(h.updateProduct))
	mux.HandleFunc("PATCH /products/{id}", middleware.RequireAdmin(h.patchProduct))
	mux.HandleFunc("PATCH /products/{id}/status", middleware.RequireAdmin(h.setProductStatus))
	mux.HandleFunc("DELETE /products/{id}", middleware.RequireAdmin(h.deleteProduct))

	mux.HandleFunc("GET /cart", h.getCart)
	mux.HandleFunc("POST /cart/add", h.addToCart)
	mux.HandleFunc("PUT /cart/update", h.updateCart)
	mux.HandleFunc("DELETE /cart/remove", h.removeFromCart)
	mux.HandleFunc("DELETE /cart/clear", h.clearCart)
	mux.HandleFunc("POST /cart/merge", middleware.RequireAuth(h.mergeCart))

	mux.HandleFunc("GET /orders", h.listOrders)
	mux.HandleFunc("POST /orders", h.placeOrder)
	mux.HandleFunc("POST /orders/create-payment", h.createPayment)
	mux.HandleFunc("GET /orders/by-id/{orderId}", h.lookupOrder)
	mux.HandleFunc("GET /orders/{id}", h.getOrder)
	mux.HandleFunc("PUT /orders/{id}", middleware.RequireAdmin(h.updateOrderStatus))

	mux.HandleFunc("POST /payment/stripe-webhook", h.webhooks.StripeWebhook)
	mux.HandleFunc("GET /payment/paypal-success", h.webhooks.PayPalSuccess)
	mux.HandleFunc("GET /payment/paypal-cancel", h.webhooks.PayPalCancel)

	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("POST /login", h.login)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"counters": h.metrics.Snapshot(),
	})
}

// decodeJSON reads a size-limited JSON body into dst. Unknown fields are
// rejected when strict is set.
func decodeJSON(r *http.Request, dst any, strict bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// identity resolves the cart owner: the authenticated user, otherwise the
// guest session, which is issued on first use.
func (h *Handler) identity(w http.ResponseWriter, r *http.Request) cart.Identity {
	if uid, ok := utils.GetUserIDFromContext(r.Context()); ok {
		return cart.UserIdentity(uid)
	}
	return cart.GuestIdentity(auth.EnsureGuestID(w, r, h.SecureCookies))
}

func currentUserID(r *http.Request) *uuid.UUID {
	if uid, ok := utils.GetUserIDFromContext(r.Context()); ok {
		return &uid
	}
	return nil
}

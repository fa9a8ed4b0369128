package rest

import (
	"net/http"

	"storefront-be/internal/auth"
	"storefront-be/internal/order"
	"storefront-be/internal/utils"

	"github.com/google/uuid"
)

// checkoutInput decodes a checkout body and stamps the caller's identity on it.
func (h *Handler) checkoutInput(w http.ResponseWriter, r *http.Request) (order.PlaceInput, error) {
	var in order.PlaceInput
	if err := decodeJSON(r, &in, false); err != nil {
		return in, err
	}
	in.UserID = currentUserID(r)
	if in.UserID == nil {
		in.GuestID = auth.EnsureGuestID(w, r, h.SecureCookies)
	}
	return in, nil
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	in, err := h.checkoutInput(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, emails, err := h.orders.PlaceOrder(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]any{
		"order":       o,
		"emailStatus": emails,
	})
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	in, err := h.checkoutInput(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := h.checkout.CreatePayment(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"url":         sess.URL,
		"orderId":     sess.OrderID,
		"orderNumber": sess.OrderNumber,
		"provider":    sess.Provider,
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, err := h.orders.List(r.Context(), order.ListFilter{
		Status:        order.Status(q.Get("status")),
		PaymentStatus: order.PaymentStatus(q.Get("paymentStatus")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"count":  len(orders),
		"orders": orders,
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"order": o})
}

// lookupOrder backs the payment result page. Holding the order uuid, which is
// only handed out through the checkout redirect, is enough to read it; an
// order number additionally requires the caller to own the order.
func (h *Handler) lookupOrder(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("orderId")
	if _, err := uuid.Parse(ref); err != nil {
		h.getOwnedByNumber(w, r, ref)
		return
	}

	o, err := h.orders.Lookup(r.Context(), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"order": o})
}

func (h *Handler) getOwnedByNumber(w http.ResponseWriter, r *http.Request, number string) {
	o, err := h.orders.Lookup(r.Context(), number)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Get applies the ownership check.
	o, err = h.orders.Get(r.Context(), o.ID.String())
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"order": o})
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status order.Status `json:"status"`
	}
	if err := decodeJSON(r, &body, false); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), body.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"order": o})
}

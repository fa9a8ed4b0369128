package rest

import (
	"fmt"
	"net/http"

	"storefront-be/internal/auth"
	"storefront-be/internal/cart"
	"storefront-be/internal/logger"
	"storefront-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

func (req cartItemRequest) quantity() (int, error) {
	if req.Quantity == nil {
		return 0, fmt.Errorf("%w: quantity is required", errBadRequest)
	}
	return *req.Quantity, nil
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	id := h.identity(w, r)

	// admins may inspect any user's cart
	if q := r.URL.Query().Get("userId"); q != "" && utils.IsAdmin(r.Context()) {
		uid, err := uuid.Parse(q)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: userId", errBadRequest))
			return
		}
		id = cart.UserIdentity(uid)
	}

	c, err := h.carts.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"cart": c})
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	qty, err := req.quantity()
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.carts.Add(r.Context(), h.identity(w, r), req.ProductID, qty)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"message": "item added to cart", "cart": c})
}

func (h *Handler) updateCart(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	qty, err := req.quantity()
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.carts.Update(r.Context(), h.identity(w, r), req.ProductID, qty)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"message": "cart updated", "cart": c})
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("productId")
	if productID == "" {
		var req cartItemRequest
		if err := decodeJSON(r, &req, false); err != nil {
			writeError(w, r, err)
			return
		}
		productID = req.ProductID
	}

	c, err := h.carts.Remove(r.Context(), h.identity(w, r), productID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"message": "item removed", "cart": c})
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Clear(r.Context(), h.identity(w, r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"message": "cart cleared", "cart": c})
}

func (h *Handler) mergeCart(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserIDFromContext(r.Context())

	// Only the caller's own guest session can be merged.
	guestID := auth.GuestID(r)
	if guestID == "" {
		writeError(w, r, cart.ErrMissingIdentity)
		return
	}

	c, err := h.carts.Merge(r.Context(), uid, guestID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// the guest session is spent
	http.SetCookie(w, &http.Cookie{
		Name:     auth.GuestCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
	})
	logger.FromCtx(r.Context()).Info("guest cart merged",
		zap.String("user_id", uid.String()),
		zap.Int("items", len(c.Items)),
	)
	utils.WriteJSON(w, http.StatusOK, map[string]any{"message": "cart merged", "cart": c})
}

package rest

import (
	"net/http"
	"time"

	"storefront-be/internal/auth"
	"storefront-be/internal/user"
	"storefront-be/internal/utils"
)

func (h *Handler) setAccessCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessTokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(24 * time.Hour),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in user.RegisterInput
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, r, err)
		return
	}

	token, u, err := h.users.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.setAccessCookie(w, token)
	utils.WriteJSON(w, http.StatusCreated, map[string]any{"token": token, "user": u})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in user.LoginInput
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, r, err)
		return
	}

	token, u, err := h.users.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.setAccessCookie(w, token)
	utils.WriteJSON(w, http.StatusOK, map[string]any{"token": token, "user": u})
}

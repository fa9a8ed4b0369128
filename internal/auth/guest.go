package auth

import (
	"net/http"
	"time"

	"storefront-be/internal/utils"

	"github.com/google/uuid"
)

const (
	GuestCookieName = "guest_session"
	GuestCookieTTL  = 30 * 24 * time.Hour
)

// GuestID returns the guest session id carried by the request, if any.
func GuestID(r *http.Request) string {
	if id := utils.GetGuestIDFromContext(r.Context()); id != "" {
		return id
	}
	cookie, err := r.Cookie(GuestCookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return ""
	}
	return cookie.Value
}

// EnsureGuestID returns the request's guest id, issuing a new guest_session
// cookie on first use.
func EnsureGuestID(w http.ResponseWriter, r *http.Request, secure bool) string {
	if id := GuestID(r); id != "" {
		return id
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     GuestCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(GuestCookieTTL.Seconds()),
		Expires:  time.Now().Add(GuestCookieTTL),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// GuestMiddleware puts an existing guest session id into the request context.
func GuestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := GuestID(r); id != "" {
			r = r.WithContext(utils.WithGuestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

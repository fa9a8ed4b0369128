package rest

import (
	"net/http"

	"storefront-be/internal/auth"
	"storefront-be/internal/logger"
	"storefront-be/internal/middleware"
)

type RouterConfig struct {
	UploadDir     string
	AllowedOrigin string
	Tokens        middleware.TokenParser
	Limiter       *middleware.RateLimiter
}

// NewRouter mounts the API and the uploaded images behind the middleware chain.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errRouteNotFound)
	})

	var handler http.Handler = mux
	if cfg.Limiter != nil {
		handler = cfg.Limiter.Middleware(handler)
	}
	handler = auth.GuestMiddleware(handler)
	handler = middleware.Auth(cfg.Tokens)(handler)
	handler = middleware.CORS(cfg.AllowedOrigin)(handler)
	handler = middleware.Recover(handler)
	handler = logger.LoggingMiddleware(handler)
	handler = logger.RequestIDMiddleware(handler)
	return handler
}

package rest

import (
	"errors"
	"net/http"

	"storefront-be/internal/cart"
	"storefront-be/internal/lock"
	"storefront-be/internal/logger"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
	"storefront-be/internal/product"
	"storefront-be/internal/user"
	"storefront-be/internal/utils"

	"go.uber.org/zap"
)

var (
	errBadRequest    = errors.New("invalid request body")
	errRouteNotFound = errors.New("route not found")
)

var badRequest = []error{
	errBadRequest,
	product.ErrInvalidProductID,
	product.ErrNameRequired,
	product.ErrNegativePrice,
	product.ErrNegativeStock,
	product.ErrTooManyImages,
	product.ErrNoFieldsToUpdate,
	product.ErrInvalidImage,
	cart.ErrMissingIdentity,
	cart.ErrInvalidQuantity,
	cart.ErrInsufficientStock,
	order.ErrNoItems,
	order.ErrInvalidQuantity,
	order.ErrAddressRequired,
	order.ErrEmailRequired,
	order.ErrInvalidOrderID,
	order.ErrInvalidStatus,
	order.ErrInvalidTransition,
	order.ErrInvalidPaymentState,
	order.ErrInsufficientStock,
	order.ErrUnsupportedPaymentMethod,
	user.ErrInvalidEmail,
	user.ErrPasswordTooShort,
}

var notFound = []error{
	errRouteNotFound,
	product.ErrProductNotFound,
	cart.ErrCartItemNotFound,
	order.ErrOrderNotFound,
	user.ErrUserNotFound,
}

var conflict = []error{
	user.ErrEmailExists,
	order.ErrDuplicateOrderNumber,
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// statusFor maps a service error to its HTTP status and client message.
func statusFor(err error) (int, string) {
	var perr *payment.ProcessorError
	switch {
	case isAny(err, badRequest):
		return http.StatusBadRequest, err.Error()
	case isAny(err, notFound):
		return http.StatusNotFound, err.Error()
	case isAny(err, conflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, user.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, lock.ErrLockTimeout):
		return http.StatusInternalServerError, "cart is busy with another request, please retry"
	case errors.As(err, &perr):
		return http.StatusInternalServerError, perr.Message
	case errors.Is(err, payment.ErrNotConfigured):
		return http.StatusInternalServerError, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	log := logger.FromCtx(r.Context())
	if code >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		log.Info("request rejected", zap.String("path", r.URL.Path), zap.Int("status", code), zap.Error(err))
	}
	utils.WriteJSONError(w, msg, code)
}

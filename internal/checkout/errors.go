package checkout

import (
	"context"
	"errors"
	"net/http"
)

var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrProductNotFound        = errors.New("product not found")
	ErrGateway                = errors.New("payment gateway error")
	ErrPaymentIntentFailed    = errors.New("payment intent failed")
	ErrOrderPersistence       = errors.New("order persistence failure")
	ErrUnresolvedNotification = errors.New("unresolved notification")
)

func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"

	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"

	case errors.Is(err, ErrPaymentIntentFailed):
		return "payment_intent_failed"

	case errors.Is(err, ErrGateway):
		return "gateway_error"

	case errors.Is(err, ErrOrderPersistence):
		return "order_persistence"

	case errors.Is(err, ErrUnresolvedNotification):
		return "unresolved_notification"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest

	case errors.Is(err, ErrProductNotFound):
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}

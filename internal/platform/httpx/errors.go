// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/platform/cache"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

// StatusFor maps a domain error onto an HTTP status code.
func StatusFor(err error) int {
	var (
		stockErr *shared.InsufficientStockError
		rateErr  *shared.RateNotFoundError
		transErr *shared.InvalidTransitionError
		chainErr *shared.ChainIncompleteError
	)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.As(err, &stockErr), errors.As(err, &transErr):
		return http.StatusConflict
	case errors.Is(err, cache.ErrLockNotObtained), errors.Is(err, shared.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.As(err, &rateErr), errors.As(err, &chainErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	detail := shared.UserSafeMessage(err)
	if status == http.StatusInternalServerError {
		detail = ""
	}
	problem := ProblemDetail{
		Type:   problemType(err),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
	var stockErr *shared.InsufficientStockError
	if errors.As(err, &stockErr) {
		problem.Extra = map[string]any{"available": stockErr.Available, "requested": stockErr.Requested}
	}
	JSON(w, status, problem)
}

func problemType(err error) string {
	var (
		stockErr *shared.InsufficientStockError
		rateErr  *shared.RateNotFoundError
		transErr *shared.InvalidTransitionError
		chainErr *shared.ChainIncompleteError
	)
	switch {
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.As(err, &rateErr):
		return "rate_not_found"
	case errors.As(err, &transErr):
		return "invalid_transition"
	case errors.As(err, &chainErr):
		return "chain_incomplete"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	case errors.Is(err, shared.ErrValidation):
		return "validation_error"
	case errors.Is(err, shared.ErrForbidden):
		return "forbidden"
	case errors.Is(err, shared.ErrCorruptHierarchy):
		return "corrupt_hierarchy"
	default:
		return ""
	}
}

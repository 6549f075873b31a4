package shared

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates the caller's scope does not cover the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrCorruptHierarchy indicates a cycle or orphan in the location tree.
	ErrCorruptHierarchy = errors.New("corrupt location hierarchy")
	// ErrConcurrentUpdate signals a lost compare-and-swap on a versioned row.
	ErrConcurrentUpdate = errors.New("concurrent update detected")
)

// Validationf wraps ErrValidation with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a formatted detail.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InsufficientStockError reports an allocation shortfall.
type InsufficientStockError struct {
	LocationID int64
	ProductID  int64
	Available  int64
	Requested  int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d at location %d: available %d, requested %d",
		e.ProductID, e.LocationID, e.Available, e.Requested)
}

// RateNotFoundError reports a missing exchange rate for a currency pair.
type RateNotFoundError struct {
	From string
	To   string
}

func (e *RateNotFoundError) Error() string {
	return fmt.Sprintf("exchange rate %s->%s not found", e.From, e.To)
}

// ChainIncompleteError marks a pricing chain with a gap. The partial chain is still usable.
type ChainIncompleteError struct {
	ProductID  int64
	BrokenAt   int64
	LocationID int64
}

func (e *ChainIncompleteError) Error() string {
	return fmt.Sprintf("price chain for product %d to location %d incomplete at location %d",
		e.ProductID, e.LocationID, e.BrokenAt)
}

// InvalidTransitionError reports a state machine misuse.
type InvalidTransitionError struct {
	Current   string
	Attempted string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s from %s", e.Attempted, e.Current)
}

// IsRetryable reports whether err is a contention failure worth retrying.
// Business rule failures are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConcurrentUpdate) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		}
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// UserSafeMessage returns a message suitable for API consumers.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		stockErr *InsufficientStockError
		rateErr  *RateNotFoundError
		chainErr *ChainIncompleteError
		transErr *InvalidTransitionError
	)
	switch {
	case errors.As(err, &stockErr), errors.As(err, &rateErr), errors.As(err, &chainErr), errors.As(err, &transErr):
		return err.Error()
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
		return err.Error()
	default:
		return "internal error"
	}
}

package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

func TestRetryStopsOnBusinessError(t *testing.T) {
	calls := 0
	businessErr := &shared.InsufficientStockError{Available: 1, Requested: 2}
	err := Retry(context.Background(), 3, func(context.Context) error {
		calls++
		return businessErr
	}, nil)
	require.Equal(t, 1, calls)
	var stockErr *shared.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
}

func TestRetryRecoversFromSerializationFailure(t *testing.T) {
	calls := 0
	retries := 0
	err := Retry(context.Background(), 3, func(context.Context) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	}, func(int, error) { retries++ })
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, 2, retries)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 2, func(context.Context) error {
		calls++
		return shared.ErrConcurrentUpdate
	}, nil)
	require.Equal(t, 2, calls)
	require.ErrorIs(t, err, shared.ErrConcurrentUpdate)
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLockerRejectsConcurrentHolder(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewLocker(client, time.Minute)
	ctx := context.Background()

	err := locker.WithLock(ctx, "pricing:template:1", func(ctx context.Context) error {
		inner := locker.WithLock(ctx, "pricing:template:1", func(context.Context) error { return nil })
		require.ErrorIs(t, inner, ErrLockNotObtained)
		return nil
	})
	require.NoError(t, err)

	ran := false
	require.NoError(t, locker.WithLock(ctx, "pricing:template:1", func(context.Context) error {
		ran = true
		return nil
	}))
	require.True(t, ran)
}

func TestNilLockerRunsDirectly(t *testing.T) {
	var locker *Locker
	ran := false
	require.NoError(t, locker.WithLock(context.Background(), "k", func(context.Context) error {
		ran = true
		return nil
	}))
	require.True(t, ran)
}

package fx

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "fx:version"

// Cache keeps resolved rates in Redis. Writers bump a version so stale
// entries fall out of use without scanning keys.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache builds a rate cache. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

func (c *Cache) key(ctx context.Context, from, to string, asOf time.Time) (string, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		ver = 0
	} else if err != nil {
		return "", err
	}
	return strings.Join([]string{"fx", "rate", from, to, asOf.Format(DateLayout), strconv.FormatInt(ver, 10)}, ":"), nil
}

// Get returns the cached rate for a pair on a day.
func (c *Cache) Get(ctx context.Context, from, to string, asOf time.Time) (ExchangeRate, bool, error) {
	if !c.enabled() {
		return ExchangeRate{}, false, nil
	}
	key, err := c.key(ctx, from, to, asOf)
	if err != nil {
		return ExchangeRate{}, false, err
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ExchangeRate{}, false, nil
	}
	if err != nil {
		return ExchangeRate{}, false, err
	}
	var rate ExchangeRate
	if err := json.Unmarshal(raw, &rate); err != nil {
		return ExchangeRate{}, false, err
	}
	return rate, true, nil
}

// Put stores a resolved rate.
func (c *Cache) Put(ctx context.Context, asOf time.Time, rate ExchangeRate) error {
	if !c.enabled() {
		return nil
	}
	key, err := c.key(ctx, rate.FromCurrency, rate.ToCurrency, asOf)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(rate)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Bump invalidates every cached rate.
func (c *Cache) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

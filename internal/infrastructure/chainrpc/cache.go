package chainrpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"dspacegw/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	receiptCacheKeyPrefix = "dspacegw:receipt:"
	defaultCacheTTL       = time.Hour
)

type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

// CachedClient serves found receipts from Redis. Receipts never change once
// mined, so entries are only evicted by TTL. Missing receipts are not cached.
type CachedClient struct {
	*Client
	cache *redis.Client
	ttl   time.Duration
}

func NewCachedClient(base *Client, cfg CacheConfig) (*CachedClient, error) {
	if base == nil {
		return nil, errors.New("base client is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &CachedClient{Client: base}, nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &CachedClient{Client: base, cache: client, ttl: cfg.TTL}, nil
}

func (c *CachedClient) GetReceipt(ctx context.Context, hash domain.TxHash) (domain.Receipt, error) {
	if c.cache == nil {
		return c.Client.GetReceipt(ctx, hash)
	}
	key := receiptCacheKey(hash)
	if cached, err := c.cache.Get(ctx, key).Result(); err == nil {
		var receipt domain.Receipt
		if err := json.Unmarshal([]byte(cached), &receipt); err == nil {
			return receipt, nil
		}
	}

	receipt, err := c.Client.GetReceipt(ctx, hash)
	if err != nil {
		return domain.Receipt{}, err
	}
	payload, err := json.Marshal(receipt)
	if err != nil {
		return receipt, nil
	}
	_ = c.cache.Set(ctx, key, payload, c.ttl).Err()
	return receipt, nil
}

func (c *CachedClient) Close() error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Close()
}

func receiptCacheKey(hash domain.TxHash) string {
	return receiptCacheKeyPrefix + hash.Hex()
}

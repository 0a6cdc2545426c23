package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	assetListTTL     = 60 * time.Second
	assetListTimeout = 300 * time.Millisecond
	generationKey    = "assets:list:gen"
)

// AssetListCache stores serialized GET /assets pages. Pages are keyed by a
// generation counter so one INCR invalidates every page at once.
type AssetListCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAssetListCache(client *redis.Client) *AssetListCache {
	if client == nil {
		return nil
	}
	return &AssetListCache{client: client, ttl: assetListTTL}
}

func (c *AssetListCache) cacheContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), assetListTimeout)
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= assetListTimeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, assetListTimeout)
}

func (c *AssetListCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func pageKey(gen int64, skip, limit int) string {
	return fmt.Sprintf("assets:list:%d:%d:%d", gen, skip, limit)
}

// Get returns a cached page together with the generation it was looked up
// under. A miss is redis.Nil. The generation is -1 when it could not be read.
func (c *AssetListCache) Get(ctx context.Context, skip, limit int) ([]byte, int64, error) {
	if c == nil || c.client == nil {
		return nil, -1, redis.Nil
	}
	ctx, cancel := c.cacheContext(ctx)
	defer cancel()

	gen, err := c.generation(ctx)
	if err != nil {
		return nil, -1, err
	}
	payload, err := c.client.Get(ctx, pageKey(gen, skip, limit)).Bytes()
	return payload, gen, err
}

// Set stores a page under gen, the generation returned by the Get that
// preceded the database read. A page read before an Invalidate therefore
// lands under a generation no reader uses any more.
func (c *AssetListCache) Set(ctx context.Context, gen int64, skip, limit int, payload []byte) error {
	if c == nil || c.client == nil || gen < 0 {
		return nil
	}
	ctx, cancel := c.cacheContext(ctx)
	defer cancel()

	return c.client.Set(ctx, pageKey(gen, skip, limit), payload, c.ttl).Err()
}

// Invalidate drops every cached page.
func (c *AssetListCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ctx, cancel := c.cacheContext(ctx)
	defer cancel()

	return c.client.Incr(ctx, generationKey).Err()
}

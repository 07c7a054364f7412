package datastore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"ai-list-filter/internal/common/logger"
)

const cacheKeyPrefix = "ai-filter:dictionary:"

// CachedDictionary keeps dictionary lookups in Redis for ttl. Cache
// failures are logged and the underlying dictionary is used instead.
type CachedDictionary struct {
	next   Dictionary
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedDictionary(next Dictionary, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedDictionary {
	return &CachedDictionary{
		next: next,
		rdb:  rdb,
		ttl:  ttl,
		logger: log.With(map[string]interface{}{
			"component": "dictionary_cache",
		}),
	}
}

func (c *CachedDictionary) PostTitles(ctx context.Context, postType string) ([]string, error) {
	return c.cached(ctx, cacheKeyPrefix+"titles:"+postType, func() ([]string, error) {
		return c.next.PostTitles(ctx, postType)
	})
}

func (c *CachedDictionary) LocationNames(ctx context.Context) ([]string, error) {
	return c.cached(ctx, cacheKeyPrefix+"locations", func() ([]string, error) {
		return c.next.LocationNames(ctx)
	})
}

// Invalidate drops the cached titles of postType and the location names.
func (c *CachedDictionary) Invalidate(ctx context.Context, postType string) error {
	return c.rdb.Del(ctx, cacheKeyPrefix+"titles:"+postType, cacheKeyPrefix+"locations").Err()
}

func (c *CachedDictionary) cached(ctx context.Context, key string, load func() ([]string, error)) ([]string, error) {
	raw, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		var names []string
		if jsonErr := json.Unmarshal([]byte(raw), &names); jsonErr == nil {
			return names, nil
		}
		c.logger.Warn("discarding unreadable cache entry", map[string]interface{}{"key": key})
	case stderrors.Is(err, redis.Nil):
	default:
		c.logger.Warn("dictionary cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}

	names, err := load()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(names)
	if err == nil {
		if setErr := c.rdb.Set(ctx, key, data, c.ttl).Err(); setErr != nil {
			c.logger.Warn("dictionary cache write failed", map[string]interface{}{"key": key, "error": setErr.Error()})
		}
	}
	return names, nil
}

// Package cache stores simulation summaries in Redis so repeated runs over
// the same slate and seed skip the expensive phases. The cache is optional:
// connection failure degrades to a no-op with a warning.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/gpp-engine/internal/simulator"
	"github.com/stitts-dev/gpp-engine/internal/types"
	"github.com/stitts-dev/gpp-engine/pkg/logger"
)

const keyPrefix = "gpp:sim:"

// Entry is one cached run result.
type Entry struct {
	Summary   *simulator.Summary         `json:"summary"`
	Lineups   []*types.Lineup            `json:"lineups"`
	Exposures []simulator.PlayerExposure `json:"exposures"`
	CachedAt  time.Time                  `json:"cached_at"`
}

// ResultCache is a thin wrapper over a Redis client.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Entry
}

// New connects to Redis. A nil cache is returned on failure so callers can
// use it unconditionally.
func New(redisURL string, ttl time.Duration) *ResultCache {
	log := logger.WithComponent("cache")
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.WithField("error", err.Error()).Warn("Invalid Redis URL, caching disabled")
		return nil
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithField("error", err.Error()).Warn("Redis unreachable, caching disabled")
		return nil
	}

	log.WithFields(logrus.Fields{"redis_url": redisURL, "ttl": ttl}).Info("Result cache connected")
	return &ResultCache{client: client, ttl: ttl, log: log}
}

// Key derives the cache key from the slate fingerprint and run parameters.
func Key(slateHash string, seed int64, iterations int) string {
	return fmt.Sprintf("%s%s:%d:%d", keyPrefix, slateHash, seed, iterations)
}

// Get fetches a cached run result.
func (c *ResultCache) Get(ctx context.Context, key string) (*Entry, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WithField("error", err.Error()).Warn("Cache read failed")
		}
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.log.WithField("error", err.Error()).Warn("Cache entry corrupt, ignoring")
		return nil, false
	}
	return &entry, true
}

// Set stores a run result.
func (c *ResultCache) Set(ctx context.Context, key string, entry *Entry) {
	if c == nil {
		return
	}
	entry.CachedAt = time.Now()
	raw, err := json.Marshal(entry)
	if err != nil {
		c.log.WithField("error", err.Error()).Warn("Cache entry marshal failed")
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.WithField("error", err.Error()).Warn("Cache write failed")
	}
}

// Close releases the client.
func (c *ResultCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

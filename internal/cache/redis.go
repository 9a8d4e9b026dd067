// Package cache provides a Redis-backed result cache.
//
// Key strategy:
//   - Scrape results: leads:scrape:v1:{sha256(site|keyword|location|limit|phone)} → TTL 24 h
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/lucasfdcampos/lead-scraper/internal/domain"
)

const (
	ResultTTL = 24 * time.Hour

	resultPrefix = "leads:scrape:v1:"
)

// Client wraps redis.Client with domain-aware helpers.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a new cache Client.
// addr example: "localhost:6379"
func New(addr, password string, db int) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Client{rdb: rdb, ttl: ResultTTL}
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error { return c.rdb.Close() }

// ResultKey returns the cache key for a query on site. Keyword and location
// are compared case-insensitively.
func ResultKey(site string, q domain.Query) string {
	raw := fmt.Sprintf("%s|%s|%s|limit=%d|phone=%v",
		strings.ToLower(site),
		domain.MatchKey(q.Keyword),
		domain.MatchKey(q.Location),
		q.Limit,
		q.RequirePhone,
	)
	h := sha256.Sum256([]byte(raw))
	return resultPrefix + fmt.Sprintf("%x", h)
}

// Get returns a cached value (as raw JSON bytes) or nil on miss.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if eris.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: get")
	}
	return val, nil
}

// Set stores v as JSON with ResultTTL.
func (c *Client) Set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "cache: marshal")
	}
	if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
		return eris.Wrap(err, "cache: set")
	}
	return nil
}

// Delete removes a cache entry.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return eris.Wrap(err, "cache: delete")
	}
	return nil
}

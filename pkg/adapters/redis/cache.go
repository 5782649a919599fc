package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/director/pkg/domain"
)

// VerdictCache implements ports.VerdictCache on a Redis hash. HSETNX keeps
// the first verdict for a subject, also across replicas.
type VerdictCache struct {
	client *backend.Client
	key    string
	ttl    time.Duration
}

// CacheOption configures a VerdictCache.
type CacheOption func(*VerdictCache)

// WithCacheTTL expires the whole hash ttl after the last write.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *VerdictCache) {
		c.ttl = ttl
	}
}

// NewVerdictCache stores verdicts under prefix + "verdicts:" + namespace.
// Use the session ID as namespace for per-session caches.
func NewVerdictCache(client *backend.Client, prefix, namespace string, opts ...CacheOption) *VerdictCache {
	c := &VerdictCache{
		client: client,
		key:    prefix + "verdicts:" + namespace,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the entry or domain.ErrCacheMiss.
func (c *VerdictCache) Get(ctx context.Context, subject string) (domain.EvidenceCacheEntry, error) {
	raw, err := c.client.HGet(ctx, c.key, subject).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.EvidenceCacheEntry{}, domain.ErrCacheMiss
		}
		return domain.EvidenceCacheEntry{}, fmt.Errorf("failed to read verdict: %w", err)
	}
	var entry domain.EvidenceCacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return domain.EvidenceCacheEntry{}, fmt.Errorf("failed to decode verdict: %w", err)
	}
	return entry, nil
}

// Put stores entry unless its subject is already cached.
func (c *VerdictCache) Put(ctx context.Context, entry domain.EvidenceCacheEntry) (bool, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("failed to encode verdict: %w", err)
	}
	stored, err := c.client.HSetNX(ctx, c.key, entry.Subject, data).Result()
	if err != nil {
		return false, fmt.Errorf("failed to write verdict: %w", err)
	}
	if stored && c.ttl > 0 {
		if err := c.client.Expire(ctx, c.key, c.ttl).Err(); err != nil {
			return true, fmt.Errorf("failed to set verdict ttl: %w", err)
		}
	}
	return stored, nil
}

// Reset removes every entry of the namespace.
func (c *VerdictCache) Reset(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("failed to reset verdicts: %w", err)
	}
	return nil
}

// Len returns the number of cached verdicts.
func (c *VerdictCache) Len(ctx context.Context) (int, error) {
	n, err := c.client.HLen(ctx, c.key).Result()
	return int(n), err
}

package memory

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aretw0/director/pkg/domain"
)

// DefaultCacheSize bounds the verdicts kept per session.
const DefaultCacheSize = 4096

// VerdictCache implements ports.VerdictCache on a bounded LRU.
// Past capacity the least recently used verdicts are dropped, which only
// costs a repeated lookup.
type VerdictCache struct {
	entries *lru.Cache[string, domain.EvidenceCacheEntry]
}

// NewVerdictCache creates a cache holding up to size entries.
// A non-positive size selects DefaultCacheSize.
func NewVerdictCache(size int) (*VerdictCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, domain.EvidenceCacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &VerdictCache{entries: entries}, nil
}

// Get returns the entry or domain.ErrCacheMiss.
func (c *VerdictCache) Get(_ context.Context, subject string) (domain.EvidenceCacheEntry, error) {
	entry, ok := c.entries.Get(subject)
	if !ok {
		return domain.EvidenceCacheEntry{}, domain.ErrCacheMiss
	}
	return entry, nil
}

// Put stores entry unless its subject is already cached.
func (c *VerdictCache) Put(_ context.Context, entry domain.EvidenceCacheEntry) (bool, error) {
	present, _ := c.entries.ContainsOrAdd(entry.Subject, entry)
	return !present, nil
}

// Reset removes every entry.
func (c *VerdictCache) Reset(_ context.Context) error {
	c.entries.Purge()
	return nil
}

// Len returns the number of cached verdicts.
func (c *VerdictCache) Len() int {
	return c.entries.Len()
}

package ports

import (
	"context"

	"github.com/aretw0/director/pkg/domain"
)

// VerdictCache stores verification verdicts per subject.
// Entries are append-once: a second Put for the same subject is ignored.
type VerdictCache interface {
	// Get returns the entry for subject or domain.ErrCacheMiss.
	Get(ctx context.Context, subject string) (domain.EvidenceCacheEntry, error)

	// Put stores entry unless its subject is already present.
	// It reports whether the entry was stored.
	Put(ctx context.Context, entry domain.EvidenceCacheEntry) (bool, error)

	// Reset removes every entry.
	Reset(ctx context.Context) error
}

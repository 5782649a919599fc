package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/director/pkg/adapters/redis"
	"github.com/aretw0/director/pkg/domain"
	"github.com/aretw0/director/pkg/ports"
)

func TestRedisVerdictCache_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunVerdictCacheContract(t, redis.NewVerdictCache(client, redis.DefaultPrefix, "contract"))
}

func TestRedisVerdictCache_NamespacesAreIsolated(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()
	a := redis.NewVerdictCache(client, "p:", "a")
	b := redis.NewVerdictCache(client, "p:", "b")

	_, err := a.Put(ctx, domain.EvidenceCacheEntry{Subject: "entity:Kyoto", Verdict: domain.VerdictTrue})
	require.NoError(t, err)

	_, err = b.Get(ctx, "entity:Kyoto")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
	assert.True(t, mr.Exists("p:verdicts:a"))

	require.NoError(t, b.Reset(ctx))
	n, err := a.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRedisVerdictCache_TTL(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()
	c := redis.NewVerdictCache(client, "p:", "s", redis.WithCacheTTL(time.Minute))

	_, err := c.Put(ctx, domain.EvidenceCacheEntry{Subject: "claim:x", Verdict: domain.VerdictUnknown})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("p:verdicts:s"))

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "claim:x")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestRedisVerdictCache_CorruptEntry(t *testing.T) {
	mr, client := newClient(t)
	mr.HSet("p:verdicts:s", "entity:Broken", "{not json")

	_, err := redis.NewVerdictCache(client, "p:", "s").Get(context.Background(), "entity:Broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrCacheMiss)
}

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/director/pkg/adapters/redis"
	"github.com/aretw0/director/pkg/domain"
	"github.com/aretw0/director/pkg/ports"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunStateStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	now := time.Unix(1_800_000_000, 0)
	store := redis.NewFromClient(client,
		redis.WithTTL(time.Second),
		redis.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	state := domain.NewConversationState("session-ttl")
	state.TurnCounter = 3
	require.NoError(t, store.Save(ctx, "session-ttl", state))

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, sessions, "session-ttl")

	mr.FastForward(2 * time.Second)
	_, err = store.Load(ctx, "session-ttl")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	now = now.Add(2 * time.Second)
	sessions, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "my-session", domain.NewConversationState("my-session")))

	assert.True(t, mr.Exists("custom:app:session:my-session"))
	assert.True(t, mr.Exists("custom:app:sessions"))

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"my-session"}, list)
}

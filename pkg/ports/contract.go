package ports

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/director/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewConversationState(sessionID)
		state.TurnCounter = 7
		state.Theme = "education"
		state.Participants["alice"] = domain.LabelA
		state.Participants["bob"] = domain.LabelB
		state.PendingSoftAcks[domain.LabelB] = domain.PendingSoftAck{TargetLabel: domain.LabelB, RemainingCount: 2, ExpireTurn: 11}
		state.InterventionCounts[domain.InterventionRhythm] = 5

		require.NoError(t, store.Save(ctx, sessionID, state), "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, 7, loaded.TurnCounter)
		assert.Equal(t, "education", loaded.Theme)
		assert.Equal(t, domain.LabelB, loaded.Participants["bob"])
		assert.Equal(t, 2, loaded.PendingSoftAcks[domain.LabelB].RemainingCount)
		assert.Equal(t, 5, loaded.InterventionCounts[domain.InterventionRhythm])
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Participants["mallory"] = domain.LabelA

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.NotContains(t, again.Participants, "mallory")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, domain.NewConversationState(sessionID)))

		require.NoError(t, store.Delete(ctx, sessionID), "Delete should not return error")

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewConversationState(id1))
		_ = store.Save(ctx, id2, domain.NewConversationState(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// RunVerdictCacheContract verifies the append-once semantics of a VerdictCache.
// The cache must be empty when the suite starts.
func RunVerdictCacheContract(t *testing.T, cache VerdictCache) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Miss", func(t *testing.T) {
		_, err := cache.Get(ctx, "entity:Nobody")
		assert.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("Put and Get", func(t *testing.T) {
		stored, err := cache.Put(ctx, domain.EvidenceCacheEntry{
			Subject:     "entity:Kyoto",
			Verdict:     domain.VerdictTrue,
			EvidenceURL: "https://example.org/Kyoto",
			InsertedAt:  now,
		})
		require.NoError(t, err)
		assert.True(t, stored)

		got, err := cache.Get(ctx, "entity:Kyoto")
		require.NoError(t, err)
		assert.Equal(t, domain.VerdictTrue, got.Verdict)
		assert.Equal(t, "https://example.org/Kyoto", got.EvidenceURL)
		assert.True(t, now.Equal(got.InsertedAt))
	})

	t.Run("Append once", func(t *testing.T) {
		stored, err := cache.Put(ctx, domain.EvidenceCacheEntry{
			Subject:    "entity:Kyoto",
			Verdict:    domain.VerdictFalse,
			InsertedAt: now.Add(time.Hour),
		})
		require.NoError(t, err)
		assert.False(t, stored)

		got, err := cache.Get(ctx, "entity:Kyoto")
		require.NoError(t, err)
		assert.Equal(t, domain.VerdictTrue, got.Verdict, "first verdict must win")
	})

	t.Run("Concurrent puts keep one winner", func(t *testing.T) {
		var wg sync.WaitGroup
		var mu sync.Mutex
		winners := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v := domain.VerdictTrue
				if i%2 == 1 {
					v = domain.VerdictUnknown
				}
				ok, err := cache.Put(ctx, domain.EvidenceCacheEntry{Subject: "claim:race", Verdict: v, InsertedAt: now})
				if err == nil && ok {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, winners)
	})

	t.Run("Reset", func(t *testing.T) {
		require.NoError(t, cache.Reset(ctx))
		_, err := cache.Get(ctx, "entity:Kyoto")
		assert.ErrorIs(t, err, domain.ErrCacheMiss)
	})
}

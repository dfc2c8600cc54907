package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore_SaveGetExpire(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemorySessionStore(time.Minute)
	store.nowF = func() time.Time { return now }
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, store.Save(ctx, &domain.VerificationSession{ID: "s1", DOBPassed: true}))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.DOBPassed)

	// returned sessions are copies
	got.PhonePassed = true
	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, again.PhonePassed)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemorySessionStore_Cleanup(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemorySessionStore(time.Minute)
	store.nowF = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.VerificationSession{ID: "old"}))
	now = now.Add(30 * time.Second)
	require.NoError(t, store.Save(ctx, &domain.VerificationSession{ID: "new"}))
	now = now.Add(45 * time.Second)

	assert.Equal(t, 1, store.Cleanup())
	_, err := store.Get(ctx, "new")
	assert.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "new"))
	_, err = store.Get(ctx, "new")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func newTestRedisStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		server.Close()
	})

	return NewRedisSessionStore(rdb, time.Minute), server
}

func TestRedisSessionStore_RoundTripAndTTL(t *testing.T) {
	store, server := newTestRedisStore(t)
	ctx := context.Background()

	sess := &domain.VerificationSession{
		ID:                 "abc",
		PartnerSlug:        "bni",
		DOBScore:           0.3,
		HasDOBScore:        true,
		ChallengeSucceeded: true,
	}
	require.NoError(t, store.Save(ctx, sess))
	assert.True(t, server.Exists("kpr:session:abc"))
	assert.Equal(t, time.Minute, server.TTL("kpr:session:abc"))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "bni", got.PartnerSlug)
	assert.InDelta(t, 0.3, got.DOBScore, 1e-9)
	assert.True(t, got.ChallengeSucceeded)

	server.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRedisSessionStore_Delete(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.VerificationSession{ID: "x"}))
	require.NoError(t, store.Delete(ctx, "x"))
	_, err := store.Get(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestNewRedisClient(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client, err := NewRedisClient(context.Background(), "redis://"+server.Addr()+"/0")
	require.NoError(t, err)
	_ = client.Close()

	_, err = NewRedisClient(context.Background(), "not-a-url")
	assert.Error(t, err)
}

func TestMemorySessionStore_Update(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemorySessionStore(time.Minute)
	store.nowF = func() time.Time { return now }
	ctx := context.Background()

	_, err := store.Update(ctx, "missing", func(*domain.VerificationSession) error { return nil })
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, store.Save(ctx, &domain.VerificationSession{ID: "s1"}))
	now = now.Add(50 * time.Second)
	got, err := store.Update(ctx, "s1", func(s *domain.VerificationSession) error {
		s.DOBPassed = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, got.DOBPassed)

	// update refreshed the TTL
	now = now.Add(50 * time.Second)
	_, err = store.Get(ctx, "s1")
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = store.Update(ctx, "s1", func(s *domain.VerificationSession) error {
		s.PhonePassed = true
		return boom
	})
	assert.ErrorIs(t, err, boom)
	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, again.PhonePassed)
}

func TestMemorySessionStore_ConcurrentUpdates(t *testing.T) {
	store := NewMemorySessionStore(time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &domain.VerificationSession{ID: "s1"}))

	var wg sync.WaitGroup
	for _, fn := range []func(*domain.VerificationSession){
		func(s *domain.VerificationSession) { s.DOBPassed = true },
		func(s *domain.VerificationSession) { s.PhonePassed = true },
		func(s *domain.VerificationSession) { s.ChallengeSucceeded = true },
		func(s *domain.VerificationSession) { s.PhoneVerified = true },
	} {
		wg.Add(1)
		go func(fn func(*domain.VerificationSession)) {
			defer wg.Done()
			_, err := store.Update(ctx, "s1", func(s *domain.VerificationSession) error {
				fn(s)
				return nil
			})
			assert.NoError(t, err)
		}(fn)
	}
	wg.Wait()

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.DOBPassed && got.PhonePassed && got.ChallengeSucceeded && got.PhoneVerified)
}

func TestMemorySessionStore_DeleteExpiredKeepsRefreshedSession(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemorySessionStore(time.Minute)
	store.nowF = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.VerificationSession{ID: "s1"}))
	now = now.Add(2 * time.Minute)
	// a Save lands after Get saw the entry as expired
	require.NoError(t, store.Save(ctx, &domain.VerificationSession{ID: "s1", DOBPassed: true}))

	store.mu.Lock()
	store.deleteExpired("s1")
	store.mu.Unlock()

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.DOBPassed)
}

func TestRedisSessionStore_Update(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.Update(ctx, "missing", func(*domain.VerificationSession) error { return nil })
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, store.Save(ctx, &domain.VerificationSession{ID: "s1"}))
	got, err := store.Update(ctx, "s1", func(s *domain.VerificationSession) error {
		s.ChallengeSucceeded = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, got.ChallengeSucceeded)

	stored, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, stored.ChallengeSucceeded)
}

func TestRedisSessionStore_UpdateRetriesOnConflict(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &domain.VerificationSession{ID: "s1"}))

	calls := 0
	got, err := store.Update(ctx, "s1", func(s *domain.VerificationSession) error {
		calls++
		if calls == 1 {
			// another writer marks the phone verified between WATCH and EXEC
			require.NoError(t, store.Save(ctx, &domain.VerificationSession{ID: "s1", PhoneVerified: true}))
		}
		s.DOBPassed = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, got.DOBPassed)
	assert.True(t, got.PhoneVerified)

	stored, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, stored.DOBPassed && stored.PhoneVerified)
}

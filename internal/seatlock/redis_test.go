package seatlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	return NewRedisStore(client, 10*time.Minute), mr
}

func TestLockBatch(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	conflicts, err := store.Lock(ctx, "trip-1", []string{"1A", "1B", "2A"}, "user-1", "conn-1")
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	locks, err := store.Snapshot(ctx, "trip-1")
	require.NoError(t, err)
	assert.Len(t, locks, 3)
	for _, lock := range locks {
		assert.Equal(t, "user-1", lock.HolderID)
		assert.Equal(t, "conn-1", lock.ConnectionID)
	}
}

func TestLockBatchAllOrNothing(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	conflicts, err := store.Lock(ctx, "trip-1", []string{"1B"}, "user-1", "conn-1")
	require.NoError(t, err)
	require.Empty(t, conflicts)

	// A batch overlapping a foreign hold takes nothing.
	conflicts, err = store.Lock(ctx, "trip-1", []string{"1A", "1B", "1C"}, "user-2", "conn-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"1B"}, conflicts)

	locks, err := store.Snapshot(ctx, "trip-1")
	require.NoError(t, err)
	require.Len(t, locks, 1)
	assert.Equal(t, "user-1", locks[0].HolderID)
}

func TestLockSameHolderReacquire(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := store.Lock(ctx, "trip-1", []string{"3A"}, "user-1", "conn-1")
	require.NoError(t, err)

	mr.FastForward(5 * time.Minute)

	// The holder extending its own selection is not a conflict and
	// resets the clock on the seats it already holds.
	conflicts, err := store.Lock(ctx, "trip-1", []string{"3A", "3B"}, "user-1", "conn-1")
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	mr.FastForward(6 * time.Minute)

	locks, err := store.Snapshot(ctx, "trip-1")
	require.NoError(t, err)
	assert.Len(t, locks, 2)
}

func TestUnlockOwnership(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	_, err := store.Lock(ctx, "trip-1", []string{"4A"}, "user-1", "conn-1")
	require.NoError(t, err)

	// A different holder cannot release the lock.
	released, err := store.Unlock(ctx, "trip-1", []string{"4A"}, "user-2")
	require.NoError(t, err)
	assert.Empty(t, released)

	released, err = store.Unlock(ctx, "trip-1", []string{"4A"}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"4A"}, released)

	// Releasing again is a no-op.
	released, err = store.Unlock(ctx, "trip-1", []string{"4A"}, "user-1")
	require.NoError(t, err)
	assert.Empty(t, released)
}

func TestLockExpiry(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := store.Lock(ctx, "trip-1", []string{"5A"}, "user-1", "conn-1")
	require.NoError(t, err)

	mr.FastForward(11 * time.Minute)

	// The expired hold is gone; anyone may take the seat.
	conflicts, err := store.Lock(ctx, "trip-1", []string{"5A"}, "user-2", "conn-2")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestSnapshotFiltersExpired(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := store.Lock(ctx, "trip-1", []string{"6A", "6B"}, "user-1", "conn-1")
	require.NoError(t, err)

	mr.FastForward(11 * time.Minute)

	locks, err := store.Snapshot(ctx, "trip-1")
	require.NoError(t, err)
	assert.Empty(t, locks)
}

func TestReleaseConnection(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	_, err := store.Lock(ctx, "trip-1", []string{"7A", "7B"}, "user-1", "conn-1")
	require.NoError(t, err)
	_, err = store.Lock(ctx, "trip-2", []string{"1A"}, "user-1", "conn-1")
	require.NoError(t, err)
	_, err = store.Lock(ctx, "trip-1", []string{"8A"}, "user-2", "conn-2")
	require.NoError(t, err)

	released, err := store.ReleaseConnection(ctx, "conn-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"7A", "7B"}, released["trip-1"])
	assert.ElementsMatch(t, []string{"1A"}, released["trip-2"])

	// The other connection's hold survives.
	locks, err := store.Snapshot(ctx, "trip-1")
	require.NoError(t, err)
	require.Len(t, locks, 1)
	assert.Equal(t, "user-2", locks[0].HolderID)
}

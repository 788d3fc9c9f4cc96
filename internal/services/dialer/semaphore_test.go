package dialer

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maane-ai/assist-service/pkg/redis"
)

func setupTestRedis(t *testing.T) (*redis.Service, *miniredis.Miniredis, func()) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	svc := redis.NewServiceWithClient(client)

	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return svc, mr, cleanup
}

func TestSemaphore_AcquireUpToLimit(t *testing.T) {
	svc, _, cleanup := setupTestRedis(t)
	defer cleanup()

	sem := NewSemaphore(svc)
	ctx := context.Background()

	require.NoError(t, sem.Acquire(ctx, "tenant-a", "job-1", 2))
	require.NoError(t, sem.Acquire(ctx, "tenant-a", "job-2", 2))

	err := sem.Acquire(ctx, "tenant-a", "job-3", 2)
	assert.ErrorIs(t, err, ErrNoSlot)

	held, err := sem.Held(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 2, held)
}

func TestSemaphore_LimitsAreIndependentPerTenant(t *testing.T) {
	svc, _, cleanup := setupTestRedis(t)
	defer cleanup()

	sem := NewSemaphore(svc)
	ctx := context.Background()

	require.NoError(t, sem.Acquire(ctx, "tenant-a", "job-1", 1))
	assert.ErrorIs(t, sem.Acquire(ctx, "tenant-a", "job-2", 1), ErrNoSlot)

	// tenant-b is unaffected by tenant-a's saturation
	require.NoError(t, sem.Acquire(ctx, "tenant-b", "job-1", 1))
}

func TestSemaphore_ReleaseFreesSlot(t *testing.T) {
	svc, _, cleanup := setupTestRedis(t)
	defer cleanup()

	sem := NewSemaphore(svc)
	ctx := context.Background()

	require.NoError(t, sem.Acquire(ctx, "tenant-a", "job-1", 1))

	released, err := sem.Release(ctx, "tenant-a", "job-1")
	require.NoError(t, err)
	assert.True(t, released)

	require.NoError(t, sem.Acquire(ctx, "tenant-a", "job-2", 1))
}

func TestSemaphore_ReleaseIsIdempotent(t *testing.T) {
	svc, _, cleanup := setupTestRedis(t)
	defer cleanup()

	sem := NewSemaphore(svc)
	ctx := context.Background()

	require.NoError(t, sem.Acquire(ctx, "tenant-a", "job-1", 1))

	released, err := sem.Release(ctx, "tenant-a", "job-1")
	require.NoError(t, err)
	assert.True(t, released)

	released, err = sem.Release(ctx, "tenant-a", "job-1")
	require.NoError(t, err)
	assert.False(t, released)

	released, err = sem.Release(ctx, "tenant-a", "never-held")
	require.NoError(t, err)
	assert.False(t, released)
}

func TestSemaphore_ReapStale(t *testing.T) {
	svc, _, cleanup := setupTestRedis(t)
	defer cleanup()

	sem := NewSemaphore(svc)
	ctx := context.Background()

	require.NoError(t, sem.Acquire(ctx, "tenant-a", "stuck-job", 2))
	require.NoError(t, sem.Acquire(ctx, "tenant-a", "fresh-job", 2))

	// Backdate one stamp past the max call length.
	stale := strconv.FormatInt(time.Now().Add(-30*time.Minute).Unix(), 10)
	require.NoError(t, svc.Client().HSet(ctx, svc.Key(redis.DialSlotStamp, "tenant-a"), "stuck-job", stale).Err())

	freed, err := sem.ReapStale(ctx, "tenant-a", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"stuck-job"}, freed)

	held, err := sem.Held(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 1, held)
}

func TestSemaphore_AcquireRejectsNonPositiveLimit(t *testing.T) {
	svc, _, cleanup := setupTestRedis(t)
	defer cleanup()

	sem := NewSemaphore(svc)
	err := sem.Acquire(context.Background(), "tenant-a", "job-1", 0)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSlot)
}

package dialer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maane-ai/assist-service/internal/domain"
)

func testJob(tenantID, id, phone string) *domain.DialJob {
	return &domain.DialJob{
		ID:       id,
		TenantID: tenantID,
		Phone:    phone,
		QueuedAt: time.Now(),
	}
}

func TestQueue_FIFOOrder(t *testing.T) {
	svc, _, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(svc, 10)
	sem := NewSemaphore(svc)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testJob("tenant-a", "job-1", "+972501111111")))
	require.NoError(t, q.Enqueue(ctx, testJob("tenant-a", "job-2", "+972502222222")))
	require.NoError(t, q.Enqueue(ctx, testJob("tenant-a", "job-3", "+972503333333")))

	for _, want := range []string{"job-1", "job-2", "job-3"} {
		job, err := q.DequeueWithSlot(ctx, sem, "tenant-a", 10)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, want, job.ID)
	}

	// Each pop claimed the job's slot.
	held, err := sem.Held(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 3, held)

	job, err := q.DequeueWithSlot(ctx, sem, "tenant-a", 10)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestQueue_CapacityBound(t *testing.T) {
	svc, _, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(svc, 2)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testJob("tenant-a", "job-1", "+972501111111")))
	require.NoError(t, q.Enqueue(ctx, testJob("tenant-a", "job-2", "+972502222222")))

	err := q.Enqueue(ctx, testJob("tenant-a", "job-3", "+972503333333"))
	assert.ErrorIs(t, err, ErrQueueFull)

	n, err := q.Len(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestQueue_CapacityBoundUnderConcurrentEnqueues(t *testing.T) {
	svc, _, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(svc, 5)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- q.Enqueue(ctx, testJob("tenant-a", "job", "+972501111111"))
		}()
	}
	wg.Wait()
	close(errs)

	var full int
	for err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ErrQueueFull)
			full++
		}
	}
	assert.Equal(t, 5, full)

	n, err := q.Len(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestQueue_PendingTenantsIndex(t *testing.T) {
	svc, _, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(svc, 10)
	sem := NewSemaphore(svc)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testJob("tenant-a", "job-1", "+972501111111")))
	require.NoError(t, q.Enqueue(ctx, testJob("tenant-b", "job-2", "+972502222222")))

	tenants, err := q.PendingTenants(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tenant-a", "tenant-b"}, tenants)

	// Draining tenant-a removes it from the index on the empty pop.
	_, err = q.DequeueWithSlot(ctx, sem, "tenant-a", 10)
	require.NoError(t, err)
	job, err := q.DequeueWithSlot(ctx, sem, "tenant-a", 10)
	require.NoError(t, err)
	require.Nil(t, job)

	tenants, err = q.PendingTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant-b"}, tenants)
}

func TestQueue_DequeueWithSlot_AtLimitLeavesQueueIntact(t *testing.T) {
	svc, _, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(svc, 10)
	sem := NewSemaphore(svc)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testJob("tenant-a", "job-1", "+972501111111")))
	require.NoError(t, q.Enqueue(ctx, testJob("tenant-a", "job-2", "+972502222222")))

	require.NoError(t, sem.Acquire(ctx, "tenant-a", "active-call", 1))

	// At the limit nothing is popped, so the head cannot be displaced.
	job, err := q.DequeueWithSlot(ctx, sem, "tenant-a", 1)
	require.NoError(t, err)
	require.Nil(t, job)

	n, err := q.Len(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = sem.Release(ctx, "tenant-a", "active-call")
	require.NoError(t, err)

	job, err = q.DequeueWithSlot(ctx, sem, "tenant-a", 1)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "job-1", job.ID)
}

func TestQueue_FIFOHoldsAcrossCompetingWorkers(t *testing.T) {
	svc, _, cleanup := setupTestRedis(t)
	defer cleanup()

	// Two instances draining the same tenant with one dial slot.
	q := NewQueue(svc, 10)
	sem := NewSemaphore(svc)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testJob("tenant-a", "job-1", "+972501111111")))
	require.NoError(t, q.Enqueue(ctx, testJob("tenant-a", "job-2", "+972502222222")))

	first, err := q.DequeueWithSlot(ctx, sem, "tenant-a", 1)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "job-1", first.ID)

	// The competing worker finds the slot taken and pops nothing.
	second, err := q.DequeueWithSlot(ctx, sem, "tenant-a", 1)
	require.NoError(t, err)
	require.Nil(t, second)

	_, err = sem.Release(ctx, "tenant-a", first.ID)
	require.NoError(t, err)

	next, err := q.DequeueWithSlot(ctx, sem, "tenant-a", 1)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "job-2", next.ID)
}

func TestQueue_RoundTripsJobFields(t *testing.T) {
	svc, _, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(svc, 10)
	sem := NewSemaphore(svc)
	ctx := context.Background()

	in := testJob("tenant-a", "job-1", "+972501111111")
	in.LeadID = "lead-42"
	require.NoError(t, q.Enqueue(ctx, in))

	out, err := q.DequeueWithSlot(ctx, sem, "tenant-a", 10)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.TenantID, out.TenantID)
	assert.Equal(t, in.Phone, out.Phone)
	assert.Equal(t, in.LeadID, out.LeadID)
}

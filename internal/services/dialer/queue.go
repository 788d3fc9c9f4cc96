package dialer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/maane-ai/assist-service/internal/domain"
	"github.com/maane-ai/assist-service/pkg/redis"
)

// ErrQueueFull is returned when a tenant's pending queue is at capacity.
var ErrQueueFull = errors.New("dial queue full")

// tenantsSetSuffix indexes which tenants currently have queued jobs so the
// worker does not have to scan every tenant.
const tenantsSetSuffix = "tenants"

// enqueueScript appends a job under the capacity bound in one step, so
// concurrent enqueues cannot overshoot the limit. Returns 1 on success, 0
// at capacity.
var enqueueScript = goredis.NewScript(`
local jobs = KEYS[1]
local tenants = KEYS[2]
local maxLen = tonumber(ARGV[1])
local payload = ARGV[2]
local tenantID = ARGV[3]

if redis.call('LLEN', jobs) >= maxLen then
  return 0
end
redis.call('RPUSH', jobs, payload)
redis.call('SADD', tenants, tenantID)
return 1
`)

// dequeueScript pops the oldest job only after claiming its dial slot, in
// one atomic step. Workers on different instances drain the same tenant
// without popping a job they cannot dispatch, so the queue order never
// inverts. An emptied queue drops the tenant from the pending index.
// Returns the job payload, or nil when the queue is empty or the tenant is
// at its limit.
var dequeueScript = goredis.NewScript(`
local slots = KEYS[1]
local stamps = KEYS[2]
local jobs = KEYS[3]
local tenants = KEYS[4]
local tenantID = ARGV[1]
local limit = tonumber(ARGV[2])
local now = ARGV[3]

if redis.call('SCARD', slots) >= limit then
  return false
end
local payload = redis.call('LPOP', jobs)
if not payload then
  redis.call('SREM', tenants, tenantID)
  return false
end
local job = cjson.decode(payload)
redis.call('SADD', slots, job.id)
redis.call('HSET', stamps, job.id, now)
return payload
`)

// Queue is the per-tenant FIFO of pending dial jobs, a Redis list pushed on
// the right and popped on the left.
type Queue struct {
	redisSvc *redis.Service
	maxLen   int
}

// NewQueue creates the dial queue with a per-tenant capacity bound.
func NewQueue(redisSvc *redis.Service, maxLen int) *Queue {
	if maxLen <= 0 {
		maxLen = 200
	}
	return &Queue{redisSvc: redisSvc, maxLen: maxLen}
}

// Enqueue appends a job to the tenant's FIFO. Returns ErrQueueFull at
// capacity.
func (q *Queue) Enqueue(ctx context.Context, job *domain.DialJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal dial job: %w", err)
	}

	keys := []string{q.jobsKey(job.TenantID), q.tenantsKey()}
	ok, err := enqueueScript.Run(ctx, q.redisSvc.Client(), keys, q.maxLen, data, job.TenantID).Int()
	if err != nil {
		return fmt.Errorf("failed to enqueue dial job: %w", err)
	}
	if ok == 0 {
		return fmt.Errorf("%w: tenant %s at %d", ErrQueueFull, job.TenantID, q.maxLen)
	}
	return nil
}

// DequeueWithSlot pops the oldest job for the tenant and claims its dial
// slot atomically. Returns nil when the queue is empty or every slot is
// held; the caller must release the slot if the dispatched call fails.
func (q *Queue) DequeueWithSlot(ctx context.Context, sem *Semaphore, tenantID string, limit int) (*domain.DialJob, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("dial limit must be positive, got %d", limit)
	}

	keys := []string{
		sem.slotsKey(tenantID),
		sem.stampsKey(tenantID),
		q.jobsKey(tenantID),
		q.tenantsKey(),
	}
	now := strconv.FormatInt(time.Now().Unix(), 10)

	data, err := dequeueScript.Run(ctx, q.redisSvc.Client(), keys, tenantID, limit, now).Text()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue dial job: %w", err)
	}

	var job domain.DialJob
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dial job: %w", err)
	}
	return &job, nil
}

// Len returns the tenant's pending job count.
func (q *Queue) Len(ctx context.Context, tenantID string) (int, error) {
	n, err := q.redisSvc.Client().LLen(ctx, q.jobsKey(tenantID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read dial queue length: %w", err)
	}
	return int(n), nil
}

// PendingTenants lists the tenants with queued jobs.
func (q *Queue) PendingTenants(ctx context.Context) ([]string, error) {
	tenants, err := q.redisSvc.Client().SMembers(ctx, q.tenantsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending dial tenants: %w", err)
	}
	return tenants, nil
}

func (q *Queue) jobsKey(tenantID string) string {
	return q.redisSvc.Key(redis.DialQueue, tenantID)
}

func (q *Queue) tenantsKey() string {
	return q.redisSvc.Key(redis.DialQueue, tenantsSetSuffix)
}

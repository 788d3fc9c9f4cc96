package dialer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/maane-ai/assist-service/pkg/redis"
)

// ErrNoSlot is returned when the tenant's concurrent-call limit is reached.
var ErrNoSlot = errors.New("no dial slot available")

// acquireScript atomically claims a slot: the slot SET acts as the counter,
// and the stamp HASH records when each slot was taken so the reaper can
// free abandoned ones. Returns 1 on success, 0 when the limit is reached.
var acquireScript = goredis.NewScript(`
local slots = KEYS[1]
local stamps = KEYS[2]
local member = ARGV[1]
local limit = tonumber(ARGV[2])
local now = ARGV[3]

if redis.call('SCARD', slots) >= limit then
  return 0
end
redis.call('SADD', slots, member)
redis.call('HSET', stamps, member, now)
return 1
`)

// releaseScript removes the slot and its stamp in one step. Returns the
// number of members removed (0 when the slot was already gone).
var releaseScript = goredis.NewScript(`
local slots = KEYS[1]
local stamps = KEYS[2]
local member = ARGV[1]

local removed = redis.call('SREM', slots, member)
redis.call('HDEL', stamps, member)
return removed
`)

// Semaphore is a per-tenant concurrent-call limiter on Redis. Slots are SET
// members keyed by call/job ID, so release is idempotent and a crashed
// worker's slot can be reaped by age.
type Semaphore struct {
	redisSvc *redis.Service
}

// NewSemaphore creates a dial slot semaphore.
func NewSemaphore(redisSvc *redis.Service) *Semaphore {
	return &Semaphore{redisSvc: redisSvc}
}

// Acquire claims a slot for member under the tenant's limit. Returns
// ErrNoSlot when the limit is reached.
func (s *Semaphore) Acquire(ctx context.Context, tenantID, member string, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("dial limit must be positive, got %d", limit)
	}

	keys := []string{s.slotsKey(tenantID), s.stampsKey(tenantID)}
	now := strconv.FormatInt(time.Now().Unix(), 10)

	ok, err := acquireScript.Run(ctx, s.redisSvc.Client(), keys, member, limit, now).Int()
	if err != nil {
		return fmt.Errorf("failed to acquire dial slot: %w", err)
	}
	if ok == 0 {
		return fmt.Errorf("%w: tenant %s at limit %d", ErrNoSlot, tenantID, limit)
	}
	return nil
}

// Release frees the member's slot. Releasing a slot that is not held is not
// an error.
func (s *Semaphore) Release(ctx context.Context, tenantID, member string) (bool, error) {
	keys := []string{s.slotsKey(tenantID), s.stampsKey(tenantID)}
	removed, err := releaseScript.Run(ctx, s.redisSvc.Client(), keys, member).Int()
	if err != nil {
		return false, fmt.Errorf("failed to release dial slot: %w", err)
	}
	return removed > 0, nil
}

// Held returns the number of slots currently claimed for the tenant.
func (s *Semaphore) Held(ctx context.Context, tenantID string) (int, error) {
	n, err := s.redisSvc.Client().SCard(ctx, s.slotsKey(tenantID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count dial slots: %w", err)
	}
	return int(n), nil
}

// ReapStale frees slots older than maxAge and returns the freed members.
// Covers workers that died between CreateCall and the terminal status
// webhook.
func (s *Semaphore) ReapStale(ctx context.Context, tenantID string, maxAge time.Duration) ([]string, error) {
	stamps, err := s.redisSvc.Client().HGetAll(ctx, s.stampsKey(tenantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read slot stamps: %w", err)
	}

	cutoff := time.Now().Add(-maxAge).Unix()
	var freed []string
	for member, stamp := range stamps {
		ts, err := strconv.ParseInt(stamp, 10, 64)
		if err != nil || ts > cutoff {
			continue
		}
		released, err := s.Release(ctx, tenantID, member)
		if err != nil {
			return freed, err
		}
		if released {
			freed = append(freed, member)
		}
	}
	return freed, nil
}

func (s *Semaphore) slotsKey(tenantID string) string {
	return s.redisSvc.Key(redis.DialSemaphore, tenantID)
}

func (s *Semaphore) stampsKey(tenantID string) string {
	return s.redisSvc.Key(redis.DialSlotStamp, tenantID)
}

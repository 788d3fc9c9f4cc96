package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/maane-ai/assist-service/internal/domain"
	"github.com/maane-ai/assist-service/internal/prompts"
	"github.com/maane-ai/assist-service/internal/repository"
	"github.com/maane-ai/assist-service/pkg/logger"
	"github.com/maane-ai/assist-service/pkg/redis"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Typed errors surfaced to handlers.
var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrTenantDisabled = errors.New("tenant disabled")
	ErrChannelOff     = errors.New("channel disabled for tenant")
)

// invalidationChannel is the Redis pub/sub channel carrying cross-instance
// cache invalidation events.
const invalidationChannel = "maane:prompt-invalidate"

// defaultTTL bounds how long a cached stack is served without a DB re-read.
const defaultTTL = 10 * time.Minute

type invalidationEvent struct {
	TenantID string `json:"tenant_id"`
	Origin   string `json:"origin"`
}

type cacheEntry struct {
	stacks   map[domain.Channel]*prompts.Stack
	tenant   *domain.Tenant
	loadedAt time.Time
}

// Resolver loads and caches per-tenant prompt stacks. Entries are held in
// memory per instance; mutations publish an invalidation event over Redis so
// every instance drops its copy.
type Resolver struct {
	repos      repository.RepositoryManager
	redisSvc   *redis.Service
	instanceID string
	ttl        time.Duration

	mutex   sync.RWMutex
	entries map[string]*cacheEntry

	group singleflight.Group
}

// NewResolver creates a prompt resolver. redisSvc may be nil; invalidation
// then only applies to the local instance.
func NewResolver(repos repository.RepositoryManager, redisSvc *redis.Service, instanceID string) *Resolver {
	return &Resolver{
		repos:      repos,
		redisSvc:   redisSvc,
		instanceID: instanceID,
		ttl:        defaultTTL,
		entries:    make(map[string]*cacheEntry),
	}
}

// Start subscribes to the invalidation channel. Safe to call with a nil
// Redis service.
func (r *Resolver) Start(ctx context.Context) error {
	if r.redisSvc == nil {
		logger.Base().Warn("prompt resolver running without redis, invalidation is local only")
		return nil
	}

	return r.redisSvc.Subscribe(ctx, invalidationChannel, func(payload string) {
		var ev invalidationEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			logger.Base().Warn("malformed prompt invalidation event", zap.String("payload", payload))
			return
		}
		// Events from this instance were already applied locally.
		if ev.Origin == r.instanceID {
			return
		}
		r.dropLocal(ev.TenantID)
		logger.Base().Info("prompt cache invalidated by peer",
			zap.String("tenant_id", ev.TenantID),
			zap.String("origin", ev.Origin))
	})
}

// Resolve returns the rendered prompt stack for a tenant and channel,
// loading from the database on a cache miss. Concurrent misses for the same
// tenant are coalesced.
func (r *Resolver) Resolve(ctx context.Context, tenantID string, channel domain.Channel) (*prompts.Stack, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("unknown channel: %s", channel)
	}

	if entry := r.lookup(tenantID); entry != nil {
		if err := checkChannelEnabled(entry.tenant, channel); err != nil {
			return nil, err
		}
		return copyStack(entry.stacks[channel]), nil
	}

	v, err, _ := r.group.Do(tenantID, func() (interface{}, error) {
		// A peer of this flight may have already populated the cache.
		if entry := r.lookup(tenantID); entry != nil {
			return entry, nil
		}
		return r.load(ctx, tenantID)
	})
	if err != nil {
		return nil, err
	}

	entry := v.(*cacheEntry)
	if err := checkChannelEnabled(entry.tenant, channel); err != nil {
		return nil, err
	}
	return copyStack(entry.stacks[channel]), nil
}

// Tenant returns the cached tenant record, resolving on a miss.
func (r *Resolver) Tenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	if entry := r.lookup(tenantID); entry != nil {
		return entry.tenant, nil
	}
	if _, err := r.Resolve(ctx, tenantID, domain.ChannelWhatsApp); err != nil &&
		!errors.Is(err, ErrChannelOff) {
		return nil, err
	}
	entry := r.lookup(tenantID)
	if entry == nil {
		return nil, ErrTenantNotFound
	}
	return entry.tenant, nil
}

// Invalidate drops the tenant's cached stacks and notifies peer instances.
func (r *Resolver) Invalidate(ctx context.Context, tenantID string) error {
	r.dropLocal(tenantID)

	if r.redisSvc == nil {
		return nil
	}

	ev := invalidationEvent{TenantID: tenantID, Origin: r.instanceID}
	if err := r.redisSvc.Publish(ctx, invalidationChannel, ev); err != nil {
		return fmt.Errorf("failed to publish prompt invalidation: %w", err)
	}

	logger.Base().Info("prompt cache invalidated", zap.String("tenant_id", tenantID))
	return nil
}

// CachedTenants returns the number of tenants currently cached.
func (r *Resolver) CachedTenants() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.entries)
}

func (r *Resolver) lookup(tenantID string) *cacheEntry {
	r.mutex.RLock()
	entry, ok := r.entries[tenantID]
	r.mutex.RUnlock()

	if !ok {
		return nil
	}
	if time.Since(entry.loadedAt) > r.ttl {
		r.dropLocal(tenantID)
		return nil
	}
	return entry
}

func (r *Resolver) dropLocal(tenantID string) {
	r.mutex.Lock()
	delete(r.entries, tenantID)
	r.mutex.Unlock()
}

// load reads the tenant and both channel templates from the database and
// builds the full stack set.
func (r *Resolver) load(ctx context.Context, tenantID string) (*cacheEntry, error) {
	tenant, err := r.repos.Tenant().GetByTenantID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
		}
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	if tenant.Disabled {
		return nil, fmt.Errorf("%w: %s", ErrTenantDisabled, tenantID)
	}

	stacks := make(map[domain.Channel]*prompts.Stack, 2)
	for _, channel := range []domain.Channel{domain.ChannelCalls, domain.ChannelWhatsApp} {
		tmpl, err := r.repos.PromptTemplate().GetByTenantAndChannel(ctx, tenantID, channel)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to load prompt template: %w", err)
		}

		stack, err := prompts.Build(prompts.StackInput{
			Tenant:   tenant,
			Template: tmpl, // nil on not-found, Build falls back to defaults
			Channel:  channel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build prompt stack: %w", err)
		}
		stacks[channel] = stack
	}

	entry := &cacheEntry{
		stacks:   stacks,
		tenant:   tenant,
		loadedAt: time.Now(),
	}

	r.mutex.Lock()
	r.entries[tenantID] = entry
	r.mutex.Unlock()

	logger.Base().Info("prompt stacks loaded",
		zap.String("tenant_id", tenantID),
		zap.Int("calls_version", stacks[domain.ChannelCalls].TenantVersion),
		zap.Int("whatsapp_version", stacks[domain.ChannelWhatsApp].TenantVersion))

	return entry, nil
}

func checkChannelEnabled(tenant *domain.Tenant, channel domain.Channel) error {
	switch channel {
	case domain.ChannelCalls:
		if !tenant.CallsEnabled {
			return fmt.Errorf("%w: calls for %s", ErrChannelOff, tenant.TenantID)
		}
	case domain.ChannelWhatsApp:
		if !tenant.WhatsAppEnabled {
			return fmt.Errorf("%w: whatsapp for %s", ErrChannelOff, tenant.TenantID)
		}
	}
	return nil
}

// copyStack hands out a deep copy so callers cannot mutate the cached entry.
func copyStack(original *prompts.Stack) *prompts.Stack {
	if original == nil {
		return nil
	}
	var dup prompts.Stack
	if err := copier.CopyWithOption(&dup, original, copier.Option{DeepCopy: true}); err != nil {
		logger.Base().Warn("failed to copy prompt stack", zap.Error(err))
		return original
	}
	return &dup
}

package prompt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maane-ai/assist-service/internal/domain"
	"github.com/maane-ai/assist-service/internal/repository"
	"github.com/maane-ai/assist-service/pkg/redis"
)

type fakeTenantRepo struct {
	repository.TenantRepository

	mu      sync.Mutex
	tenants map[string]*domain.Tenant
	loads   int
}

func (f *fakeTenantRepo) GetByTenantID(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	tenant, ok := f.tenants[tenantID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return tenant, nil
}

func (f *fakeTenantRepo) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

type fakePromptRepo struct {
	repository.PromptTemplateRepository

	mu        sync.Mutex
	templates map[string]*domain.PromptTemplate // key: tenantID + "/" + channel
}

func (f *fakePromptRepo) GetByTenantAndChannel(ctx context.Context, tenantID string, channel domain.Channel) (*domain.PromptTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tmpl, ok := f.templates[tenantID+"/"+string(channel)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return tmpl, nil
}

func (f *fakePromptRepo) set(tenantID string, channel domain.Channel, tmpl *domain.PromptTemplate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templates[tenantID+"/"+string(channel)] = tmpl
}

type fakeRepos struct {
	repository.RepositoryManager
	tenants *fakeTenantRepo
	prompts *fakePromptRepo
}

func (f *fakeRepos) Tenant() repository.TenantRepository                 { return f.tenants }
func (f *fakeRepos) PromptTemplate() repository.PromptTemplateRepository { return f.prompts }

func newFakeRepos() *fakeRepos {
	return &fakeRepos{
		tenants: &fakeTenantRepo{tenants: map[string]*domain.Tenant{
			"pizza-rishon": {
				TenantID:        "pizza-rishon",
				Name:            "פיצה ראשון",
				Industry:        "services",
				Language:        "he",
				CallsEnabled:    true,
				WhatsAppEnabled: true,
			},
			"calls-only": {
				TenantID:     "calls-only",
				Name:         "Calls Only Ltd",
				CallsEnabled: true,
			},
			"disabled-biz": {
				TenantID: "disabled-biz",
				Name:     "Closed Down",
				Disabled: true,
			},
		}},
		prompts: &fakePromptRepo{templates: map[string]*domain.PromptTemplate{}},
	}
}

func newTestResolver(t *testing.T, repos repository.RepositoryManager, instanceID string, mr *miniredis.Miniredis) *Resolver {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewResolver(repos, redis.NewServiceWithClient(client), instanceID)
}

func TestResolver_ResolveAndCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	repos := newFakeRepos()
	r := newTestResolver(t, repos, "pod-1", mr)
	ctx := context.Background()

	stack, err := r.Resolve(ctx, "pizza-rishon", domain.ChannelCalls)
	require.NoError(t, err)
	assert.Contains(t, stack.Persona, "פיצה ראשון")
	assert.Equal(t, 1, repos.tenants.loadCount())

	// Second resolve (any channel) hits the cache, no new DB read.
	_, err = r.Resolve(ctx, "pizza-rishon", domain.ChannelWhatsApp)
	require.NoError(t, err)
	assert.Equal(t, 1, repos.tenants.loadCount())
	assert.Equal(t, 1, r.CachedTenants())
}

func TestResolver_UnknownAndDisabledTenants(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	r := newTestResolver(t, newFakeRepos(), "pod-1", mr)
	ctx := context.Background()

	_, err = r.Resolve(ctx, "no-such-tenant", domain.ChannelCalls)
	assert.ErrorIs(t, err, ErrTenantNotFound)

	_, err = r.Resolve(ctx, "disabled-biz", domain.ChannelCalls)
	assert.ErrorIs(t, err, ErrTenantDisabled)
}

func TestResolver_ChannelToggle(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	r := newTestResolver(t, newFakeRepos(), "pod-1", mr)
	ctx := context.Background()

	_, err = r.Resolve(ctx, "calls-only", domain.ChannelCalls)
	require.NoError(t, err)

	_, err = r.Resolve(ctx, "calls-only", domain.ChannelWhatsApp)
	assert.ErrorIs(t, err, ErrChannelOff)

	// Tenant metadata stays reachable even with a channel off.
	tenant, err := r.Tenant(ctx, "calls-only")
	require.NoError(t, err)
	assert.Equal(t, "Calls Only Ltd", tenant.Name)
}

func TestResolver_InvalidatePicksUpTemplateChange(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	repos := newFakeRepos()
	r := newTestResolver(t, repos, "pod-1", mr)
	ctx := context.Background()

	stack, err := r.Resolve(ctx, "pizza-rishon", domain.ChannelWhatsApp)
	require.NoError(t, err)
	assert.Equal(t, 0, stack.TenantVersion)

	repos.prompts.set("pizza-rishon", domain.ChannelWhatsApp, &domain.PromptTemplate{
		Greeting: "ברוכים הבאים לפיצה ראשון!",
		Version:  3,
	})

	// Still the cached version until invalidated.
	stack, err = r.Resolve(ctx, "pizza-rishon", domain.ChannelWhatsApp)
	require.NoError(t, err)
	assert.Equal(t, 0, stack.TenantVersion)

	require.NoError(t, r.Invalidate(ctx, "pizza-rishon"))

	stack, err = r.Resolve(ctx, "pizza-rishon", domain.ChannelWhatsApp)
	require.NoError(t, err)
	assert.Equal(t, 3, stack.TenantVersion)
	assert.Equal(t, "ברוכים הבאים לפיצה ראשון!", stack.Greeting)
}

func TestResolver_CrossInstanceInvalidation(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	repos := newFakeRepos()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r1 := newTestResolver(t, repos, "pod-1", mr)
	r2 := newTestResolver(t, repos, "pod-2", mr)
	require.NoError(t, r2.Start(ctx))

	_, err = r2.Resolve(ctx, "pizza-rishon", domain.ChannelCalls)
	require.NoError(t, err)
	require.Equal(t, 1, r2.CachedTenants())

	// pod-1 mutates and publishes; pod-2 drops its copy.
	require.NoError(t, r1.Invalidate(ctx, "pizza-rishon"))

	assert.Eventually(t, func() bool {
		return r2.CachedTenants() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResolver_ReturnedStackIsACopy(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	r := newTestResolver(t, newFakeRepos(), "pod-1", mr)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "pizza-rishon", domain.ChannelCalls)
	require.NoError(t, err)
	first.Persona = "mutated"

	second, err := r.Resolve(ctx, "pizza-rishon", domain.ChannelCalls)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", second.Persona)
}

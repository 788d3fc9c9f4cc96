package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/maane-ai/assist-service/internal/config"
	"github.com/maane-ai/assist-service/internal/domain"
	promptsvc "github.com/maane-ai/assist-service/internal/services/prompt"
	"github.com/maane-ai/assist-service/pkg/logger"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Factory builds per-tenant, per-channel agent runners on top of the prompt
// resolver. One factory (and one breaker) is shared across all tenants.
type Factory struct {
	client   openai.Client
	resolver *promptsvc.Resolver
	breaker  *gobreaker.CircuitBreaker
	model    string

	callTools     []Tool
	whatsappTools []Tool
}

// NewFactory creates the agent factory. The tool slices are the per-channel
// toolsets.
func NewFactory(cfg *config.AssistConfig, resolver *promptsvc.Resolver, callTools, whatsappTools []Tool) *Factory {
	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIAPIKey)}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai-chat",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Base().Warn("model circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Factory{
		client:        openai.NewClient(opts...),
		resolver:      resolver,
		breaker:       breaker,
		model:         cfg.OpenAIModel,
		callTools:     callTools,
		whatsappTools: whatsappTools,
	}
}

// AgentFor resolves the tenant's prompt stack for the channel and returns a
// runner bound to that tenant and contact.
func (f *Factory) AgentFor(ctx context.Context, tenantID string, channel domain.Channel, phone string) (*Runner, error) {
	stack, err := f.resolver.Resolve(ctx, tenantID, channel)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve prompts for %s/%s: %w", tenantID, channel, err)
	}

	tenant, err := f.resolver.Tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	tools := f.whatsappTools
	if channel == domain.ChannelCalls {
		tools = f.callTools
	}

	model := f.model
	if m, ok := tenant.CustomConfig["model"].(string); ok && m != "" {
		model = m
	}

	return &Runner{
		client:    f.client,
		breaker:   f.breaker,
		validator: NewValidator(),
		model:     model,
		system:    stack.System(),
		greeting:  stack.Greeting,
		tools:     tools,
		toolCtx:   ToolContext{Tenant: tenant, Phone: phone},
		channel:   channel,
	}, nil
}

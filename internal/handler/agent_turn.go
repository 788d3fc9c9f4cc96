package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/maane-ai/assist-service/internal/domain"
	"github.com/maane-ai/assist-service/internal/repository"
	"github.com/maane-ai/assist-service/internal/services/agent"
	"github.com/maane-ai/assist-service/internal/services/crm"
	"github.com/maane-ai/assist-service/pkg/logger"
)

// historyWindow caps how many stored messages feed back into the model.
const historyWindow = 20

// agentTurn runs one inbound message through the tenant's agent: capture
// the lead, replay recent conversation history, execute the tool loop, and
// persist both sides of the turn. The returned reply has already passed
// post-validation (or been replaced by the safe fallback).
type agentTurn struct {
	agents     *agent.Factory
	crmService *crm.Service
	repos      repository.RepositoryManager
}

func (t *agentTurn) run(ctx context.Context, tenantID, phone, senderName string, channel domain.Channel, text string) (string, error) {
	lead, err := t.crmService.CaptureInbound(ctx, tenantID, phone, senderName, channel)
	if err != nil {
		// Lead capture must not lose the message; continue without a lead.
		logger.Base().Error("failed to capture lead",
			zap.String("tenant_id", tenantID), zap.Error(err))
	}

	runner, err := t.agents.AgentFor(ctx, tenantID, channel, phone)
	if err != nil {
		return "", err
	}
	if lead != nil {
		runner.BindLead(lead.ID)
	}

	conversation, err := t.repos.Conversation().GetOrCreate(ctx, tenantID, phone, channel)
	if err != nil {
		return "", err
	}

	history, err := t.repos.Conversation().RecentMessages(ctx, conversation.ID, historyWindow)
	if err != nil {
		return "", err
	}

	result, err := runner.Run(ctx, history, text)
	if err != nil {
		return "", err
	}

	if len(result.Violations) > 0 {
		logger.Base().Warn("agent reply replaced after validation",
			zap.String("tenant_id", tenantID),
			zap.String("channel", string(channel)),
			zap.Strings("violations", result.Violations))
	}

	t.persist(ctx, conversation.ID, "user", text)
	t.persist(ctx, conversation.ID, "assistant", result.Reply)

	return result.Reply, nil
}

// greeting returns the tenant's opening line for the channel.
func (t *agentTurn) greeting(ctx context.Context, tenantID, phone string, channel domain.Channel) (string, error) {
	runner, err := t.agents.AgentFor(ctx, tenantID, channel, phone)
	if err != nil {
		return "", err
	}
	return runner.Greeting(), nil
}

func (t *agentTurn) persist(ctx context.Context, conversationID, role, content string) {
	err := t.repos.Conversation().AppendMessage(ctx, conversationID, &domain.Message{
		Role:    role,
		Content: content,
	})
	if err != nil {
		logger.Base().Error("failed to persist message",
			zap.String("conversation_id", conversationID),
			zap.String("role", role),
			zap.Error(err))
	}
}

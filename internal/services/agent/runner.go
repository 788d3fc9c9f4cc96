package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maane-ai/assist-service/internal/domain"
	"github.com/maane-ai/assist-service/pkg/logger"
	"github.com/openai/openai-go/v3"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// maxToolTurns bounds the tool loop so a misbehaving model cannot spin.
const maxToolTurns = 6

// ErrModelUnavailable is returned when the circuit breaker is open or the
// model call failed.
var ErrModelUnavailable = errors.New("model unavailable")

// RunResult is the outcome of one agent turn.
type RunResult struct {
	Reply     string
	Telemetry *Telemetry
	// Violations lists validator findings; when non-empty, Reply already
	// holds the safe fallback text.
	Violations []string
}

// Runner executes one tenant+channel agent: a chat-completions tool loop
// with telemetry recording and post-run validation.
type Runner struct {
	client    openai.Client
	breaker   *gobreaker.CircuitBreaker
	validator *Validator

	model    string
	system   string
	greeting string
	tools    []Tool
	toolCtx  ToolContext
	channel  domain.Channel
}

// Greeting returns the tenant's rendered opening line for this channel.
func (r *Runner) Greeting() string {
	return r.greeting
}

// BindLead attaches the CRM lead so lead tools can act on it.
func (r *Runner) BindLead(leadID string) {
	r.toolCtx.LeadID = leadID
}

// Run executes the tool loop for one user message on top of the provided
// history and returns the validated reply.
func (r *Runner) Run(ctx context.Context, history []*domain.Message, userMsg string) (*RunResult, error) {
	telemetry := NewTelemetry()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(r.system))
	for _, m := range history {
		switch m.Role {
		case "user":
			messages = append(messages, openai.UserMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		}
		// Persisted tool turns are informational only; they are not replayed
		// because their call IDs are gone.
	}
	messages = append(messages, openai.UserMessage(userMsg))

	toolParams := chatToolParams(r.tools)

	var reply string
	for turn := 0; turn < maxToolTurns; turn++ {
		msg, err := r.complete(ctx, messages, toolParams)
		if err != nil {
			return nil, err
		}

		if len(msg.ToolCalls) == 0 {
			reply = strings.TrimSpace(msg.Content)
			break
		}

		assistantParam := msg.ToAssistantMessageParam()
		messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistantParam})

		for _, call := range msg.ToolCalls {
			result := r.dispatch(ctx, call.Function.Name, call.Function.Arguments, telemetry)
			messages = append(messages, openai.ToolMessage(result, call.ID))
		}
	}

	if reply == "" {
		// Turn budget exhausted mid tool loop.
		logger.Base().Warn("agent run ended without a final reply",
			zap.String("tenant_id", r.toolCtx.Tenant.TenantID),
			zap.String("channel", string(r.channel)))
		return &RunResult{
			Reply:      r.validator.Fallback(),
			Telemetry:  telemetry,
			Violations: []string{"no final reply within tool turn budget"},
		}, nil
	}

	violations := r.validator.Check(reply, telemetry)
	if len(violations) > 0 {
		logger.Base().Warn("agent reply rejected by validator",
			zap.String("tenant_id", r.toolCtx.Tenant.TenantID),
			zap.String("channel", string(r.channel)),
			zap.Strings("violations", violations),
			zap.String("rejected_reply", reply))
		reply = r.validator.FallbackFor(violations)
	}

	return &RunResult{Reply: reply, Telemetry: telemetry, Violations: violations}, nil
}

// complete performs one model call through the circuit breaker.
func (r *Runner) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolUnionParam) (*openai.ChatCompletionMessage, error) {
	callCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	v, err := r.breaker.Execute(func() (interface{}, error) {
		resp, err := r.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
			Model:    r.model,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("empty completion response")
		}
		return &resp.Choices[0].Message, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", ErrModelUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return v.(*openai.ChatCompletionMessage), nil
}

// dispatch executes one tool call and records it in the telemetry.
func (r *Runner) dispatch(ctx context.Context, name, rawArgs string, telemetry *Telemetry) string {
	rec := ToolCallRecord{Name: name}
	if rawArgs != "" {
		_ = json.Unmarshal([]byte(rawArgs), &rec.Args)
	}

	tool := r.findTool(name)
	if tool == nil {
		rec.Error = "unknown tool"
		telemetry.Record(rec)
		return fmt.Sprintf("Error: unknown tool %q", name)
	}

	result, err := tool.Execute(ctx, r.toolCtx, json.RawMessage(rawArgs))
	if err != nil {
		rec.Error = err.Error()
		telemetry.Record(rec)
		logger.Base().Warn("tool call failed",
			zap.String("tool", name),
			zap.String("tenant_id", r.toolCtx.Tenant.TenantID),
			zap.Error(err))
		return "Error: " + err.Error()
	}

	rec.Success = true
	rec.Result = result
	telemetry.Record(rec)
	return result
}

func (r *Runner) findTool(name string) Tool {
	for _, t := range r.tools {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

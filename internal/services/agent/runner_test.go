package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maane-ai/assist-service/internal/domain"
	"github.com/maane-ai/assist-service/internal/prompts"
)

// fakeAvailabilityTool is a stand-in for the calendar tool.
type fakeAvailabilityTool struct {
	calls int
	fail  bool
}

func (f *fakeAvailabilityTool) Name() string        { return ToolCheckAvailability }
func (f *fakeAvailabilityTool) Description() string { return "Check if a slot is free" }
func (f *fakeAvailabilityTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (f *fakeAvailabilityTool) Execute(ctx context.Context, call ToolContext, args json.RawMessage) (string, error) {
	f.calls++
	if f.fail {
		return "", fmt.Errorf("calendar backend down")
	}
	return "Slot 2026-09-01 14:00 is free.", nil
}

// completionWithToolCall is a chat completion asking for one tool call.
func completionWithToolCall(toolName, arguments string) string {
	return fmt.Sprintf(`{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"model": "gpt-test",
		"choices": [{
			"index": 0,
			"finish_reason": "tool_calls",
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{
					"id": "call_1",
					"type": "function",
					"function": {"name": %q, "arguments": %q}
				}]
			}
		}]
	}`, toolName, arguments)
}

func completionWithContent(content string) string {
	payload := map[string]any{
		"id":     "chatcmpl-2",
		"object": "chat.completion",
		"model":  "gpt-test",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func newTestRunner(t *testing.T, handler http.HandlerFunc, tools []Tool) *Runner {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := openai.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(server.URL),
	)

	return &Runner{
		client:    client,
		breaker:   gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "test"}),
		validator: NewValidator(),
		model:     "gpt-test",
		system:    "You are a helpful assistant.",
		greeting:  "שלום!",
		tools:     tools,
		toolCtx:   ToolContext{Tenant: &domain.Tenant{TenantID: "tenant-a"}, Phone: "+972501234567"},
		channel:   domain.ChannelWhatsApp,
	}
}

func TestRunner_ToolLoopThenReply(t *testing.T) {
	tool := &fakeAvailabilityTool{}
	turn := 0
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		turn++
		if turn == 1 {
			fmt.Fprint(w, completionWithToolCall(ToolCheckAvailability, `{"time":"2026-09-01T14:00"}`))
			return
		}
		fmt.Fprint(w, completionWithContent("המועד הזה זמין! לקבוע לך?"))
	}

	r := newTestRunner(t, handler, []Tool{tool})
	result, err := r.Run(context.Background(), nil, "יש מקום מחר בשתיים?")
	require.NoError(t, err)

	assert.Equal(t, "המועד הזה זמין! לקבוע לך?", result.Reply)
	assert.Empty(t, result.Violations)
	assert.Equal(t, 1, tool.calls)
	assert.True(t, result.Telemetry.Succeeded(ToolCheckAvailability))
}

func TestRunner_HallucinatedBookingGetsFallback(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// No tool call at all, but the reply claims a booking.
		fmt.Fprint(w, completionWithContent("מעולה, קבעתי לך תור למחר בשעה 14:00!"))
	}

	r := newTestRunner(t, handler, []Tool{&fakeAvailabilityTool{}})
	result, err := r.Run(context.Background(), nil, "תקבע לי תור למחר בשתיים")
	require.NoError(t, err)

	require.NotEmpty(t, result.Violations)
	assert.Equal(t, prompts.FallbackBookingNotConfirmed, result.Reply)
}

func TestRunner_ToolErrorIsFedBackToModel(t *testing.T) {
	tool := &fakeAvailabilityTool{fail: true}
	turn := 0
	var sawToolError bool
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		turn++
		if turn == 1 {
			fmt.Fprint(w, completionWithToolCall(ToolCheckAvailability, `{}`))
			return
		}
		// The second request carries the tool error message back.
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if msgs, ok := req["messages"].([]any); ok {
			for _, m := range msgs {
				if mm, ok := m.(map[string]any); ok && mm["role"] == "tool" {
					if content, _ := mm["content"].(string); content == "Error: calendar backend down" {
						sawToolError = true
					}
				}
			}
		}
		fmt.Fprint(w, completionWithContent("מצטערת, יש תקלה זמנית ביומן. נחזור אליך בהקדם."))
	}

	r := newTestRunner(t, handler, []Tool{tool})
	result, err := r.Run(context.Background(), nil, "יש מקום מחר?")
	require.NoError(t, err)

	assert.True(t, sawToolError)
	assert.True(t, result.Telemetry.Called(ToolCheckAvailability))
	assert.True(t, result.Telemetry.FailedOnly(ToolCheckAvailability))
	assert.Empty(t, result.Violations)
}

func TestRunner_ModelErrorSurfacesAsUnavailable(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}

	r := newTestRunner(t, handler, nil)
	_, err := r.Run(context.Background(), nil, "שלום")
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestRunner_TurnBudgetFallback(t *testing.T) {
	// The model asks for the same tool forever.
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionWithToolCall(ToolCheckAvailability, `{}`))
	}

	tool := &fakeAvailabilityTool{}
	r := newTestRunner(t, handler, []Tool{tool})
	result, err := r.Run(context.Background(), nil, "יש מקום?")
	require.NoError(t, err)

	assert.Equal(t, prompts.FallbackGeneric, result.Reply)
	assert.NotEmpty(t, result.Violations)
	assert.Equal(t, maxToolTurns, tool.calls)
}

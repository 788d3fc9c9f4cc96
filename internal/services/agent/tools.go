package agent

import (
	"context"
	"encoding/json"

	"github.com/maane-ai/assist-service/internal/domain"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared/constant"
)

// Canonical tool names. The validator keys its telemetry checks on these.
const (
	ToolCheckAvailability = "check_availability"
	ToolBookAppointment   = "book_appointment"
	ToolCancelAppointment = "cancel_appointment"
	ToolSaveLeadNote      = "save_lead_note"
	ToolUpdateLeadStatus  = "update_lead_status"
)

// Tool is one callable capability exposed to the model. Implementations live
// in the calendar and crm services.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the tool arguments.
	Parameters() map[string]any
	// Execute runs the tool for the given tenant and raw JSON arguments.
	// The string result is fed back to the model verbatim.
	Execute(ctx context.Context, call ToolContext, args json.RawMessage) (string, error)
}

// ToolContext carries the per-run identity a tool needs.
type ToolContext struct {
	Tenant *domain.Tenant
	Phone  string // the contact's phone number
	LeadID string // may be empty when no lead exists yet
}

// chatToolParams converts the toolset to the chat-completions tool format.
func chatToolParams(tools []Tool) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		function := openai.FunctionDefinitionParam{
			Name:       tool.Name(),
			Parameters: tool.Parameters(),
		}
		if desc := tool.Description(); desc != "" {
			function.Description = openai.String(desc)
		}
		result = append(result, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: function,
				Type:     constant.ValueOf[constant.Function](),
			},
		})
	}
	return result
}

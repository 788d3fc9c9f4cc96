package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/maane-ai/assist-service/internal/domain"
	"github.com/maane-ai/assist-service/internal/services/agent"
)

// SaveLeadNoteTool lets the agent persist what the customer asked for.
type SaveLeadNoteTool struct {
	svc *Service
}

// UpdateLeadStatusTool lets the agent qualify or close a lead.
type UpdateLeadStatusTool struct {
	svc *Service
}

// Tools returns the CRM toolset for the agent factory.
func (s *Service) Tools() []agent.Tool {
	return []agent.Tool{
		&SaveLeadNoteTool{svc: s},
		&UpdateLeadStatusTool{svc: s},
	}
}

func (t *SaveLeadNoteTool) Name() string { return agent.ToolSaveLeadNote }

func (t *SaveLeadNoteTool) Description() string {
	return "Save a short note about what the customer wants (budget, area, service needed). Call once you have the essentials."
}

func (t *SaveLeadNoteTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"note": map[string]any{"type": "string", "description": "One-sentence summary of the customer's need"},
		},
		"required": []string{"note"},
	}
}

func (t *SaveLeadNoteTool) Execute(ctx context.Context, call agent.ToolContext, args json.RawMessage) (string, error) {
	var in struct {
		Note string `json:"note"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("bad arguments: %w", err)
	}
	if call.LeadID == "" {
		return "", errors.New("no lead on this conversation yet")
	}
	if err := t.svc.AddNote(ctx, call.LeadID, in.Note); err != nil {
		return "", err
	}
	return "Note saved.", nil
}

func (t *UpdateLeadStatusTool) Name() string { return agent.ToolUpdateLeadStatus }

func (t *UpdateLeadStatusTool) Description() string {
	return "Update the lead's funnel status. Allowed values: qualified, lost."
}

func (t *UpdateLeadStatusTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status": map[string]any{
				"type": "string",
				"enum": []string{string(domain.LeadStatusQualified), string(domain.LeadStatusLost)},
			},
		},
		"required": []string{"status"},
	}
}

func (t *UpdateLeadStatusTool) Execute(ctx context.Context, call agent.ToolContext, args json.RawMessage) (string, error) {
	var in struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("bad arguments: %w", err)
	}
	if call.LeadID == "" {
		return "", errors.New("no lead on this conversation yet")
	}

	status := domain.LeadStatus(in.Status)
	if status != domain.LeadStatusQualified && status != domain.LeadStatusLost {
		return "", fmt.Errorf("status %q not allowed from this tool", in.Status)
	}
	if _, err := t.svc.Transition(ctx, call.LeadID, status); err != nil {
		return "", err
	}
	return fmt.Sprintf("Lead marked %s.", in.Status), nil
}

package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/maane-ai/assist-service/internal/services/agent"
)

// Tool wrappers exposing the calendar service to the agent loop. Error text
// is returned to the model, so it is phrased for relaying to a customer.

// CheckAvailabilityTool answers "is this slot free".
type CheckAvailabilityTool struct {
	svc *Service
}

// BookAppointmentTool books a validated slot.
type BookAppointmentTool struct {
	svc *Service
}

// CancelAppointmentTool cancels an existing appointment by ID.
type CancelAppointmentTool struct {
	svc *Service
}

// Tools returns the calendar toolset for the agent factory.
func (s *Service) Tools() []agent.Tool {
	return []agent.Tool{
		&CheckAvailabilityTool{svc: s},
		&BookAppointmentTool{svc: s},
		&CancelAppointmentTool{svc: s},
	}
}

func (t *CheckAvailabilityTool) Name() string { return agent.ToolCheckAvailability }

func (t *CheckAvailabilityTool) Description() string {
	return "Check whether an appointment slot is free. Call this BEFORE telling the customer a time is available. time is ISO format, e.g. 2026-09-01T14:00."
}

func (t *CheckAvailabilityTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"time": map[string]any{"type": "string", "description": "Requested start time, ISO format"},
		},
		"required": []string{"time"},
	}
}

func (t *CheckAvailabilityTool) Execute(ctx context.Context, call agent.ToolContext, args json.RawMessage) (string, error) {
	var in struct {
		Time string `json:"time"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("bad arguments: %w", err)
	}

	startsAt, err := ParseSlotTime(in.Time, call.Tenant)
	if err != nil {
		return "", err
	}

	free, alternatives, err := t.svc.CheckAvailability(ctx, call.Tenant, startsAt)
	if err != nil {
		return "", err
	}
	if free {
		return fmt.Sprintf("Slot %s is free.", startsAt.Format("2006-01-02 15:04")), nil
	}

	if len(alternatives) == 0 {
		return fmt.Sprintf("Slot %s is taken and no nearby slot is free that day.", startsAt.Format("2006-01-02 15:04")), nil
	}
	times := make([]string, 0, len(alternatives))
	for _, alt := range alternatives {
		times = append(times, alt.StartsAt.Format("2006-01-02 15:04"))
	}
	return fmt.Sprintf("Slot %s is taken. Free nearby: %s.",
		startsAt.Format("2006-01-02 15:04"), strings.Join(times, ", ")), nil
}

func (t *BookAppointmentTool) Name() string { return agent.ToolBookAppointment }

func (t *BookAppointmentTool) Description() string {
	return "Book an appointment for the customer. Only call after the customer explicitly agreed to the time. time is ISO format."
}

func (t *BookAppointmentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"time":    map[string]any{"type": "string", "description": "Agreed start time, ISO format"},
			"subject": map[string]any{"type": "string", "description": "Short subject, e.g. 'viewing at Rothschild 12'"},
		},
		"required": []string{"time"},
	}
}

func (t *BookAppointmentTool) Execute(ctx context.Context, call agent.ToolContext, args json.RawMessage) (string, error) {
	var in struct {
		Time    string `json:"time"`
		Subject string `json:"subject"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("bad arguments: %w", err)
	}

	startsAt, err := ParseSlotTime(in.Time, call.Tenant)
	if err != nil {
		return "", err
	}

	appt, err := t.svc.Book(ctx, call.Tenant, call.Phone, call.LeadID, in.Subject, startsAt)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Appointment %s booked for %s.", appt.ID, appt.StartsAt.Format("2006-01-02 15:04")), nil
}

func (t *CancelAppointmentTool) Name() string { return agent.ToolCancelAppointment }

func (t *CancelAppointmentTool) Description() string {
	return "Cancel an existing appointment by its ID."
}

func (t *CancelAppointmentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"appointment_id": map[string]any{"type": "string"},
		},
		"required": []string{"appointment_id"},
	}
}

func (t *CancelAppointmentTool) Execute(ctx context.Context, call agent.ToolContext, args json.RawMessage) (string, error) {
	var in struct {
		AppointmentID string `json:"appointment_id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("bad arguments: %w", err)
	}
	if err := t.svc.Cancel(ctx, call.Tenant, in.AppointmentID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Appointment %s cancelled.", in.AppointmentID), nil
}

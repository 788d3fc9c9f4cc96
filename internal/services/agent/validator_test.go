package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maane-ai/assist-service/internal/prompts"
)

func telemetryWith(records ...ToolCallRecord) *Telemetry {
	tel := NewTelemetry()
	for _, rec := range records {
		tel.Record(rec)
	}
	return tel
}

func TestValidator_BookingClaimWithoutToolCall(t *testing.T) {
	v := NewValidator()

	violations := v.Check("מעולה! קבעתי לך תור למחר בעשר.", NewTelemetry())
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "without book_appointment call")
}

func TestValidator_BookingClaimBackedByToolSuccess(t *testing.T) {
	v := NewValidator()
	tel := telemetryWith(ToolCallRecord{Name: ToolBookAppointment, Success: true})

	violations := v.Check("מעולה! קבעתי לך תור למחר בעשר.", tel)
	assert.Empty(t, violations)
}

func TestValidator_BookingClaimAfterToolFailure(t *testing.T) {
	v := NewValidator()
	tel := telemetryWith(ToolCallRecord{Name: ToolBookAppointment, Success: false, Error: "slot taken"})

	violations := v.Check("Your appointment is confirmed for tomorrow!", tel)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "book_appointment failed")
}

func TestValidator_EnglishBookingClaim(t *testing.T) {
	v := NewValidator()

	violations := v.Check("Great, I've booked you for Tuesday at 10am.", NewTelemetry())
	require.Len(t, violations, 1)
}

func TestValidator_NegatedBookingClaimPasses(t *testing.T) {
	v := NewValidator()

	// "I have NOT booked yet" must not trip the booking check.
	violations := v.Check("עדיין לא קבעתי לך תור, אני צריכה לבדוק זמינות קודם.", NewTelemetry())
	assert.Empty(t, violations)
}

func TestValidator_AvailabilityClaimWithoutCheck(t *testing.T) {
	v := NewValidator()

	violations := v.Check("יום שלישי בעשר פנוי אצלנו!", NewTelemetry())
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "without check_availability call")
}

func TestValidator_AvailabilityClaimAfterCheck(t *testing.T) {
	v := NewValidator()
	tel := telemetryWith(ToolCallRecord{Name: ToolCheckAvailability, Success: true, Result: "Slot is free."})

	violations := v.Check("יום שלישי בעשר פנוי אצלנו!", tel)
	assert.Empty(t, violations)
}

func TestValidator_AvailabilityImpliedByBooking(t *testing.T) {
	v := NewValidator()
	tel := telemetryWith(ToolCallRecord{Name: ToolBookAppointment, Success: true})

	// A successful booking implies the slot was available.
	violations := v.Check("The slot is free and I booked it for you.", tel)
	assert.Empty(t, violations)
}

func TestValidator_PlainReplyPasses(t *testing.T) {
	v := NewValidator()

	violations := v.Check("אשמח לעזור! לאיזה יום נוח לך?", NewTelemetry())
	assert.Empty(t, violations)

	violations = v.Check("What service are you interested in?", NewTelemetry())
	assert.Empty(t, violations)
}

func TestValidator_FallbackForBookingViolation(t *testing.T) {
	v := NewValidator()

	text := v.FallbackFor([]string{"booking claimed without book_appointment call: קבעתי"})
	assert.Equal(t, prompts.FallbackBookingNotConfirmed, text)

	text = v.FallbackFor([]string{"availability claimed without check_availability call: פנוי"})
	assert.Equal(t, prompts.FallbackGeneric, text)
}

func TestTelemetry_CalledSucceededFailedOnly(t *testing.T) {
	tel := telemetryWith(
		ToolCallRecord{Name: ToolBookAppointment, Success: false, Error: "slot taken"},
		ToolCallRecord{Name: ToolCheckAvailability, Success: true},
	)

	assert.True(t, tel.Called(ToolBookAppointment))
	assert.False(t, tel.Succeeded(ToolBookAppointment))
	assert.True(t, tel.FailedOnly(ToolBookAppointment))

	assert.True(t, tel.Succeeded(ToolCheckAvailability))
	assert.False(t, tel.FailedOnly(ToolCheckAvailability))

	assert.False(t, tel.Called(ToolCancelAppointment))

	// A later success clears FailedOnly.
	tel.Record(ToolCallRecord{Name: ToolBookAppointment, Success: true})
	assert.False(t, tel.FailedOnly(ToolBookAppointment))
	assert.True(t, tel.Succeeded(ToolBookAppointment))
}

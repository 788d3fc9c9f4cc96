package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maane-ai/assist-service/internal/domain"
)

func israelTime(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)
	parsed, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	require.NoError(t, err)
	return parsed
}

func calendarTenant() *domain.Tenant {
	return &domain.Tenant{
		TenantID: "barber-haifa",
		Name:     "מספרת רם",
		Timezone: "Asia/Jerusalem",
	}
}

func TestParseSlotTime_AcceptedFormats(t *testing.T) {
	tenant := calendarTenant()

	for _, value := range []string{
		"2026-09-01T14:00:00+03:00",
		"2026-09-01T14:00:00",
		"2026-09-01T14:00",
		"2026-09-01 14:00",
	} {
		parsed, err := ParseSlotTime(value, tenant)
		require.NoError(t, err, value)
		assert.Equal(t, 14, parsed.Hour(), value)
	}
}

func TestParseSlotTime_Rejects(t *testing.T) {
	tenant := calendarTenant()

	for _, value := range []string{"", "tomorrow at noon", "01/09/2026 14:00"} {
		_, err := ParseSlotTime(value, tenant)
		assert.ErrorIs(t, err, ErrBadTimeFormat, value)
	}
}

func TestValidateSlot_HappyPath(t *testing.T) {
	// Monday morning; the slot is Tuesday 11:00, inside default hours.
	now := israelTime(t, "2026-03-02 10:00")
	slot := israelTime(t, "2026-03-03 11:00")

	assert.NoError(t, ValidateSlot(slot, calendarTenant(), now))
}

func TestValidateSlot_PastTime(t *testing.T) {
	now := israelTime(t, "2026-03-02 10:00")
	slot := israelTime(t, "2026-03-01 11:00")

	assert.ErrorIs(t, ValidateSlot(slot, calendarTenant(), now), ErrPastTime)
}

func TestValidateSlot_Granularity(t *testing.T) {
	now := israelTime(t, "2026-03-02 10:00")

	assert.ErrorIs(t, ValidateSlot(israelTime(t, "2026-03-03 11:15"), calendarTenant(), now), ErrBadGranularity)
	assert.NoError(t, ValidateSlot(israelTime(t, "2026-03-03 11:30"), calendarTenant(), now))
}

func TestValidateSlot_DefaultIsraeliWeek(t *testing.T) {
	now := israelTime(t, "2026-03-02 10:00")
	tenant := calendarTenant()

	// Friday closes at 13:00.
	assert.NoError(t, ValidateSlot(israelTime(t, "2026-03-06 12:30"), tenant, now))
	assert.ErrorIs(t, ValidateSlot(israelTime(t, "2026-03-06 14:00"), tenant, now), ErrOutsideHours)

	// Saturday is closed.
	assert.ErrorIs(t, ValidateSlot(israelTime(t, "2026-03-07 11:00"), tenant, now), ErrOutsideHours)

	// Sunday is a working day.
	assert.NoError(t, ValidateSlot(israelTime(t, "2026-03-08 11:00"), tenant, now))
}

func TestValidateSlot_TooFarAhead(t *testing.T) {
	now := israelTime(t, "2026-03-02 10:00")
	slot := israelTime(t, "2026-07-01 11:00")

	assert.ErrorIs(t, ValidateSlot(slot, calendarTenant(), now), ErrTooFarAhead)
}

func TestValidateSlot_TenantBusinessHours(t *testing.T) {
	now := israelTime(t, "2026-03-02 10:00")
	tenant := calendarTenant()
	tenant.BusinessHours = domain.JSONB{
		"tue": map[string]interface{}{"open": "16:00", "close": "20:00"},
	}

	// Tuesday evening is open under the custom config.
	assert.NoError(t, ValidateSlot(israelTime(t, "2026-03-03 17:00"), tenant, now))
	assert.ErrorIs(t, ValidateSlot(israelTime(t, "2026-03-03 11:00"), tenant, now), ErrOutsideHours)

	// Weekdays absent from an explicit config are closed.
	assert.ErrorIs(t, ValidateSlot(israelTime(t, "2026-03-04 17:00"), tenant, now), ErrOutsideHours)
}

func TestValidateSlot_ClosingTimeIsExclusive(t *testing.T) {
	now := israelTime(t, "2026-03-02 10:00")

	// Opening at 18:00 exactly is outside 09:00-18:00.
	assert.ErrorIs(t, ValidateSlot(israelTime(t, "2026-03-03 18:00"), calendarTenant(), now), ErrOutsideHours)
	assert.NoError(t, ValidateSlot(israelTime(t, "2026-03-03 17:30"), calendarTenant(), now))
}

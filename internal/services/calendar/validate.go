package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maane-ai/assist-service/internal/domain"
)

// Typed validation errors. Tool wrappers pass the message back to the model,
// so the text must be something the agent can relay to a customer.
var (
	ErrBadTimeFormat  = errors.New("time not understood, expected ISO format like 2026-09-01T14:00")
	ErrPastTime       = errors.New("time is in the past")
	ErrOutsideHours   = errors.New("time is outside business hours")
	ErrBadGranularity = errors.New("appointments start on the hour or half hour")
	ErrTooFarAhead    = errors.New("appointments can be booked at most 90 days ahead")
)

// slotGranularity is the spacing appointment start times snap to.
const slotGranularity = 30 * time.Minute

// maxBookingHorizon bounds how far ahead a slot may be booked.
const maxBookingHorizon = 90 * 24 * time.Hour

// acceptedLayouts are the time formats the booking tools accept. The model
// is instructed to send RFC3339, but tolerate the common degradations.
var acceptedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// defaultHours is the Israeli working week applied when the tenant has no
// business_hours config: Sunday-Thursday 09:00-18:00, Friday 09:00-13:00.
var defaultHours = map[time.Weekday][2]string{
	time.Sunday:    {"09:00", "18:00"},
	time.Monday:    {"09:00", "18:00"},
	time.Tuesday:   {"09:00", "18:00"},
	time.Wednesday: {"09:00", "18:00"},
	time.Thursday:  {"09:00", "18:00"},
	time.Friday:    {"09:00", "13:00"},
}

var weekdayKeys = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday,
	"wed": time.Wednesday, "thu": time.Thursday, "fri": time.Friday,
	"sat": time.Saturday,
}

// ParseSlotTime parses a tool-supplied time string in the tenant's timezone.
func ParseSlotTime(value string, tenant *domain.Tenant) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrBadTimeFormat
	}

	loc := tenantLocation(tenant)
	for _, layout := range acceptedLayouts {
		if layout == time.RFC3339 {
			if t, err := time.Parse(layout, value); err == nil {
				return t.In(loc), nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimeFormat, value)
}

// ValidateSlot checks a parsed start time against the rules that do not
// need a database: not in the past, inside business hours, on the slot
// grid, within the booking horizon.
func ValidateSlot(startsAt time.Time, tenant *domain.Tenant, now time.Time) error {
	if !startsAt.After(now) {
		return fmt.Errorf("%w: %s", ErrPastTime, startsAt.Format("2006-01-02 15:04"))
	}
	if startsAt.Sub(now) > maxBookingHorizon {
		return ErrTooFarAhead
	}
	if rem := startsAt.Sub(startsAt.Truncate(slotGranularity)); rem != 0 {
		return fmt.Errorf("%w: got %s", ErrBadGranularity, startsAt.Format("15:04"))
	}

	open, close, ok := hoursFor(startsAt.Weekday(), tenant)
	if !ok {
		return fmt.Errorf("%w: closed on %s", ErrOutsideHours, startsAt.Weekday())
	}

	minutes := startsAt.Hour()*60 + startsAt.Minute()
	if minutes < open || minutes >= close {
		return fmt.Errorf("%w: %s is outside %02d:%02d-%02d:%02d",
			ErrOutsideHours, startsAt.Format("15:04"),
			open/60, open%60, close/60, close%60)
	}
	return nil
}

// hoursFor resolves the open/close minutes-of-day for a weekday from the
// tenant's business_hours JSONB, falling back to the platform defaults.
// A weekday mapped to null or missing from an explicit config means closed.
func hoursFor(day time.Weekday, tenant *domain.Tenant) (openMin, closeMin int, ok bool) {
	if tenant != nil && len(tenant.BusinessHours) > 0 {
		for key, raw := range tenant.BusinessHours {
			wd, known := weekdayKeys[strings.ToLower(key[:min(3, len(key))])]
			if !known || wd != day {
				continue
			}
			window, isMap := raw.(map[string]interface{})
			if !isMap {
				return 0, 0, false
			}
			openStr, _ := window["open"].(string)
			closeStr, _ := window["close"].(string)
			o, errO := parseClock(openStr)
			c, errC := parseClock(closeStr)
			if errO != nil || errC != nil {
				return 0, 0, false
			}
			return o, c, true
		}
		// Explicit config without this weekday: closed.
		return 0, 0, false
	}

	window, exists := defaultHours[day]
	if !exists {
		return 0, 0, false
	}
	o, _ := parseClock(window[0])
	c, _ := parseClock(window[1])
	return o, c, true
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func tenantLocation(tenant *domain.Tenant) *time.Location {
	tz := "Asia/Jerusalem"
	if tenant != nil && tenant.Timezone != "" {
		tz = tenant.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}


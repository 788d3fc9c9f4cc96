package agent

import (
	"strings"

	"github.com/maane-ai/assist-service/internal/prompts"
)

// Validator checks assistant replies against the tool-call telemetry of the
// run that produced them. It targets the two claims the model is most
// tempted to invent: "the appointment is booked" and "that slot is free".
// The heuristics are plain substring matches over Hebrew and English phrasing;
// this is intentionally not a general NLU layer.
type Validator struct{}

// NewValidator returns a reply validator.
func NewValidator() *Validator {
	return &Validator{}
}

// bookingClaims are phrases that assert a booking was made.
var bookingClaims = []string{
	// Hebrew
	"קבעתי",
	"נקבע",
	"התור שלך",
	"התור נקבע",
	"הפגישה נקבעה",
	"שריינתי",
	"רשמתי אותך",
	// English
	"booked",
	"i've scheduled",
	"i have scheduled",
	"confirmed your appointment",
	"appointment is confirmed",
	"appointment is set",
}

// availabilityClaims are phrases that assert a concrete slot is free or taken.
var availabilityClaims = []string{
	// Hebrew
	"פנוי",
	"פנויה",
	"יש לנו זמן",
	"יש מקום",
	"תפוס",
	"המועד הזה זמין",
	// English
	"available at",
	"slot is free",
	"we have an opening",
	"that time is taken",
}

// negationMarkers neutralize a claim ("I did NOT book...", "לא קבעתי").
var negationMarkers = []string{
	"לא ",
	"אי אפשר",
	"not ",
	"couldn't",
	"could not",
	"unable",
}

// Check returns a list of violations; an empty list means the reply is
// consistent with what the tools actually did.
func (v *Validator) Check(reply string, telemetry *Telemetry) []string {
	lower := strings.ToLower(reply)
	var violations []string

	if claim := matchClaim(lower, bookingClaims); claim != "" {
		switch {
		case telemetry.Succeeded(ToolBookAppointment):
			// Claim backed by a successful booking.
		case telemetry.FailedOnly(ToolBookAppointment):
			violations = append(violations, "booking claimed but book_appointment failed: "+claim)
		default:
			violations = append(violations, "booking claimed without book_appointment call: "+claim)
		}
	}

	if claim := matchClaim(lower, availabilityClaims); claim != "" {
		if !telemetry.Called(ToolCheckAvailability) && !telemetry.Succeeded(ToolBookAppointment) {
			violations = append(violations, "availability claimed without check_availability call: "+claim)
		}
	}

	return violations
}

// Fallback returns the generic safe reply.
func (v *Validator) Fallback() string {
	return prompts.FallbackGeneric
}

// FallbackFor picks the fallback text that fits the violation set.
func (v *Validator) FallbackFor(violations []string) string {
	for _, viol := range violations {
		if strings.Contains(viol, "booking claimed") {
			return prompts.FallbackBookingNotConfirmed
		}
	}
	return prompts.FallbackGeneric
}

// matchClaim returns the first claim phrase found in the reply unless it is
// negated in the surrounding text.
func matchClaim(lowerReply string, claims []string) string {
	for _, claim := range claims {
		idx := strings.Index(lowerReply, claim)
		if idx < 0 {
			continue
		}
		if isNegated(lowerReply, idx) {
			continue
		}
		return claim
	}
	return ""
}

// isNegated reports whether a negation marker appears shortly before the
// claim. The window is small on purpose: "לא קבעתי עדיין" must pass while a
// negation three sentences earlier must not mask a later positive claim.
func isNegated(lowerReply string, claimIdx int) bool {
	windowStart := claimIdx - 20
	if windowStart < 0 {
		windowStart = 0
	}
	window := lowerReply[windowStart:claimIdx]
	for _, neg := range negationMarkers {
		if strings.Contains(window, neg) {
			return true
		}
	}
	return false
}

package domain

import (
	"time"
)

// CallDirection marks who initiated the call.
type CallDirection string

const (
	CallDirectionInbound  CallDirection = "inbound"
	CallDirectionOutbound CallDirection = "outbound"
)

// CallStatus mirrors the Twilio call lifecycle states the service reacts to.
const (
	CallStatusQueued     = "queued"
	CallStatusInitiated  = "initiated"
	CallStatusRinging    = "ringing"
	CallStatusInProgress = "in-progress"
	CallStatusCompleted  = "completed"
	CallStatusFailed     = "failed"
	CallStatusBusy       = "busy"
	CallStatusNoAnswer   = "no-answer"
)

// IsTerminalCallStatus reports whether a Twilio status ends the call and
// frees its dialer slot.
func IsTerminalCallStatus(status string) bool {
	switch status {
	case CallStatusCompleted, CallStatusFailed, CallStatusBusy, CallStatusNoAnswer:
		return true
	}
	return false
}

// CallRecord persists one voice call, inbound or dialer-initiated.
type CallRecord struct {
	ID        string        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string        `json:"tenant_id" gorm:"type:varchar(255);index;not null"`
	CallSID   string        `json:"call_sid" gorm:"type:varchar(64);uniqueIndex"`
	Phone     string        `json:"phone" gorm:"type:varchar(32);index"`
	Direction CallDirection `json:"direction" gorm:"type:varchar(16)"`
	Status    string        `json:"status" gorm:"type:varchar(24);index"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	CreatedAt time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for CallRecord
func (CallRecord) TableName() string {
	return "call_records"
}

// DialJob is the unit queued for the outbound dialer.
type DialJob struct {
	ID       string    `json:"id"`
	TenantID string    `json:"tenant_id"`
	Phone    string    `json:"phone"`
	LeadID   string    `json:"lead_id,omitempty"`
	QueuedAt time.Time `json:"queued_at"`
}

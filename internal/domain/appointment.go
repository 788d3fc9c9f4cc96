package domain

import (
	"time"
)

// AppointmentStatus tracks the lifecycle of a booked slot.
type AppointmentStatus string

const (
	AppointmentStatusBooked    AppointmentStatus = "booked"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// Appointment is a booked slot for a tenant and contact.
type Appointment struct {
	ID        string            `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string            `json:"tenant_id" gorm:"type:varchar(255);index;not null"`
	LeadID    string            `json:"lead_id" gorm:"type:uuid;index"`
	Phone     string            `json:"phone" gorm:"type:varchar(32);index"`
	StartsAt  time.Time         `json:"starts_at" gorm:"index;not null"`
	EndsAt    time.Time         `json:"ends_at" gorm:"not null"`
	Subject   string            `json:"subject" gorm:"type:varchar(255)"`
	Status    AppointmentStatus `json:"status" gorm:"type:varchar(16);default:'booked';index"`
	CreatedAt time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Appointment
func (Appointment) TableName() string {
	return "appointments"
}

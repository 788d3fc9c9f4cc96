package domain

import (
	"errors"
	"time"
)

// ErrInvalidTransition is returned when a lead status move is not allowed.
var ErrInvalidTransition = errors.New("invalid lead status transition")

// LeadStatus tracks where a lead sits in the funnel.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusLost      LeadStatus = "lost"
)

// leadTransitions lists the allowed status moves.
var leadTransitions = map[LeadStatus][]LeadStatus{
	LeadStatusNew:       {LeadStatusContacted, LeadStatusLost},
	LeadStatusContacted: {LeadStatusQualified, LeadStatusLost},
	LeadStatusQualified: {LeadStatusConverted, LeadStatusLost},
	// A lost lead can be re-engaged; converted stays terminal.
	LeadStatusLost: {LeadStatusContacted},
}

// CanTransitionTo reports whether a lead may move from s to next.
func (s LeadStatus) CanTransitionTo(next LeadStatus) bool {
	for _, allowed := range leadTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Lead is a CRM contact captured from an inbound or outbound conversation.
type Lead struct {
	ID          string     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID    string     `json:"tenant_id" gorm:"type:varchar(255);index:idx_leads_tenant_phone,unique;not null"`
	Phone       string     `json:"phone" gorm:"type:varchar(32);index:idx_leads_tenant_phone,unique;not null"`
	Name        string     `json:"name" gorm:"type:varchar(255)"`
	Status      LeadStatus `json:"status" gorm:"type:varchar(16);default:'new';index"`
	Source      string     `json:"source" gorm:"type:varchar(32)"` // calls, whatsapp, dialer
	Notes       string     `json:"notes" gorm:"type:text"`
	LastContact time.Time  `json:"last_contact"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Lead
func (Lead) TableName() string {
	return "leads"
}

// UpsertLeadRequest captures or refreshes a lead by phone number.
type UpsertLeadRequest struct {
	Phone  string `json:"phone" validate:"required"`
	Name   string `json:"name,omitempty"`
	Source string `json:"source,omitempty"`
}

// LeadFilter narrows lead listings.
type LeadFilter struct {
	Status LeadStatus `json:"status,omitempty"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
}

package domain

import (
	"time"
)

// Tenant represents a business account on the platform.
type Tenant struct {
	ID            string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID      string    `json:"tenant_id" gorm:"type:varchar(255);uniqueIndex:uni_tenants_tenant_id;not null"`
	Name          string    `json:"name" gorm:"type:varchar(255);not null"`
	Industry      string    `json:"industry" gorm:"type:varchar(64)"` // real_estate, services, ...
	PhoneNumber   string    `json:"phone_number" gorm:"type:varchar(32);index"`
	WhatsAppPhoneID string  `json:"whatsapp_phone_id" gorm:"type:varchar(64);index"`
	Language      string    `json:"language" gorm:"type:varchar(16);default:'he'"`
	Timezone      string    `json:"timezone" gorm:"type:varchar(64);default:'Asia/Jerusalem'"`
	BusinessHours JSONB     `json:"business_hours" gorm:"type:jsonb"` // weekday -> {open, close}
	DialLimit     int       `json:"dial_limit" gorm:"default:2"`      // concurrent outbound calls
	CallsEnabled  bool      `json:"calls_enabled" gorm:"default:true"`
	WhatsAppEnabled bool    `json:"whatsapp_enabled" gorm:"default:true"`
	CustomConfig  JSONB     `json:"custom_config" gorm:"type:jsonb"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
	Disabled      bool      `json:"disabled" gorm:"default:false"`
}

// TableName sets the table name for Tenant
func (Tenant) TableName() string {
	return "tenants"
}

// CreateTenantRequest represents the request to create a new tenant
type CreateTenantRequest struct {
	TenantID        string `json:"tenant_id" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Industry        string `json:"industry,omitempty"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	WhatsAppPhoneID string `json:"whatsapp_phone_id,omitempty"`
	Language        string `json:"language,omitempty"`
	Timezone        string `json:"timezone,omitempty"`
	BusinessHours   JSONB  `json:"business_hours,omitempty"`
	DialLimit       int    `json:"dial_limit,omitempty"`
	CustomConfig    JSONB  `json:"custom_config,omitempty"`
}

// UpdateTenantRequest represents the request to update a tenant
type UpdateTenantRequest struct {
	Name            *string `json:"name,omitempty"`
	Industry        *string `json:"industry,omitempty"`
	PhoneNumber     *string `json:"phone_number,omitempty"`
	WhatsAppPhoneID *string `json:"whatsapp_phone_id,omitempty"`
	Language        *string `json:"language,omitempty"`
	Timezone        *string `json:"timezone,omitempty"`
	BusinessHours   *JSONB  `json:"business_hours,omitempty"`
	DialLimit       *int    `json:"dial_limit,omitempty"`
	CallsEnabled    *bool   `json:"calls_enabled,omitempty"`
	WhatsAppEnabled *bool   `json:"whatsapp_enabled,omitempty"`
	CustomConfig    *JSONB  `json:"custom_config,omitempty"`
	Disabled        *bool   `json:"disabled,omitempty"`
}

// PromptTemplate holds a tenant's prompt layer for one channel. The resolver
// stacks it on top of the platform base prompts.
type PromptTemplate struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string    `json:"tenant_id" gorm:"type:varchar(255);index:idx_prompt_tenant_channel,unique;not null"`
	Channel   Channel   `json:"channel" gorm:"type:varchar(16);index:idx_prompt_tenant_channel,unique;not null"`
	Persona   string    `json:"persona" gorm:"type:text"`
	Greeting  string    `json:"greeting" gorm:"type:text"`
	Custom    string    `json:"custom" gorm:"type:text"`
	Version   int       `json:"version" gorm:"default:1"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for PromptTemplate
func (PromptTemplate) TableName() string {
	return "prompt_templates"
}

// UpsertPromptTemplateRequest creates or replaces a tenant's channel prompt.
type UpsertPromptTemplateRequest struct {
	Persona  string `json:"persona,omitempty"`
	Greeting string `json:"greeting,omitempty"`
	Custom   string `json:"custom,omitempty"`
}

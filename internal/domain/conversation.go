package domain

import (
	"time"
)

// Conversation groups the messages exchanged with one contact on one channel.
type Conversation struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string    `json:"tenant_id" gorm:"type:varchar(255);index:idx_conv_tenant_contact;not null"`
	Phone     string    `json:"phone" gorm:"type:varchar(32);index:idx_conv_tenant_contact;not null"`
	Channel   Channel   `json:"channel" gorm:"type:varchar(16);index:idx_conv_tenant_contact;not null"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// Message is one turn in a conversation. Role follows the chat-completions
// convention: user, assistant, tool.
type Message struct {
	ID             string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ConversationID string    `json:"conversation_id" gorm:"type:uuid;index;not null"`
	Role           string    `json:"role" gorm:"type:varchar(16);not null"`
	Content        string    `json:"content" gorm:"type:text"`
	ToolName       string    `json:"tool_name,omitempty" gorm:"type:varchar(64)"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName sets the table name for Message
func (Message) TableName() string {
	return "messages"
}

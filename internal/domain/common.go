package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB represents a PostgreSQL JSONB field
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}

	return json.Unmarshal(bytes, j)
}

// Channel identifies which conversational surface a message or prompt
// belongs to.
type Channel string

const (
	ChannelCalls    Channel = "calls"
	ChannelWhatsApp Channel = "whatsapp"
)

// Valid reports whether the channel is one the platform serves.
func (c Channel) Valid() bool {
	return c == ChannelCalls || c == ChannelWhatsApp
}

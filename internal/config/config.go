package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// AssistConfig represents configuration for the assist service
type AssistConfig struct {
	Port string

	// OpenAI configuration
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Twilio configuration
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// WhatsApp Cloud API configuration
	WhatsAppBaseURL     string
	WhatsAppAccessToken string
	WhatsAppVerifyToken string

	// Public base URL Twilio calls back into (webhooks, TwiML)
	PublicBaseURL string

	// Admin API key secret (JWT HS256)
	SecretKey string

	// Outbound dialer configuration
	DialDefaultLimit  int
	DialQueueMax      int
	DialMaxCallLength time.Duration

	// Instance identifier for multi-pod monitoring and routing
	InstanceID string
}

// LoadFromEnv loads the service configuration from environment variables.
// godotenv.Load is expected to have run already in main for local setups.
func LoadFromEnv() *AssistConfig {
	return &AssistConfig{
		Port: GetEnvOrDefault("PORT", "8080"),

		OpenAIAPIKey:  GetEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL: GetEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   GetEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),

		TwilioAccountSID: GetEnvOrDefault("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  GetEnvOrDefault("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: GetEnvOrDefault("TWILIO_FROM_NUMBER", ""),

		// Empty means the whatsapp client's default Graph API version.
		WhatsAppBaseURL:     GetEnvOrDefault("WHATSAPP_BASE_URL", ""),
		WhatsAppAccessToken: GetEnvOrDefault("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppVerifyToken: GetEnvOrDefault("WHATSAPP_VERIFY_TOKEN", ""),

		PublicBaseURL: GetEnvOrDefault("PUBLIC_BASE_URL", ""),

		SecretKey: GetEnvOrDefault("SECRET_KEY", ""),

		DialDefaultLimit:  GetEnvAsIntOrDefault("DIAL_DEFAULT_LIMIT", 2),
		DialQueueMax:      GetEnvAsIntOrDefault("DIAL_QUEUE_MAX", 200),
		DialMaxCallLength: time.Duration(GetEnvAsIntOrDefault("DIAL_MAX_CALL_MINUTES", 15)) * time.Minute,

		InstanceID: instanceID(),
	}
}

// GetEnvOrDefault gets environment variable or returns default
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvAsIntOrDefault gets environment variable as int or returns default
func GetEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsBoolOrDefault gets environment variable as bool or returns default
func GetEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// instanceID identifies this service instance. The hostname is the pod name
// in Kubernetes; fall back to a timestamp-based ID.
func instanceID() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return fmt.Sprintf("assist-service-%d", time.Now().UnixNano())
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyType namespaces the Redis keys owned by this service.
type KeyType string

const (
	PromptCacheBus KeyType = "maane_prompt_invalidate"
	DialSemaphore  KeyType = "maane_dial_slots"
	DialQueue      KeyType = "maane_dial_queue"
	DialSlotStamp  KeyType = "maane_dial_slot_ts"
)

// ErrKeyNotExist is returned when a key is absent.
var ErrKeyNotExist = redis.Nil

// Config holds Redis connection settings.
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Service is a thin wrapper around the go-redis client with the key
// conventions used across the assist service.
type Service struct {
	client *redis.Client
}

// NewService connects to Redis and verifies the connection.
func NewService(cfg *Config) (*Service, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Service{client: client}, nil
}

// NewServiceWithClient wraps an existing client. Used by tests with miniredis.
func NewServiceWithClient(client *redis.Client) *Service {
	return &Service{client: client}
}

// Client exposes the underlying go-redis client for callers that need
// scripting or list operations directly.
func (s *Service) Client() *redis.Client {
	return s.client
}

// Key builds a namespaced key for the given type and identifier.
func (s *Service) Key(keyType KeyType, identifier string) string {
	return fmt.Sprintf("%s:%s", string(keyType), identifier)
}

// GetValue gets a string value by key.
func (s *Service) GetValue(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

// SetValue sets a string value with a TTL. A zero TTL means no expiration.
func (s *Service) SetValue(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// DelValue deletes a key.
func (s *Service) DelValue(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Publish JSON-encodes message and publishes it to channel.
func (s *Service) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channel, data).Err()
}

// Subscribe subscribes to channel and invokes handler for each payload.
// The subscription lives until ctx is cancelled.
func (s *Service) Subscribe(ctx context.Context, channel string, handler func(string)) error {
	pubsub := s.client.Subscribe(ctx, channel)

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(msg.Payload)
			}
		}
	}()

	return nil
}

// Close releases the underlying client.
func (s *Service) Close() error {
	return s.client.Close()
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/maane-ai/assist-service/internal/domain"
	"gorm.io/gorm"
)

// GormConversationRepository implements ConversationRepository using GORM
type GormConversationRepository struct {
	db *gorm.DB
}

// NewGormConversationRepository creates a new GORM conversation repository
func NewGormConversationRepository(db *gorm.DB) *GormConversationRepository {
	return &GormConversationRepository{db: db}
}

// GetOrCreate finds the open conversation for a tenant/contact/channel or
// starts a new one.
func (r *GormConversationRepository) GetOrCreate(ctx context.Context, tenantID, phone string, channel domain.Channel) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND phone = ? AND channel = ? AND ended_at = ?", tenantID, phone, channel, time.Time{}).
		First(&conv).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		conv = domain.Conversation{
			TenantID:  tenantID,
			Phone:     phone,
			Channel:   channel,
			StartedAt: time.Now(),
		}
		if err := r.db.WithContext(ctx).Create(&conv).Error; err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		return &conv, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return &conv, nil
}

// AppendMessage stores one conversation turn
func (r *GormConversationRepository) AppendMessage(ctx context.Context, conversationID string, msg *domain.Message) error {
	msg.ConversationID = conversationID
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// RecentMessages returns the last limit messages in chronological order.
func (r *GormConversationRepository) RecentMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = 20
	}

	var msgs []*domain.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}

	// Reverse into chronological order for the agent loop.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// End closes a conversation
func (r *GormConversationRepository) End(ctx context.Context, conversationID string) error {
	result := r.db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("id = ?", conversationID).
		Update("ended_at", time.Now())
	if result.Error != nil {
		return fmt.Errorf("failed to end conversation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	return nil
}

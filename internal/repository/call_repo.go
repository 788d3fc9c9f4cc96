package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/maane-ai/assist-service/internal/domain"
	"gorm.io/gorm"
)

// GormCallRecordRepository implements CallRecordRepository using GORM
type GormCallRecordRepository struct {
	db *gorm.DB
}

// NewGormCallRecordRepository creates a new GORM call record repository
func NewGormCallRecordRepository(db *gorm.DB) *GormCallRecordRepository {
	return &GormCallRecordRepository{db: db}
}

// Create persists a call record
func (r *GormCallRecordRepository) Create(ctx context.Context, rec *domain.CallRecord) (*domain.CallRecord, error) {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to create call record: %w", err)
	}
	return rec, nil
}

// GetByCallSID retrieves a call record by Twilio call SID
func (r *GormCallRecordRepository) GetByCallSID(ctx context.Context, callSID string) (*domain.CallRecord, error) {
	var rec domain.CallRecord
	if err := r.db.WithContext(ctx).First(&rec, "call_sid = ?", callSID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("call record %s: %w", callSID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get call record: %w", err)
	}
	return &rec, nil
}

// UpdateStatus applies a Twilio status-callback transition. Terminal
// statuses also stamp the end time.
func (r *GormCallRecordRepository) UpdateStatus(ctx context.Context, callSID, status string) (*domain.CallRecord, error) {
	rec, err := r.GetByCallSID(ctx, callSID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"status": status}
	if status == domain.CallStatusInProgress && rec.StartedAt.IsZero() {
		updates["started_at"] = time.Now()
	}
	if domain.IsTerminalCallStatus(status) {
		updates["ended_at"] = time.Now()
	}

	if err := r.db.WithContext(ctx).Model(rec).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update call status: %w", err)
	}
	rec.Status = status
	return rec, nil
}

// ListByTenant lists a tenant's most recent calls
func (r *GormCallRecordRepository) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*domain.CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []*domain.CallRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list call records: %w", err)
	}
	return recs, nil
}

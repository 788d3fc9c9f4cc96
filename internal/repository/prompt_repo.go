package repository

import (
	"context"
	"fmt"

	"github.com/maane-ai/assist-service/internal/domain"
	"gorm.io/gorm"
)

// GormPromptTemplateRepository implements PromptTemplateRepository using GORM
type GormPromptTemplateRepository struct {
	db *gorm.DB
}

// NewGormPromptTemplateRepository creates a new GORM prompt template repository
func NewGormPromptTemplateRepository(db *gorm.DB) *GormPromptTemplateRepository {
	return &GormPromptTemplateRepository{db: db}
}

// GetByTenantAndChannel retrieves a tenant's prompt layer for one channel
func (r *GormPromptTemplateRepository) GetByTenantAndChannel(ctx context.Context, tenantID string, channel domain.Channel) (*domain.PromptTemplate, error) {
	var tmpl domain.PromptTemplate
	if err := r.db.WithContext(ctx).First(&tmpl, "tenant_id = ? AND channel = ?", tenantID, channel).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("prompt template %s/%s: %w", tenantID, channel, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get prompt template: %w", err)
	}
	return &tmpl, nil
}

// Upsert creates or replaces a tenant's channel prompt. The version counter
// increments on every replace so the resolver cache can detect staleness.
func (r *GormPromptTemplateRepository) Upsert(ctx context.Context, tenantID string, channel domain.Channel, req *domain.UpsertPromptTemplateRequest) (*domain.PromptTemplate, error) {
	var tmpl domain.PromptTemplate
	err := r.db.WithContext(ctx).First(&tmpl, "tenant_id = ? AND channel = ?", tenantID, channel).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		tmpl = domain.PromptTemplate{
			TenantID: tenantID,
			Channel:  channel,
			Persona:  req.Persona,
			Greeting: req.Greeting,
			Custom:   req.Custom,
			Version:  1,
		}
		if err := r.db.WithContext(ctx).Create(&tmpl).Error; err != nil {
			return nil, fmt.Errorf("failed to create prompt template: %w", err)
		}
		return &tmpl, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load prompt template: %w", err)
	}

	updates := map[string]interface{}{
		"persona":  req.Persona,
		"greeting": req.Greeting,
		"custom":   req.Custom,
		"version":  gorm.Expr("version + 1"),
	}
	if err := r.db.WithContext(ctx).Model(&tmpl).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update prompt template: %w", err)
	}

	// Re-read so the caller sees the bumped version.
	if err := r.db.WithContext(ctx).First(&tmpl, "id = ?", tmpl.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload prompt template: %w", err)
	}
	return &tmpl, nil
}

// Delete removes a tenant's channel prompt
func (r *GormPromptTemplateRepository) Delete(ctx context.Context, tenantID string, channel domain.Channel) error {
	result := r.db.WithContext(ctx).Where("tenant_id = ? AND channel = ?", tenantID, channel).Delete(&domain.PromptTemplate{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete prompt template: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("prompt template %s/%s: %w", tenantID, channel, ErrNotFound)
	}
	return nil
}

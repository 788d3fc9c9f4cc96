package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/maane-ai/assist-service/internal/domain"
	"gorm.io/gorm"
)

// GormLeadRepository implements LeadRepository using GORM
type GormLeadRepository struct {
	db *gorm.DB
}

// NewGormLeadRepository creates a new GORM lead repository
func NewGormLeadRepository(db *gorm.DB) *GormLeadRepository {
	return &GormLeadRepository{db: db}
}

// UpsertByPhone captures a lead or refreshes an existing one keyed by
// tenant + phone number.
func (r *GormLeadRepository) UpsertByPhone(ctx context.Context, tenantID string, req *domain.UpsertLeadRequest) (*domain.Lead, error) {
	var lead domain.Lead
	err := r.db.WithContext(ctx).First(&lead, "tenant_id = ? AND phone = ?", tenantID, req.Phone).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		lead = domain.Lead{
			TenantID:    tenantID,
			Phone:       req.Phone,
			Name:        req.Name,
			Source:      req.Source,
			Status:      domain.LeadStatusNew,
			LastContact: time.Now(),
		}
		if err := r.db.WithContext(ctx).Create(&lead).Error; err != nil {
			return nil, fmt.Errorf("failed to create lead: %w", err)
		}
		return &lead, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}

	updates := map[string]interface{}{"last_contact": time.Now()}
	if req.Name != "" && lead.Name == "" {
		updates["name"] = req.Name
	}
	if err := r.db.WithContext(ctx).Model(&lead).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to refresh lead: %w", err)
	}
	return &lead, nil
}

// GetByID retrieves a lead by ID
func (r *GormLeadRepository) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	var lead domain.Lead
	if err := r.db.WithContext(ctx).First(&lead, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("lead %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return &lead, nil
}

// GetByPhone retrieves a lead by tenant and phone number
func (r *GormLeadRepository) GetByPhone(ctx context.Context, tenantID, phone string) (*domain.Lead, error) {
	var lead domain.Lead
	if err := r.db.WithContext(ctx).First(&lead, "tenant_id = ? AND phone = ?", tenantID, phone).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("lead %s/%s: %w", tenantID, phone, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get lead by phone: %w", err)
	}
	return &lead, nil
}

// List retrieves a tenant's leads with optional status filter and paging
func (r *GormLeadRepository) List(ctx context.Context, tenantID string, filter *domain.LeadFilter) ([]*domain.Lead, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)

	if filter != nil {
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			query = query.Offset(filter.Offset)
		}
	}

	var leads []*domain.Lead
	if err := query.Order("last_contact DESC").Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return leads, nil
}

// UpdateStatus moves a lead to a new funnel status, enforcing the allowed
// transitions.
func (r *GormLeadRepository) UpdateStatus(ctx context.Context, id string, status domain.LeadStatus) (*domain.Lead, error) {
	lead, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !lead.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: lead %s cannot move from %s to %s",
			domain.ErrInvalidTransition, id, lead.Status, status)
	}

	if err := r.db.WithContext(ctx).Model(lead).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("failed to update lead status: %w", err)
	}
	lead.Status = status
	return lead, nil
}

// AppendNote appends a timestamped note line to the lead.
func (r *GormLeadRepository) AppendNote(ctx context.Context, id, note string) error {
	line := fmt.Sprintf("[%s] %s\n", time.Now().Format("2006-01-02 15:04"), note)
	result := r.db.WithContext(ctx).Model(&domain.Lead{}).Where("id = ?", id).
		Update("notes", gorm.Expr("notes || ?", line))
	if result.Error != nil {
		return fmt.Errorf("failed to append lead note: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("lead %s: %w", id, ErrNotFound)
	}
	return nil
}

// TouchLastContact bumps the lead's last contact time.
func (r *GormLeadRepository) TouchLastContact(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&domain.Lead{}).Where("id = ?", id).
		Update("last_contact", time.Now())
	if result.Error != nil {
		return fmt.Errorf("failed to touch lead: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("lead %s: %w", id, ErrNotFound)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/maane-ai/assist-service/internal/domain"
	"gorm.io/gorm"
)

// GormTenantRepository implements TenantRepository using GORM
type GormTenantRepository struct {
	db *gorm.DB
}

// NewGormTenantRepository creates a new GORM tenant repository
func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

// Create creates a new tenant
func (r *GormTenantRepository) Create(ctx context.Context, req *domain.CreateTenantRequest) (*domain.Tenant, error) {
	tenant := &domain.Tenant{
		TenantID:        req.TenantID,
		Name:            req.Name,
		Industry:        req.Industry,
		PhoneNumber:     req.PhoneNumber,
		WhatsAppPhoneID: req.WhatsAppPhoneID,
		Language:        req.Language,
		Timezone:        req.Timezone,
		BusinessHours:   req.BusinessHours,
		CustomConfig:    req.CustomConfig,
		CallsEnabled:    true,
		WhatsAppEnabled: true,
	}
	if tenant.Language == "" {
		tenant.Language = "he"
	}
	if tenant.Timezone == "" {
		tenant.Timezone = "Asia/Jerusalem"
	}
	if req.DialLimit > 0 {
		tenant.DialLimit = req.DialLimit
	} else {
		tenant.DialLimit = 2
	}

	if err := r.db.WithContext(ctx).Create(tenant).Error; err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	return tenant, nil
}

// GetByID retrieves a tenant by primary key
func (r *GormTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("tenant %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

// GetByTenantID retrieves a tenant by its business identifier
func (r *GormTenantRepository) GetByTenantID(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, "tenant_id = ?", tenantID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tenant by tenant ID: %w", err)
	}
	return &tenant, nil
}

// GetByPhoneNumber retrieves a tenant by its voice line number
func (r *GormTenantRepository) GetByPhoneNumber(ctx context.Context, phone string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, "phone_number = ?", phone).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("tenant with number %s: %w", phone, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tenant by phone number: %w", err)
	}
	return &tenant, nil
}

// GetByWhatsAppPhoneID retrieves a tenant by its WhatsApp phone-number-id
func (r *GormTenantRepository) GetByWhatsAppPhoneID(ctx context.Context, phoneID string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, "whats_app_phone_id = ?", phoneID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("tenant with whatsapp phone id %s: %w", phoneID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tenant by whatsapp phone id: %w", err)
	}
	return &tenant, nil
}

// GetAll retrieves all tenants
func (r *GormTenantRepository) GetAll(ctx context.Context, includeDisabled bool) ([]*domain.Tenant, error) {
	var tenants []*domain.Tenant
	query := r.db.WithContext(ctx)

	if !includeDisabled {
		query = query.Where("disabled = ?", false)
	}

	if err := query.Order("created_at DESC").Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("failed to get tenants: %w", err)
	}

	return tenants, nil
}

// Update updates a tenant
func (r *GormTenantRepository) Update(ctx context.Context, id string, req *domain.UpdateTenantRequest) (*domain.Tenant, error) {
	var tenant domain.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("tenant %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find tenant: %w", err)
	}

	updates := make(map[string]interface{})

	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Industry != nil {
		updates["industry"] = *req.Industry
	}
	if req.PhoneNumber != nil {
		updates["phone_number"] = *req.PhoneNumber
	}
	if req.WhatsAppPhoneID != nil {
		updates["whats_app_phone_id"] = *req.WhatsAppPhoneID
	}
	if req.Language != nil {
		updates["language"] = *req.Language
	}
	if req.Timezone != nil {
		updates["timezone"] = *req.Timezone
	}
	if req.BusinessHours != nil {
		updates["business_hours"] = *req.BusinessHours
	}
	if req.DialLimit != nil {
		updates["dial_limit"] = *req.DialLimit
	}
	if req.CallsEnabled != nil {
		updates["calls_enabled"] = *req.CallsEnabled
	}
	if req.WhatsAppEnabled != nil {
		updates["whats_app_enabled"] = *req.WhatsAppEnabled
	}
	if req.CustomConfig != nil {
		updates["custom_config"] = *req.CustomConfig
	}
	if req.Disabled != nil {
		updates["disabled"] = *req.Disabled
	}

	if len(updates) == 0 {
		return &tenant, nil // No changes
	}

	if err := r.db.WithContext(ctx).Model(&tenant).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}

	return &tenant, nil
}

// Delete soft-disables a tenant
func (r *GormTenantRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&domain.Tenant{}).Where("id = ?", id).Update("disabled", true)
	if result.Error != nil {
		return fmt.Errorf("failed to disable tenant: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("tenant %s: %w", id, ErrNotFound)
	}

	return nil
}

// ExistsByTenantID checks if a tenant exists by business identifier
func (r *GormTenantRepository) ExistsByTenantID(ctx context.Context, tenantID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Tenant{}).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check tenant existence: %w", err)
	}
	return count > 0, nil
}

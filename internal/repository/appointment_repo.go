package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/maane-ai/assist-service/internal/domain"
	"gorm.io/gorm"
)

// GormAppointmentRepository implements AppointmentRepository using GORM
type GormAppointmentRepository struct {
	db *gorm.DB
}

// NewGormAppointmentRepository creates a new GORM appointment repository
func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

// Create books an appointment
func (r *GormAppointmentRepository) Create(ctx context.Context, appt *domain.Appointment) (*domain.Appointment, error) {
	if appt.Status == "" {
		appt.Status = domain.AppointmentStatusBooked
	}
	if err := r.db.WithContext(ctx).Create(appt).Error; err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	return appt, nil
}

// GetByID retrieves an appointment by ID
func (r *GormAppointmentRepository) GetByID(ctx context.Context, id string) (*domain.Appointment, error) {
	var appt domain.Appointment
	if err := r.db.WithContext(ctx).First(&appt, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("appointment %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appt, nil
}

// ListBetween lists a tenant's booked appointments inside [from, to)
func (r *GormAppointmentRepository) ListBetween(ctx context.Context, tenantID string, from, to time.Time) ([]*domain.Appointment, error) {
	var appts []*domain.Appointment
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND starts_at >= ? AND starts_at < ?",
			tenantID, domain.AppointmentStatusBooked, from, to).
		Order("starts_at ASC").
		Find(&appts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appts, nil
}

// ExistsOverlap reports whether any booked appointment overlaps the window.
func (r *GormAppointmentRepository) ExistsOverlap(ctx context.Context, tenantID string, startsAt, endsAt time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Appointment{}).
		Where("tenant_id = ? AND status = ? AND starts_at < ? AND ends_at > ?",
			tenantID, domain.AppointmentStatusBooked, endsAt, startsAt).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check appointment overlap: %w", err)
	}
	return count > 0, nil
}

// Cancel marks an appointment cancelled
func (r *GormAppointmentRepository) Cancel(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&domain.Appointment{}).
		Where("id = ? AND status = ?", id, domain.AppointmentStatusBooked).
		Update("status", domain.AppointmentStatusCancelled)
	if result.Error != nil {
		return fmt.Errorf("failed to cancel appointment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	return nil
}

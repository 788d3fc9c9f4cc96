package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maane-ai/assist-service/internal/domain"
	"github.com/maane-ai/assist-service/internal/repository"
	"github.com/maane-ai/assist-service/pkg/logger"
	"go.uber.org/zap"
)

// ErrSlotTaken is returned when the requested window overlaps an existing
// booking.
var ErrSlotTaken = errors.New("slot already booked")

// defaultDuration is the appointment length when the tenant config does not
// override it.
const defaultDuration = 30 * time.Minute

// Service owns availability checks and appointment booking for all tenants.
type Service struct {
	repos repository.RepositoryManager
	now   func() time.Time
}

// NewService creates the calendar service.
func NewService(repos repository.RepositoryManager) *Service {
	return &Service{repos: repos, now: time.Now}
}

// AvailableSlot describes one bookable start time.
type AvailableSlot struct {
	StartsAt time.Time `json:"starts_at"`
}

// CheckAvailability validates the requested time and reports whether it is
// free, suggesting up to three nearby alternatives when it is not.
func (s *Service) CheckAvailability(ctx context.Context, tenant *domain.Tenant, startsAt time.Time) (bool, []AvailableSlot, error) {
	if err := ValidateSlot(startsAt, tenant, s.now()); err != nil {
		return false, nil, err
	}

	endsAt := startsAt.Add(appointmentDuration(tenant))
	taken, err := s.repos.Appointment().ExistsOverlap(ctx, tenant.TenantID, startsAt, endsAt)
	if err != nil {
		return false, nil, err
	}
	if !taken {
		return true, nil, nil
	}

	alternatives, err := s.nearbyFree(ctx, tenant, startsAt, 3)
	if err != nil {
		return false, nil, err
	}
	return false, alternatives, nil
}

// Book validates and books an appointment, upserting the lead link.
func (s *Service) Book(ctx context.Context, tenant *domain.Tenant, phone, leadID, subject string, startsAt time.Time) (*domain.Appointment, error) {
	if err := ValidateSlot(startsAt, tenant, s.now()); err != nil {
		return nil, err
	}

	endsAt := startsAt.Add(appointmentDuration(tenant))
	taken, err := s.repos.Appointment().ExistsOverlap(ctx, tenant.TenantID, startsAt, endsAt)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: %s", ErrSlotTaken, startsAt.Format("2006-01-02 15:04"))
	}

	appt, err := s.repos.Appointment().Create(ctx, &domain.Appointment{
		TenantID: tenant.TenantID,
		LeadID:   leadID,
		Phone:    phone,
		StartsAt: startsAt,
		EndsAt:   endsAt,
		Subject:  subject,
	})
	if err != nil {
		return nil, err
	}

	logger.Base().Info("appointment booked",
		zap.String("tenant_id", tenant.TenantID),
		zap.String("appointment_id", appt.ID),
		zap.Time("starts_at", startsAt))
	return appt, nil
}

// Cancel cancels a booked appointment.
func (s *Service) Cancel(ctx context.Context, tenant *domain.Tenant, appointmentID string) error {
	appt, err := s.repos.Appointment().GetByID(ctx, appointmentID)
	if err != nil {
		return err
	}
	if appt.TenantID != tenant.TenantID {
		return fmt.Errorf("appointment %s: %w", appointmentID, repository.ErrNotFound)
	}
	return s.repos.Appointment().Cancel(ctx, appointmentID)
}

// nearbyFree scans the same day for up to limit free valid slots after the
// requested one.
func (s *Service) nearbyFree(ctx context.Context, tenant *domain.Tenant, around time.Time, limit int) ([]AvailableSlot, error) {
	duration := appointmentDuration(tenant)
	var out []AvailableSlot

	candidate := around
	for i := 0; i < 24 && len(out) < limit; i++ {
		candidate = candidate.Add(slotGranularity)
		if ValidateSlot(candidate, tenant, s.now()) != nil {
			continue
		}
		taken, err := s.repos.Appointment().ExistsOverlap(ctx, tenant.TenantID, candidate, candidate.Add(duration))
		if err != nil {
			return nil, err
		}
		if !taken {
			out = append(out, AvailableSlot{StartsAt: candidate})
		}
	}
	return out, nil
}

func appointmentDuration(tenant *domain.Tenant) time.Duration {
	if tenant != nil {
		if mins, ok := tenant.CustomConfig["appointment_minutes"].(float64); ok && mins > 0 {
			return time.Duration(mins) * time.Minute
		}
	}
	return defaultDuration
}

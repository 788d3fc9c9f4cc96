package calendar

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maane-ai/assist-service/internal/domain"
	"github.com/maane-ai/assist-service/internal/repository"
)

// fakeAppointmentRepo keeps appointments in memory for service tests.
type fakeAppointmentRepo struct {
	appointments []*domain.Appointment
	nextID       int
}

func (f *fakeAppointmentRepo) Create(ctx context.Context, appt *domain.Appointment) (*domain.Appointment, error) {
	f.nextID++
	appt.ID = fmt.Sprintf("appt-%d", f.nextID)
	appt.Status = domain.AppointmentStatusBooked
	f.appointments = append(f.appointments, appt)
	return appt, nil
}

func (f *fakeAppointmentRepo) GetByID(ctx context.Context, id string) (*domain.Appointment, error) {
	for _, a := range f.appointments {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAppointmentRepo) ListBetween(ctx context.Context, tenantID string, from, to time.Time) ([]*domain.Appointment, error) {
	var out []*domain.Appointment
	for _, a := range f.appointments {
		if a.TenantID == tenantID && !a.StartsAt.Before(from) && a.StartsAt.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAppointmentRepo) ExistsOverlap(ctx context.Context, tenantID string, startsAt, endsAt time.Time) (bool, error) {
	for _, a := range f.appointments {
		if a.TenantID != tenantID || a.Status == domain.AppointmentStatusCancelled {
			continue
		}
		if a.StartsAt.Before(endsAt) && a.EndsAt.After(startsAt) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAppointmentRepo) Cancel(ctx context.Context, id string) error {
	for _, a := range f.appointments {
		if a.ID == id {
			a.Status = domain.AppointmentStatusCancelled
			return nil
		}
	}
	return repository.ErrNotFound
}

// fakeRepos satisfies RepositoryManager for the appointment repo only.
type fakeRepos struct {
	repository.RepositoryManager
	appts *fakeAppointmentRepo
}

func (f *fakeRepos) Appointment() repository.AppointmentRepository { return f.appts }

func newTestService(t *testing.T) (*Service, *fakeAppointmentRepo) {
	t.Helper()
	appts := &fakeAppointmentRepo{}
	svc := NewService(&fakeRepos{appts: appts})
	svc.now = func() time.Time { return israelTime(t, "2026-03-02 10:00") }
	return svc, appts
}

func TestService_BookAndDetectConflict(t *testing.T) {
	svc, _ := newTestService(t)
	tenant := calendarTenant()
	ctx := context.Background()
	slot := israelTime(t, "2026-03-03 11:00")

	appt, err := svc.Book(ctx, tenant, "+972501234567", "lead-1", "תספורת", slot)
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentStatusBooked, appt.Status)
	assert.Equal(t, slot.Add(30*time.Minute), appt.EndsAt)

	_, err = svc.Book(ctx, tenant, "+972509999999", "lead-2", "תספורת", slot)
	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestService_CheckAvailabilitySuggestsAlternatives(t *testing.T) {
	svc, _ := newTestService(t)
	tenant := calendarTenant()
	ctx := context.Background()
	slot := israelTime(t, "2026-03-03 11:00")

	free, alternatives, err := svc.CheckAvailability(ctx, tenant, slot)
	require.NoError(t, err)
	assert.True(t, free)
	assert.Empty(t, alternatives)

	_, err = svc.Book(ctx, tenant, "+972501234567", "lead-1", "", slot)
	require.NoError(t, err)

	free, alternatives, err = svc.CheckAvailability(ctx, tenant, slot)
	require.NoError(t, err)
	assert.False(t, free)
	require.Len(t, alternatives, 3)
	assert.Equal(t, israelTime(t, "2026-03-03 11:30"), alternatives[0].StartsAt)
	assert.Equal(t, israelTime(t, "2026-03-03 12:00"), alternatives[1].StartsAt)
}

func TestService_BookRejectsInvalidSlot(t *testing.T) {
	svc, appts := newTestService(t)
	tenant := calendarTenant()
	ctx := context.Background()

	_, err := svc.Book(ctx, tenant, "+972501234567", "", "", israelTime(t, "2026-03-07 11:00"))
	assert.ErrorIs(t, err, ErrOutsideHours)
	assert.Empty(t, appts.appointments)
}

func TestService_TenantDurationOverride(t *testing.T) {
	svc, _ := newTestService(t)
	tenant := calendarTenant()
	tenant.CustomConfig = domain.JSONB{"appointment_minutes": float64(60)}
	ctx := context.Background()

	slot := israelTime(t, "2026-03-03 11:00")
	appt, err := svc.Book(ctx, tenant, "+972501234567", "", "", slot)
	require.NoError(t, err)
	assert.Equal(t, slot.Add(time.Hour), appt.EndsAt)

	// A 60-minute booking blocks the half-hour inside it.
	free, _, err := svc.CheckAvailability(ctx, tenant, israelTime(t, "2026-03-03 11:30"))
	require.NoError(t, err)
	assert.False(t, free)
}

func TestService_CancelChecksTenantOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	tenant := calendarTenant()
	ctx := context.Background()

	appt, err := svc.Book(ctx, tenant, "+972501234567", "", "", israelTime(t, "2026-03-03 11:00"))
	require.NoError(t, err)

	other := calendarTenant()
	other.TenantID = "someone-else"
	assert.ErrorIs(t, svc.Cancel(ctx, other, appt.ID), repository.ErrNotFound)

	require.NoError(t, svc.Cancel(ctx, tenant, appt.ID))

	// The cancelled slot is bookable again.
	_, err = svc.Book(ctx, tenant, "+972505555555", "", "", israelTime(t, "2026-03-03 11:00"))
	assert.NoError(t, err)
}

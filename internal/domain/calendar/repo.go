package calendar

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound       = errors.New("doctor not found")
	ErrAvailabilityNotFound = errors.New("weekly availability not found")
	ErrOverrideNotFound     = errors.New("schedule override not found")
	ErrOverrideExists       = errors.New("schedule override already exists for this date")
	ErrLeaveNotFound        = errors.New("leave period not found")
	ErrLeaveOverlap         = errors.New("leave period overlaps an existing leave")
)

// Store is the read-only view of calendar facts consumed by booking. Every
// call reads current state; implementations must not cache.
type Store interface {
	GetDoctor(ctx context.Context, doctorID uuid.UUID) (*Doctor, error)
	GetWeeklyAvailability(ctx context.Context, doctorID uuid.UUID) ([]*WeeklyAvailability, error)
	GetScheduleOverrides(ctx context.Context, doctorID uuid.UUID) ([]*ScheduleOverride, error)
	GetLeavePeriods(ctx context.Context, doctorID uuid.UUID) ([]*LeavePeriod, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type AvailabilityRepository interface {
	// Upsert replaces the row for (doctor, day) if one exists.
	Upsert(ctx context.Context, a *WeeklyAvailability) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*WeeklyAvailability, error)
	Delete(ctx context.Context, doctorID uuid.UUID, day DayOfWeek) error
}

type OverrideRepository interface {
	Create(ctx context.Context, o *ScheduleOverride) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*ScheduleOverride, error)
	Delete(ctx context.Context, doctorID uuid.UUID, date Date) error
}

type LeaveRepository interface {
	Create(ctx context.Context, l *LeavePeriod) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*LeavePeriod, error)
	Delete(ctx context.Context, doctorID, id uuid.UUID) error
}

// NewStore exposes the repositories as a Store.
func NewStore(doctors DoctorRepository, availability AvailabilityRepository, overrides OverrideRepository, leaves LeaveRepository) Store {
	return &repoStore{doctors: doctors, availability: availability, overrides: overrides, leaves: leaves}
}

type repoStore struct {
	doctors      DoctorRepository
	availability AvailabilityRepository
	overrides    OverrideRepository
	leaves       LeaveRepository
}

func (s *repoStore) GetDoctor(ctx context.Context, doctorID uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, doctorID)
}

func (s *repoStore) GetWeeklyAvailability(ctx context.Context, doctorID uuid.UUID) ([]*WeeklyAvailability, error) {
	return s.availability.ListByDoctor(ctx, doctorID)
}

func (s *repoStore) GetScheduleOverrides(ctx context.Context, doctorID uuid.UUID) ([]*ScheduleOverride, error) {
	return s.overrides.ListByDoctor(ctx, doctorID)
}

func (s *repoStore) GetLeavePeriods(ctx context.Context, doctorID uuid.UUID) ([]*LeavePeriod, error) {
	return s.leaves.ListByDoctor(ctx, doctorID)
}

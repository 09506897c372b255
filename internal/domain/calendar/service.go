package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidInput marks validation failures; the handler maps it to 400.
var ErrInvalidInput = errors.New("invalid input")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Service manages the calendar facts that booking reads.
type Service struct {
	doctors      DoctorRepository
	availability AvailabilityRepository
	overrides    OverrideRepository
	leaves       LeaveRepository
}

func NewService(doctors DoctorRepository, availability AvailabilityRepository, overrides OverrideRepository, leaves LeaveRepository) *Service {
	return &Service{doctors: doctors, availability: availability, overrides: overrides, leaves: leaves}
}

// Store returns the read-only view used by booking.
func (s *Service) Store() Store {
	return NewStore(s.doctors, s.availability, s.overrides, s.leaves)
}

// -- Doctor --

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return invalid("name is required")
	}
	return s.doctors.Create(ctx, d)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) SetDoctorActive(ctx context.Context, id uuid.UUID, active bool) (*Doctor, error) {
	if err := s.doctors.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) requireDoctor(ctx context.Context, id uuid.UUID) error {
	_, err := s.doctors.GetByID(ctx, id)
	return err
}

// -- Weekly availability --

func (s *Service) SetAvailability(ctx context.Context, a *WeeklyAvailability) error {
	if a.DoctorID == uuid.Nil {
		return invalid("doctor_id is required")
	}
	if !a.DayOfWeek.Valid() {
		return invalid("invalid day_of_week %q", a.DayOfWeek)
	}
	if a.IsAvailable {
		if err := validateWindow(a.StartTime, a.EndTime); err != nil {
			return err
		}
	}
	if err := s.requireDoctor(ctx, a.DoctorID); err != nil {
		return err
	}
	return s.availability.Upsert(ctx, a)
}

func (s *Service) ListAvailability(ctx context.Context, doctorID uuid.UUID) ([]*WeeklyAvailability, error) {
	return s.availability.ListByDoctor(ctx, doctorID)
}

func (s *Service) DeleteAvailability(ctx context.Context, doctorID uuid.UUID, day DayOfWeek) error {
	if !day.Valid() {
		return invalid("invalid day_of_week %q", day)
	}
	return s.availability.Delete(ctx, doctorID, day)
}

// -- Schedule overrides --

func (s *Service) CreateOverride(ctx context.Context, o *ScheduleOverride) error {
	if o.DoctorID == uuid.Nil {
		return invalid("doctor_id is required")
	}
	if o.Date.IsZero() {
		return invalid("date is required")
	}
	if o.IsWorking {
		if err := validateWindow(o.StartTime, o.EndTime); err != nil {
			return err
		}
	} else {
		o.StartTime, o.EndTime = 0, 0
	}
	if err := s.requireDoctor(ctx, o.DoctorID); err != nil {
		return err
	}
	return s.overrides.Create(ctx, o)
}

func (s *Service) ListOverrides(ctx context.Context, doctorID uuid.UUID) ([]*ScheduleOverride, error) {
	return s.overrides.ListByDoctor(ctx, doctorID)
}

func (s *Service) DeleteOverride(ctx context.Context, doctorID uuid.UUID, date Date) error {
	return s.overrides.Delete(ctx, doctorID, date)
}

// -- Leave --

func (s *Service) CreateLeave(ctx context.Context, l *LeavePeriod) error {
	if l.DoctorID == uuid.Nil {
		return invalid("doctor_id is required")
	}
	if l.StartDate.IsZero() || l.EndDate.IsZero() {
		return invalid("start_date and end_date are required")
	}
	if l.EndDate.Before(l.StartDate) {
		return invalid("start_date %s is after end_date %s", l.StartDate, l.EndDate)
	}
	return s.leaves.Create(ctx, l)
}

func (s *Service) ListLeaves(ctx context.Context, doctorID uuid.UUID) ([]*LeavePeriod, error) {
	return s.leaves.ListByDoctor(ctx, doctorID)
}

func (s *Service) DeleteLeave(ctx context.Context, doctorID, id uuid.UUID) error {
	return s.leaves.Delete(ctx, doctorID, id)
}

func validateWindow(start, end TimeOfDay) error {
	if !start.Valid() || !end.Valid() {
		return invalid("start_time and end_time must be within the day")
	}
	if start >= end {
		return invalid("start_time %s must be before end_time %s", start, end)
	}
	return nil
}

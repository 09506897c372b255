package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediconnect/booking/internal/domain/calendar"
)

// Recorder receives booking outcomes for metrics.
type Recorder interface {
	ObserveBooking(op, outcome string)
	ObserveSlotQuery(reason string, free int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveBooking(string, string) {}
func (nopRecorder) ObserveSlotQuery(string, int) {}

// Service resolves availability and performs bookings. It holds no mutable
// state; every call reads the calendar and the appointment store afresh.
type Service struct {
	repo     Repository
	store    calendar.Store
	resolver *Resolver
	loc      *time.Location
	logger   zerolog.Logger
	recorder Recorder
}

// NewService wires the booking core. loc is the clinic time zone in which
// calendar dates and times of day are interpreted.
func NewService(repo Repository, store calendar.Store, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     repo,
		store:    store,
		resolver: NewResolver(store),
		loc:      loc,
		logger:   logger.With().Str("component", "booking").Logger(),
		recorder: nopRecorder{},
	}
}

func (s *Service) SetRecorder(r Recorder) {
	if r != nil {
		s.recorder = r
	}
}

func (s *Service) Location() *time.Location { return s.loc }

// ListAvailableSlots returns the free slots of the doctor on date. "No
// availability" is not an error: Slots is empty and Reason says why.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, date calendar.Date) (*AvailableSlots, error) {
	out := &AvailableSlots{DoctorID: doctorID, Date: date, Slots: []Slot{}}

	res := s.resolver.Resolve(ctx, doctorID, date)
	if !res.Available() {
		if res.Reason == ReasonCalendarUnavailable {
			s.logger.Warn().Err(res.Err).Str("doctor_id", doctorID.String()).Str("date", date.String()).
				Msg("calendar unavailable while listing slots")
		}
		out.Reason = res.Reason
		s.recorder.ObserveSlotQuery(string(res.Reason), 0)
		return out, nil
	}

	candidates := GenerateSlots(date, *res.Window, SlotDuration, s.loc)
	from, to := res.Window.Bounds(date, s.loc)
	occupied, err := s.repo.FindOccupiedSlotStarts(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("loading booked slots: %w", err)
	}

	out.Slots = FilterBooked(candidates, occupied)
	switch {
	case len(candidates) == 0:
		out.Reason = ReasonWindowTooShort
	case len(out.Slots) == 0:
		out.Reason = ReasonFullyBooked
	}
	s.recorder.ObserveSlotQuery(string(out.Reason), len(out.Slots))
	return out, nil
}

// Book reserves the requested slot for the patient. Every precondition is
// checked before the single conditional write; conflicts are not retried.
func (s *Service) Book(ctx context.Context, req *BookRequest) (*Appointment, error) {
	a, err := s.book(ctx, req)
	s.recorder.ObserveBooking("book", outcome(err))
	if err != nil {
		s.logger.Info().Err(err).Str("doctor_id", req.DoctorID.String()).Time("slot_start", req.SlotStart).
			Msg("booking rejected")
		return nil, err
	}
	s.logger.Info().Str("appointment_id", a.ID.String()).Str("doctor_id", a.DoctorID.String()).
		Time("slot_start", a.SlotStart).Msg("appointment booked")
	return a, nil
}

func (s *Service) book(ctx context.Context, req *BookRequest) (*Appointment, error) {
	if req.DoctorID == uuid.Nil || req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: doctor_id and patient_id are required", ErrInvalidRequest)
	}
	start, end, err := normalizeSlot(req.SlotStart, req.SlotEnd)
	if err != nil {
		return nil, err
	}
	ctype := req.ConsultationType
	if ctype == "" {
		ctype = ConsultationInPerson
	}
	if !ctype.Valid() {
		return nil, fmt.Errorf("%w: unknown consultation_type %q", ErrInvalidRequest, ctype)
	}

	if err := s.checkBookable(ctx, req.DoctorID, start, end); err != nil {
		return nil, err
	}

	a := &Appointment{
		ID:               uuid.New(),
		DoctorID:         req.DoctorID,
		PatientID:        req.PatientID,
		SlotStart:        start,
		SlotEnd:          end,
		Status:           StatusBooked,
		ConsultationType: ctype,
		Reason:           req.Reason,
		Notes:            req.Notes,
		Paid:             false,
	}
	if err := s.repo.InsertIfAbsent(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Reschedule moves an active appointment to a new slot of the same doctor.
// The old slot stays occupied.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req *RescheduleRequest) (*Appointment, error) {
	a, err := s.reschedule(ctx, id, req)
	s.recorder.ObserveBooking("reschedule", outcome(err))
	if err != nil {
		s.logger.Info().Err(err).Str("appointment_id", id.String()).Msg("reschedule rejected")
		return nil, err
	}
	s.logger.Info().Str("appointment_id", a.ID.String()).Str("doctor_id", a.DoctorID.String()).
		Time("slot_start", a.SlotStart).Msg("appointment rescheduled")
	return a, nil
}

func (s *Service) reschedule(ctx context.Context, id uuid.UUID, req *RescheduleRequest) (*Appointment, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(current.Status, StatusRescheduled); err != nil {
		return nil, err
	}
	start, end, err := normalizeSlot(req.NewSlotStart, req.NewSlotEnd)
	if err != nil {
		return nil, err
	}
	if err := s.checkBookable(ctx, current.DoctorID, start, end); err != nil {
		return nil, err
	}
	return s.repo.UpdateSlot(ctx, id, current.Status, current.SlotStart, start, end)
}

// Cancel marks the appointment CANCELLED. The slot is not released.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.transition(ctx, id, StatusCancelled)
	s.recorder.ObserveBooking("cancel", outcome(err))
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("appointment_id", a.ID.String()).Str("doctor_id", a.DoctorID.String()).
		Msg("appointment cancelled")
	return a, nil
}

// UpdateStatus records the visit outcome: COMPLETED or NO_SHOW.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	if to != StatusCompleted && to != StatusNoShow {
		return nil, fmt.Errorf("%w: status must be %s or %s", ErrInvalidRequest, StatusCompleted, StatusNoShow)
	}
	a, err := s.transition(ctx, id, to)
	s.recorder.ObserveBooking("status", outcome(err))
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("appointment_id", a.ID.String()).Str("status", string(a.Status)).
		Msg("appointment status updated")
	return a, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(current.Status, to); err != nil {
		return nil, err
	}
	return s.repo.UpdateStatus(ctx, id, current.Status, to)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Appointment, error) {
	return s.repo.ListByDoctor(ctx, doctorID)
}

// checkBookable runs the write-path preconditions for [start, end).
func (s *Service) checkBookable(ctx context.Context, doctorID uuid.UUID, start, end time.Time) error {
	doctor, err := s.store.GetDoctor(ctx, doctorID)
	switch {
	case errors.Is(err, calendar.ErrDoctorNotFound):
		return fmt.Errorf("%w: doctor %s not found", ErrDoctorUnavailable, doctorID)
	case err != nil:
		return fmt.Errorf("%w: %w", ErrCalendarUnavailable, err)
	case !doctor.Active:
		return fmt.Errorf("%w: doctor %s is not active", ErrDoctorUnavailable, doctorID)
	}

	date := calendar.DateOf(start.In(s.loc))
	res := s.resolver.Resolve(ctx, doctorID, date)
	if !res.Available() {
		return res.BookingError()
	}
	if !fitsGrid(date, *res.Window, start, end, SlotDuration, s.loc) {
		return fmt.Errorf("%w: %s does not match a %s slot within %s-%s on %s",
			ErrSlotNotBookable, start.In(s.loc).Format(time.RFC3339), SlotDuration,
			res.Window.Start, res.Window.End, date)
	}
	return nil
}

// normalizeSlot fills a missing end with start+SlotDuration.
func normalizeSlot(start, end time.Time) (time.Time, time.Time, error) {
	if start.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: slot start is required", ErrInvalidRequest)
	}
	if end.IsZero() {
		end = start.Add(SlotDuration)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: slot end must be after slot start", ErrInvalidRequest)
	}
	return start, end, nil
}

func checkTransition(from, to Status) error {
	if from == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrSlotAlreadyBooked):
		return "already_booked"
	case errors.Is(err, ErrSlotNotBookable):
		return "not_bookable"
	case errors.Is(err, ErrDoctorUnavailable):
		return "doctor_unavailable"
	case errors.Is(err, ErrCalendarUnavailable):
		return "calendar_unavailable"
	case errors.Is(err, ErrAppointmentNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyCancelled), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConcurrentUpdate):
		return "invalid_state"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	}
	return "error"
}

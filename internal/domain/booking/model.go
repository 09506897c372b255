package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/mediconnect/booking/internal/domain/calendar"
)

// SlotDuration is the fixed length of every bookable slot.
const SlotDuration = 30 * time.Minute

// Status transitions:
//
//	BOOKED      → CANCELLED | COMPLETED | NO_SHOW | RESCHEDULED
//	RESCHEDULED → CANCELLED | COMPLETED | NO_SHOW | RESCHEDULED
//
// CANCELLED, COMPLETED and NO_SHOW are terminal.
type Status string

const (
	StatusBooked      Status = "BOOKED"
	StatusCancelled   Status = "CANCELLED"
	StatusCompleted   Status = "COMPLETED"
	StatusRescheduled Status = "RESCHEDULED"
	StatusNoShow      Status = "NO_SHOW"
)

var activeTransitions = []Status{StatusCancelled, StatusCompleted, StatusNoShow, StatusRescheduled}

var transitions = map[Status][]Status{
	StatusBooked:      activeTransitions,
	StatusRescheduled: activeTransitions,
	StatusCancelled:   {},
	StatusCompleted:   {},
	StatusNoShow:      {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

type ConsultationType string

const (
	ConsultationInPerson ConsultationType = "IN_PERSON"
	ConsultationVideo    ConsultationType = "VIDEO"
	ConsultationPhone    ConsultationType = "PHONE"
)

func (t ConsultationType) Valid() bool {
	switch t {
	case ConsultationInPerson, ConsultationVideo, ConsultationPhone:
		return true
	}
	return false
}

// Appointment maps to the appointment table.
type Appointment struct {
	ID               uuid.UUID        `db:"id" json:"appointment_id"`
	DoctorID         uuid.UUID        `db:"doctor_id" json:"doctor_id"`
	PatientID        uuid.UUID        `db:"patient_id" json:"patient_id"`
	SlotStart        time.Time        `db:"slot_start" json:"slot_start"`
	SlotEnd          time.Time        `db:"slot_end" json:"slot_end"`
	Status           Status           `db:"status" json:"status"`
	ConsultationType ConsultationType `db:"consultation_type" json:"consultation_type"`
	Reason           *string          `db:"reason" json:"reason,omitempty"`
	Notes            *string          `db:"notes" json:"notes,omitempty"`
	Paid             bool             `db:"paid" json:"paid"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

type Slot struct {
	Start time.Time `json:"slot_start"`
	End   time.Time `json:"slot_end"`
}

// TimeWindow is the working interval of one doctor on one date, in clinic
// wall-clock time.
type TimeWindow struct {
	Start calendar.TimeOfDay `json:"start_time"`
	End   calendar.TimeOfDay `json:"end_time"`
}

// SlotSet holds occupied slot starts keyed by instant, so the same moment
// matches regardless of its location.
type SlotSet map[int64]struct{}

func NewSlotSet(starts ...time.Time) SlotSet {
	s := make(SlotSet, len(starts))
	for _, t := range starts {
		s.Add(t)
	}
	return s
}

func (s SlotSet) Add(t time.Time) { s[t.UnixMicro()] = struct{}{} }

func (s SlotSet) Contains(t time.Time) bool {
	_, ok := s[t.UnixMicro()]
	return ok
}

type BookRequest struct {
	DoctorID         uuid.UUID        `json:"doctor_id"`
	PatientID        uuid.UUID        `json:"patient_id"`
	SlotStart        time.Time        `json:"slot_start"`
	SlotEnd          time.Time        `json:"slot_end"`
	ConsultationType ConsultationType `json:"consultation_type"`
	Reason           *string          `json:"reason,omitempty"`
	Notes            *string          `json:"notes,omitempty"`
}

type RescheduleRequest struct {
	NewSlotStart time.Time `json:"new_slot_start"`
	NewSlotEnd   time.Time `json:"new_slot_end"`
}

// AvailableSlots is the read-path answer. Reason is set when Slots is empty
// for a known cause.
type AvailableSlots struct {
	DoctorID uuid.UUID     `json:"doctor_id"`
	Date     calendar.Date `json:"date"`
	Slots    []Slot        `json:"slots"`
	Reason   Reason        `json:"reason,omitempty"`
}

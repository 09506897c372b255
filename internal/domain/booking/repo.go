package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the appointment store. Its conditional writes are the only
// mutual exclusion in the booking path.
type Repository interface {
	// FindOccupiedSlotStarts returns every reserved slot start for the doctor
	// in [from, to), whatever the owning appointment's status.
	FindOccupiedSlotStarts(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (SlotSet, error)
	// InsertIfAbsent reserves (doctor, slot start) and inserts the appointment
	// in one step, or returns ErrSlotAlreadyBooked.
	InsertIfAbsent(ctx context.Context, a *Appointment) error
	// UpdateStatus moves the appointment from one status to another. It
	// returns ErrConcurrentUpdate if the stored status is no longer from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	// UpdateSlot reserves the new slot and moves the appointment onto it with
	// status RESCHEDULED. The previous reservation is kept. It returns
	// ErrConcurrentUpdate, and reserves nothing, if the stored status is no
	// longer from or the stored slot start is no longer fromStart.
	UpdateSlot(ctx context.Context, id uuid.UUID, from Status, fromStart, newStart, newEnd time.Time) (*Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Appointment, error)
}

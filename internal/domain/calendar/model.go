package calendar

import (
	"time"

	"github.com/google/uuid"
)

// Doctor maps to the doctor table. Booking only looks at Active.
type Doctor struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Email          *string   `db:"email" json:"email,omitempty"`
	Specialization *string   `db:"specialization" json:"specialization,omitempty"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// WeeklyAvailability is a doctor's recurring hours for one weekday.
type WeeklyAvailability struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DoctorID    uuid.UUID `db:"doctor_id" json:"doctor_id"`
	DayOfWeek   DayOfWeek `db:"day_of_week" json:"day_of_week"`
	StartTime   TimeOfDay `db:"start_time" json:"start_time"`
	EndTime     TimeOfDay `db:"end_time" json:"end_time"`
	IsAvailable bool      `db:"is_available" json:"is_available"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ScheduleOverride replaces the weekly hours on one date. When IsWorking is
// false the times are ignored.
type ScheduleOverride struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Date      Date      `db:"override_date" json:"date"`
	StartTime TimeOfDay `db:"start_time" json:"start_time"`
	EndTime   TimeOfDay `db:"end_time" json:"end_time"`
	IsWorking bool      `db:"is_working" json:"is_working"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LeavePeriod is an approved absence, inclusive of both end dates.
type LeavePeriod struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	StartDate Date      `db:"start_date" json:"start_date"`
	EndDate   Date      `db:"end_date" json:"end_date"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Covers reports whether d falls inside the leave, bounds included.
func (l *LeavePeriod) Covers(d Date) bool {
	return !d.Before(l.StartDate) && !d.After(l.EndDate)
}

// Overlaps reports whether the two leaves share at least one day.
func (l *LeavePeriod) Overlaps(o *LeavePeriod) bool {
	return !l.EndDate.Before(o.StartDate) && !o.EndDate.Before(l.StartDate)
}

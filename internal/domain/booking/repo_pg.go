package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediconnect/booking/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepoPG(pool *pgxpool.Pool) Repository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apptCols = `id, doctor_id, patient_id, slot_start, slot_end, status, consultation_type,
	reason, notes, paid, created_at, updated_at`

func (r *appointmentRepoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status, ctype string
	err := row.Scan(&a.ID, &a.DoctorID, &a.PatientID, &a.SlotStart, &a.SlotEnd, &status, &ctype,
		&a.Reason, &a.Notes, &a.Paid, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	a.Status = Status(status)
	a.ConsultationType = ConsultationType(ctype)
	return &a, nil
}

func (r *appointmentRepoPG) FindOccupiedSlotStarts(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (SlotSet, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT slot_start FROM slot_reservation
		WHERE doctor_id = $1 AND slot_start >= $2 AND slot_start < $3`,
		doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query slot reservations: %w", err)
	}
	defer rows.Close()

	occupied := NewSlotSet()
	for rows.Next() {
		var start time.Time
		if err := rows.Scan(&start); err != nil {
			return nil, err
		}
		occupied.Add(start)
	}
	return occupied, rows.Err()
}

// reserve claims (doctor, slot start) for the appointment. Losing the race
// inserts nothing and reports ErrSlotAlreadyBooked.
func (r *appointmentRepoPG) reserve(ctx context.Context, doctorID uuid.UUID, start time.Time, appointmentID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO slot_reservation (doctor_id, slot_start, appointment_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (doctor_id, slot_start) DO NOTHING`,
		doctorID, start, appointmentID)
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotAlreadyBooked
	}
	return nil
}

func (r *appointmentRepoPG) InsertIfAbsent(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		if err := r.reserve(ctx, a.DoctorID, a.SlotStart, a.ID); err != nil {
			return err
		}
		return r.conn(ctx).QueryRow(ctx, `
			INSERT INTO appointment (id, doctor_id, patient_id, slot_start, slot_end, status,
				consultation_type, reason, notes, paid)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at`,
			a.ID, a.DoctorID, a.PatientID, a.SlotStart, a.SlotEnd, string(a.Status),
			string(a.ConsultationType), a.Reason, a.Notes, a.Paid,
		).Scan(&a.CreatedAt, &a.UpdatedAt)
	})
}

// casMiss explains why a compare-and-set update matched no row.
func (r *appointmentRepoPG) casMiss(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointment WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrAppointmentNotFound
	}
	return ErrConcurrentUpdate
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	a, err := r.scanAppt(r.conn(ctx).QueryRow(ctx, `
		UPDATE appointment SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+apptCols,
		id, string(from), string(to)))
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, r.casMiss(ctx, id)
	}
	return a, err
}

// UpdateSlot reserves first and then runs the compare-and-set; a missed
// compare-and-set rolls the reservation back with the transaction.
func (r *appointmentRepoPG) UpdateSlot(ctx context.Context, id uuid.UUID, from Status, fromStart, newStart, newEnd time.Time) (*Appointment, error) {
	var updated *Appointment
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		var doctorID uuid.UUID
		err := r.conn(ctx).QueryRow(ctx, `SELECT doctor_id FROM appointment WHERE id = $1`, id).Scan(&doctorID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAppointmentNotFound
		}
		if err != nil {
			return err
		}
		if err := r.reserve(ctx, doctorID, newStart, id); err != nil {
			return err
		}

		updated, err = r.scanAppt(r.conn(ctx).QueryRow(ctx, `
			UPDATE appointment
			SET slot_start = $4, slot_end = $5, status = $6, updated_at = NOW()
			WHERE id = $1 AND status = $2 AND slot_start = $3
			RETURNING `+apptCols,
			id, string(from), fromStart, newStart, newEnd, string(StatusRescheduled)))
		if errors.Is(err, ErrAppointmentNotFound) {
			return r.casMiss(ctx, id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) list(ctx context.Context, where string, arg interface{}) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointment WHERE `+where+` = $1 ORDER BY slot_start`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return r.list(ctx, "patient_id", patientID)
}

func (r *appointmentRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Appointment, error) {
	return r.list(ctx, "doctor_id", doctorID)
}

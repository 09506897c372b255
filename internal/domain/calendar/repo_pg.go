package calendar

import (
	"context"
	"errors"

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

// pgBase picks the ambient transaction when there is one.
type pgBase struct{ pool *pgxpool.Pool }

func (b pgBase) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return b.pool
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// NewStorePG returns the Postgres-backed Store.
func NewStorePG(pool *pgxpool.Pool) Store {
	return NewStore(NewDoctorRepoPG(pool), NewAvailabilityRepoPG(pool), NewOverrideRepoPG(pool), NewLeaveRepoPG(pool))
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pgBase }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pgBase{pool: pool}}
}

const doctorCols = `id, name, email, specialization, active, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Email, &d.Specialization, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDoctorNotFound
	}
	return &d, err
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor (id, name, email, specialization, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Email, d.Specialization, d.Active).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
}

func (r *doctorRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE doctor SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

// =========== Weekly Availability Repository ===========

type availabilityRepoPG struct{ pgBase }

func NewAvailabilityRepoPG(pool *pgxpool.Pool) AvailabilityRepository {
	return &availabilityRepoPG{pgBase{pool: pool}}
}

const availabilityCols = `id, doctor_id, day_of_week, start_time, end_time, is_available, updated_at`

func (r *availabilityRepoPG) Upsert(ctx context.Context, a *WeeklyAvailability) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	// On conflict the existing row keeps its id; RETURNING reports it.
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO weekly_availability (id, doctor_id, day_of_week, start_time, end_time, is_available)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (doctor_id, day_of_week) DO UPDATE
		SET start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time,
			is_available = EXCLUDED.is_available, updated_at = NOW()
		RETURNING id, updated_at`,
		a.ID, a.DoctorID, string(a.DayOfWeek), a.StartTime, a.EndTime, a.IsAvailable).Scan(&a.ID, &a.UpdatedAt)
}

func (r *availabilityRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*WeeklyAvailability, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+availabilityCols+` FROM weekly_availability WHERE doctor_id = $1`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*WeeklyAvailability
	for rows.Next() {
		var a WeeklyAvailability
		var day string
		if err := rows.Scan(&a.ID, &a.DoctorID, &day, &a.StartTime, &a.EndTime, &a.IsAvailable, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.DayOfWeek = DayOfWeek(day)
		items = append(items, &a)
	}
	return items, rows.Err()
}

func (r *availabilityRepoPG) Delete(ctx context.Context, doctorID uuid.UUID, day DayOfWeek) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM weekly_availability WHERE doctor_id = $1 AND day_of_week = $2`, doctorID, string(day))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAvailabilityNotFound
	}
	return nil
}

// =========== Schedule Override Repository ===========

type overrideRepoPG struct{ pgBase }

func NewOverrideRepoPG(pool *pgxpool.Pool) OverrideRepository {
	return &overrideRepoPG{pgBase{pool: pool}}
}

const overrideCols = `id, doctor_id, override_date, start_time, end_time, is_working, created_at`

func (r *overrideRepoPG) Create(ctx context.Context, o *ScheduleOverride) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO schedule_override (id, doctor_id, override_date, start_time, end_time, is_working)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		o.ID, o.DoctorID, o.Date, o.StartTime, o.EndTime, o.IsWorking).Scan(&o.CreatedAt)
	if isUniqueViolation(err) {
		return ErrOverrideExists
	}
	return err
}

func (r *overrideRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*ScheduleOverride, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+overrideCols+` FROM schedule_override WHERE doctor_id = $1 ORDER BY override_date`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ScheduleOverride
	for rows.Next() {
		var o ScheduleOverride
		if err := rows.Scan(&o.ID, &o.DoctorID, &o.Date, &o.StartTime, &o.EndTime, &o.IsWorking, &o.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &o)
	}
	return items, rows.Err()
}

func (r *overrideRepoPG) Delete(ctx context.Context, doctorID uuid.UUID, date Date) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM schedule_override WHERE doctor_id = $1 AND override_date = $2`, doctorID, date)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOverrideNotFound
	}
	return nil
}

// =========== Leave Repository ===========

type leaveRepoPG struct{ pgBase }

func NewLeaveRepoPG(pool *pgxpool.Pool) LeaveRepository {
	return &leaveRepoPG{pgBase{pool: pool}}
}

const leaveCols = `id, doctor_id, start_date, end_date, reason, created_at`

// Create inserts the leave unless it overlaps an existing one. The doctor row
// is locked for the duration so two overlapping requests cannot both pass
// the check.
func (r *leaveRepoPG) Create(ctx context.Context, l *LeavePeriod) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)

		var locked uuid.UUID
		err := q.QueryRow(ctx, `SELECT id FROM doctor WHERE id = $1 FOR UPDATE`, l.DoctorID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDoctorNotFound
		}
		if err != nil {
			return err
		}

		var overlaps bool
		if err := q.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM leave_period
				WHERE doctor_id = $1 AND start_date <= $3 AND end_date >= $2
			)`, l.DoctorID, l.StartDate, l.EndDate).Scan(&overlaps); err != nil {
			return err
		}
		if overlaps {
			return ErrLeaveOverlap
		}

		return q.QueryRow(ctx, `
			INSERT INTO leave_period (id, doctor_id, start_date, end_date, reason)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at`,
			l.ID, l.DoctorID, l.StartDate, l.EndDate, l.Reason).Scan(&l.CreatedAt)
	})
}

func (r *leaveRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*LeavePeriod, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+leaveCols+` FROM leave_period WHERE doctor_id = $1 ORDER BY start_date`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*LeavePeriod
	for rows.Next() {
		var l LeavePeriod
		if err := rows.Scan(&l.ID, &l.DoctorID, &l.StartDate, &l.EndDate, &l.Reason, &l.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &l)
	}
	return items, rows.Err()
}

func (r *leaveRepoPG) Delete(ctx context.Context, doctorID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM leave_period WHERE doctor_id = $1 AND id = $2`, doctorID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLeaveNotFound
	}
	return nil
}

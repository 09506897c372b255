package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mediconnect/booking/internal/domain/calendar"
)

// -- Mock Calendar Store --

type mockStore struct {
	mu           sync.Mutex
	doctors      map[uuid.UUID]*calendar.Doctor
	weekly       map[uuid.UUID][]*calendar.WeeklyAvailability
	overrides    map[uuid.UUID][]*calendar.ScheduleOverride
	leaves       map[uuid.UUID][]*calendar.LeavePeriod
	failWith     error
	failOnLeaves bool
	calls        int
}

func newMockStore() *mockStore {
	return &mockStore{
		doctors:   make(map[uuid.UUID]*calendar.Doctor),
		weekly:    make(map[uuid.UUID][]*calendar.WeeklyAvailability),
		overrides: make(map[uuid.UUID][]*calendar.ScheduleOverride),
		leaves:    make(map[uuid.UUID][]*calendar.LeavePeriod),
	}
}

func (m *mockStore) addDoctor(active bool) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.doctors[id] = &calendar.Doctor{ID: id, Name: "Dr. Test", Active: active}
	return id
}

func (m *mockStore) setWeekly(doctorID uuid.UUID, day calendar.DayOfWeek, start, end calendar.TimeOfDay, available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weekly[doctorID] = append(m.weekly[doctorID], &calendar.WeeklyAvailability{
		ID: uuid.New(), DoctorID: doctorID, DayOfWeek: day, StartTime: start, EndTime: end, IsAvailable: available,
	})
}

func (m *mockStore) addOverride(doctorID uuid.UUID, date calendar.Date, start, end calendar.TimeOfDay, working bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[doctorID] = append(m.overrides[doctorID], &calendar.ScheduleOverride{
		ID: uuid.New(), DoctorID: doctorID, Date: date, StartTime: start, EndTime: end, IsWorking: working,
	})
}

func (m *mockStore) addLeave(doctorID uuid.UUID, from, to calendar.Date) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves[doctorID] = append(m.leaves[doctorID], &calendar.LeavePeriod{
		ID: uuid.New(), DoctorID: doctorID, StartDate: from, EndDate: to,
	})
}

func (m *mockStore) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *mockStore) GetDoctor(_ context.Context, id uuid.UUID) (*calendar.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failWith != nil && !m.failOnLeaves {
		return nil, m.failWith
	}
	d, ok := m.doctors[id]
	if !ok {
		return nil, calendar.ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockStore) GetWeeklyAvailability(_ context.Context, id uuid.UUID) ([]*calendar.WeeklyAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failWith != nil && !m.failOnLeaves {
		return nil, m.failWith
	}
	return m.weekly[id], nil
}

func (m *mockStore) GetScheduleOverrides(_ context.Context, id uuid.UUID) ([]*calendar.ScheduleOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failWith != nil && !m.failOnLeaves {
		return nil, m.failWith
	}
	return m.overrides[id], nil
}

func (m *mockStore) GetLeavePeriods(_ context.Context, id uuid.UUID) ([]*calendar.LeavePeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.leaves[id], nil
}

// -- Mock Appointment Repository --

type reservationKey struct {
	doctorID uuid.UUID
	start    int64
}

// mockRepo mirrors the Postgres store: reservations are insert-only and the
// reservation check and insert happen under one lock.
type mockRepo struct {
	mu           sync.Mutex
	appts        map[uuid.UUID]*Appointment
	reservations map[reservationKey]uuid.UUID
	occupiedErr  error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		appts:        make(map[uuid.UUID]*Appointment),
		reservations: make(map[reservationKey]uuid.UUID),
	}
}

func (m *mockRepo) FindOccupiedSlotStarts(_ context.Context, doctorID uuid.UUID, from, to time.Time) (SlotSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.occupiedErr != nil {
		return nil, m.occupiedErr
	}
	set := NewSlotSet()
	for k := range m.reservations {
		start := time.UnixMicro(k.start)
		if k.doctorID == doctorID && !start.Before(from) && start.Before(to) {
			set.Add(start)
		}
	}
	return set, nil
}

func (m *mockRepo) InsertIfAbsent(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := reservationKey{a.DoctorID, a.SlotStart.UnixMicro()}
	if _, taken := m.reservations[key]; taken {
		return ErrSlotAlreadyBooked
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.reservations[key] = a.ID
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, ErrConcurrentUpdate
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *mockRepo) UpdateSlot(_ context.Context, id uuid.UUID, from Status, fromStart, newStart, newEnd time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != from || !a.SlotStart.Equal(fromStart) {
		return nil, ErrConcurrentUpdate
	}
	key := reservationKey{a.DoctorID, newStart.UnixMicro()}
	if _, taken := m.reservations[key]; taken {
		return nil, ErrSlotAlreadyBooked
	}
	m.reservations[key] = id
	a.SlotStart, a.SlotEnd = newStart, newEnd
	a.Status = StatusRescheduled
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) list(match func(*Appointment) bool) []*Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Appointment
	for _, a := range m.appts {
		if match(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotStart.Before(out[j].SlotStart) })
	return out
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	return m.list(func(a *Appointment) bool { return a.PatientID == patientID }), nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*Appointment, error) {
	return m.list(func(a *Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (m *mockRepo) reservationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reservations)
}

// -- Mock Recorder --

type mockRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
	queries  map[string]int
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{outcomes: make(map[string]int), queries: make(map[string]int)}
}

func (r *mockRecorder) ObserveBooking(op, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[op+":"+outcome]++
}

func (r *mockRecorder) ObserveSlotQuery(reason string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries[reason]++
}

var errStoreDown = errors.New("doctor-service: connection refused")

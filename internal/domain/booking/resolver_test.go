package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/mediconnect/booking/internal/domain/calendar"
)

func TestResolver_Precedence(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(s *mockStore, doctor uuid.UUID)
		reason Reason
		window *TimeWindow
	}{
		{
			name: "weekly window",
			setup: func(s *mockStore, d uuid.UUID) {
				s.setWeekly(d, calendar.Monday, tod(9, 0), tod(10, 0), true)
			},
			window: &TimeWindow{tod(9, 0), tod(10, 0)},
		},
		{
			name:   "no weekly row",
			setup:  func(s *mockStore, d uuid.UUID) {},
			reason: ReasonNoWorkingHours,
		},
		{
			name: "weekly row for another day",
			setup: func(s *mockStore, d uuid.UUID) {
				s.setWeekly(d, calendar.Tuesday, tod(9, 0), tod(10, 0), true)
			},
			reason: ReasonNoWorkingHours,
		},
		{
			name: "weekly unavailable",
			setup: func(s *mockStore, d uuid.UUID) {
				s.setWeekly(d, calendar.Monday, tod(9, 0), tod(10, 0), false)
			},
			reason: ReasonWeeklyUnavailable,
		},
		{
			name: "override replaces weekly",
			setup: func(s *mockStore, d uuid.UUID) {
				s.setWeekly(d, calendar.Monday, tod(9, 0), tod(10, 0), true)
				s.addOverride(d, monday, tod(14, 0), tod(16, 0), true)
			},
			window: &TimeWindow{tod(14, 0), tod(16, 0)},
		},
		{
			name: "override works on a day off",
			setup: func(s *mockStore, d uuid.UUID) {
				s.setWeekly(d, calendar.Monday, 0, 0, false)
				s.addOverride(d, monday, tod(9, 0), tod(9, 30), true)
			},
			window: &TimeWindow{tod(9, 0), tod(9, 30)},
		},
		{
			name: "override not working",
			setup: func(s *mockStore, d uuid.UUID) {
				s.setWeekly(d, calendar.Monday, tod(9, 0), tod(10, 0), true)
				s.addOverride(d, monday, 0, 0, false)
			},
			reason: ReasonOverrideNotWorking,
		},
		{
			name: "override on another date ignored",
			setup: func(s *mockStore, d uuid.UUID) {
				s.setWeekly(d, calendar.Monday, tod(9, 0), tod(10, 0), true)
				s.addOverride(d, monday.AddDays(7), 0, 0, false)
			},
			window: &TimeWindow{tod(9, 0), tod(10, 0)},
		},
		{
			name: "leave beats working override",
			setup: func(s *mockStore, d uuid.UUID) {
				s.setWeekly(d, calendar.Monday, tod(9, 0), tod(10, 0), true)
				s.addOverride(d, monday, tod(9, 0), tod(12, 0), true)
				s.addLeave(d, monday, monday)
			},
			reason: ReasonOnLeave,
		},
		{
			name: "leave bounds are inclusive",
			setup: func(s *mockStore, d uuid.UUID) {
				s.setWeekly(d, calendar.Monday, tod(9, 0), tod(10, 0), true)
				s.addLeave(d, monday.AddDays(-3), monday)
			},
			reason: ReasonOnLeave,
		},
		{
			name: "leave ending the day before",
			setup: func(s *mockStore, d uuid.UUID) {
				s.setWeekly(d, calendar.Monday, tod(9, 0), tod(10, 0), true)
				s.addLeave(d, monday.AddDays(-3), monday.AddDays(-1))
			},
			window: &TimeWindow{tod(9, 0), tod(10, 0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			doctorID := store.addDoctor(true)
			tt.setup(store, doctorID)

			res := NewResolver(store).Resolve(context.Background(), doctorID, monday)
			if tt.window != nil {
				if !res.Available() {
					t.Fatalf("expected window, got reason %q", res.Reason)
				}
				if *res.Window != *tt.window {
					t.Errorf("window = %+v, want %+v", *res.Window, *tt.window)
				}
				return
			}
			if res.Available() {
				t.Fatalf("expected %q, got window %+v", tt.reason, *res.Window)
			}
			if res.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", res.Reason, tt.reason)
			}
		})
	}
}

func TestResolver_StoreFailure(t *testing.T) {
	store := newMockStore()
	doctorID := store.addDoctor(true)
	store.setWeekly(doctorID, calendar.Monday, tod(9, 0), tod(10, 0), true)
	store.fail(errStoreDown)

	res := NewResolver(store).Resolve(context.Background(), doctorID, monday)
	if res.Available() || res.Reason != ReasonCalendarUnavailable {
		t.Fatalf("expected calendar_unavailable, got %+v", res)
	}
	if !errors.Is(res.Err, errStoreDown) {
		t.Errorf("expected cause to be kept, got %v", res.Err)
	}
	if !errors.Is(res.BookingError(), ErrCalendarUnavailable) {
		t.Errorf("expected ErrCalendarUnavailable, got %v", res.BookingError())
	}
}

func TestResolver_ReadsStoreEveryCall(t *testing.T) {
	store := newMockStore()
	doctorID := store.addDoctor(true)
	store.setWeekly(doctorID, calendar.Monday, tod(9, 0), tod(10, 0), true)
	r := NewResolver(store)

	if res := r.Resolve(context.Background(), doctorID, monday); !res.Available() {
		t.Fatalf("expected window, got %q", res.Reason)
	}
	store.addLeave(doctorID, monday, monday)
	if res := r.Resolve(context.Background(), doctorID, monday); res.Reason != ReasonOnLeave {
		t.Fatalf("expected new leave to be seen, got %+v", res)
	}
}

func TestResolution_BookingError(t *testing.T) {
	tests := []struct {
		reason Reason
		is     []error
	}{
		{ReasonOnLeave, []error{ErrSlotNotBookable}},
		{ReasonOverrideNotWorking, []error{ErrSlotNotBookable}},
		{ReasonWeeklyUnavailable, []error{ErrSlotNotBookable}},
		{ReasonNoWorkingHours, []error{ErrSlotNotBookable, ErrNoWorkingHoursConfigured}},
	}
	for _, tt := range tests {
		err := unavailable(tt.reason).BookingError()
		for _, target := range tt.is {
			if !errors.Is(err, target) {
				t.Errorf("%s: expected errors.Is(%v)", tt.reason, target)
			}
		}
	}
}

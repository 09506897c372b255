package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mediconnect/booking/internal/domain/calendar"
)

// Reason explains why a date has no bookable slots.
type Reason string

const (
	ReasonOnLeave             Reason = "on_leave"
	ReasonOverrideNotWorking  Reason = "override_not_working"
	ReasonNoWorkingHours      Reason = "no_working_hours"
	ReasonWeeklyUnavailable   Reason = "weekly_unavailable"
	ReasonCalendarUnavailable Reason = "calendar_unavailable"
	ReasonFullyBooked         Reason = "fully_booked"
	ReasonWindowTooShort      Reason = "window_too_short"
)

// Resolution is either a working window or an unavailability reason. Err is
// set only with ReasonCalendarUnavailable.
type Resolution struct {
	Window *TimeWindow
	Reason Reason
	Err    error
}

func (r Resolution) Available() bool { return r.Window != nil }

// BookingError converts an unavailable resolution into the write-path error.
func (r Resolution) BookingError() error {
	switch r.Reason {
	case ReasonCalendarUnavailable:
		return fmt.Errorf("%w: %w", ErrCalendarUnavailable, r.Err)
	case ReasonNoWorkingHours:
		return fmt.Errorf("%w: %w", ErrSlotNotBookable, ErrNoWorkingHoursConfigured)
	}
	return fmt.Errorf("%w: %s", ErrSlotNotBookable, r.Reason)
}

func window(start, end calendar.TimeOfDay) Resolution {
	return Resolution{Window: &TimeWindow{Start: start, End: end}}
}

func unavailable(reason Reason) Resolution {
	return Resolution{Reason: reason}
}

// rule inspects one calendar source. matched=false falls through to the
// next rule.
type rule func(ctx context.Context, store calendar.Store, doctorID uuid.UUID, date calendar.Date) (res Resolution, matched bool, err error)

// rules in precedence order; the first match wins.
var rules = []rule{leaveRule, overrideRule, weeklyRule}

// Resolver answers "when does this doctor work on this date". It reads the
// store on every call.
type Resolver struct {
	store calendar.Store
}

func NewResolver(store calendar.Store) *Resolver {
	return &Resolver{store: store}
}

func (r *Resolver) Resolve(ctx context.Context, doctorID uuid.UUID, date calendar.Date) Resolution {
	for _, apply := range rules {
		res, matched, err := apply(ctx, r.store, doctorID, date)
		if err != nil {
			return Resolution{Reason: ReasonCalendarUnavailable, Err: err}
		}
		if matched {
			return res
		}
	}
	return unavailable(ReasonNoWorkingHours)
}

func leaveRule(ctx context.Context, store calendar.Store, doctorID uuid.UUID, date calendar.Date) (Resolution, bool, error) {
	leaves, err := store.GetLeavePeriods(ctx, doctorID)
	if err != nil {
		return Resolution{}, false, fmt.Errorf("loading leave periods: %w", err)
	}
	for _, l := range leaves {
		if l.Covers(date) {
			return unavailable(ReasonOnLeave), true, nil
		}
	}
	return Resolution{}, false, nil
}

func overrideRule(ctx context.Context, store calendar.Store, doctorID uuid.UUID, date calendar.Date) (Resolution, bool, error) {
	overrides, err := store.GetScheduleOverrides(ctx, doctorID)
	if err != nil {
		return Resolution{}, false, fmt.Errorf("loading schedule overrides: %w", err)
	}
	for _, o := range overrides {
		if o.Date != date {
			continue
		}
		if !o.IsWorking {
			return unavailable(ReasonOverrideNotWorking), true, nil
		}
		return window(o.StartTime, o.EndTime), true, nil
	}
	return Resolution{}, false, nil
}

func weeklyRule(ctx context.Context, store calendar.Store, doctorID uuid.UUID, date calendar.Date) (Resolution, bool, error) {
	weekly, err := store.GetWeeklyAvailability(ctx, doctorID)
	if err != nil {
		return Resolution{}, false, fmt.Errorf("loading weekly availability: %w", err)
	}
	day := calendar.DayOfWeekOf(date.Weekday())
	for _, w := range weekly {
		if w.DayOfWeek != day {
			continue
		}
		if !w.IsAvailable {
			return unavailable(ReasonWeeklyUnavailable), true, nil
		}
		return window(w.StartTime, w.EndTime), true, nil
	}
	return unavailable(ReasonNoWorkingHours), true, nil
}

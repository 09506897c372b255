package booking

import (
	"time"

	"github.com/mediconnect/booking/internal/domain/calendar"
)

// Bounds returns the window as absolute instants on date in loc.
func (w TimeWindow) Bounds(date calendar.Date, loc *time.Location) (time.Time, time.Time) {
	return date.At(w.Start, loc), date.At(w.End, loc)
}

// GenerateSlots cuts the window on date into consecutive slots of duration.
// A trailing remainder shorter than duration is dropped.
func GenerateSlots(date calendar.Date, w TimeWindow, duration time.Duration, loc *time.Location) []Slot {
	if duration <= 0 {
		return nil
	}
	start, end := w.Bounds(date, loc)

	var slots []Slot
	for s := start; !s.Add(duration).After(end); s = s.Add(duration) {
		slots = append(slots, Slot{Start: s, End: s.Add(duration)})
	}
	return slots
}

// FilterBooked drops candidates whose start is occupied, keeping order.
func FilterBooked(candidates []Slot, occupied SlotSet) []Slot {
	free := make([]Slot, 0, len(candidates))
	for _, s := range candidates {
		if !occupied.Contains(s.Start) {
			free = append(free, s)
		}
	}
	return free
}

// fitsGrid reports whether [start, end) is exactly one of the slots
// GenerateSlots would produce for the window.
func fitsGrid(date calendar.Date, w TimeWindow, start, end time.Time, duration time.Duration, loc *time.Location) bool {
	if !end.Equal(start.Add(duration)) {
		return false
	}
	winStart, winEnd := w.Bounds(date, loc)
	if start.Before(winStart) || end.After(winEnd) {
		return false
	}
	return start.Sub(winStart)%duration == 0
}

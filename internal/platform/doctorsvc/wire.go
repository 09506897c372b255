package doctorsvc

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mediconnect/booking/internal/domain/calendar"
)

// envelope is the doctor service's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type doctorDTO struct {
	DoctorID              uuid.UUID `json:"doctorId"`
	Name                  string    `json:"name"`
	Email                 *string   `json:"email"`
	PrimarySpecialization *string   `json:"primarySpecialization"`
	Active                bool      `json:"active"`
}

func (d doctorDTO) toDoctor(requested uuid.UUID) *calendar.Doctor {
	id := d.DoctorID
	if id == uuid.Nil {
		id = requested
	}
	return &calendar.Doctor{
		ID:             id,
		Name:           d.Name,
		Email:          d.Email,
		Specialization: d.PrimarySpecialization,
		Active:         d.Active,
	}
}

type availabilityDTO struct {
	DayOfWeek string  `json:"dayOfWeek"`
	StartTime *string `json:"startTime"`
	EndTime   *string `json:"endTime"`
	Available bool    `json:"available"`
}

func (a availabilityDTO) toWeekly(doctorID uuid.UUID) (*calendar.WeeklyAvailability, error) {
	day, err := calendar.ParseDayOfWeek(a.DayOfWeek)
	if err != nil {
		return nil, err
	}
	start, end, err := parseWindow(a.StartTime, a.EndTime, a.Available)
	if err != nil {
		return nil, err
	}
	return &calendar.WeeklyAvailability{
		DoctorID:    doctorID,
		DayOfWeek:   day,
		StartTime:   start,
		EndTime:     end,
		IsAvailable: a.Available,
	}, nil
}

type scheduleDTO struct {
	ScheduleDate string  `json:"scheduleDate"`
	StartTime    *string `json:"startTime"`
	EndTime      *string `json:"endTime"`
	Working      bool    `json:"working"`
}

func (s scheduleDTO) toOverride(doctorID uuid.UUID) (*calendar.ScheduleOverride, error) {
	date, err := calendar.ParseDate(s.ScheduleDate)
	if err != nil {
		return nil, err
	}
	start, end, err := parseWindow(s.StartTime, s.EndTime, s.Working)
	if err != nil {
		return nil, err
	}
	return &calendar.ScheduleOverride{
		DoctorID:  doctorID,
		Date:      date,
		StartTime: start,
		EndTime:   end,
		IsWorking: s.Working,
	}, nil
}

type leaveDTO struct {
	StartDate string  `json:"startDate"`
	EndDate   string  `json:"endDate"`
	Reason    *string `json:"reason"`
}

func (l leaveDTO) toLeave(doctorID uuid.UUID) (*calendar.LeavePeriod, error) {
	start, err := calendar.ParseDate(l.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := calendar.ParseDate(l.EndDate)
	if err != nil {
		return nil, err
	}
	return &calendar.LeavePeriod{
		DoctorID:  doctorID,
		StartDate: start,
		EndDate:   end,
		Reason:    l.Reason,
	}, nil
}

// parseWindow reads optional start/end times. Times are required only when
// the row marks the doctor as working.
func parseWindow(start, end *string, working bool) (calendar.TimeOfDay, calendar.TimeOfDay, error) {
	if start == nil || end == nil {
		if working {
			return 0, 0, fmt.Errorf("working row without start and end time")
		}
		return 0, 0, nil
	}
	s, err := calendar.ParseTimeOfDay(*start)
	if err != nil {
		return 0, 0, err
	}
	e, err := calendar.ParseTimeOfDay(*end)
	if err != nil {
		return 0, 0, err
	}
	return s, e, nil
}

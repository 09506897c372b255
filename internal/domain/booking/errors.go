package booking

import "errors"

var (
	ErrDoctorUnavailable        = errors.New("doctor is not available for booking")
	ErrSlotNotBookable          = errors.New("slot is not bookable")
	ErrSlotAlreadyBooked        = errors.New("slot is already booked")
	ErrNoWorkingHoursConfigured = errors.New("no working hours configured for this day")
	ErrAppointmentNotFound      = errors.New("appointment not found")
	ErrAlreadyCancelled         = errors.New("appointment is already cancelled")
	ErrInvalidTransition        = errors.New("invalid appointment status transition")
	ErrConcurrentUpdate         = errors.New("appointment was modified concurrently")
	ErrCalendarUnavailable      = errors.New("calendar data is temporarily unavailable")
	ErrInvalidRequest           = errors.New("invalid request")
)

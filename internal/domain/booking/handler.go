package booking

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediconnect/booking/internal/domain/calendar"
	"github.com/mediconnect/booking/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	anyRole := api.Group("", auth.RequireRole(auth.RoleStaff, auth.RoleDoctor, auth.RolePatient))
	anyRole.GET("/doctors/:doctorId/available-slots", h.ListAvailableSlots)
	anyRole.GET("/appointments/:id", h.GetAppointment)
	anyRole.PUT("/appointments/:id/reschedule", h.Reschedule)
	anyRole.POST("/appointments/:id/cancel", h.Cancel)
	anyRole.GET("/patients/:patientId/appointments", h.ListByPatient)

	bookers := api.Group("", auth.RequireRole(auth.RoleStaff, auth.RolePatient))
	bookers.POST("/appointments", h.Book)

	clinicians := api.Group("", auth.RequireRole(auth.RoleStaff, auth.RoleDoctor))
	clinicians.PATCH("/appointments/:id/status", h.UpdateStatus)
	clinicians.GET("/doctors/:doctorId/appointments", h.ListByDoctor)
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAppointmentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlotNotBookable), errors.Is(err, ErrDoctorUnavailable):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrSlotAlreadyBooked), errors.Is(err, ErrAlreadyCancelled),
		errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConcurrentUpdate):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrCalendarUnavailable), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// canAccess reports whether the caller is staff or a party to the appointment.
func canAccess(ctx context.Context, a *Appointment) bool {
	return auth.CanActFor(ctx, a.PatientID.String(), auth.RoleStaff) ||
		auth.CanActFor(ctx, a.DoctorID.String())
}

// loadAccessible fetches the appointment and hides it from unrelated callers.
func (h *Handler) loadAccessible(c echo.Context) (*Appointment, error) {
	id, err := uuidParam(c, "id")
	if err != nil {
		return nil, err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return nil, httpError(err)
	}
	if !canAccess(c.Request().Context(), a) {
		return nil, echo.NewHTTPError(http.StatusNotFound, ErrAppointmentNotFound.Error())
	}
	return a, nil
}

func (h *Handler) ListAvailableSlots(c echo.Context) error {
	doctorID, err := uuidParam(c, "doctorId")
	if err != nil {
		return err
	}
	raw := c.QueryParam("date")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date query parameter is required")
	}
	date, err := calendar.ParseDate(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.ListAvailableSlots(c.Request().Context(), doctorID, date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Book(c echo.Context) error {
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !auth.CanActFor(c.Request().Context(), req.PatientID.String(), auth.RoleStaff) {
		return echo.NewHTTPError(http.StatusForbidden, "patients may only book for themselves")
	}
	a, err := h.svc.Book(c.Request().Context(), &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	a, err := h.loadAccessible(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Reschedule(c echo.Context) error {
	a, err := h.loadAccessible(c)
	if err != nil {
		return err
	}
	var req RescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.Reschedule(c.Request().Context(), a.ID, &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) Cancel(c echo.Context) error {
	a, err := h.loadAccessible(c)
	if err != nil {
		return err
	}
	updated, err := h.svc.Cancel(c.Request().Context(), a.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	a, err := h.loadAccessible(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.UpdateStatus(c.Request().Context(), a.ID, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuidParam(c, "patientId")
	if err != nil {
		return err
	}
	if !auth.CanActFor(c.Request().Context(), patientID.String(), auth.RoleStaff) {
		return echo.NewHTTPError(http.StatusForbidden, "cannot list another patient's appointments")
	}
	items, err := h.svc.ListByPatient(c.Request().Context(), patientID)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListByDoctor(c echo.Context) error {
	doctorID, err := uuidParam(c, "doctorId")
	if err != nil {
		return err
	}
	if !auth.CanActFor(c.Request().Context(), doctorID.String(), auth.RoleStaff) {
		return echo.NewHTTPError(http.StatusForbidden, "cannot list another doctor's appointments")
	}
	items, err := h.svc.ListByDoctor(c.Request().Context(), doctorID)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, items)
}

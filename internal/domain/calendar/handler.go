package calendar

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediconnect/booking/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RoleStaff, auth.RoleDoctor, auth.RolePatient))
	readGroup.GET("/doctors/:doctorId", h.GetDoctor)
	readGroup.GET("/doctors/:doctorId/availability", h.ListAvailability)
	readGroup.GET("/doctors/:doctorId/overrides", h.ListOverrides)
	readGroup.GET("/doctors/:doctorId/leaves", h.ListLeaves)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleStaff))
	adminGroup.POST("/doctors", h.CreateDoctor)
	adminGroup.PATCH("/doctors/:doctorId/active", h.SetDoctorActive)

	// Doctors manage their own calendar; staff manage anyone's.
	writeGroup := api.Group("", auth.RequireRole(auth.RoleStaff, auth.RoleDoctor))
	writeGroup.PUT("/doctors/:doctorId/availability", h.SetAvailability)
	writeGroup.DELETE("/doctors/:doctorId/availability/:day", h.DeleteAvailability)
	writeGroup.POST("/doctors/:doctorId/overrides", h.CreateOverride)
	writeGroup.DELETE("/doctors/:doctorId/overrides/:date", h.DeleteOverride)
	writeGroup.POST("/doctors/:doctorId/leaves", h.CreateLeave)
	writeGroup.DELETE("/doctors/:doctorId/leaves/:leaveId", h.DeleteLeave)
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDoctorNotFound), errors.Is(err, ErrAvailabilityNotFound),
		errors.Is(err, ErrOverrideNotFound), errors.Is(err, ErrLeaveNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrOverrideExists), errors.Is(err, ErrLeaveOverlap):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func doctorParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("doctorId"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	return id, nil
}

// ownedDoctorParam parses :doctorId and checks the caller may edit that
// doctor's calendar.
func ownedDoctorParam(c echo.Context) (uuid.UUID, error) {
	id, err := doctorParam(c)
	if err != nil {
		return uuid.Nil, err
	}
	if !auth.CanActFor(c.Request().Context(), id.String(), auth.RoleStaff) {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "cannot modify another doctor's calendar")
	}
	return id, nil
}

// -- Doctor Handlers --

func (h *Handler) CreateDoctor(c echo.Context) error {
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d.ID = uuid.Nil
	d.Active = true
	if err := h.svc.CreateDoctor(c.Request().Context(), &d); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := doctorParam(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

type activeRequest struct {
	Active *bool `json:"active"`
}

func (h *Handler) SetDoctorActive(c echo.Context) error {
	id, err := doctorParam(c)
	if err != nil {
		return err
	}
	var req activeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Active == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "active is required")
	}
	d, err := h.svc.SetDoctorActive(c.Request().Context(), id, *req.Active)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

// -- Weekly Availability Handlers --

func (h *Handler) SetAvailability(c echo.Context) error {
	doctorID, err := ownedDoctorParam(c)
	if err != nil {
		return err
	}
	var a WeeklyAvailability
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.DoctorID = doctorID
	if day, err := ParseDayOfWeek(string(a.DayOfWeek)); err == nil {
		a.DayOfWeek = day
	}
	if err := h.svc.SetAvailability(c.Request().Context(), &a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAvailability(c echo.Context) error {
	doctorID, err := doctorParam(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListAvailability(c.Request().Context(), doctorID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteAvailability(c echo.Context) error {
	doctorID, err := ownedDoctorParam(c)
	if err != nil {
		return err
	}
	day, err := ParseDayOfWeek(c.Param("day"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.DeleteAvailability(c.Request().Context(), doctorID, day); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Schedule Override Handlers --

func (h *Handler) CreateOverride(c echo.Context) error {
	doctorID, err := ownedDoctorParam(c)
	if err != nil {
		return err
	}
	var o ScheduleOverride
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o.DoctorID = doctorID
	if err := h.svc.CreateOverride(c.Request().Context(), &o); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) ListOverrides(c echo.Context) error {
	doctorID, err := doctorParam(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListOverrides(c.Request().Context(), doctorID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteOverride(c echo.Context) error {
	doctorID, err := ownedDoctorParam(c)
	if err != nil {
		return err
	}
	date, err := ParseDate(c.Param("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.DeleteOverride(c.Request().Context(), doctorID, date); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Leave Handlers --

func (h *Handler) CreateLeave(c echo.Context) error {
	doctorID, err := ownedDoctorParam(c)
	if err != nil {
		return err
	}
	var l LeavePeriod
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l.DoctorID = doctorID
	if err := h.svc.CreateLeave(c.Request().Context(), &l); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) ListLeaves(c echo.Context) error {
	doctorID, err := doctorParam(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListLeaves(c.Request().Context(), doctorID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteLeave(c echo.Context) error {
	doctorID, err := ownedDoctorParam(c)
	if err != nil {
		return err
	}
	leaveID, err := uuid.Parse(c.Param("leaveId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid leave id")
	}
	if err := h.svc.DeleteLeave(c.Request().Context(), doctorID, leaveID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

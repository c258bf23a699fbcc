package booking

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/docbook/docbook/internal/platform/apperr"
	"github.com/docbook/docbook/internal/platform/auth"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the public slot endpoints on api and the rest on
// authed, which must already authenticate the caller.
func (h *Handler) RegisterRoutes(api *echo.Group, authed *echo.Group) {
	api.GET("/slots", h.ListSlots)
	api.GET("/doctors/:id/availability", h.Availability)

	patient := authed.Group("", auth.RequireRole(auth.RolePatient))
	patient.POST("/appointments/book", h.Book)
	patient.GET("/appointments/patient/:id", h.ListForPatient)
	patient.GET("/appointments/patient/:id/dashboard", h.PatientDashboard)
	patient.POST("/appointments/:id/review", h.SubmitReview)

	doctor := authed.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.GET("/appointments/doctor/:id", h.ListForDoctor)
	doctor.GET("/appointments/doctor/:id/dashboard", h.DoctorDashboard)
	doctor.GET("/appointments/doctor/:id/export", h.ExportForDoctor)
}

func callerID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, apperr.HTTP(apperr.Unauthenticated("token is not valid"))
	}
	return id, nil
}

// ownerAndCaller resolves the :id path owner and the authenticated caller.
// A path id that does not parse cannot be the caller's own.
func ownerAndCaller(c echo.Context) (owner, caller uuid.UUID, err error) {
	caller, err = callerID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	owner, err = uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, apperr.HTTP(ownOnly(uuid.Nil, caller))
	}
	return owner, caller, nil
}

func (h *Handler) ListSlots(c echo.Context) error {
	return c.JSON(http.StatusOK, Slots())
}

func (h *Handler) Availability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.HTTP(errDoctorNotFound)
	}
	slots, err := h.svc.Availability(c.Request().Context(), doctorID, c.QueryParam("date"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, slots)
}

func (h *Handler) Book(c echo.Context) error {
	patientID, err := callerID(c)
	if err != nil {
		return err
	}
	var in BookInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.Book(c.Request().Context(), patientID, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":     "appointment booked successfully",
		"appointment": a,
	})
}

func (h *Handler) ListForDoctor(c echo.Context) error {
	owner, caller, err := ownerAndCaller(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListForDoctor(c.Request().Context(), owner, caller)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, nonNil(items))
}

func (h *Handler) ListForPatient(c echo.Context) error {
	owner, caller, err := ownerAndCaller(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListForPatient(c.Request().Context(), owner, caller)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, nonNil(items))
}

func (h *Handler) DoctorDashboard(c echo.Context) error {
	owner, caller, err := ownerAndCaller(c)
	if err != nil {
		return err
	}
	d, err := h.svc.DoctorDashboard(c.Request().Context(), owner, caller)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) PatientDashboard(c echo.Context) error {
	owner, caller, err := ownerAndCaller(c)
	if err != nil {
		return err
	}
	d, err := h.svc.PatientDashboard(c.Request().Context(), owner, caller)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ExportForDoctor(c echo.Context) error {
	owner, caller, err := ownerAndCaller(c)
	if err != nil {
		return err
	}
	buf, err := h.svc.ExportForDoctor(c.Request().Context(), owner, caller)
	if err != nil {
		return apperr.HTTP(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="appointments.xlsx"`)
	return c.Blob(http.StatusOK, xlsxMIME, buf.Bytes())
}

func (h *Handler) SubmitReview(c echo.Context) error {
	patientID, err := callerID(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.HTTP(apperr.NotFound("appointment not found"))
	}
	var in ReviewInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.SubmitReview(c.Request().Context(), id, patientID, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func nonNil(items []*Appointment) []*Appointment {
	if items == nil {
		return []*Appointment{}
	}
	return items
}

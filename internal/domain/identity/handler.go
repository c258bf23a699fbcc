package identity

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/docbook/docbook/internal/platform/apperr"
	"github.com/docbook/docbook/internal/platform/auth"
	"github.com/docbook/docbook/pkg/pagination"
)

// TokenIssuer mints session tokens for authenticated users.
type TokenIssuer interface {
	Issue(subjectID, role string) (string, error)
}

type Handler struct {
	svc    *Service
	tokens TokenIssuer
}

func NewHandler(svc *Service, tokens TokenIssuer) *Handler {
	return &Handler{svc: svc, tokens: tokens}
}

// RegisterRoutes mounts the public endpoints on api and the profile endpoint
// on authed, which must already authenticate the caller.
func (h *Handler) RegisterRoutes(api *echo.Group, authed *echo.Group) {
	api.POST("/register/patient", h.RegisterPatient)
	api.POST("/register/doctor", h.RegisterDoctor)
	api.POST("/login", h.Login)
	api.GET("/doctors", h.ListDoctors)

	authed.GET("/me", h.Me)
}

// sessionResponse is returned by register and login.
type sessionResponse struct {
	Message       string    `json:"message"`
	Token         string    `json:"token"`
	Role          string    `json:"role"`
	UserID        uuid.UUID `json:"userId"`
	UserName      string    `json:"userName"`
	UserSpecialty string    `json:"userSpecialty,omitempty"`
	UserHospital  string    `json:"userHospital,omitempty"`
	UserPrice     *float64  `json:"userPrice,omitempty"`
}

func (h *Handler) session(u *User, message string) (*sessionResponse, error) {
	token, err := h.tokens.Issue(u.ID.String(), u.Role)
	if err != nil {
		return nil, err
	}
	resp := &sessionResponse{
		Message:  message,
		Token:    token,
		Role:     u.Role,
		UserID:   u.ID,
		UserName: u.Name,
	}
	if u.Doctor != nil {
		price := u.Doctor.PricePerHour
		resp.UserSpecialty = u.Doctor.Specialty
		resp.UserHospital = u.Doctor.Hospital
		resp.UserPrice = &price
	}
	return resp, nil
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var in RegisterPatientInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.RegisterPatient(c.Request().Context(), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	resp, err := h.session(u, "patient registered successfully")
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) RegisterDoctor(c echo.Context) error {
	var in RegisterDoctorInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.RegisterDoctor(c.Request().Context(), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	resp, err := h.session(u, "doctor registered successfully")
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c echo.Context) error {
	var in LoginInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.Login(c.Request().Context(), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	resp, err := h.session(u, "logged in successfully")
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	pagination.SetTotal(c, total)
	return c.JSON(http.StatusOK, items)
}

// Me re-reads the caller's profile from the store.
func (h *Handler) Me(c echo.Context) error {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return apperr.HTTP(apperr.Unauthenticated("token is not valid"))
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

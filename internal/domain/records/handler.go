package records

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/docbook/docbook/internal/platform/apperr"
	"github.com/docbook/docbook/internal/platform/auth"
	"github.com/docbook/docbook/internal/platform/blobstore"
	"github.com/docbook/docbook/internal/platform/middleware"
)

// uploadBodyLimit leaves room for multipart framing around a maximum-size file.
const uploadBodyLimit = blobstore.MaxFileSize + 512*1024

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the records endpoints on authed, which must
// already authenticate the caller.
func (h *Handler) RegisterRoutes(authed *echo.Group) {
	patient := authed.Group("/patients", auth.RequireRole(auth.RolePatient))
	patient.POST("/uploadMedicalHistory", h.Upload, fileSizeError, middleware.BodyLimit(uploadBodyLimit))
	patient.GET("/medicalHistoryFiles", h.ListFiles)

	doctor := authed.Group("/doctors", auth.RequireRole(auth.RoleDoctor))
	doctor.GET("/patients", h.ListPatients)
	doctor.GET("/patient/:id", h.PatientRecord)
}

// fileSizeError reports an oversized upload body as the same validation
// error an oversized file gets.
func fileSizeError(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return apperr.HTTP(blobstore.ErrFileTooLarge)
		}
		return err
	}
}

func callerID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, apperr.HTTP(apperr.Unauthenticated("token is not valid"))
	}
	return id, nil
}

func (h *Handler) Upload(c echo.Context) error {
	patientID, err := callerID(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile(UploadField)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		if errors.Is(err, http.ErrMissingFile) {
			return apperr.HTTP(blobstore.ErrMissingFileName)
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}
	src, err := fh.Open()
	if err != nil {
		return apperr.HTTP(err)
	}
	defer src.Close()

	f, err := h.svc.Upload(c.Request().Context(), patientID, UploadInput{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Description: c.FormValue("description"),
	}, src)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "medical history file uploaded successfully",
		"file":    f,
	})
}

func (h *Handler) ListFiles(c echo.Context) error {
	patientID, err := callerID(c)
	if err != nil {
		return err
	}
	files, err := h.svc.ListForPatient(c.Request().Context(), patientID)
	if err != nil {
		return apperr.HTTP(err)
	}
	if files == nil {
		files = []*MedicalHistoryFile{}
	}
	return c.JSON(http.StatusOK, files)
}

func (h *Handler) PatientRecord(c echo.Context) error {
	doctorID, err := callerID(c)
	if err != nil {
		return err
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.HTTP(apperr.NotFound("patient not found"))
	}
	rec, err := h.svc.PatientRecord(c.Request().Context(), doctorID, patientID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListPatients(c echo.Context) error {
	doctorID, err := callerID(c)
	if err != nil {
		return err
	}
	patients, err := h.svc.ListPatientsForDoctor(c.Request().Context(), doctorID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, patients)
}

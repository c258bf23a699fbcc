package records

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/docbook/docbook/internal/domain/identity"
	"github.com/docbook/docbook/internal/platform/apperr"
	"github.com/docbook/docbook/internal/platform/blobstore"
)

var errNoConsult = apperr.Forbidden("access denied: you have no appointments with this patient")

// PatientDirectory resolves patient accounts.
type PatientDirectory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.User, error)
	ListPatientsByIDs(ctx context.Context, ids []uuid.UUID) ([]identity.PatientSummary, error)
}

// ConsultChecker answers whether a doctor and a patient share an appointment.
type ConsultChecker interface {
	HasConsulted(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
	PatientIDsForDoctor(ctx context.Context, doctorID uuid.UUID) ([]uuid.UUID, error)
}

type Service struct {
	files    FileRepository
	blobs    blobstore.Store
	patients PatientDirectory
	consults ConsultChecker
	logger   zerolog.Logger
}

func NewService(files FileRepository, blobs blobstore.Store, patients PatientDirectory, consults ConsultChecker, logger zerolog.Logger) *Service {
	return &Service{files: files, blobs: blobs, patients: patients, consults: consults, logger: logger}
}

// Upload validates and stores a document for patientID, then records it.
// The stored blob is removed again if the record cannot be written.
func (s *Service) Upload(ctx context.Context, patientID uuid.UUID, in UploadInput, content io.Reader) (*MedicalHistoryFile, error) {
	if err := blobstore.Validate(in.FileName, in.ContentType, in.Size); err != nil {
		return nil, err
	}
	in.Description = strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		return nil, apperr.Validation("description must be at most %d characters", maxDescriptionLen)
	}

	obj, err := s.blobs.Put(ctx, UploadField, in.FileName, content)
	if err != nil {
		return nil, err
	}

	f := &MedicalHistoryFile{
		PatientID:   patientID,
		FileName:    filepath.Base(in.FileName),
		FilePath:    obj.PublicPath,
		MimeType:    blobstore.NormalizeContentType(in.ContentType),
		Size:        obj.Size,
		Description: in.Description,
	}
	if err := s.files.Create(ctx, f); err != nil {
		if derr := s.blobs.Delete(ctx, obj.Name); derr != nil {
			s.logger.Warn().Err(derr).Str("blob", obj.Name).Msg("orphaned upload")
		}
		return nil, err
	}

	s.logger.Info().
		Str("patient_id", patientID.String()).
		Str("file_id", f.ID.String()).
		Int64("size", f.Size).
		Msg("medical history file uploaded")
	return f, nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*MedicalHistoryFile, error) {
	return s.files.ListByPatient(ctx, patientID)
}

// PatientRecord returns a patient's profile and files to a doctor who has
// at least one appointment with them.
func (s *Service) PatientRecord(ctx context.Context, doctorID, patientID uuid.UUID) (*PatientRecord, error) {
	ok, err := s.consults.HasConsulted(ctx, doctorID, patientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNoConsult
	}

	patient, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	files, err := s.files.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []*MedicalHistoryFile{}
	}
	return &PatientRecord{Patient: patient.ToPatientSummary(), MedicalHistory: files}, nil
}

// ListPatientsForDoctor returns the patients who booked with doctorID.
func (s *Service) ListPatientsForDoctor(ctx context.Context, doctorID uuid.UUID) ([]identity.PatientSummary, error) {
	ids, err := s.consults.PatientIDsForDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []identity.PatientSummary{}, nil
	}
	return s.patients.ListPatientsByIDs(ctx, ids)
}

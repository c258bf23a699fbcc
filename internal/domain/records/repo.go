package records

import (
	"context"

	"github.com/google/uuid"
)

type FileRepository interface {
	Create(ctx context.Context, f *MedicalHistoryFile) error
	// ListByPatient returns the patient's files, newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*MedicalHistoryFile, error)
}

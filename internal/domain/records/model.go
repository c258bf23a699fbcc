package records

import (
	"time"

	"github.com/google/uuid"

	"github.com/docbook/docbook/internal/domain/identity"
)

// UploadField is the multipart field carrying the uploaded document.
const UploadField = "medicalHistoryFile"

const maxDescriptionLen = 500

// MedicalHistoryFile is a document a patient uploaded to their history.
// FilePath is the public URL the file is served under.
type MedicalHistoryFile struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patientId"`
	FileName    string    `json:"fileName"`
	FilePath    string    `json:"filePath"`
	MimeType    string    `json:"fileMimeType"`
	Size        int64     `json:"size"`
	Description string    `json:"description,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// UploadInput describes one uploaded file as received from the client.
type UploadInput struct {
	FileName    string
	ContentType string
	Size        int64
	Description string
}

// PatientRecord is what a doctor sees for a patient they consulted.
type PatientRecord struct {
	Patient        identity.PatientSummary `json:"patient"`
	MedicalHistory []*MedicalHistoryFile   `json:"medicalHistory"`
}

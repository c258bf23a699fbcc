package records

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/docbook/docbook/internal/platform/db"
)

type fileRepoPG struct{ q db.Queryable }

func NewFileRepoPG(q db.Queryable) FileRepository { return &fileRepoPG{q: q} }

const fileCols = `id, patient_id, file_name, file_path, mime_type, size_bytes, description, uploaded_at`

func (r *fileRepoPG) Create(ctx context.Context, f *MedicalHistoryFile) error {
	f.ID = uuid.New()
	var description *string
	if f.Description != "" {
		description = &f.Description
	}
	return r.q.QueryRow(ctx, `
		INSERT INTO medical_history_files (id, patient_id, file_name, file_path, mime_type, size_bytes, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING uploaded_at`,
		f.ID, f.PatientID, f.FileName, f.FilePath, f.MimeType, f.Size, description).Scan(&f.UploadedAt)
}

func (r *fileRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*MedicalHistoryFile, error) {
	rows, err := r.q.Query(ctx, `SELECT `+fileCols+` FROM medical_history_files
		WHERE patient_id = $1 ORDER BY uploaded_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*MedicalHistoryFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

func scanFile(row pgx.Row) (*MedicalHistoryFile, error) {
	var (
		f           MedicalHistoryFile
		description *string
	)
	if err := row.Scan(&f.ID, &f.PatientID, &f.FileName, &f.FilePath, &f.MimeType, &f.Size,
		&description, &f.UploadedAt); err != nil {
		return nil, err
	}
	if description != nil {
		f.Description = *description
	}
	return &f, nil
}

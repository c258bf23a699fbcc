package records

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryFileRepo is a thread-safe FileRepository for tests.
type InMemoryFileRepo struct {
	mu    sync.Mutex
	files []*MedicalHistoryFile
}

func NewInMemoryFileRepo() *InMemoryFileRepo {
	return &InMemoryFileRepo{}
}

func (r *InMemoryFileRepo) Create(_ context.Context, f *MedicalHistoryFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.ID = uuid.New()
	f.UploadedAt = time.Now()
	cp := *f
	r.files = append(r.files, &cp)
	return nil
}

// ListByPatient walks the files backwards so later uploads come first.
func (r *InMemoryFileRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*MedicalHistoryFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*MedicalHistoryFile
	for i := len(r.files) - 1; i >= 0; i-- {
		if r.files[i].PatientID == patientID {
			cp := *r.files[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

package booking

import (
	"context"

	"github.com/google/uuid"
)

// AppointmentRepository persists appointments. Create returns an apperr
// Conflict error when the (doctor, date, time) slot is already taken.
type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	FindBySlot(ctx context.Context, doctorID uuid.UUID, date, time string) (*Appointment, error)
	// ListByDoctor fills Patient on each result; ListByPatient fills Doctor.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)
	ListBookedTimes(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error)
	// SaveReview stores the review and completes the appointment. It returns
	// a Conflict error when the appointment already has a review.
	SaveReview(ctx context.Context, id uuid.UUID, review Review) error
	ExistsForPair(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
	PatientIDsForDoctor(ctx context.Context, doctorID uuid.UUID) ([]uuid.UUID, error)
	// ListConfirmedThrough returns confirmed appointments dated on or before date.
	ListConfirmedThrough(ctx context.Context, date string) ([]*Appointment, error)
	MarkCompleted(ctx context.Context, ids []uuid.UUID) (int, error)
}

package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/docbook/docbook/internal/platform/apperr"
	"github.com/docbook/docbook/internal/platform/db"
)

const slotConstraint = "appointments_slot_key"

var errSlotTaken = apperr.Conflict("this slot is already booked for this doctor")

type appointmentRepoPG struct{ q db.Queryable }

// NewAppointmentRepoPG accepts a pool or a transaction.
func NewAppointmentRepoPG(q db.Queryable) AppointmentRepository {
	return &appointmentRepoPG{q: q}
}

const apptCols = `a.id, a.patient_id, a.doctor_id, a.date, a.time, a.status,
	a.review_rating, a.review_comment, a.reviewed_at, a.created_at, a.updated_at`

func scanAppointment(row pgx.Row, extra ...interface{}) (*Appointment, error) {
	var (
		a          Appointment
		rating     *int
		comment    *string
		reviewedAt *time.Time
	)
	dest := []interface{}{&a.ID, &a.PatientID, &a.DoctorID, &a.Date, &a.Time, &a.Status,
		&rating, &comment, &reviewedAt, &a.CreatedAt, &a.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if rating != nil {
		a.Review = &Review{Rating: *rating}
		if comment != nil {
			a.Review.Comment = *comment
		}
		if reviewedAt != nil {
			a.Review.ReviewedAt = *reviewedAt
		}
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.q.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, date, time, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.Date, a.Time, a.Status).Scan(&a.CreatedAt, &a.UpdatedAt)
	if db.IsUniqueViolation(err, slotConstraint) {
		return errSlotTaken
	}
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.q.QueryRow(ctx, `SELECT `+apptCols+` FROM appointments a WHERE a.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("appointment not found")
	}
	return a, err
}

func (r *appointmentRepoPG) FindBySlot(ctx context.Context, doctorID uuid.UUID, date, slot string) (*Appointment, error) {
	a, err := scanAppointment(r.q.QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments a WHERE a.doctor_id = $1 AND a.date = $2 AND a.time = $3`,
		doctorID, date, slot))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("appointment not found")
	}
	return a, err
}

func (r *appointmentRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+apptCols+`, p.name, p.email
		FROM appointments a JOIN users p ON p.id = a.patient_id
		WHERE a.doctor_id = $1
		ORDER BY a.date, a.created_at`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		var p Party
		a, err := scanAppointment(rows, &p.Name, &p.Email)
		if err != nil {
			return nil, err
		}
		p.ID = a.PatientID
		a.Patient = &p
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+apptCols+`, d.name, d.email, COALESCE(d.specialty, ''), COALESCE(d.hospital, '')
		FROM appointments a JOIN users d ON d.id = a.doctor_id
		WHERE a.patient_id = $1
		ORDER BY a.date, a.created_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		var d Party
		a, err := scanAppointment(rows, &d.Name, &d.Email, &d.Specialty, &d.Hospital)
		if err != nil {
			return nil, err
		}
		d.ID = a.DoctorID
		a.Doctor = &d
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) ListBookedTimes(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT time FROM appointments WHERE doctor_id = $1 AND date = $2`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

func (r *appointmentRepoPG) SaveReview(ctx context.Context, id uuid.UUID, review Review) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE appointments
		SET review_rating = $2, review_comment = $3, reviewed_at = $4, status = $5, updated_at = NOW()
		WHERE id = $1 AND review_rating IS NULL`,
		id, review.Rating, review.Comment, review.ReviewedAt, StatusCompleted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errAlreadyReviewed
	}
	return nil
}

func (r *appointmentRepoPG) ExistsForPair(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointments WHERE doctor_id = $1 AND patient_id = $2)`,
		doctorID, patientID).Scan(&exists)
	return exists, err
}

func (r *appointmentRepoPG) PatientIDsForDoctor(ctx context.Context, doctorID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.q.Query(ctx, `SELECT DISTINCT patient_id FROM appointments WHERE doctor_id = $1`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *appointmentRepoPG) ListConfirmedThrough(ctx context.Context, date string) ([]*Appointment, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+apptCols+` FROM appointments a WHERE a.status = $1 AND a.date <= $2`,
		StatusConfirmed, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) MarkCompleted(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE appointments SET status = $2, updated_at = NOW()
		WHERE id = ANY($1) AND status = $3`,
		ids, StatusCompleted, StatusConfirmed)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

package booking

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/docbook/docbook/internal/platform/apperr"
	"github.com/docbook/docbook/internal/platform/auth"
	"github.com/docbook/docbook/internal/platform/websocket"
)

const (
	EventAppointmentBooked   = "appointment.booked"
	EventAppointmentReviewed = "appointment.reviewed"
)

const maxReviewComment = 2000

var (
	errAlreadyReviewed = apperr.Conflict("appointment has already been reviewed")
	errDoctorNotFound  = apperr.NotFound("doctor not found or invalid doctor ID")
)

// DoctorDirectory answers whether a user id belongs to a doctor.
type DoctorDirectory interface {
	IsDoctor(ctx context.Context, id uuid.UUID) (bool, error)
}

type Service struct {
	appts   AppointmentRepository
	doctors DoctorDirectory
	events  websocket.EventPublisher
	logger  zerolog.Logger
	loc     *time.Location
	now     func() time.Time
}

// NewService wires the booking workflow. events may be nil.
func NewService(appts AppointmentRepository, doctors DoctorDirectory, events websocket.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{
		appts:   appts,
		doctors: doctors,
		events:  events,
		logger:  logger,
		loc:     time.Local,
		now:     time.Now,
	}
}

func validateDate(date string) error {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return apperr.Validation("date must be in YYYY-MM-DD format")
	}
	return nil
}

func (s *Service) requireDoctor(ctx context.Context, id uuid.UUID) error {
	ok, err := s.doctors.IsDoctor(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return errDoctorNotFound
	}
	return nil
}

// Book reserves (doctor, date, time) for patientID. The slot pre-check gives
// the common case a clean Conflict; the unique index decides races.
func (s *Service) Book(ctx context.Context, patientID uuid.UUID, in BookInput) (*Appointment, error) {
	in.DoctorID = strings.TrimSpace(in.DoctorID)
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	if in.DoctorID == "" || in.Date == "" || in.Time == "" {
		return nil, apperr.Validation("please provide doctor, date, and time")
	}
	if err := validateDate(in.Date); err != nil {
		return nil, err
	}
	doctorID, err := uuid.Parse(in.DoctorID)
	if err != nil {
		return nil, errDoctorNotFound
	}
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	if _, err := s.appts.FindBySlot(ctx, doctorID, in.Date, in.Time); err == nil {
		return nil, errSlotTaken
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	a := &Appointment{
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      in.Date,
		Time:      in.Time,
		Status:    StatusConfirmed,
	}
	if err := s.appts.Create(ctx, a); err != nil {
		return nil, err
	}

	s.publish(ctx, EventAppointmentBooked, a,
		websocket.TopicFor(auth.RoleDoctor, a.DoctorID.String()),
		websocket.TopicFor(auth.RolePatient, a.PatientID.String()))
	return a, nil
}

func (s *Service) publish(ctx context.Context, eventType string, a *Appointment, topics ...string) {
	if s.events == nil {
		return
	}
	for _, topic := range topics {
		evt, err := websocket.NewEvent(eventType, topic, a)
		if err == nil {
			err = s.events.Publish(ctx, evt)
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("topic", topic).Str("appointment_id", a.ID.String()).Msg("publish appointment event")
		}
	}
}

func ownOnly(ownerID, callerID uuid.UUID) error {
	if ownerID != callerID {
		return apperr.Forbidden("access denied: you can only view your own appointments")
	}
	return nil
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID, callerID uuid.UUID) ([]*Appointment, error) {
	if err := ownOnly(doctorID, callerID); err != nil {
		return nil, err
	}
	return s.appts.ListByDoctor(ctx, doctorID)
}

func (s *Service) ListForPatient(ctx context.Context, patientID, callerID uuid.UUID) ([]*Appointment, error) {
	if err := ownOnly(patientID, callerID); err != nil {
		return nil, err
	}
	return s.appts.ListByPatient(ctx, patientID)
}

func (s *Service) dashboard(appts []*Appointment) *Dashboard {
	upcoming, past := Partition(appts, s.now(), s.loc)
	return &Dashboard{Upcoming: upcoming, Past: past}
}

func (s *Service) DoctorDashboard(ctx context.Context, doctorID, callerID uuid.UUID) (*Dashboard, error) {
	appts, err := s.ListForDoctor(ctx, doctorID, callerID)
	if err != nil {
		return nil, err
	}
	return s.dashboard(appts), nil
}

func (s *Service) PatientDashboard(ctx context.Context, patientID, callerID uuid.UUID) (*Dashboard, error) {
	appts, err := s.ListForPatient(ctx, patientID, callerID)
	if err != nil {
		return nil, err
	}
	return s.dashboard(appts), nil
}

// Availability lists the slot vocabulary for doctorID on date with booked flags.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, date string) ([]SlotAvailability, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	booked, err := s.appts.ListBookedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	return availability(booked), nil
}

// SubmitReview records the patient's review of a past appointment and marks
// it completed. Each appointment can be reviewed once.
func (s *Service) SubmitReview(ctx context.Context, appointmentID, patientID uuid.UUID, in ReviewInput) (*Appointment, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}
	in.Comment = strings.TrimSpace(in.Comment)
	if utf8.RuneCountInString(in.Comment) > maxReviewComment {
		return nil, apperr.Validation("comment must be at most %d characters", maxReviewComment)
	}

	a, err := s.appts.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if a.PatientID != patientID {
		return nil, apperr.Forbidden("access denied: you can only review your own appointments")
	}
	if a.Review != nil {
		return nil, errAlreadyReviewed
	}
	if a.Status == StatusCancelled {
		return nil, apperr.Validation("cannot review a cancelled appointment")
	}
	now := s.now()
	if start, ok := a.StartsAt(s.loc); ok && !start.Before(now) {
		return nil, apperr.Validation("appointment has not taken place yet")
	}

	review := Review{Rating: in.Rating, Comment: in.Comment, ReviewedAt: now.UTC()}
	if err := s.appts.SaveReview(ctx, a.ID, review); err != nil {
		return nil, err
	}
	a.Review = &review
	a.Status = StatusCompleted

	s.publish(ctx, EventAppointmentReviewed, a, websocket.TopicFor(auth.RoleDoctor, a.DoctorID.String()))
	return a, nil
}

// HasConsulted reports whether any appointment links the doctor and patient.
func (s *Service) HasConsulted(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	return s.appts.ExistsForPair(ctx, doctorID, patientID)
}

func (s *Service) PatientIDsForDoctor(ctx context.Context, doctorID uuid.UUID) ([]uuid.UUID, error) {
	return s.appts.PatientIDsForDoctor(ctx, doctorID)
}

// MarkCompleted moves confirmed appointments whose start time has passed to
// completed. Appointments with an unparseable time are left alone.
func (s *Service) MarkCompleted(ctx context.Context) (int, error) {
	now := s.now()
	candidates, err := s.appts.ListConfirmedThrough(ctx, now.In(s.loc).Format(dateLayout))
	if err != nil {
		return 0, err
	}
	var ids []uuid.UUID
	for _, a := range candidates {
		if start, ok := a.StartsAt(s.loc); ok && start.Before(now) {
			ids = append(ids, a.ID)
		}
	}
	return s.appts.MarkCompleted(ctx, ids)
}

package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docbook/docbook/internal/platform/apperr"
)

// PartyResolver looks up the display fields of a user for listings.
type PartyResolver func(ctx context.Context, id uuid.UUID) (Party, error)

type memorySlot struct {
	doctor uuid.UUID
	date   string
	time   string
}

// InMemoryAppointmentRepo is a thread-safe AppointmentRepository for tests.
// The slot map plays the part of appointments_slot_key.
type InMemoryAppointmentRepo struct {
	mu      sync.Mutex
	appts   map[uuid.UUID]*Appointment
	slots   map[memorySlot]uuid.UUID
	seq     map[uuid.UUID]int
	next    int
	parties PartyResolver
}

func NewInMemoryAppointmentRepo(parties PartyResolver) *InMemoryAppointmentRepo {
	return &InMemoryAppointmentRepo{
		appts:   make(map[uuid.UUID]*Appointment),
		slots:   make(map[memorySlot]uuid.UUID),
		seq:     make(map[uuid.UUID]int),
		parties: parties,
	}
}

func cloneAppointment(a *Appointment) *Appointment {
	cp := *a
	if a.Review != nil {
		r := *a.Review
		cp.Review = &r
	}
	return &cp
}

func (r *InMemoryAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := memorySlot{a.DoctorID, a.Date, a.Time}
	if _, taken := r.slots[key]; taken {
		return errSlotTaken
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.appts[a.ID] = cloneAppointment(a)
	r.slots[key] = a.ID
	r.seq[a.ID] = r.next
	r.next++
	return nil
}

func (r *InMemoryAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, apperr.NotFound("appointment not found")
	}
	return cloneAppointment(a), nil
}

func (r *InMemoryAppointmentRepo) FindBySlot(_ context.Context, doctorID uuid.UUID, date, slot string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.slots[memorySlot{doctorID, date, slot}]
	if !ok {
		return nil, apperr.NotFound("appointment not found")
	}
	return cloneAppointment(r.appts[id]), nil
}

// matching returns copies of the appointments accepted by keep, ordered by
// date then insertion.
func (r *InMemoryAppointmentRepo) matching(keep func(a *Appointment) bool) []*Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Appointment
	for _, a := range r.appts {
		if keep(a) {
			out = append(out, cloneAppointment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return r.seq[out[i].ID] < r.seq[out[j].ID]
	})
	return out
}

func (r *InMemoryAppointmentRepo) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Appointment, error) {
	items := r.matching(func(a *Appointment) bool { return a.DoctorID == doctorID })
	for _, a := range items {
		p, err := r.parties(ctx, a.PatientID)
		if err != nil {
			return nil, err
		}
		a.Patient = &Party{ID: a.PatientID, Name: p.Name, Email: p.Email}
	}
	return items, nil
}

func (r *InMemoryAppointmentRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	items := r.matching(func(a *Appointment) bool { return a.PatientID == patientID })
	for _, a := range items {
		d, err := r.parties(ctx, a.DoctorID)
		if err != nil {
			return nil, err
		}
		d.ID = a.DoctorID
		a.Doctor = &d
	}
	return items, nil
}

func (r *InMemoryAppointmentRepo) ListBookedTimes(_ context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	var times []string
	for _, a := range r.matching(func(a *Appointment) bool { return a.DoctorID == doctorID && a.Date == date }) {
		times = append(times, a.Time)
	}
	return times, nil
}

func (r *InMemoryAppointmentRepo) SaveReview(_ context.Context, id uuid.UUID, review Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok || a.Review != nil {
		return errAlreadyReviewed
	}
	rv := review
	a.Review = &rv
	a.Status = StatusCompleted
	a.UpdatedAt = time.Now()
	return nil
}

func (r *InMemoryAppointmentRepo) ExistsForPair(_ context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	found := r.matching(func(a *Appointment) bool { return a.DoctorID == doctorID && a.PatientID == patientID })
	return len(found) > 0, nil
}

func (r *InMemoryAppointmentRepo) PatientIDsForDoctor(_ context.Context, doctorID uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, a := range r.matching(func(a *Appointment) bool { return a.DoctorID == doctorID }) {
		if !seen[a.PatientID] {
			seen[a.PatientID] = true
			ids = append(ids, a.PatientID)
		}
	}
	return ids, nil
}

func (r *InMemoryAppointmentRepo) ListConfirmedThrough(_ context.Context, date string) ([]*Appointment, error) {
	return r.matching(func(a *Appointment) bool { return a.Status == StatusConfirmed && a.Date <= date }), nil
}

func (r *InMemoryAppointmentRepo) MarkCompleted(_ context.Context, ids []uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range ids {
		if a, ok := r.appts[id]; ok && a.Status == StatusConfirmed {
			a.Status = StatusCompleted
			a.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

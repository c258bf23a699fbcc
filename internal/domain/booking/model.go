package booking

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusConfirmed = "confirmed"
	StatusPending   = "pending"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 03:04 PM"
)

// Party is the counterpart shown on an appointment listing: the patient for
// a doctor's list, the doctor for a patient's list.
type Party struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Specialty string    `json:"specialty,omitempty"`
	Hospital  string    `json:"hospital,omitempty"`
}

type Review struct {
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	ReviewedAt time.Time `json:"reviewedAt"`
}

type Appointment struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patientId"`
	DoctorID  uuid.UUID `json:"doctorId"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Status    string    `json:"status"`
	Review    *Review   `json:"review,omitempty"`
	Patient   *Party    `json:"patient,omitempty"`
	Doctor    *Party    `json:"doctor,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StartsAt parses Date and Time in loc. ok is false when Time is not a
// "03:04 PM" style label.
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation(dateTimeLayout, a.Date+" "+a.Time, loc)
	return t, err == nil
}

type BookInput struct {
	DoctorID string `json:"doctorId"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// SlotAvailability reports whether a slot label is taken on a given date.
type SlotAvailability struct {
	Time   string `json:"time"`
	Booked bool   `json:"booked"`
}

// Dashboard splits a user's appointments around the current time.
type Dashboard struct {
	Upcoming []*Appointment `json:"upcoming"`
	Past     []*Appointment `json:"past"`
}

package identity

import (
	"time"

	"github.com/google/uuid"
)

// DoctorProfile is populated only for users with the doctor role. Rating and
// ReviewCount are stored and returned but never recomputed.
type DoctorProfile struct {
	Specialty    string  `json:"specialty"`
	Hospital     string  `json:"hospital"`
	Rating       float64 `json:"rating"`
	ReviewCount  int     `json:"reviews"`
	PricePerHour float64 `json:"price"`
}

type User struct {
	ID           uuid.UUID      `json:"id"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"`
	Role         string         `json:"role"`
	Name         string         `json:"name"`
	Doctor       *DoctorProfile `json:"doctorProfile,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// DoctorSummary is the public directory projection of a doctor.
type DoctorSummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
	Hospital  string    `json:"hospital"`
	Rating    float64   `json:"rating"`
	Reviews   int       `json:"reviews"`
	Price     float64   `json:"price"`
	Email     string    `json:"email"`
}

// PatientSummary is what doctors see of a patient.
type PatientSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

func (u *User) ToDoctorSummary() DoctorSummary {
	s := DoctorSummary{ID: u.ID, Name: u.Name, Email: u.Email}
	if u.Doctor != nil {
		s.Specialty = u.Doctor.Specialty
		s.Hospital = u.Doctor.Hospital
		s.Rating = u.Doctor.Rating
		s.Reviews = u.Doctor.ReviewCount
		s.Price = u.Doctor.PricePerHour
	}
	return s
}

func (u *User) ToPatientSummary() PatientSummary {
	return PatientSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

type RegisterPatientInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type RegisterDoctorInput struct {
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	Name      string   `json:"name"`
	Specialty string   `json:"specialty"`
	Hospital  string   `json:"hospital"`
	Price     *float64 `json:"price"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

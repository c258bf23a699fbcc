package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/docbook/docbook/internal/platform/apperr"
	"github.com/docbook/docbook/internal/platform/auth"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

var (
	errInvalidCredentials = apperr.Validation("invalid credentials")
	errInvalidRole        = apperr.Validation("invalid role for this user")
)

type Service struct {
	users UserRepository
}

func NewService(users UserRepository) *Service {
	return &Service{users: users}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) RegisterPatient(ctx context.Context, in RegisterPatientInput) (*User, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" || strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Validation("please enter all fields")
	}
	u := &User{Role: auth.RolePatient, Email: in.Email, Name: strings.TrimSpace(in.Name)}
	return u, s.register(ctx, u, in.Password)
}

func (s *Service) RegisterDoctor(ctx context.Context, in RegisterDoctorInput) (*User, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" || strings.TrimSpace(in.Name) == "" ||
		strings.TrimSpace(in.Specialty) == "" || strings.TrimSpace(in.Hospital) == "" || in.Price == nil {
		return nil, apperr.Validation("please enter all required doctor fields, including price")
	}
	if *in.Price < 0 {
		return nil, apperr.Validation("price must not be negative")
	}
	u := &User{
		Role:  auth.RoleDoctor,
		Email: in.Email,
		Name:  strings.TrimSpace(in.Name),
		Doctor: &DoctorProfile{
			Specialty:    strings.TrimSpace(in.Specialty),
			Hospital:     strings.TrimSpace(in.Hospital),
			PricePerHour: *in.Price,
		},
	}
	return u, s.register(ctx, u, in.Password)
}

// register stores u with a hash of password. The email pre-check gives a
// clean Conflict; the unique index still decides concurrent registrations.
func (s *Service) register(ctx context.Context, u *User, password string) error {
	u.Email = normalizeEmail(u.Email)
	if !strings.Contains(u.Email, "@") {
		return apperr.Validation("invalid email address")
	}
	if len(password) > maxPasswordBytes {
		return apperr.Validation("password must be at most %d bytes", maxPasswordBytes)
	}

	if _, err := s.users.GetByEmail(ctx, u.Email); err == nil {
		return apperr.Conflict("user already exists")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return s.users.Create(ctx, u)
}

// Login checks the password first so the role message is only revealed to
// someone who knows it.
func (s *Service) Login(ctx context.Context, in LoginInput) (*User, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" || in.Role == "" {
		return nil, apperr.Validation("please enter all fields including role")
	}
	u, err := s.FindByEmail(ctx, in.Email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.VerifyPassword(u, in.Password) {
		return nil, errInvalidCredentials
	}
	if u.Role != in.Role {
		return nil, errInvalidRole
	}
	return u, nil
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.users.GetByEmail(ctx, normalizeEmail(email))
}

func (s *Service) VerifyPassword(u *User, password string) bool {
	return auth.CheckPassword(u.PasswordHash, password)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) getWithRole(ctx context.Context, id uuid.UUID, role string) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && u.Role != role) {
		return nil, apperr.NotFound("%s not found", role)
	}
	return u, err
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.getWithRole(ctx, id, auth.RolePatient)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.getWithRole(ctx, id, auth.RoleDoctor)
}

// IsDoctor reports whether id names an existing doctor.
func (s *Service) IsDoctor(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.GetDoctor(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]DoctorSummary, int, error) {
	users, total, err := s.users.ListByRole(ctx, auth.RoleDoctor, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]DoctorSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToDoctorSummary())
	}
	return out, total, nil
}

// ListPatientsByIDs returns the patients among ids; other roles are skipped.
func (s *Service) ListPatientsByIDs(ctx context.Context, ids []uuid.UUID) ([]PatientSummary, error) {
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]PatientSummary, 0, len(users))
	for _, u := range users {
		if u.Role == auth.RolePatient {
			out = append(out, u.ToPatientSummary())
		}
	}
	return out, nil
}

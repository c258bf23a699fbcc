package identity

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository persists users. Lookups return an apperr NotFound error
// when nothing matches; Create returns an apperr Conflict error when the
// email is taken.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListByRole(ctx context.Context, role string, limit, offset int) ([]*User, int, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*User, error)
}

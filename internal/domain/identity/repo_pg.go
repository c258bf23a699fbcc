package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/docbook/docbook/internal/platform/apperr"
	"github.com/docbook/docbook/internal/platform/auth"
	"github.com/docbook/docbook/internal/platform/db"
)

const emailConstraint = "users_email_key"

type userRepoPG struct{ q db.Queryable }

// NewUserRepoPG accepts a pool or a transaction.
func NewUserRepoPG(q db.Queryable) UserRepository { return &userRepoPG{q: q} }

const userCols = `id, email, password_hash, role, name, specialty, hospital,
	rating, review_count, price_per_hour, created_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var (
		u           User
		specialty   *string
		hospital    *string
		rating      float64
		reviewCount int
		price       *float64
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Name, &specialty, &hospital,
		&rating, &reviewCount, &price, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	if u.Role == auth.RoleDoctor {
		u.Doctor = &DoctorProfile{Rating: rating, ReviewCount: reviewCount}
		if specialty != nil {
			u.Doctor.Specialty = *specialty
		}
		if hospital != nil {
			u.Doctor.Hospital = *hospital
		}
		if price != nil {
			u.Doctor.PricePerHour = *price
		}
	}
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()

	var specialty, hospital *string
	var price *float64
	if u.Doctor != nil {
		specialty, hospital, price = &u.Doctor.Specialty, &u.Doctor.Hospital, &u.Doctor.PricePerHour
	}

	err := r.q.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, role, name, specialty, hospital, price_per_hour)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		u.ID, u.Email, u.PasswordHash, u.Role, u.Name, specialty, hospital, price).Scan(&u.CreatedAt)
	if db.IsUniqueViolation(err, emailConstraint) {
		return apperr.Conflict("user already exists")
	}
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := r.scanUser(r.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("user not found")
	}
	return u, err
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := r.scanUser(r.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("user not found")
	}
	return u, err
}

func (r *userRepoPG) ListByRole(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.q.Query(ctx, `SELECT `+userCols+` FROM users WHERE role = $1 ORDER BY name, id LIMIT $2 OFFSET $3`, role, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	return items, total, err
}

func (r *userRepoPG) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, `SELECT `+userCols+` FROM users WHERE id = ANY($1) ORDER BY name, id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *userRepoPG) collect(rows pgx.Rows) ([]*User, error) {
	var items []*User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

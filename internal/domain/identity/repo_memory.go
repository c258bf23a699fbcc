package identity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docbook/docbook/internal/platform/apperr"
)

// InMemoryUserRepo is a thread-safe UserRepository for tests. Emails are
// unique the same way the users_email_key index makes them.
type InMemoryUserRepo struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*User
	byEmail map[string]uuid.UUID
}

func NewInMemoryUserRepo() *InMemoryUserRepo {
	return &InMemoryUserRepo{
		byID:    make(map[uuid.UUID]*User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func cloneUser(u *User) *User {
	cp := *u
	if u.Doctor != nil {
		d := *u.Doctor
		cp.Doctor = &d
	}
	return &cp
}

func (r *InMemoryUserRepo) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[u.Email]; taken {
		return apperr.Conflict("user already exists")
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	r.byID[u.ID] = cloneUser(u)
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *InMemoryUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return cloneUser(u), nil
}

func (r *InMemoryUserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[email]
	r.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return r.GetByID(ctx, id)
}

// sorted returns the users matching keep, ordered by name then id.
func (r *InMemoryUserRepo) sorted(keep func(u *User) bool) []*User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*User
	for _, u := range r.byID {
		if keep(u) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (r *InMemoryUserRepo) ListByRole(_ context.Context, role string, limit, offset int) ([]*User, int, error) {
	all := r.sorted(func(u *User) bool { return u.Role == role })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *InMemoryUserRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]*User, error) {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return r.sorted(func(u *User) bool { return want[u.ID] }), nil
}

package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"citylink/internal/models"
	"citylink/internal/repository"

	"github.com/google/uuid"
)

type userRow struct {
	user models.User
	hash string
}

type UserRepo struct {
	mu   sync.RWMutex
	rows map[string]*userRow
	now  func() time.Time
}

func NewUserRepo() *UserRepo {
	return &UserRepo{rows: map[string]*userRow{}, now: time.Now}
}

var _ repository.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(_ context.Context, u *models.User, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	for _, row := range r.rows {
		if row.user.Email == email {
			return repository.ErrDuplicate
		}
	}
	now := r.now()
	u.ID = uuid.NewString()
	u.Email = email
	u.CreatedAt, u.UpdatedAt = now, now
	r.rows[u.ID] = &userRow{user: *u, hash: passwordHash}
	return nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*models.User, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, row := range r.rows {
		if row.user.Email == email {
			u := row.user
			return &u, row.hash, nil
		}
	}
	return nil, "", repository.ErrNotFound
}

func (r *UserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := row.user
	return &u, nil
}

func (r *UserRepo) GetPasswordHash(_ context.Context, id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	return row.hash, nil
}

func (r *UserRepo) GetMany(_ context.Context, ids []string) (map[string]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]models.User, len(ids))
	for _, id := range ids {
		if row, ok := r.rows[id]; ok {
			out[id] = row.user
		}
	}
	return out, nil
}

func (r *UserRepo) List(_ context.Context, f repository.UserFilter, limit, offset int) ([]models.User, int64, error) {
	r.mu.RLock()
	var all []models.User
	for _, row := range r.rows {
		if f.Role != "" && row.user.Role != f.Role {
			continue
		}
		if f.Active != nil && row.user.Active != *f.Active {
			continue
		}
		all = append(all, row.user)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	total := int64(len(all))
	if offset >= len(all) {
		return []models.User{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *UserRepo) CountActive(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, row := range r.rows {
		if row.user.Active {
			n++
		}
	}
	return n, nil
}

func (r *UserRepo) SetActive(_ context.Context, id string, active bool) (*models.User, error) {
	return r.mutate(id, func(u *userRow) { u.user.Active = active })
}

func (r *UserRepo) SetRole(_ context.Context, id, role string) (*models.User, error) {
	return r.mutate(id, func(u *userRow) { u.user.Role = role })
}

func (r *UserRepo) UpdateProfile(_ context.Context, id, name, phone string) (*models.User, error) {
	return r.mutate(id, func(u *userRow) {
		u.user.Name = name
		u.user.Phone = phone
	})
}

func (r *UserRepo) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	_, err := r.mutate(id, func(u *userRow) { u.hash = passwordHash })
	return err
}

func (r *UserRepo) mutate(id string, fn func(*userRow)) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	fn(row)
	row.user.UpdatedAt = r.now()
	u := row.user
	return &u, nil
}

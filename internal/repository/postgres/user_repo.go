package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"citylink/internal/models"
	"citylink/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct{ db querier }

func NewUserRepo(db *pgxpool.Pool) *UserRepo { return &UserRepo{db: db} }

var _ repository.UserRepository = (*UserRepo)(nil)

const userColumns = `id::text, email, name, phone, role, active, created_at, updated_at`

// Create user (stores bcrypt hash in password_h)
func (r *UserRepo) Create(ctx context.Context, u *models.User, passwordHash string) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (email, name, phone, role, active, password_h)
		VALUES (lower(trim($1)),$2,$3,$4,$5,$6)
		RETURNING `+userColumns,
		u.Email, u.Name, u.Phone, u.Role, u.Active, passwordHash).
		Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrDuplicate
	}
	return err
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, string, error) {
	var u models.User
	var ph string
	err := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`, password_h
		FROM users WHERE email = lower(trim($1))`, email).
		Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt, &ph)
	if err != nil {
		return nil, "", notFound(err)
	}
	return &u, ph, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1::uuid`, id)
}

func (r *UserRepo) GetPasswordHash(ctx context.Context, id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", repository.ErrNotFound
	}
	var ph string
	if err := r.db.QueryRow(ctx, `SELECT password_h FROM users WHERE id = $1::uuid`, id).Scan(&ph); err != nil {
		return "", notFound(err)
	}
	return ph, nil
}

func (r *UserRepo) GetMany(ctx context.Context, ids []string) (map[string]models.User, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	out := make(map[string]models.User, len(valid))
	if len(valid) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[])`, valid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Admin/list/update operations
// -----------------------------------------------------------------------------

// List returns a filtered, paginated list of users and total count.
// Filters: role (exact), active (*bool).
func (r *UserRepo) List(ctx context.Context, f repository.UserFilter, limit, offset int) ([]models.User, int64, error) {
	if offset < 0 {
		offset = 0
	}

	clauses := []string{"1=1"}
	args := []any{}

	if s := strings.TrimSpace(f.Role); s != "" {
		args = append(args, s)
		clauses = append(clauses, "role = $"+itoa(len(args)))
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		clauses = append(clauses, "active = $"+itoa(len(args)))
	}

	// Count
	countSQL := `SELECT COUNT(*) FROM users WHERE ` + strings.Join(clauses, " AND ")
	var total int64
	if err := r.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// Page
	lim := "ALL"
	if limit > 0 {
		lim = itoa(limit)
	}
	args = append(args, offset)
	listSQL := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT %s OFFSET $%d
	`, userColumns, strings.Join(clauses, " AND "), lim, len(args))
	rows, err := r.db.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (r *UserRepo) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE active`).Scan(&n)
	return n, err
}

func (r *UserRepo) SetActive(ctx context.Context, id string, active bool) (*models.User, error) {
	return r.update(ctx, id, `active=$1`, active)
}

func (r *UserRepo) SetRole(ctx context.Context, id, role string) (*models.User, error) {
	return r.update(ctx, id, `role=$1`, role)
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id, name, phone string) (*models.User, error) {
	return r.update(ctx, id, `name=$1, phone=$2`, name, phone)
}

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	_, err := r.update(ctx, id, `password_h=$1`, passwordHash)
	return err
}

// update runs "SET <set>" for one user; the id is bound after args.
func (r *UserRepo) update(ctx context.Context, id, set string, args ...any) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	args = append(args, id)
	sql := fmt.Sprintf(`
		UPDATE users
		SET %s, updated_at=now()
		WHERE id=$%d::uuid
		RETURNING %s
	`, set, len(args), userColumns)
	return r.one(ctx, sql, args...)
}

func (r *UserRepo) one(ctx context.Context, sql string, args ...any) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, sql, args...).
		Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

package repository

import (
	"context"
	"errors"
	"time"

	"citylink/internal/models"
)

var (
	// ErrNotFound is returned when a document with the given id does not exist
	// (malformed ids included).
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned by Update when the stored version moved on.
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicate is returned when a unique key (user email) is taken.
	ErrDuplicate = errors.New("duplicate key")
)

type ReportRepository interface {
	Insert(ctx context.Context, r *models.Report) error
	FindByID(ctx context.Context, id string) (*models.Report, error)
	Find(ctx context.Context, q ReportQuery) ([]models.Report, error)
	Count(ctx context.Context, f ReportFilter) (int64, error)
	// Update applies p only if the stored version equals version, and bumps it.
	Update(ctx context.Context, id string, version int64, p models.ReportPatch) (*models.Report, error)

	// StatusCounts groups reports by status; since == nil means all reports.
	StatusCounts(ctx context.Context, since *time.Time) (models.StatusCounts, error)
	// CategoryBreakdown is sorted by count desc, then category asc.
	CategoryBreakdown(ctx context.Context) ([]models.CategoryStat, error)
	CountResolvedSince(ctx context.Context, since time.Time) (int64, error)
	// AvgResolutionDays averages resolvedAt-createdAt over reports with a resolvedAt; 0 when none.
	AvgResolutionDays(ctx context.Context) (float64, error)
	// DailyTrend buckets reports created since the cutoff by UTC day, ascending.
	DailyTrend(ctx context.Context, since time.Time) ([]models.TrendPoint, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (*models.User, string /*passwordHash*/, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetPasswordHash(ctx context.Context, id string) (string, error)
	// GetMany skips ids that do not resolve.
	GetMany(ctx context.Context, ids []string) (map[string]models.User, error)
	List(ctx context.Context, f UserFilter, limit, offset int) ([]models.User, int64, error)
	CountActive(ctx context.Context) (int64, error)
	SetActive(ctx context.Context, id string, active bool) (*models.User, error)
	SetRole(ctx context.Context, id, role string) (*models.User, error)
	UpdateProfile(ctx context.Context, id, name, phone string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"citylink/internal/models"
	"citylink/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the part of *pgxpool.Pool the repositories run statements through.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ReportRepo struct{ db querier }

func NewReportRepo(db *pgxpool.Pool) *ReportRepo { return &ReportRepo{db: db} }

var _ repository.ReportRepository = (*ReportRepo)(nil)

const reportColumns = `
	r.id::text, r.title, r.description, r.category, r.issue_type, r.status,
	r.address, r.latitude, r.longitude, r.images, r.reported_by,
	COALESCE(r.assigned_to::text, ''), r.admin_notes, r.resolved_at, r.priority, r.tags,
	r.upvotes, r.downvotes, r.version, r.created_at, r.updated_at`

// sortColumns maps sortable report fields to ORDER BY expressions.
var sortColumns = map[string]string{
	"createdAt":                      "r.created_at",
	"updatedAt":                      "r.updated_at",
	"resolvedAt":                     "r.resolved_at",
	"title":                          "r.title",
	"description":                    "r.description",
	"category":                       "r.category",
	"issueType":                      "r.issue_type",
	"status":                         "r.status",
	"priority":                       "r.priority",
	"adminNotes":                     "r.admin_notes",
	"location.address":               "r.address",
	"location.coordinates.latitude":  "r.latitude",
	"location.coordinates.longitude": "r.longitude",
	"reportedBy.name":                "r.reported_by->>'name'",
	"reportedBy.email":               "r.reported_by->>'email'",
	"votes.upvotes":                  "r.upvotes",
	"votes.downvotes":                "r.downvotes",
}

// -----------------------------------------------------------------------------
// Single report + create/update
// -----------------------------------------------------------------------------

func (r *ReportRepo) Insert(ctx context.Context, rep *models.Report) error {
	if rep.Images == nil {
		rep.Images = []models.Image{}
	}
	if rep.Tags == nil {
		rep.Tags = []string{}
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO reports (
			title, description, category, issue_type, status,
			address, latitude, longitude, images, reported_by,
			assigned_to, admin_notes, resolved_at, priority, tags,
			upvotes, downvotes, version, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::uuid,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		RETURNING id::text`,
		rep.Title, rep.Description, string(rep.Category), string(rep.IssueType), string(rep.Status),
		rep.Location.Address, rep.Location.Coordinates.Latitude, rep.Location.Coordinates.Longitude,
		rep.Images, rep.ReportedBy,
		nullIfEmpty(rep.AssignedToID), rep.AdminNotes, rep.ResolvedAt, rep.Priority, rep.Tags,
		rep.Votes.Upvotes, rep.Votes.Downvotes, rep.Version, rep.CreatedAt, rep.UpdatedAt,
	).Scan(&rep.ID)
}

func (r *ReportRepo) FindByID(ctx context.Context, id string) (*models.Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports r WHERE r.id = $1::uuid`, id)
	rep, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return rep, nil
}

// Update applies the patch when the stored version still matches.
func (r *ReportRepo) Update(ctx context.Context, id string, version int64, p models.ReportPatch) (*models.Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	var status *string
	if p.Status != nil {
		s := string(*p.Status)
		status = &s
	}
	var assignee *string
	if p.AssignedToID != nil {
		if _, err := uuid.Parse(*p.AssignedToID); err != nil {
			return nil, repository.ErrNotFound
		}
		assignee = p.AssignedToID
	}

	row := r.db.QueryRow(ctx, `
		UPDATE reports r SET
			status      = COALESCE($3, r.status),
			admin_notes = COALESCE($4, r.admin_notes),
			assigned_to = COALESCE($5::uuid, r.assigned_to),
			resolved_at = COALESCE($6, r.resolved_at),
			updated_at  = $7,
			version     = r.version + 1
		WHERE r.id = $1::uuid AND r.version = $2
		RETURNING `+reportColumns,
		id, version, status, p.AdminNotes, assignee, p.ResolvedAt, p.UpdatedAt,
	)
	rep, err := scanReport(row)
	if err == nil {
		return rep, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reports WHERE id = $1::uuid)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrVersionConflict
}

// -----------------------------------------------------------------------------
// Listing with filters + pagination + sort
// -----------------------------------------------------------------------------

func (r *ReportRepo) Find(ctx context.Context, q repository.ReportQuery) ([]models.Report, error) {
	whereSQL, args := buildReportWhere(q.Filter)

	sortCol := sortColumns[repository.SanitizeSort(q.Sort, "createdAt")]
	// nulls (unresolved reports) order like Mongo: first ascending, last descending
	sortOrd, nulls := "ASC", "NULLS FIRST"
	if q.Desc {
		sortOrd, nulls = "DESC", "NULLS LAST"
	}
	limit := "ALL"
	if q.Limit > 0 {
		limit = itoa(q.Limit)
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	sql := fmt.Sprintf(`
		SELECT %s
		FROM reports r
		%s
		ORDER BY %s %s %s, r.id %s
		LIMIT %s OFFSET $%d
	`, reportColumns, whereSQL, sortCol, sortOrd, nulls, sortOrd, limit, len(args)+1)
	args = append(args, offset)

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rep)
	}
	return out, rows.Err()
}

func (r *ReportRepo) Count(ctx context.Context, f repository.ReportFilter) (int64, error) {
	whereSQL, args := buildReportWhere(f)
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reports r `+whereSQL, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Aggregates (dashboard + analytics)
// -----------------------------------------------------------------------------

func (r *ReportRepo) StatusCounts(ctx context.Context, since *time.Time) (models.StatusCounts, error) {
	var c models.StatusCounts
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'in_progress'),
			COUNT(*) FILTER (WHERE status = 'resolved'),
			COUNT(*) FILTER (WHERE status = 'rejected')
		FROM reports
		WHERE $1::timestamptz IS NULL OR created_at >= $1::timestamptz
	`, since).Scan(&c.Total, &c.Pending, &c.InProgress, &c.Resolved, &c.Rejected)
	return c, err
}

func (r *ReportRepo) CategoryBreakdown(ctx context.Context) ([]models.CategoryStat, error) {
	rows, err := r.db.Query(ctx, `
		SELECT
			category,
			COUNT(*) AS n,
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'resolved')
		FROM reports
		GROUP BY category
		ORDER BY n DESC, category ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.CategoryStat{}
	for rows.Next() {
		var st models.CategoryStat
		var cat string
		if err := rows.Scan(&cat, &st.Count, &st.Pending, &st.Resolved); err != nil {
			return nil, err
		}
		st.Category = models.Category(cat)
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *ReportRepo) CountResolvedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM reports WHERE status = 'resolved' AND resolved_at >= $1`, since,
	).Scan(&n)
	return n, err
}

func (r *ReportRepo) AvgResolutionDays(ctx context.Context) (float64, error) {
	var avg float64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)) / 86400), 0)::float8
		FROM reports
		WHERE resolved_at IS NOT NULL
	`).Scan(&avg)
	return avg, err
}

func (r *ReportRepo) DailyTrend(ctx context.Context, since time.Time) ([]models.TrendPoint, error) {
	rows, err := r.db.Query(ctx, `
		SELECT
			to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'resolved')
		FROM reports
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day ASC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.TrendPoint{}
	for rows.Next() {
		var tp models.TrendPoint
		if err := rows.Scan(&tp.Date, &tp.Total, &tp.Resolved); err != nil {
			return nil, err
		}
		out = append(out, tp)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// buildReportWhere composes the WHERE clause and args for a report filter.
func buildReportWhere(f repository.ReportFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	// free-text search, matched literally
	if s := strings.TrimSpace(f.Q); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		n := itoa(len(args))
		clauses = append(clauses, "(r.title ILIKE $"+n+" OR r.description ILIKE $"+n+" OR r.address ILIKE $"+n+")")
	}

	if s := strings.TrimSpace(f.Category); s != "" {
		args = append(args, s)
		clauses = append(clauses, "r.category = $"+itoa(len(args)))
	}
	if s := strings.TrimSpace(f.Status); s != "" {
		args = append(args, s)
		clauses = append(clauses, "r.status = $"+itoa(len(args)))
	}
	if s := strings.TrimSpace(f.IssueType); s != "" {
		args = append(args, s)
		clauses = append(clauses, "r.issue_type = $"+itoa(len(args)))
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func scanReport(row pgx.Row) (*models.Report, error) {
	var rep models.Report
	var category, issueType, status string
	err := row.Scan(
		&rep.ID, &rep.Title, &rep.Description, &category, &issueType, &status,
		&rep.Location.Address, &rep.Location.Coordinates.Latitude, &rep.Location.Coordinates.Longitude,
		&rep.Images, &rep.ReportedBy,
		&rep.AssignedToID, &rep.AdminNotes, &rep.ResolvedAt, &rep.Priority, &rep.Tags,
		&rep.Votes.Upvotes, &rep.Votes.Downvotes, &rep.Version, &rep.CreatedAt, &rep.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rep.Category = models.Category(category)
	rep.IssueType = models.IssueType(issueType)
	rep.Status = models.Status(status)
	if rep.Images == nil {
		rep.Images = []models.Image{}
	}
	if rep.Tags == nil {
		rep.Tags = []string{}
	}
	return &rep, nil
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func itoa(i int) string { return strconv.Itoa(i) }

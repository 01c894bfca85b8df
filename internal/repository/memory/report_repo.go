// Package memory keeps reports and users in process memory. It backs the
// test suites and DB_DRIVER=memory local runs.
package memory

import (
	"cmp"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"citylink/internal/models"
	"citylink/internal/repository"

	"github.com/google/uuid"
)

type ReportRepo struct {
	mu   sync.RWMutex
	rows []*models.Report
}

func NewReportRepo() *ReportRepo { return &ReportRepo{} }

var _ repository.ReportRepository = (*ReportRepo)(nil)

func (r *ReportRepo) Insert(_ context.Context, rep *models.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}
	r.rows = append(r.rows, cloneReport(rep))
	return nil
}

func (r *ReportRepo) FindByID(_ context.Context, id string) (*models.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if row := r.get(id); row != nil {
		return cloneReport(row), nil
	}
	return nil, repository.ErrNotFound
}

func (r *ReportRepo) Find(_ context.Context, q repository.ReportQuery) ([]models.Report, error) {
	r.mu.RLock()
	matched := make([]*models.Report, 0, len(r.rows))
	for _, row := range r.rows {
		if q.Filter.Matches(row) {
			matched = append(matched, row)
		}
	}
	r.mu.RUnlock()

	field := repository.SanitizeSort(q.Sort, "createdAt")
	sort.SliceStable(matched, func(i, j int) bool {
		c := compareField(matched[i], matched[j], field)
		if c == 0 {
			c = strings.Compare(matched[i].ID, matched[j].ID)
		}
		if q.Desc {
			return c > 0
		}
		return c < 0
	})

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return []models.Report{}, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	out := make([]models.Report, 0, len(matched))
	for _, row := range matched {
		out = append(out, *cloneReport(row))
	}
	return out, nil
}

func (r *ReportRepo) Count(_ context.Context, f repository.ReportFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, row := range r.rows {
		if f.Matches(row) {
			n++
		}
	}
	return n, nil
}

func (r *ReportRepo) Update(_ context.Context, id string, version int64, p models.ReportPatch) (*models.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.get(id)
	if row == nil {
		return nil, repository.ErrNotFound
	}
	if row.Version != version {
		return nil, repository.ErrVersionConflict
	}
	if p.Status != nil {
		row.Status = *p.Status
	}
	if p.AdminNotes != nil {
		row.AdminNotes = *p.AdminNotes
	}
	if p.AssignedToID != nil {
		row.AssignedToID = *p.AssignedToID
	}
	if p.ResolvedAt != nil {
		t := *p.ResolvedAt
		row.ResolvedAt = &t
	}
	row.UpdatedAt = p.UpdatedAt
	row.Version++
	return cloneReport(row), nil
}

func (r *ReportRepo) StatusCounts(_ context.Context, since *time.Time) (models.StatusCounts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var c models.StatusCounts
	for _, row := range r.rows {
		if since != nil && row.CreatedAt.Before(*since) {
			continue
		}
		c.Add(row.Status, 1)
	}
	return c, nil
}

func (r *ReportRepo) CategoryBreakdown(_ context.Context) ([]models.CategoryStat, error) {
	r.mu.RLock()
	byCat := map[models.Category]*models.CategoryStat{}
	for _, row := range r.rows {
		st, ok := byCat[row.Category]
		if !ok {
			st = &models.CategoryStat{Category: row.Category}
			byCat[row.Category] = st
		}
		st.Count++
		switch row.Status {
		case models.StatusPending:
			st.Pending++
		case models.StatusResolved:
			st.Resolved++
		}
	}
	r.mu.RUnlock()

	out := make([]models.CategoryStat, 0, len(byCat))
	for _, st := range byCat {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (r *ReportRepo) CountResolvedSince(_ context.Context, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, row := range r.rows {
		if row.Status == models.StatusResolved && row.ResolvedAt != nil && !row.ResolvedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *ReportRepo) AvgResolutionDays(_ context.Context) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum float64
	var n int
	for _, row := range r.rows {
		if row.ResolvedAt == nil {
			continue
		}
		sum += row.ResolvedAt.Sub(row.CreatedAt).Hours() / 24
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

func (r *ReportRepo) DailyTrend(_ context.Context, since time.Time) ([]models.TrendPoint, error) {
	r.mu.RLock()
	byDay := map[string]*models.TrendPoint{}
	for _, row := range r.rows {
		if row.CreatedAt.Before(since) {
			continue
		}
		day := row.CreatedAt.UTC().Format("2006-01-02")
		tp, ok := byDay[day]
		if !ok {
			tp = &models.TrendPoint{Date: day}
			byDay[day] = tp
		}
		tp.Total++
		if row.Status == models.StatusResolved {
			tp.Resolved++
		}
	}
	r.mu.RUnlock()

	out := make([]models.TrendPoint, 0, len(byDay))
	for _, tp := range byDay {
		out = append(out, *tp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (r *ReportRepo) get(id string) *models.Report {
	for _, row := range r.rows {
		if row.ID == id {
			return row
		}
	}
	return nil
}

func compareField(a, b *models.Report, field string) int {
	switch field {
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "resolvedAt":
		// unresolved sorts before resolved, as null does in the databases
		switch {
		case a.ResolvedAt == nil && b.ResolvedAt == nil:
			return 0
		case a.ResolvedAt == nil:
			return -1
		case b.ResolvedAt == nil:
			return 1
		}
		return a.ResolvedAt.Compare(*b.ResolvedAt)
	case "priority":
		return a.Priority - b.Priority
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "category":
		return strings.Compare(string(a.Category), string(b.Category))
	case "issueType":
		return strings.Compare(string(a.IssueType), string(b.IssueType))
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "description":
		return strings.Compare(a.Description, b.Description)
	case "adminNotes":
		return strings.Compare(a.AdminNotes, b.AdminNotes)
	case "location.address":
		return strings.Compare(a.Location.Address, b.Location.Address)
	case "location.coordinates.latitude":
		return cmp.Compare(a.Location.Coordinates.Latitude, b.Location.Coordinates.Latitude)
	case "location.coordinates.longitude":
		return cmp.Compare(a.Location.Coordinates.Longitude, b.Location.Coordinates.Longitude)
	case "reportedBy.name":
		return strings.Compare(a.ReportedBy.Name, b.ReportedBy.Name)
	case "reportedBy.email":
		return strings.Compare(a.ReportedBy.Email, b.ReportedBy.Email)
	case "votes.upvotes":
		return a.Votes.Upvotes - b.Votes.Upvotes
	case "votes.downvotes":
		return a.Votes.Downvotes - b.Votes.Downvotes
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func cloneReport(r *models.Report) *models.Report {
	c := *r
	c.Images = append(make([]models.Image, 0, len(r.Images)), r.Images...)
	c.Tags = append(make([]string, 0, len(r.Tags)), r.Tags...)
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		c.ResolvedAt = &t
	}
	c.AssignedTo = nil
	return &c
}

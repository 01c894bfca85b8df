package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"citylink/internal/models"
	"citylink/internal/repository"
	"citylink/internal/storage"

	"github.com/rs/zerolog"
)

type ReportInput struct {
	Title       string           `json:"title" validate:"required,max=100"`
	Description string           `json:"description" validate:"required,max=1000"`
	Category    models.Category  `json:"category" validate:"required,category"`
	IssueType   models.IssueType `json:"issueType" validate:"omitempty,issuetype"`
	Location    LocationInput    `json:"location"`
	ReportedBy  ReporterInput    `json:"reportedBy"`
	Tags        []string         `json:"tags"`
}

type LocationInput struct {
	Address     string           `json:"address" validate:"required"`
	Coordinates CoordinatesInput `json:"coordinates"`
}

// CoordinatesInput uses pointers so that 0 stays distinguishable from missing.
type CoordinatesInput struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

type ReporterInput struct {
	Name  string `json:"name" validate:"required,max=50"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty,len=10,number"`
}

func (in *ReportInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = models.Category(strings.TrimSpace(string(in.Category)))
	in.IssueType = models.IssueType(strings.TrimSpace(string(in.IssueType)))
	in.Location.Address = strings.TrimSpace(in.Location.Address)
	in.ReportedBy.Name = strings.TrimSpace(in.ReportedBy.Name)
	in.ReportedBy.Email = strings.ToLower(strings.TrimSpace(in.ReportedBy.Email))
	in.ReportedBy.Phone = strings.TrimSpace(in.ReportedBy.Phone)
	in.Tags = normalizeTags(in.Tags)
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// priorityFor is 5 for categories and issue types that need an urgent
// response, 3 otherwise.
func priorityFor(c models.Category, t models.IssueType) int {
	if c == models.CategoryWaterLeak || c == models.CategoryPublicSafety || t == models.IssueEmergency {
		return models.UrgentPriority
	}
	return models.DefaultPriority
}

type ListParams struct {
	Category  string
	Status    string
	IssueType string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

type SearchParams struct {
	Q        string
	Category string
	Status   string
	Page     int
	Limit    int
}

type ReportPage struct {
	Reports    []models.Report   `json:"reports"`
	Pagination models.Pagination `json:"pagination"`
}

type StatusUpdate struct {
	Status     string `json:"status"`
	AdminNotes string `json:"adminNotes"`
	AssignedTo string `json:"assignedTo"`
}

type CategoryCount struct {
	Category models.Category `json:"category"`
	Count    int64           `json:"count"`
}

type ReportStats struct {
	Overview          models.StatusCounts `json:"overview"`
	CategoryBreakdown []CategoryCount     `json:"categoryBreakdown"`
}

const maxAdminNotes = 500

type ReportService struct {
	reports repository.ReportRepository
	users   repository.UserRepository
	store   storage.Store
	policy  storage.Policy
	now     func() time.Time
}

func NewReportService(reports repository.ReportRepository, users repository.UserRepository, store storage.Store, policy storage.Policy) *ReportService {
	return &ReportService{reports: reports, users: users, store: store, policy: policy, now: time.Now}
}

// Create validates the input and the uploads, stores the images and inserts
// the report. Nothing is persisted when validation fails.
func (s *ReportService) Create(ctx context.Context, in ReportInput, uploads []storage.Upload) (*models.Report, error) {
	in.normalize()
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := s.policy.Check(uploads); err != nil {
		return nil, invalid("images", err.Error())
	}
	if in.IssueType == "" {
		in.IssueType = models.IssueMedium
	}

	images := make([]models.Image, 0, len(uploads))
	for _, u := range uploads {
		img, err := s.store.Save(ctx, u)
		if err != nil {
			s.discard(ctx, images)
			return nil, err
		}
		images = append(images, img)
	}

	now := s.now().UTC()
	rep := &models.Report{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		IssueType:   in.IssueType,
		Status:      models.StatusPending,
		Location: models.Location{
			Address: in.Location.Address,
			Coordinates: models.Coordinates{
				Latitude:  *in.Location.Coordinates.Latitude,
				Longitude: *in.Location.Coordinates.Longitude,
			},
		},
		Images: images,
		ReportedBy: models.Reporter{
			Name:  in.ReportedBy.Name,
			Email: in.ReportedBy.Email,
			Phone: in.ReportedBy.Phone,
		},
		Priority:  priorityFor(in.Category, in.IssueType),
		Tags:      in.Tags,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.reports.Insert(ctx, rep); err != nil {
		s.discard(ctx, images)
		return nil, err
	}
	return rep, nil
}

// discard removes already stored images after a failed create.
func (s *ReportService) discard(ctx context.Context, images []models.Image) {
	for _, img := range images {
		if err := s.store.Delete(ctx, img.Path); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("path", img.Path).Msg("orphaned report image")
		}
	}
}

func (s *ReportService) FindByID(ctx context.Context, id string) (*models.Report, error) {
	rep, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := populateAssignees(ctx, s.users, []*models.Report{rep}); err != nil {
		return nil, err
	}
	return rep, nil
}

// List pages through reports. An empty sortBy means createdAt; an unknown one
// is rejected rather than replaced.
func (s *ReportService) List(ctx context.Context, p ListParams) (*ReportPage, error) {
	if sb := strings.TrimSpace(p.SortBy); sb != "" && !repository.ValidSort(sb) {
		return nil, invalid("sortBy", "Invalid sort field")
	}
	q := repository.ReportQuery{
		Filter: repository.ReportFilter{
			Category:  strings.TrimSpace(p.Category),
			Status:    strings.TrimSpace(p.Status),
			IssueType: strings.TrimSpace(p.IssueType),
		},
		Sort: repository.SanitizeSort(p.SortBy, "createdAt"),
		Desc: repository.SanitizeOrder(p.SortOrder),
	}
	return s.page(ctx, q, p.Page, p.Limit)
}

// Search matches q literally and case-insensitively against title,
// description and address, newest first.
func (s *ReportService) Search(ctx context.Context, p SearchParams) (*ReportPage, error) {
	q := strings.TrimSpace(p.Q)
	if q == "" {
		return nil, fail(ErrBadRequest, "Search query is required")
	}
	return s.page(ctx, repository.ReportQuery{
		Filter: repository.ReportFilter{
			Category: strings.TrimSpace(p.Category),
			Status:   strings.TrimSpace(p.Status),
			Q:        q,
		},
		Sort: "createdAt",
		Desc: true,
	}, p.Page, p.Limit)
}

func (s *ReportService) page(ctx context.Context, q repository.ReportQuery, page, limit int) (*ReportPage, error) {
	page, limit = models.NormalizePage(page, limit)
	q.Limit = limit
	q.Offset = models.Offset(page, limit)

	total, err := s.reports.Count(ctx, q.Filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.reports.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := populateAll(ctx, s.users, rows); err != nil {
		return nil, err
	}
	return &ReportPage{Reports: rows, Pagination: models.NewPagination(page, limit, total)}, nil
}

// ByCategory returns the newest reports of one category. A category no report
// can carry simply matches nothing.
func (s *ReportService) ByCategory(ctx context.Context, category string, limit int) ([]models.Report, error) {
	c := models.Category(strings.TrimSpace(category))
	if !c.Valid() {
		return []models.Report{}, nil
	}
	_, limit = models.NormalizePage(1, limit)
	rows, err := s.reports.Find(ctx, repository.ReportQuery{
		Filter: repository.ReportFilter{Category: string(c)},
		Sort:   "createdAt",
		Desc:   true,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	if err := populateAll(ctx, s.users, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatus moves a report to a new status. Notes and assignee are only
// applied when non-empty; every move into resolved stamps resolvedAt.
func (s *ReportService) UpdateStatus(ctx context.Context, id string, in StatusUpdate) (*models.Report, error) {
	status := models.Status(strings.TrimSpace(in.Status))
	if !status.Valid() {
		return nil, fail(ErrBadRequest, "Invalid status value")
	}
	notes := strings.TrimSpace(in.AdminNotes)
	if len([]rune(notes)) > maxAdminNotes {
		return nil, invalid("adminNotes", "adminNotes cannot exceed 500 characters")
	}

	rep, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	patch := models.ReportPatch{Status: &status, UpdatedAt: now}
	if notes != "" {
		patch.AdminNotes = &notes
	}
	if assignee := strings.TrimSpace(in.AssignedTo); assignee != "" {
		if _, err := s.user(ctx, assignee); err != nil {
			return nil, err
		}
		patch.AssignedToID = &assignee
	}
	if status == models.StatusResolved {
		patch.ResolvedAt = &now
	}
	return s.apply(ctx, rep, patch)
}

// Assign sets the assignee; a pending report moves to in_progress.
func (s *ReportService) Assign(ctx context.Context, reportID, userID string) (*models.Report, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fail(ErrBadRequest, "userId is required")
	}
	if _, err := s.user(ctx, userID); err != nil {
		return nil, err
	}
	rep, err := s.get(ctx, reportID)
	if err != nil {
		return nil, err
	}

	patch := models.ReportPatch{AssignedToID: &userID, UpdatedAt: s.now().UTC()}
	if rep.Status == models.StatusPending {
		next := models.StatusInProgress
		patch.Status = &next
	}
	return s.apply(ctx, rep, patch)
}

func (s *ReportService) Stats(ctx context.Context) (*ReportStats, error) {
	counts, err := s.reports.StatusCounts(ctx, nil)
	if err != nil {
		return nil, err
	}
	cats, err := s.reports.CategoryBreakdown(ctx)
	if err != nil {
		return nil, err
	}
	out := &ReportStats{Overview: counts, CategoryBreakdown: make([]CategoryCount, 0, len(cats))}
	for _, c := range cats {
		out.CategoryBreakdown = append(out.CategoryBreakdown, CategoryCount{Category: c.Category, Count: c.Count})
	}
	return out, nil
}

func (s *ReportService) apply(ctx context.Context, rep *models.Report, patch models.ReportPatch) (*models.Report, error) {
	updated, err := s.reports.Update(ctx, rep.ID, rep.Version, patch)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, fail(ErrNotFound, "Report not found")
	case errors.Is(err, repository.ErrVersionConflict):
		return nil, fail(ErrConflict, "Report was modified by another request, retry")
	case err != nil:
		return nil, err
	}
	if err := populateAssignees(ctx, s.users, []*models.Report{updated}); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *ReportService) get(ctx context.Context, id string) (*models.Report, error) {
	rep, err := s.reports.FindByID(ctx, strings.TrimSpace(id))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrNotFound, "Report not found")
	}
	return rep, err
}

func (s *ReportService) user(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrNotFound, "User not found")
	}
	return u, err
}

// populateAssignees resolves AssignedToID into the {id, name, email}
// projection. Dangling references render as null.
func populateAssignees(ctx context.Context, users repository.UserRepository, reports []*models.Report) error {
	var ids []string
	for _, r := range reports {
		if r.AssignedToID != "" {
			ids = append(ids, r.AssignedToID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	found, err := users.GetMany(ctx, ids)
	if err != nil {
		return err
	}
	for _, r := range reports {
		if u, ok := found[r.AssignedToID]; ok {
			r.AssignedTo = u.Ref()
		}
	}
	return nil
}

func populateAll(ctx context.Context, users repository.UserRepository, rows []models.Report) error {
	ptrs := make([]*models.Report, len(rows))
	for i := range rows {
		ptrs[i] = &rows[i]
	}
	return populateAssignees(ctx, users, ptrs)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"citylink/internal/models"
	"citylink/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// fakeRow hands back fixed column values; a nil value leaves the destination untouched,
// which is how pgx treats NULL for pointer and slice targets.
type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(r.vals))
	}
	for i, v := range r.vals {
		if v == nil {
			continue
		}
		d := reflect.ValueOf(dest[i]).Elem()
		val := reflect.ValueOf(v)
		if !val.Type().AssignableTo(d.Type()) {
			return fmt.Errorf("scan: column %d is %s, destination %s", i, val.Type(), d.Type())
		}
		d.Set(val)
	}
	return nil
}

type stmt struct {
	sql  string
	args []any
}

// fakeDB answers QueryRow calls in order and records what was sent.
type fakeDB struct {
	rows []pgx.Row
	sent []stmt
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.sent = append(f.sent, stmt{sql: sql, args: args})
	if len(f.rows) == 0 {
		return fakeRow{err: errors.New("no row scripted")}
	}
	row := f.rows[0]
	f.rows = f.rows[1:]
	return row
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.sent = append(f.sent, stmt{sql: sql, args: args})
	return nil, errors.New("no rows scripted")
}

// columns lays out r in reportColumns order.
func columns(r models.Report) []any {
	var images, tags, resolved any
	if r.Images != nil {
		images = r.Images
	}
	if r.Tags != nil {
		tags = r.Tags
	}
	if r.ResolvedAt != nil {
		resolved = r.ResolvedAt
	}
	return []any{
		r.ID, r.Title, r.Description, string(r.Category), string(r.IssueType), string(r.Status),
		r.Location.Address, r.Location.Coordinates.Latitude, r.Location.Coordinates.Longitude,
		images, r.ReportedBy,
		r.AssignedToID, r.AdminNotes, resolved, r.Priority, tags,
		r.Votes.Upvotes, r.Votes.Downvotes, r.Version, r.CreatedAt, r.UpdatedAt,
	}
}

func stored() models.Report {
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	return models.Report{
		ID:          uuid.NewString(),
		Title:       "Pothole on Rustaveli",
		Description: "Deep pothole in the right lane",
		Category:    models.CategoryPothole,
		IssueType:   models.IssueMedium,
		Status:      models.StatusPending,
		Location: models.Location{
			Address:     "Rustaveli Ave 10",
			Coordinates: models.Coordinates{Latitude: 41.69, Longitude: 44.8},
		},
		Images:     []models.Image{{Filename: "p.png", OriginalName: "hole.png", Path: "/uploads/p.png", Size: 10, UploadedAt: created}},
		ReportedBy: models.Reporter{Name: "Giorgi", Email: "g@example.com"},
		Priority:   models.DefaultPriority,
		Tags:       []string{"road"},
		Votes:      models.Votes{Upvotes: 2},
		Version:    1,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func TestScanReport(t *testing.T) {
	want := stored()
	got, err := scanReport(fakeRow{vals: columns(want)})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(*got, want) {
		t.Fatalf("scan mismatch:\n got %+v\nwant %+v", *got, want)
	}
}

func TestScanReportNulls(t *testing.T) {
	r := stored()
	r.Images, r.Tags = nil, nil
	got, err := scanReport(fakeRow{vals: columns(r)})
	if err != nil {
		t.Fatal(err)
	}
	if got.Images == nil || len(got.Images) != 0 || got.Tags == nil || len(got.Tags) != 0 {
		t.Fatalf("images=%#v tags=%#v", got.Images, got.Tags)
	}
	if got.ResolvedAt != nil {
		t.Fatalf("resolvedAt = %v", got.ResolvedAt)
	}

	if _, err := scanReport(fakeRow{err: pgx.ErrNoRows}); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("err = %v", err)
	}
}

func TestReportRepoFindByID(t *testing.T) {
	db := &fakeDB{rows: []pgx.Row{fakeRow{err: pgx.ErrNoRows}}}
	repo := &ReportRepo{db: db}
	if _, err := repo.FindByID(context.Background(), uuid.NewString()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}

	db = &fakeDB{}
	repo = &ReportRepo{db: db}
	if _, err := repo.FindByID(context.Background(), "42"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if len(db.sent) != 0 {
		t.Fatalf("malformed id reached the database: %+v", db.sent)
	}
}

func TestReportRepoUpdate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	t.Run("applied", func(t *testing.T) {
		after := stored()
		after.Status = models.StatusResolved
		after.ResolvedAt = &now
		after.Version = 2
		db := &fakeDB{rows: []pgx.Row{fakeRow{vals: columns(after)}}}
		repo := &ReportRepo{db: db}

		status := models.StatusResolved
		got, err := repo.Update(ctx, after.ID, 1, models.ReportPatch{Status: &status, ResolvedAt: &now, UpdatedAt: now})
		if err != nil {
			t.Fatal(err)
		}
		if got.Version != 2 || got.Status != models.StatusResolved || !got.ResolvedAt.Equal(now) {
			t.Fatalf("report = %+v", got)
		}
		if len(db.sent) != 1 {
			t.Fatalf("statements = %d", len(db.sent))
		}
		args := db.sent[0].args
		if args[0] != after.ID || args[1] != int64(1) {
			t.Fatalf("id/version args = %v %v", args[0], args[1])
		}
		if s, _ := args[2].(*string); s == nil || *s != "resolved" {
			t.Fatalf("status arg = %v", args[2])
		}
		if !strings.Contains(db.sent[0].sql, "r.version = $2") {
			t.Fatalf("update is not version guarded: %s", db.sent[0].sql)
		}
	})

	t.Run("partial patch leaves columns alone", func(t *testing.T) {
		after := stored()
		after.AdminNotes = "queued"
		db := &fakeDB{rows: []pgx.Row{fakeRow{vals: columns(after)}}}
		repo := &ReportRepo{db: db}

		notes := "queued"
		if _, err := repo.Update(ctx, after.ID, 1, models.ReportPatch{AdminNotes: &notes, UpdatedAt: now}); err != nil {
			t.Fatal(err)
		}
		args := db.sent[0].args
		if s, _ := args[2].(*string); s != nil {
			t.Fatalf("status arg = %v", *s)
		}
		if n, _ := args[3].(*string); n == nil || *n != "queued" {
			t.Fatalf("notes arg = %v", args[3])
		}
		if a, _ := args[4].(*string); a != nil {
			t.Fatalf("assignee arg = %v", *a)
		}
		if at, _ := args[5].(*time.Time); at != nil {
			t.Fatalf("resolvedAt arg = %v", at)
		}
		if !strings.Contains(db.sent[0].sql, "COALESCE($3, r.status)") {
			t.Fatalf("status is not kept on nil: %s", db.sent[0].sql)
		}
	})

	t.Run("missing report", func(t *testing.T) {
		db := &fakeDB{rows: []pgx.Row{fakeRow{err: pgx.ErrNoRows}, fakeRow{vals: []any{false}}}}
		repo := &ReportRepo{db: db}
		_, err := repo.Update(ctx, uuid.NewString(), 1, models.ReportPatch{UpdatedAt: now})
		if !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
		if len(db.sent) != 2 || !strings.Contains(db.sent[1].sql, "EXISTS") {
			t.Fatalf("statements = %+v", db.sent)
		}
	})

	t.Run("stale version", func(t *testing.T) {
		db := &fakeDB{rows: []pgx.Row{fakeRow{err: pgx.ErrNoRows}, fakeRow{vals: []any{true}}}}
		repo := &ReportRepo{db: db}
		_, err := repo.Update(ctx, uuid.NewString(), 1, models.ReportPatch{UpdatedAt: now})
		if !errors.Is(err, repository.ErrVersionConflict) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("database error", func(t *testing.T) {
		boom := errors.New("connection reset")
		db := &fakeDB{rows: []pgx.Row{fakeRow{err: boom}}}
		repo := &ReportRepo{db: db}
		if _, err := repo.Update(ctx, uuid.NewString(), 1, models.ReportPatch{UpdatedAt: now}); !errors.Is(err, boom) {
			t.Fatalf("err = %v", err)
		}
		if len(db.sent) != 1 {
			t.Fatalf("fallback ran after a driver error: %+v", db.sent)
		}
	})

	t.Run("malformed ids", func(t *testing.T) {
		db := &fakeDB{}
		repo := &ReportRepo{db: db}
		if _, err := repo.Update(ctx, "abc", 1, models.ReportPatch{UpdatedAt: now}); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("report id err = %v", err)
		}
		who := "abc"
		if _, err := repo.Update(ctx, uuid.NewString(), 1, models.ReportPatch{AssignedToID: &who, UpdatedAt: now}); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("assignee err = %v", err)
		}
		if len(db.sent) != 0 {
			t.Fatalf("statements = %+v", db.sent)
		}
	})
}

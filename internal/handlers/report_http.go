package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"citylink/internal/models"
	"citylink/internal/service"
	"citylink/internal/storage"
	"citylink/internal/utils"

	"github.com/go-chi/chi/v5"
)

const multipartMemory = 8 << 20

type ReportsHTTP struct {
	svc    *service.ReportService
	policy storage.Policy
}

func NewReportsHTTP(s *service.ReportService, policy storage.Policy) *ReportsHTTP {
	return &ReportsHTTP{svc: s, policy: policy}
}

// POST /api/reports (application/json or multipart/form-data)
func (h *ReportsHTTP) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			in      service.ReportInput
			uploads []storage.Upload
		)
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			// room for every allowed file plus the text fields
			limit := int64(h.policy.MaxFiles)*h.policy.MaxBytes + 1<<20
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			if err := r.ParseMultipartForm(multipartMemory); err != nil {
				utils.Error(w, http.StatusBadRequest, "invalid multipart form")
				return
			}
			defer func() { _ = r.MultipartForm.RemoveAll() }()

			var ferrs []service.FieldError
			in, ferrs = reportFromForm(r.MultipartForm)
			if len(ferrs) > 0 {
				writeError(w, r, &service.ValidationError{Fields: ferrs})
				return
			}
			uploads = uploadsFromForm(r.MultipartForm)
		} else if err := decodeJSON(r, &in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}

		rep, err := h.svc.Create(r.Context(), in, uploads)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.Success(w, http.StatusCreated, "Report submitted successfully", map[string]any{"report": rep})
	}
}

// GET /api/reports?page=&limit=&category=&status=&issueType=&sortBy=&sortOrder=
func (h *ReportsHTTP) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qv := r.URL.Query()
		page, err := h.svc.List(r.Context(), service.ListParams{
			Category:  qv.Get("category"),
			Status:    qv.Get("status"),
			IssueType: qv.Get("issueType"),
			SortBy:    qv.Get("sortBy"),
			SortOrder: qv.Get("sortOrder"),
			Page:      utils.QueryInt(qv, "page", 1),
			Limit:     utils.QueryInt(qv, "limit", 10),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.Success(w, http.StatusOK, "", page)
	}
}

// GET /api/reports/{id}
func (h *ReportsHTTP) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := h.svc.FindByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.Success(w, http.StatusOK, "", map[string]any{"report": rep})
	}
}

// GET /api/reports/category/{category}?limit=
func (h *ReportsHTTP) ByCategory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := chi.URLParam(r, "category")
		rows, err := h.svc.ByCategory(r.Context(), category, utils.QueryInt(r.URL.Query(), "limit", 10))
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.Success(w, http.StatusOK, "", map[string]any{
			"category": category,
			"reports":  rows,
			"count":    len(rows),
		})
	}
}

// GET /api/reports/stats
func (h *ReportsHTTP) Stats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := h.svc.Stats(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.Success(w, http.StatusOK, "", st)
	}
}

// GET /api/reports/search?q=&category=&status=&page=&limit=
func (h *ReportsHTTP) Search() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qv := r.URL.Query()
		q := qv.Get("q")
		page, err := h.svc.Search(r.Context(), service.SearchParams{
			Q:        q,
			Category: qv.Get("category"),
			Status:   qv.Get("status"),
			Page:     utils.QueryInt(qv, "page", 1),
			Limit:    utils.QueryInt(qv, "limit", 10),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.Success(w, http.StatusOK, "", map[string]any{
			"query":        strings.TrimSpace(q),
			"reports":      page.Reports,
			"totalResults": page.Pagination.TotalItems,
			"pagination":   page.Pagination,
		})
	}
}

// formValue returns the first non-empty value among the bracketed and dotted
// spellings of a field.
func formValue(f *multipart.Form, keys ...string) string {
	for _, k := range keys {
		if vs := f.Value[k]; len(vs) > 0 && vs[0] != "" {
			return vs[0]
		}
	}
	return ""
}

func formFloat(f *multipart.Form, field string, keys ...string) (*float64, *service.FieldError) {
	s := strings.TrimSpace(formValue(f, keys...))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, &service.FieldError{Field: field, Message: "Invalid " + field[strings.LastIndexByte(field, '.')+1:]}
	}
	return &v, nil
}

func reportFromForm(f *multipart.Form) (service.ReportInput, []service.FieldError) {
	in := service.ReportInput{
		Title:       formValue(f, "title"),
		Description: formValue(f, "description"),
	}
	in.Category = models.Category(formValue(f, "category"))
	in.IssueType = models.IssueType(formValue(f, "issueType"))
	in.Location.Address = formValue(f, "location[address]", "location.address")
	in.ReportedBy.Name = formValue(f, "reportedBy[name]", "reportedBy.name")
	in.ReportedBy.Email = formValue(f, "reportedBy[email]", "reportedBy.email")
	in.ReportedBy.Phone = formValue(f, "reportedBy[phone]", "reportedBy.phone")

	var ferrs []service.FieldError
	lat, fe := formFloat(f, "location.coordinates.latitude",
		"location[coordinates][latitude]", "location.coordinates.latitude")
	if fe != nil {
		ferrs = append(ferrs, *fe)
	}
	lng, fe := formFloat(f, "location.coordinates.longitude",
		"location[coordinates][longitude]", "location.coordinates.longitude")
	if fe != nil {
		ferrs = append(ferrs, *fe)
	}
	in.Location.Coordinates.Latitude, in.Location.Coordinates.Longitude = lat, lng

	for _, key := range []string{"tags", "tags[]"} {
		for _, v := range f.Value[key] {
			in.Tags = append(in.Tags, strings.Split(v, ",")...)
		}
	}
	return in, ferrs
}

func uploadsFromForm(f *multipart.Form) []storage.Upload {
	files := f.File["images"]
	out := make([]storage.Upload, 0, len(files))
	for _, fh := range files {
		out = append(out, storage.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open:        func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return out
}

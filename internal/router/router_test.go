package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"citylink/internal/config"
	"citylink/internal/models"
	"citylink/internal/repository/memory"
	"citylink/internal/service"
	"citylink/internal/storage"
	"citylink/internal/utils"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	utils.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type app struct {
	h     http.Handler
	auth  *service.AuthService
	users *memory.UserRepo
	dir   string
}

func newApp(t *testing.T) *app {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	reports, users := memory.NewReportRepo(), memory.NewUserRepo()
	tokens := utils.NewTokens("test-secret", time.Hour, 24*time.Hour)
	policy := storage.DefaultPolicy()
	auth := service.NewAuthService(users, tokens)

	h := New(Deps{
		Log:       zerolog.Nop(),
		Config:    config.Config{Origins: []string{"*"}},
		Tokens:    tokens,
		Accounts:  users,
		Reports:   service.NewReportService(reports, users, store, policy),
		Analytics: service.NewAnalyticsService(reports, users),
		Auth:      auth,
		Users:     service.NewUserService(users),
		Policy:    policy,
		UploadDir: dir,
	})
	return &app{h: h, auth: auth, users: users, dir: dir}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (a *app) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.serve(t, req)
}

func (a *app) serve(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: bad body %q: %v", req.Method, req.URL.Path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func (a *app) admin(t *testing.T) (string, *models.User) {
	t.Helper()
	u, err := a.auth.EnsureAdmin(context.Background(), "admin@example.com", "secret123", "Admin")
	if err != nil {
		t.Fatal(err)
	}
	res, err := a.auth.Login(context.Background(), "admin@example.com", "secret123")
	if err != nil {
		t.Fatal(err)
	}
	return res.AccessToken, u
}

func (a *app) citizen(t *testing.T, email string) (string, *models.User) {
	t.Helper()
	res, err := a.auth.Register(context.Background(), service.RegisterInput{
		Name: "Citizen", Email: email, Password: "secret123",
	})
	if err != nil {
		t.Fatal(err)
	}
	return res.AccessToken, res.User
}

func reportBody() map[string]any {
	return map[string]any{
		"title":       "Broken streetlight",
		"description": "Dark corner near the school",
		"category":    "streetlight",
		"location": map[string]any{
			"address":     "5 School Rd",
			"coordinates": map[string]any{"latitude": 51.5, "longitude": -0.12},
		},
		"reportedBy": map[string]any{"name": "Ann", "email": "ann@example.com"},
	}
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

type reportData struct {
	Report models.Report `json:"report"`
}

func createReport(t *testing.T, a *app) models.Report {
	t.Helper()
	code, env := a.do(t, http.MethodPost, "/api/reports", "", reportBody())
	if code != http.StatusCreated {
		t.Fatalf("create: %d %+v", code, env)
	}
	return decode[reportData](t, env.Data).Report
}

func TestCreateReportDefaults(t *testing.T) {
	a := newApp(t)
	rep := createReport(t, a)

	if rep.Status != models.StatusPending || rep.Priority != models.DefaultPriority {
		t.Fatalf("got status %q priority %d", rep.Status, rep.Priority)
	}
	if rep.IssueType != models.IssueMedium {
		t.Fatalf("issueType = %q, want medium", rep.IssueType)
	}

	code, env := a.do(t, http.MethodGet, "/api/reports/"+rep.ID, "", nil)
	if code != http.StatusOK {
		t.Fatalf("get: %d", code)
	}
	if got := decode[reportData](t, env.Data).Report; got.ID != rep.ID {
		t.Fatalf("got id %q", got.ID)
	}
}

func TestCreateReportValidation(t *testing.T) {
	a := newApp(t)
	body := reportBody()
	body["category"] = "volcano"
	delete(body, "title")

	code, env := a.do(t, http.MethodPost, "/api/reports", "", body)
	if code != http.StatusBadRequest || env.Success {
		t.Fatalf("got %d %+v", code, env)
	}
	fields := map[string]bool{}
	for _, e := range env.Errors {
		fields[e.Field] = true
	}
	if !fields["title"] || !fields["category"] {
		t.Fatalf("errors = %+v", env.Errors)
	}
}

func multipartReport(t *testing.T, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"title":                            "Overflowing bins",
		"description":                      "Bins not collected for a week",
		"category":                         "waste_management",
		"issueType":                        "high",
		"location[address]":                "9 Market Sq",
		"location[coordinates][latitude]":  "40.7",
		"location[coordinates][longitude]": "-74.0",
		"reportedBy[name]":                 "Bo",
		"reportedBy[email]":                "bo@example.com",
		"tags":                             "bins, smell",
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="images"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/reports", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestCreateReportMultipart(t *testing.T) {
	a := newApp(t)

	code, env := a.serve(t, multipartReport(t, "bin.png", "image/png", []byte("\x89PNG")))
	if code != http.StatusCreated {
		t.Fatalf("got %d %+v", code, env)
	}
	rep := decode[reportData](t, env.Data).Report
	if rep.IssueType != models.IssueHigh || rep.Location.Coordinates.Latitude != 40.7 {
		t.Fatalf("got %+v", rep)
	}
	if len(rep.Images) != 1 || rep.Images[0].OriginalName != "bin.png" {
		t.Fatalf("images = %+v", rep.Images)
	}
	if len(rep.Tags) != 2 || rep.Tags[0] != "bins" || rep.Tags[1] != "smell" {
		t.Fatalf("tags = %v", rep.Tags)
	}

	// the stored image is served back under /uploads/
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, rep.Images[0].Path, nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "\x89PNG" {
		t.Fatalf("serve upload: %d %q", rec.Code, rec.Body.String())
	}
}

func TestCreateReportRejectsNonImage(t *testing.T) {
	a := newApp(t)

	code, env := a.serve(t, multipartReport(t, "notes.txt", "text/plain", []byte("hello")))
	if code != http.StatusBadRequest || len(env.Errors) != 1 || env.Errors[0].Field != "images" {
		t.Fatalf("got %d %+v", code, env)
	}
	entries, _ := os.ReadDir(a.dir)
	if len(entries) != 0 {
		t.Fatalf("upload dir not empty: %d files", len(entries))
	}
}

func TestGetUnknownReport(t *testing.T) {
	a := newApp(t)
	for _, id := range []string{"64b7f0c2a1b2c3d4e5f60718", "not-an-id"} {
		if code, _ := a.do(t, http.MethodGet, "/api/reports/"+id, "", nil); code != http.StatusNotFound {
			t.Fatalf("%s: got %d", id, code)
		}
	}
}

func TestSearch(t *testing.T) {
	a := newApp(t)
	createReport(t, a)

	if code, env := a.do(t, http.MethodGet, "/api/reports/search?q=%20%20", "", nil); code != http.StatusBadRequest {
		t.Fatalf("blank q: %d %+v", code, env)
	}

	code, env := a.do(t, http.MethodGet, "/api/reports/search?q=STREETLIGHT", "", nil)
	if code != http.StatusOK {
		t.Fatalf("search: %d", code)
	}
	got := decode[struct {
		Query        string `json:"query"`
		TotalResults int64  `json:"totalResults"`
	}](t, env.Data)
	if got.Query != "STREETLIGHT" || got.TotalResults != 1 {
		t.Fatalf("got %+v", got)
	}
}

func TestListAndCategory(t *testing.T) {
	a := newApp(t)
	createReport(t, a)
	createReport(t, a)

	code, env := a.do(t, http.MethodGet, "/api/reports?limit=1", "", nil)
	if code != http.StatusOK {
		t.Fatalf("list: %d", code)
	}
	page := decode[service.ReportPage](t, env.Data)
	if len(page.Reports) != 1 || page.Pagination.TotalItems != 2 || !page.Pagination.HasNextPage {
		t.Fatalf("page = %+v", page.Pagination)
	}

	code, env = a.do(t, http.MethodGet, "/api/reports/category/streetlight", "", nil)
	if code != http.StatusOK {
		t.Fatalf("category: %d", code)
	}
	if got := decode[struct {
		Count int `json:"count"`
	}](t, env.Data); got.Count != 2 {
		t.Fatalf("count = %d", got.Count)
	}

	code, env = a.do(t, http.MethodGet, "/api/reports/category/volcano", "", nil)
	if code != http.StatusOK {
		t.Fatalf("unknown category: %d", code)
	}
	if got := decode[struct {
		Count int `json:"count"`
	}](t, env.Data); got.Count != 0 {
		t.Fatalf("unknown category count = %d", got.Count)
	}

	if code, _ := a.do(t, http.MethodGet, "/api/reports?sortBy=password", "", nil); code != http.StatusBadRequest {
		t.Fatalf("unknown sortBy: %d", code)
	}
	if code, _ := a.do(t, http.MethodGet, "/api/reports?sortBy=votes.upvotes&sortOrder=asc", "", nil); code != http.StatusOK {
		t.Fatalf("nested sortBy: %d", code)
	}
}

func TestAdminGuards(t *testing.T) {
	a := newApp(t)
	rep := createReport(t, a)
	citizen, _ := a.citizen(t, "cit@example.com")
	body := map[string]any{"status": "in_progress"}
	path := "/api/admin/reports/" + rep.ID + "/status"

	if code, _ := a.do(t, http.MethodPut, path, "", body); code != http.StatusUnauthorized {
		t.Fatalf("anonymous: %d", code)
	}
	if code, _ := a.do(t, http.MethodPut, path, citizen, body); code != http.StatusForbidden {
		t.Fatalf("citizen: %d", code)
	}

	admin, _ := a.admin(t)
	code, env := a.do(t, http.MethodPut, path, admin, body)
	if code != http.StatusOK {
		t.Fatalf("admin: %d %+v", code, env)
	}
	if got := decode[reportData](t, env.Data).Report; got.Status != models.StatusInProgress {
		t.Fatalf("status = %q", got.Status)
	}
}

func TestResolveAndAssign(t *testing.T) {
	a := newApp(t)
	rep := createReport(t, a)
	admin, adminUser := a.admin(t)

	code, env := a.do(t, http.MethodPut, "/api/admin/reports/"+rep.ID+"/status", admin,
		map[string]any{"status": "resolved", "adminNotes": "fixed"})
	if code != http.StatusOK {
		t.Fatalf("resolve: %d %+v", code, env)
	}
	got := decode[reportData](t, env.Data).Report
	if got.ResolvedAt == nil || got.AdminNotes != "fixed" {
		t.Fatalf("got %+v", got)
	}

	code, env = a.do(t, http.MethodPut, "/api/admin/reports/"+rep.ID+"/assign", admin,
		map[string]any{"userId": adminUser.ID})
	if code != http.StatusOK {
		t.Fatalf("assign: %d %+v", code, env)
	}
	got = decode[reportData](t, env.Data).Report
	if got.AssignedTo == nil || got.AssignedTo.Email != "admin@example.com" {
		t.Fatalf("assignedTo = %+v", got.AssignedTo)
	}

	code, _ = a.do(t, http.MethodPut, "/api/admin/reports/"+rep.ID+"/assign", admin,
		map[string]any{"userId": "missing"})
	if code != http.StatusNotFound {
		t.Fatalf("assign unknown user: %d", code)
	}
}

func TestAdminUserStatus(t *testing.T) {
	a := newApp(t)
	admin, adminUser := a.admin(t)
	_, cu := a.citizen(t, "cit@example.com")

	code, env := a.do(t, http.MethodPut, "/api/admin/users/"+adminUser.ID+"/status", admin,
		map[string]any{"isActive": false})
	if code != http.StatusBadRequest || !strings.Contains(env.Message, "own account") {
		t.Fatalf("self deactivate: %d %+v", code, env)
	}

	code, _ = a.do(t, http.MethodPut, "/api/admin/users/"+cu.ID+"/status", admin,
		map[string]any{"isActive": "no"})
	if code != http.StatusBadRequest {
		t.Fatalf("non-boolean: %d", code)
	}

	code, env = a.do(t, http.MethodPut, "/api/admin/users/"+cu.ID+"/status", admin,
		map[string]any{"isActive": false})
	if code != http.StatusOK || env.Message != "User deactivated successfully" {
		t.Fatalf("deactivate: %d %+v", code, env)
	}

	// a deactivated account can no longer log in
	code, _ = a.do(t, http.MethodPost, "/api/auth/login", "",
		map[string]any{"email": "cit@example.com", "password": "secret123"})
	if code != http.StatusForbidden {
		t.Fatalf("login deactivated: %d", code)
	}
}

func TestAuthFlow(t *testing.T) {
	a := newApp(t)
	reg := map[string]any{"name": "Cy", "email": "Cy@Example.com", "password": "secret123"}

	code, env := a.do(t, http.MethodPost, "/api/auth/register", "", reg)
	if code != http.StatusCreated {
		t.Fatalf("register: %d %+v", code, env)
	}
	res := decode[service.AuthResult](t, env.Data)
	if res.User.Email != "cy@example.com" || res.User.Role != models.RoleCitizen || res.AccessToken == "" {
		t.Fatalf("register result = %+v", res)
	}

	if code, _ := a.do(t, http.MethodPost, "/api/auth/register", "", reg); code != http.StatusConflict {
		t.Fatalf("duplicate register: %d", code)
	}

	code, _ = a.do(t, http.MethodPost, "/api/auth/login", "",
		map[string]any{"email": "cy@example.com", "password": "wrong"})
	if code != http.StatusUnauthorized {
		t.Fatalf("bad password: %d", code)
	}

	code, env = a.do(t, http.MethodGet, "/api/auth/profile", res.AccessToken, nil)
	if code != http.StatusOK {
		t.Fatalf("profile: %d", code)
	}

	code, env = a.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]any{"refreshToken": res.RefreshToken})
	if code != http.StatusOK {
		t.Fatalf("refresh: %d %+v", code, env)
	}
	if code, _ := a.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]any{"refreshToken": res.AccessToken}); code != http.StatusUnauthorized {
		t.Fatalf("refresh with access token: %d", code)
	}

	code, env = a.do(t, http.MethodPut, "/api/auth/change-password", res.AccessToken,
		map[string]any{"currentPassword": "secret123", "newPassword": "newsecret"})
	if code != http.StatusOK {
		t.Fatalf("change password: %d %+v", code, env)
	}
	code, _ = a.do(t, http.MethodPost, "/api/auth/login", "",
		map[string]any{"email": "cy@example.com", "password": "newsecret"})
	if code != http.StatusOK {
		t.Fatalf("login with new password: %d", code)
	}
}

func TestUserSelfOrAdmin(t *testing.T) {
	a := newApp(t)
	admin, _ := a.admin(t)
	citizen, cu := a.citizen(t, "one@example.com")
	_, other := a.citizen(t, "two@example.com")

	if code, _ := a.do(t, http.MethodGet, "/api/users/"+cu.ID, citizen, nil); code != http.StatusOK {
		t.Fatalf("self: %d", code)
	}
	if code, _ := a.do(t, http.MethodGet, "/api/users/"+other.ID, citizen, nil); code != http.StatusForbidden {
		t.Fatalf("other: %d", code)
	}
	if code, _ := a.do(t, http.MethodGet, "/api/users/"+other.ID, admin, nil); code != http.StatusOK {
		t.Fatalf("admin: %d", code)
	}
}

func TestDashboardAndAnalytics(t *testing.T) {
	a := newApp(t)
	createReport(t, a)
	admin, _ := a.admin(t)

	code, env := a.do(t, http.MethodGet, "/api/admin/dashboard/stats", admin, nil)
	if code != http.StatusOK {
		t.Fatalf("dashboard: %d", code)
	}
	d := decode[service.Dashboard](t, env.Data)
	if d.Overview.TotalReports != 1 || d.Overview.PendingReports != 1 {
		t.Fatalf("overview = %+v", d.Overview)
	}

	code, env = a.do(t, http.MethodGet, "/api/admin/analytics?timeframe=bogus", admin, nil)
	if code != http.StatusOK {
		t.Fatalf("analytics: %d", code)
	}
	if got := decode[service.Analytics](t, env.Data); got.Timeframe != "7d" {
		t.Fatalf("timeframe = %q", got.Timeframe)
	}
}

func TestHealthAndNotFound(t *testing.T) {
	a := newApp(t)
	for _, p := range []string{"/healthz", "/api/health"} {
		if code, env := a.do(t, http.MethodGet, p, "", nil); code != http.StatusOK || !env.Success {
			t.Fatalf("%s: %d", p, code)
		}
	}
	if code, _ := a.do(t, http.MethodGet, "/api/nope", "", nil); code != http.StatusNotFound {
		t.Fatalf("unknown route: %d", code)
	}
}

func TestDeactivatedAdminLosesAccess(t *testing.T) {
	a := newApp(t)
	admin, _ := a.admin(t)

	_, second := a.citizen(t, "second@example.com")
	if _, err := a.users.SetRole(context.Background(), second.ID, models.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	res, err := a.auth.Login(context.Background(), "second@example.com", "secret123")
	if err != nil {
		t.Fatal(err)
	}
	secondTok := res.AccessToken
	if code, _ := a.do(t, http.MethodGet, "/api/admin/users", secondTok, nil); code != http.StatusOK {
		t.Fatalf("second admin before deactivation: %d", code)
	}

	path := "/api/admin/users/" + second.ID + "/status"
	if code, _ := a.do(t, http.MethodPut, path, admin, map[string]any{"isActive": false}); code != http.StatusOK {
		t.Fatalf("deactivate: %d", code)
	}

	if code, _ := a.do(t, http.MethodGet, "/api/admin/users", secondTok, nil); code != http.StatusUnauthorized {
		t.Fatalf("list users with old token: %d", code)
	}
	if code, _ := a.do(t, http.MethodPut, path, secondTok, map[string]any{"isActive": true}); code != http.StatusUnauthorized {
		t.Fatalf("self reactivation with old token: %d", code)
	}
	if code, _ := a.do(t, http.MethodGet, "/api/auth/profile", secondTok, nil); code != http.StatusUnauthorized {
		t.Fatalf("profile with old token: %d", code)
	}
	u, err := a.users.GetByID(context.Background(), second.ID)
	if err != nil || u.Active {
		t.Fatalf("account reactivated: %+v %v", u, err)
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/artpar/keyhours/internal/core/auth"
	"github.com/artpar/keyhours/internal/core/domain"
	"github.com/artpar/keyhours/internal/shell/api/middleware"
	"github.com/artpar/keyhours/internal/shell/metrics"
	"github.com/artpar/keyhours/internal/shell/store"
	"github.com/artpar/keyhours/internal/shell/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Test Helpers
// =============================================================================

const testSecret = "0123456789abcdef0123456789abcdef"

var testNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

type testServer struct {
	t      *testing.T
	store  *store.SQLiteStore
	svc    *workflow.Service
	router http.Handler
	admin  *domain.User
	seq    int
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	issuer, err := auth.NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	m := metrics.New()
	svc := workflow.New(s, workflow.Config{}, zap.NewNop(),
		workflow.WithTokenIssuer(issuer),
		workflow.WithRecorder(m),
		workflow.WithClock(func() time.Time { return testNow }),
	)
	if cfg.AuthMode == "" {
		cfg.AuthMode = middleware.ModeDev
	}
	cfg.Verifier = issuer

	ts := &testServer{t: t, store: s, svc: svc}
	ts.router = NewHandler(svc, m, zap.NewNop(), cfg).Routes()

	admin, err := svc.Bootstrap(context.Background(), workflow.RegisterInput{
		ProfileInput: workflow.ProfileInput{Email: "admin@example.edu", FirstName: "Ada", LastName: "Admin"},
		Username:     "admin",
		Password:     "correct horse battery",
	})
	require.NoError(t, err)
	ts.admin = admin
	return ts
}

func (ts *testServer) student() *domain.User {
	ts.t.Helper()
	ts.seq++
	u, err := domain.NewUser(domain.UserTypeStudent, fmt.Sprintf("student.%d", ts.seq), "", "Test", fmt.Sprintf("Student%d", ts.seq), fmt.Sprintf("S%04d", ts.seq))
	require.NoError(ts.t, err)
	require.NoError(ts.t, ts.store.CreateUser(context.Background(), u))
	return u
}

// do sends a request as u (nil for anonymous) using the dev headers.
func (ts *testServer) do(u *domain.User, method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if u != nil {
		req.Header.Set(auth.HeaderUserID, strconv.FormatInt(u.ID, 10))
		req.Header.Set(auth.HeaderUserType, string(u.UserType))
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) createProject(maxParticipants int, visibility string) domain.Project {
	ts.t.Helper()
	rec := ts.do(ts.admin, "POST", "/api/v1/projects", map[string]any{
		"name":             "Reading Club",
		"max_hours":        40,
		"visibility":       visibility,
		"start_date":       "2024-01-01",
		"end_date":         "2024-12-31",
		"max_participants": maxParticipants,
	})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[domain.Project](ts.t, rec)
}

func (ts *testServer) apply(u *domain.User, projectID int64) domain.Application {
	ts.t.Helper()
	rec := ts.do(u, "POST", "/api/v1/applications", map[string]any{
		"project_id": projectID,
		"motivation": "I like books",
	})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[domain.Application](ts.t, rec)
}

// =============================================================================
// Health and Documents
// =============================================================================

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, Config{})

	rec := ts.do(nil, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody[HealthResponse](t, rec).Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = ts.do(nil, "GET", "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	ready := decodeBody[ReadyResponse](t, rec)
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "ok", ready.Checks["database"])
}

func TestReady_StoreClosed(t *testing.T) {
	ts := newTestServer(t, Config{})
	require.NoError(t, ts.store.Close())

	rec := ts.do(nil, "GET", "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", decodeBody[ReadyResponse](t, rec).Status)
}

func TestOpenAPIDocument(t *testing.T) {
	ts := newTestServer(t, Config{})

	rec := ts.do(nil, "GET", "/openapi.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Paths      map[string]map[string]any `json:"paths"`
		Components struct {
			Schemas map[string]any `json:"schemas"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Contains(t, doc.Paths, "/api/v1/projects/{id}/join")
	assert.Contains(t, doc.Paths["/api/v1/hours"], "post")
	assert.Contains(t, doc.Components.Schemas, "HourLogRequest")
	assert.Contains(t, doc.Components.Schemas, "Error")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.do(nil, "GET", "/health", nil)

	rec := ts.do(nil, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "keyhours_http_requests_total")
}

// =============================================================================
// Authentication
// =============================================================================

func TestToken_IssueAndUse(t *testing.T) {
	ts := newTestServer(t, Config{AuthMode: middleware.ModeJWT})

	rec := ts.do(nil, "POST", "/api/v1/auth/token", TokenRequest{Username: "admin", Password: "correct horse battery"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := decodeBody[workflow.Token](t, rec)
	assert.Equal(t, "Bearer", token.TokenType)
	require.NotEmpty(t, token.AccessToken)

	req := httptest.NewRequest("GET", "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	me := httptest.NewRecorder()
	ts.router.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code, me.Body.String())
	assert.Equal(t, "admin", decodeBody[domain.User](t, me).Username)
}

func TestToken_WrongPassword(t *testing.T) {
	ts := newTestServer(t, Config{})

	rec := ts.do(nil, "POST", "/api/v1/auth/token", TokenRequest{Username: "admin", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decodeBody[ErrorResponse](t, rec).Code)
}

func TestAnonymous(t *testing.T) {
	t.Run("service rejects", func(t *testing.T) {
		ts := newTestServer(t, Config{})
		rec := ts.do(nil, "GET", "/api/v1/users/me", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("require auth keeps public routes open", func(t *testing.T) {
		ts := newTestServer(t, Config{RequireAuth: true})
		ts.createProject(5, "published")

		rec := ts.do(nil, "GET", "/api/v1/projects", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = ts.do(nil, "GET", "/api/v1/projects/public", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[ListResponse[domain.Project]](t, rec).Data, 1)
	})
}

// =============================================================================
// Error Translation
// =============================================================================

func TestErrorTranslation(t *testing.T) {
	ts := newTestServer(t, Config{})
	student := ts.student()

	tests := []struct {
		name   string
		user   *domain.User
		method string
		path   string
		body   any
		status int
		code   string
		field  string
	}{
		{name: "forbidden", user: student, method: "POST", path: "/api/v1/projects",
			body:   map[string]any{"name": "X", "start_date": "2024-01-01", "end_date": "2024-02-01"},
			status: http.StatusForbidden, code: "forbidden"},
		{name: "not found", user: ts.admin, method: "GET", path: "/api/v1/projects/999",
			status: http.StatusNotFound, code: "not_found"},
		{name: "bad path id", user: ts.admin, method: "GET", path: "/api/v1/projects/abc",
			status: http.StatusBadRequest, code: "validation_error", field: "id"},
		{name: "bad query", user: ts.admin, method: "GET", path: "/api/v1/projects?visibility=secret",
			status: http.StatusBadRequest, code: "validation_error", field: "visibility"},
		{name: "missing field", user: ts.admin, method: "POST", path: "/api/v1/categories",
			body: map[string]any{}, status: http.StatusBadRequest, code: "validation_error", field: "name"},
		{name: "bad date", user: ts.admin, method: "POST", path: "/api/v1/projects",
			body:   map[string]any{"name": "X", "start_date": "01/01/2024", "end_date": "2024-02-01"},
			status: http.StatusBadRequest, code: "validation_error", field: "start_date"},
		{name: "unknown application status", user: ts.admin, method: "POST", path: "/api/v1/applications/1/status",
			body: StatusRequest{Status: "archived"}, status: http.StatusBadRequest, code: "validation_error", field: "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(tt.user, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.field, resp.Field)
		})
	}
}

func TestInvalidJSON(t *testing.T) {
	ts := newTestServer(t, Config{})

	req := httptest.NewRequest("POST", "/api/v1/categories", bytes.NewBufferString("{not json"))
	req.Header.Set(auth.HeaderUserID, strconv.FormatInt(ts.admin.ID, 10))
	req.Header.Set(auth.HeaderUserType, "admin")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeBody[ErrorResponse](t, rec).Code)
}

func TestDuplicateCategory(t *testing.T) {
	ts := newTestServer(t, Config{})

	rec := ts.do(ts.admin, "POST", "/api/v1/categories", CategoryRequest{Name: "Health"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(ts.admin, "POST", "/api/v1/categories", CategoryRequest{Name: "Health"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name", decodeBody[ErrorResponse](t, rec).Field)
}

// =============================================================================
// Workflows
// =============================================================================

func TestApprovalRespectsCapacity(t *testing.T) {
	ts := newTestServer(t, Config{})
	project := ts.createProject(1, "convocatoria")
	a1 := ts.apply(ts.student(), project.ID)
	a2 := ts.apply(ts.student(), project.ID)

	rec := ts.do(ts.admin, "POST", fmt.Sprintf("/api/v1/applications/%d/review", a1.ID), StatusRequest{Status: "approved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.ApplicationApproved, decodeBody[domain.Application](t, rec).Status)

	rec = ts.do(ts.admin, "GET", fmt.Sprintf("/api/v1/projects/%d", project.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[workflow.ProjectDetail](t, rec).CurrentParticipants)

	rec = ts.do(ts.admin, "POST", fmt.Sprintf("/api/v1/applications/%d/review", a2.ID), StatusRequest{Status: "approved"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "validation_error", resp.Code)
	assert.Equal(t, "max_participants", resp.Field)
}

func TestBulkApplications(t *testing.T) {
	ts := newTestServer(t, Config{})
	project := ts.createProject(5, "convocatoria")
	a1 := ts.apply(ts.student(), project.ID)
	a2 := ts.apply(ts.student(), project.ID)

	rec := ts.do(ts.admin, "POST", "/api/v1/applications/bulk", BulkApplicationRequest{
		IDs:    []int64{a1.ID, a2.ID, a1.ID},
		Action: "reject",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decodeBody[CountResponse](t, rec).Affected)

	rec = ts.do(ts.admin, "GET", "/api/v1/applications?status=rejected", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[ListResponse[domain.Application]](t, rec).Data, 2)

	a3 := ts.apply(ts.student(), project.ID)
	rec = ts.do(ts.admin, "POST", "/api/v1/applications/bulk", BulkApplicationRequest{
		IDs:    []int64{a1.ID, a3.ID},
		Action: "cancel",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decodeBody[CountResponse](t, rec).Affected)
}

func TestCancelPendingApplication(t *testing.T) {
	ts := newTestServer(t, Config{})
	project := ts.createProject(5, "convocatoria")
	student := ts.student()
	app := ts.apply(student, project.ID)

	rec := ts.do(student, "POST", fmt.Sprintf("/api/v1/applications/%d/cancel", app.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.ApplicationCancelled, decodeBody[domain.Application](t, rec).Status)
}

func TestHourLogLifecycle(t *testing.T) {
	ts := newTestServer(t, Config{})
	project := ts.createProject(5, "convocatoria")
	student := ts.student()
	app := ts.apply(student, project.ID)
	rec := ts.do(ts.admin, "POST", fmt.Sprintf("/api/v1/applications/%d/review", app.ID), StatusRequest{Status: "approved"})
	require.Equal(t, http.StatusOK, rec.Code)

	entry := map[string]any{
		"project_id":           project.ID,
		"application_id":       app.ID,
		"date":                 "2024-06-10",
		"start_time":           "09:00",
		"end_time":             "08:00",
		"hours":                1,
		"activity_description": "Shelving",
	}

	t.Run("end before start is rejected", func(t *testing.T) {
		rec := ts.do(student, "POST", "/api/v1/hours", entry)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "end_time", decodeBody[ErrorResponse](t, rec).Field)
	})

	entry["end_time"] = "12:45"
	t.Run("third decimal place is rejected", func(t *testing.T) {
		entry["hours"] = "3.999"
		rec := ts.do(student, "POST", "/api/v1/hours", entry)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "hours", decodeBody[ErrorResponse](t, rec).Field)
	})

	entry["hours"] = "3.75"
	rec = ts.do(student, "POST", "/api/v1/hours", entry)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	log := decodeBody[domain.HourLog](t, rec)
	assert.Equal(t, domain.HourPending, log.Status)

	rec = ts.do(student, "POST", fmt.Sprintf("/api/v1/hours/%d/documents", log.ID), HourDocumentRequest{
		Title:        "Attendance sheet",
		DocumentType: "attendance",
		Reference:    "uploads/sheet.pdf",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = ts.do(student, "POST", fmt.Sprintf("/api/v1/hours/%d/documents", log.ID), HourDocumentRequest{Title: "clip", DocumentType: "video"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "document_type", decodeBody[ErrorResponse](t, rec).Field)
	rec = ts.do(student, "GET", fmt.Sprintf("/api/v1/hours/%d/documents", log.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[ListResponse[domain.HourLogDocument]](t, rec).Data, 1)

	rec = ts.do(student, "POST", fmt.Sprintf("/api/v1/hours/%d/review", log.ID), HourReviewRequest{Status: "approved"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(ts.admin, "POST", fmt.Sprintf("/api/v1/hours/%d/review", log.ID), HourReviewRequest{Status: "approved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.HourApproved, decodeBody[domain.HourLog](t, rec).Status)

	rec = ts.do(ts.admin, "GET", fmt.Sprintf("/api/v1/applications/%d", app.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeBody[workflow.ApplicationDetail](t, rec)
	assert.Equal(t, "3.75", detail.HoursCompleted.String())

	rec = ts.do(student, "GET", "/api/v1/hours/reports/yearly?year=2024", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var yearly struct {
		Months []json.RawMessage `json:"monthly_breakdown"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &yearly))
	assert.Len(t, yearly.Months, 12)
}

func TestMembershipRoutes(t *testing.T) {
	ts := newTestServer(t, Config{})
	project := ts.createProject(3, "published")
	student := ts.student()

	rec := ts.do(student, "POST", fmt.Sprintf("/api/v1/projects/%d/join", project.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decodeBody[domain.Project](t, rec).CurrentParticipants)

	rec = ts.do(student, "GET", fmt.Sprintf("/api/v1/projects/%d/is-member", project.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[MembershipResponse](t, rec).IsMember)

	rec = ts.do(ts.admin, "DELETE", fmt.Sprintf("/api/v1/projects/%d/members/%d", project.ID, student.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0, decodeBody[domain.Project](t, rec).CurrentParticipants)

	rec = ts.do(student, "POST", fmt.Sprintf("/api/v1/projects/%d/leave", project.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotifications(t *testing.T) {
	ts := newTestServer(t, Config{})
	project := ts.createProject(3, "convocatoria")
	student := ts.student()
	app := ts.apply(student, project.ID)
	rec := ts.do(ts.admin, "POST", fmt.Sprintf("/api/v1/applications/%d/review", app.ID), StatusRequest{Status: "rejected", Notes: "full"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(student, "GET", "/api/v1/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[ListResponse[domain.Notification]](t, rec)
	require.NotEmpty(t, list.Data)

	rec = ts.do(student, "POST", fmt.Sprintf("/api/v1/notifications/%d/read", list.Data[0].ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(ts.student(), "POST", fmt.Sprintf("/api/v1/notifications/%d/read", list.Data[0].ID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSummariesRefresh(t *testing.T) {
	ts := newTestServer(t, Config{})

	rec := ts.do(ts.admin, "POST", "/api/v1/summaries/refresh", RefreshRequest{Year: 2024, Month: 6})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0, decodeBody[CountResponse](t, rec).Affected)

	rec = ts.do(ts.student(), "POST", "/api/v1/summaries/refresh", RefreshRequest{Year: 2024, Month: 6})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

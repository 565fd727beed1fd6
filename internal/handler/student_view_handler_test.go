package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-portal-api/internal/middleware"
	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/service"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Error map[string]interface{} `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, path, bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, rec
}

func withStudent(c *gin.Context, userID string) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: models.RoleStudent})
}

type fakeSnapshotter struct {
	state  models.ViewState
	userID string
}

func (f *fakeSnapshotter) Snapshot(_ context.Context, userID string) models.ViewState {
	f.userID = userID
	return f.state
}

type fakeReporter struct {
	file   *service.ReportFile
	err    error
	format string
}

func (f *fakeReporter) StudentProgress(_ context.Context, _ string, format string) (*service.ReportFile, error) {
	f.format = format
	return f.file, f.err
}

type fakeWatcher struct {
	updates  chan models.ViewState
	identity *string
	closed   bool
}

func (f *fakeWatcher) SetIdentity(identity *string) { f.identity = identity }

func (f *fakeWatcher) Updates() <-chan models.ViewState { return f.updates }

func (f *fakeWatcher) Close() { f.closed = true }

// streamRecorder adds CloseNotify, which gin's Stream requires of the writer.
type streamRecorder struct {
	*httptest.ResponseRecorder
	gone chan bool
}

func (r *streamRecorder) CloseNotify() <-chan bool { return r.gone }

func TestStudentViewSnapshotRequiresClaims(t *testing.T) {
	h := NewStudentViewHandler(&fakeSnapshotter{}, &fakeReporter{}, nil, nil)
	c, rec := newGinContext(http.MethodGet, "/students/me/view", nil)

	h.Snapshot(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStudentViewSnapshotSuccess(t *testing.T) {
	views := &fakeSnapshotter{state: models.ViewState{
		Student:  &models.StudentView{ID: "stu-1", FullName: "Sari Dewi", ConfidenceScore: 50},
		Subjects: []models.SubjectView{{SubjectID: "sub-1", Name: "Biology", ProficiencyLevel: "average", Score: 50}},
	}}
	h := NewStudentViewHandler(views, &fakeReporter{}, nil, nil)
	c, rec := newGinContext(http.MethodGet, "/students/me/view", nil)
	withStudent(c, "user-1")

	h.Snapshot(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", views.userID)
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	student := env.Data["student"].(map[string]interface{})
	assert.Equal(t, "stu-1", student["id"])
	assert.Len(t, env.Data["subjects"], 1)
	assert.Equal(t, false, env.Data["loading"])
}

func TestStudentViewSnapshotNotFound(t *testing.T) {
	views := &fakeSnapshotter{state: models.ViewState{
		Subjects: []models.SubjectView{},
		Error:    appErrors.Clone(appErrors.ErrNotFound, "student record not found"),
	}}
	h := NewStudentViewHandler(views, &fakeReporter{}, nil, nil)
	c, rec := newGinContext(http.MethodGet, "/students/me/view", nil)
	withStudent(c, "user-1")

	h.Snapshot(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "NOT_FOUND", env.Error["code"])
}

func TestStudentViewStreamEmitsStates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	watcher := &fakeWatcher{updates: make(chan models.ViewState, 2)}
	watcher.updates <- models.ViewState{Subjects: []models.SubjectView{}, Loading: true}
	watcher.updates <- models.ViewState{Student: &models.StudentView{ID: "stu-1"}, Subjects: []models.SubjectView{}}
	close(watcher.updates)

	h := NewStudentViewHandler(&fakeSnapshotter{}, &fakeReporter{}, func() ViewWatcher { return watcher }, nil)

	rec := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), gone: make(chan bool)}
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/students/me/view/stream", nil)
	withStudent(c, "user-1")

	h.Stream(c)

	require.NotNil(t, watcher.identity)
	assert.Equal(t, "user-1", *watcher.identity)
	assert.True(t, watcher.closed)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event:state"))
	assert.Contains(t, body, `"loading":true`)
	assert.Contains(t, body, `"id":"stu-1"`)
}

func TestStudentViewStreamClosesWatcherOnDisconnect(t *testing.T) {
	gin.SetMode(gin.TestMode)
	watcher := &fakeWatcher{updates: make(chan models.ViewState)}
	h := NewStudentViewHandler(&fakeSnapshotter{}, &fakeReporter{}, func() ViewWatcher { return watcher }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), gone: make(chan bool)}
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/students/me/view/stream", nil).WithContext(ctx)
	withStudent(c, "user-1")

	h.Stream(c)

	assert.True(t, watcher.closed)
}

func TestStudentViewReportDownload(t *testing.T) {
	reports := &fakeReporter{file: &service.ReportFile{
		Filename:    "progress-10A-07-20250101.csv",
		ContentType: "text/csv",
		Data:        []byte("Field,Value\n"),
	}}
	h := NewStudentViewHandler(&fakeSnapshotter{}, reports, nil, nil)
	c, rec := newGinContext(http.MethodGet, "/students/me/report?format=csv", nil)
	withStudent(c, "user-1")

	h.Report(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", reports.format)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "progress-10A-07-20250101.csv")
	assert.Equal(t, "Field,Value\n", rec.Body.String())
}

func TestStudentViewReportInvalidFormat(t *testing.T) {
	reports := &fakeReporter{err: appErrors.Clone(appErrors.ErrValidation, "unsupported report format")}
	h := NewStudentViewHandler(&fakeSnapshotter{}, reports, nil, nil)
	c, rec := newGinContext(http.MethodGet, "/students/me/report?format=xlsx", nil)
	withStudent(c, "user-1")

	h.Report(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

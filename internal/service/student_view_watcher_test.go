package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/realtime"
)

type loadResult struct {
	student  *models.StudentView
	subjects []models.SubjectView
	err      error
}

type pendingLoad struct {
	userID string
	result chan loadResult
}

// scriptedSource hands every Load call to the test, which decides when and how it completes.
type scriptedSource struct {
	calls chan *pendingLoad
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{calls: make(chan *pendingLoad, 16)}
}

func (s *scriptedSource) Load(ctx context.Context, userID string) (*models.StudentView, []models.SubjectView, error) {
	p := &pendingLoad{userID: userID, result: make(chan loadResult, 1)}
	select {
	case s.calls <- p:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	select {
	case r := <-p.result:
		return r.student, r.subjects, r.err
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (s *scriptedSource) next(t *testing.T) *pendingLoad {
	t.Helper()
	select {
	case p := <-s.calls:
		return p
	case <-time.After(time.Second):
		t.Fatal("expected a load call")
		return nil
	}
}

func (s *scriptedSource) assertIdle(t *testing.T) {
	t.Helper()
	select {
	case p := <-s.calls:
		t.Fatalf("unexpected load call for %q", p.userID)
	case <-time.After(50 * time.Millisecond):
	}
}

func studentWithID(id string) loadResult {
	return loadResult{student: &models.StudentView{ID: id}, subjects: []models.SubjectView{}}
}

func eventuallyState(t *testing.T, w *StudentViewWatcher, cond func(models.ViewState) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(w.State()) }, time.Second, 5*time.Millisecond)
}

func hasStudent(id string) func(models.ViewState) bool {
	return func(s models.ViewState) bool {
		return !s.Loading && s.Student != nil && s.Student.ID == id
	}
}

func TestWatcherWithoutIdentityIssuesNoQueries(t *testing.T) {
	hub := realtime.NewHub(nil)
	src := newScriptedSource()
	w := NewStudentViewWatcher(src, hub, zap.NewNop(), nil)
	defer w.Close()

	w.SetIdentity(nil)

	state := w.State()
	assert.Nil(t, state.Student)
	assert.NotNil(t, state.Subjects)
	assert.Empty(t, state.Subjects)
	assert.False(t, state.Loading)
	assert.Nil(t, state.Error)
	assert.Equal(t, 0, hub.Active())
	src.assertIdle(t)
}

func TestWatcherLoadsIdentity(t *testing.T) {
	hub := realtime.NewHub(nil)
	src := newScriptedSource()
	w := NewStudentViewWatcher(src, hub, zap.NewNop(), nil)
	defer w.Close()

	id := "u-1"
	w.SetIdentity(&id)

	first := <-w.Updates()
	assert.True(t, first.Loading)

	call := src.next(t)
	assert.Equal(t, "u-1", call.userID)
	call.result <- studentWithID("stu-1")

	eventuallyState(t, w, hasStudent("stu-1"))
}

func TestWatcherNotFound(t *testing.T) {
	hub := realtime.NewHub(nil)
	src := newScriptedSource()
	w := NewStudentViewWatcher(src, hub, zap.NewNop(), nil)
	defer w.Close()

	id := "u-ghost"
	w.SetIdentity(&id)
	src.next(t).result <- loadResult{err: appErrors.Clone(appErrors.ErrNotFound, "students not found")}

	eventuallyState(t, w, func(s models.ViewState) bool { return !s.Loading && s.Error != nil })
	state := w.State()
	assert.Nil(t, state.Student)
	assert.Equal(t, appErrors.ErrNotFound.Code, state.Error.Code)
}

func TestWatcherLastIssuedFetchWins(t *testing.T) {
	hub := realtime.NewHub(nil)
	src := newScriptedSource()
	w := NewStudentViewWatcher(src, hub, zap.NewNop(), nil)
	defer w.Close()

	id := "u-1"
	w.SetIdentity(&id)
	fetchA := src.next(t)

	w.Refresh()
	fetchB := src.next(t)

	fetchB.result <- studentWithID("from-B")
	eventuallyState(t, w, hasStudent("from-B"))

	fetchA.result <- studentWithID("from-A")
	assert.Never(t, func() bool { return hasStudent("from-A")(w.State()) }, 100*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, "from-B", w.State().Student.ID)
}

func TestWatcherStaleResultDoesNotClearLoading(t *testing.T) {
	hub := realtime.NewHub(nil)
	src := newScriptedSource()
	w := NewStudentViewWatcher(src, hub, zap.NewNop(), nil)
	defer w.Close()

	id := "u-1"
	w.SetIdentity(&id)
	fetchA := src.next(t)
	w.Refresh()
	fetchB := src.next(t)

	fetchA.result <- studentWithID("from-A")
	assert.Never(t, func() bool { return !w.State().Loading }, 100*time.Millisecond, 5*time.Millisecond)

	fetchB.result <- studentWithID("from-B")
	eventuallyState(t, w, hasStudent("from-B"))
}

func TestWatcherRefetchesOnMatchingChange(t *testing.T) {
	hub := realtime.NewHub(nil)
	src := newScriptedSource()
	w := NewStudentViewWatcher(src, hub, zap.NewNop(), nil)
	defer w.Close()

	id := "u-1"
	w.SetIdentity(&id)
	src.next(t).result <- studentWithID("v1")
	eventuallyState(t, w, hasStudent("v1"))

	hub.Publish(realtime.Event{Table: "students", Op: realtime.OpUpdate, UserID: "u-2"})
	src.assertIdle(t)

	hub.Publish(realtime.Event{Table: "students", Op: realtime.OpUpdate, UserID: "u-1"})
	src.next(t).result <- studentWithID("v2")
	eventuallyState(t, w, hasStudent("v2"))

	hub.Publish(realtime.Event{Table: "learning_profiles", Op: realtime.OpInsert, StudentID: "someone-else"})
	src.next(t).result <- studentWithID("v3")
	eventuallyState(t, w, hasStudent("v3"))
}

func TestWatcherOwnsOneSubscription(t *testing.T) {
	hub := realtime.NewHub(nil)
	src := newScriptedSource()
	w := NewStudentViewWatcher(src, hub, zap.NewNop(), nil)

	first, second := "u-1", "u-2"
	w.SetIdentity(&first)
	assert.Equal(t, 1, hub.Active())
	src.next(t)

	w.SetIdentity(&second)
	assert.Equal(t, 1, hub.Active())
	assert.Equal(t, "u-2", src.next(t).userID)

	// the old identity's rows no longer trigger anything
	hub.Publish(realtime.Event{Table: "students", Op: realtime.OpUpdate, UserID: "u-1"})
	src.assertIdle(t)

	w.SetIdentity(nil)
	assert.Equal(t, 0, hub.Active())
	assert.Nil(t, w.State().Student)

	w.SetIdentity(&first)
	src.next(t)
	w.Close()
	assert.Equal(t, 0, hub.Active())
}

func TestWatcherIdentityChangeDiscardsOldResult(t *testing.T) {
	hub := realtime.NewHub(nil)
	src := newScriptedSource()
	w := NewStudentViewWatcher(src, hub, zap.NewNop(), nil)
	defer w.Close()

	first, second := "u-1", "u-2"
	w.SetIdentity(&first)
	old := src.next(t)
	w.SetIdentity(&second)
	current := src.next(t)

	// the first identity's load was cancelled with its scope
	old.result <- studentWithID("u-1-view")
	current.result <- studentWithID("u-2-view")
	eventuallyState(t, w, hasStudent("u-2-view"))
}

func TestWatcherCloseReleasesEverything(t *testing.T) {
	hub := realtime.NewHub(nil)
	src := newScriptedSource()
	w := NewStudentViewWatcher(src, hub, zap.NewNop(), nil)

	id := "u-1"
	w.SetIdentity(&id)
	src.next(t)

	done := make(chan struct{})
	go func() {
		w.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("close did not return with a fetch in flight")
	}

	assert.Equal(t, 0, hub.Active())
	for range w.Updates() {
	}
	w.Close()
	w.Refresh()
	src.assertIdle(t)
}

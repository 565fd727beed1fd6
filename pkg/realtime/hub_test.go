package realtime

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFilterMatches(t *testing.T) {
	own := Where("students", "user_id", "u-1")
	all := Table("learning_profiles")

	assert.True(t, own.Matches(Event{Table: "students", Op: OpUpdate, UserID: "u-1"}))
	assert.False(t, own.Matches(Event{Table: "students", Op: OpUpdate, UserID: "u-2"}))
	assert.False(t, own.Matches(Event{Table: "profiles", Op: OpUpdate, UserID: "u-1"}))
	assert.False(t, Where("students", "unknown", "x").Matches(Event{Table: "students"}))
	assert.True(t, all.Matches(Event{Table: "learning_profiles", Op: OpInsert, StudentID: "s-9"}))
	assert.True(t, own.Matches(Event{Op: OpResync}))
	assert.Equal(t, "students:user_id=eq.u-1", own.String())
}

func TestHubDeliversToMatchingSubscriptions(t *testing.T) {
	var observed []int
	hub := NewHub(func(_ Event, delivered int) { observed = append(observed, delivered) })

	a := hub.Subscribe(Where("students", "user_id", "u-1"), Table("learning_profiles"))
	b := hub.Subscribe(Where("students", "user_id", "u-2"))
	defer a.Close()
	defer b.Close()

	n := hub.Publish(Event{Table: "students", Op: OpUpdate, UserID: "u-1"})
	assert.Equal(t, 1, n)

	select {
	case e := <-a.C():
		assert.Equal(t, "u-1", e.UserID)
	default:
		t.Fatal("expected a signal on subscription a")
	}
	select {
	case <-b.C():
		t.Fatal("subscription b must not be signalled")
	default:
	}
	assert.Equal(t, []int{1}, observed)
}

func TestHubCoalescesPendingSignals(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe(Table("learning_profiles"))
	defer sub.Close()

	assert.Equal(t, 1, hub.Publish(Event{Table: "learning_profiles", Op: OpUpdate}))
	assert.Equal(t, 0, hub.Publish(Event{Table: "learning_profiles", Op: OpUpdate}))

	<-sub.C()
	select {
	case <-sub.C():
		t.Fatal("only one signal should be pending")
	default:
	}
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe(Table("students"))
	require.Equal(t, 1, hub.Active())

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, hub.Active())
	_, open := <-sub.C()
	assert.False(t, open)
	assert.Equal(t, 0, hub.Publish(Event{Table: "students"}))
}

func TestParseEvent(t *testing.T) {
	e, err := ParseEvent([]byte(`{"table":"students","op":"update","id":"s-1","user_id":"u-1"}`))
	require.NoError(t, err)
	assert.Equal(t, Event{Table: "students", Op: OpUpdate, ID: "s-1", UserID: "u-1"}, e)

	_, err = ParseEvent([]byte(`{"op":"update"}`))
	assert.Error(t, err)
	_, err = ParseEvent([]byte(`not-json`))
	assert.Error(t, err)
}

type recordingSink struct {
	events []Event
}

func (s *recordingSink) Publish(e Event) int {
	s.events = append(s.events, e)
	return 1
}

func TestPostgresListenerHandle(t *testing.T) {
	sink := &recordingSink{}
	l := NewPostgresListener(PostgresListenerConfig{Logger: zap.NewNop()}, sink)

	l.handle(&pq.Notification{Channel: "table_changes", Extra: `{"table":"learning_profiles","op":"INSERT","student_id":"s-1"}`})
	l.handle(&pq.Notification{Channel: "table_changes", Extra: `garbage`})
	l.handle(nil)

	require.Len(t, sink.events, 2)
	assert.Equal(t, "learning_profiles", sink.events[0].Table)
	assert.Equal(t, OpResync, sink.events[1].Op)
}

func TestRedisListenerHandle(t *testing.T) {
	sink := &recordingSink{}
	l := NewRedisListener(nil, "", sink, nil)

	l.handle(`{"table":"students","op":"DELETE","user_id":"u-1"}`)
	l.handle(`{}`)

	require.Len(t, sink.events, 1)
	assert.Equal(t, OpDelete, sink.events[0].Op)
	assert.Equal(t, "table_changes", l.channel)
}

func TestRedisListenerForwardsBridgedResync(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe(Where("students", "user_id", "u-1"))
	defer sub.Close()

	payload, err := json.Marshal(Event{Op: OpResync})
	require.NoError(t, err)

	l := NewRedisListener(nil, "", hub, nil)
	l.handle(string(payload))

	select {
	case e := <-sub.C():
		assert.Equal(t, OpResync, e.Op)
	default:
		t.Fatal("resync was not delivered")
	}
}

func TestParseEventAllowsTablelessResync(t *testing.T) {
	e, err := ParseEvent([]byte(`{"table":"","op":"resync"}`))
	require.NoError(t, err)
	assert.Equal(t, OpResync, e.Op)

	_, err = ParseEvent([]byte(`{"table":"","op":"INSERT"}`))
	assert.Error(t, err)
}

func TestMigrationTriggersUseDefaultChannel(t *testing.T) {
	raw, err := os.ReadFile("../../migrations/0001_init.sql")
	require.NoError(t, err)

	sql := string(raw)
	assert.Equal(t, 2, strings.Count(sql, "notify_table_change('"+DefaultChannel+"')"))
	assert.Equal(t, 2, strings.Count(sql, "EXECUTE FUNCTION notify_table_change("))
}

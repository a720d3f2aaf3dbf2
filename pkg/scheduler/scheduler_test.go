package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	renaerrors "github.com/renalabs/rena/pkg/errors"
	"github.com/renalabs/rena/pkg/logging"
	"github.com/renalabs/rena/pkg/meeting"
)

type fakeSource struct {
	events []Event
}

func (f *fakeSource) UpcomingEvents(_ context.Context) ([]Event, error) {
	return f.events, nil
}

type fakeStore struct {
	created []*meeting.Session
	active  map[string]*meeting.Session // keyed by meeting URL
}

func (f *fakeStore) Create(_ context.Context, s *meeting.Session) error {
	f.created = append(f.created, s)
	return nil
}

func (f *fakeStore) FindActiveByURL(_ context.Context, userID, url string) (*meeting.Session, error) {
	if s, ok := f.active[url]; ok && s.UserID == userID {
		return s, nil
	}
	return nil, renaerrors.ErrNotFound
}

type fakeRunner struct {
	dispatched []*meeting.Session
}

func (f *fakeRunner) Dispatch(_ context.Context, s *meeting.Session) error {
	f.dispatched = append(f.dispatched, s)
	return nil
}

func newTestScheduler(source *fakeSource, store *fakeStore, runner *fakeRunner, now time.Time) *Scheduler {
	s := New(source, store, runner, Config{
		PollInterval: time.Second,
		JoinDelay:    2 * time.Minute,
	}, logging.NewNopLogger())
	s.now = func() time.Time { return now }
	return s
}

func event(start time.Time) Event {
	return Event{
		ID:         "ev-1",
		UserID:     "alice",
		Title:      "Standup",
		MeetingURL: "https://meet.google.com/abc-defg-hij",
		Start:      start,
		AutoJoin:   true,
	}
}

func TestTickDispatchesEventInWindow(t *testing.T) {
	now := time.Now()
	source := &fakeSource{events: []Event{event(now.Add(-time.Minute))}}
	store := &fakeStore{}
	runner := &fakeRunner{}
	s := newTestScheduler(source, store, runner, now)

	require.NoError(t, s.Tick(context.Background()))

	require.Len(t, runner.dispatched, 1)
	session := runner.dispatched[0]
	assert.Equal(t, "alice", session.UserID)
	assert.Equal(t, "Standup", session.Title)
	assert.Equal(t, meeting.StateScheduled, session.State)
	assert.Equal(t, meeting.PlatformMeet, session.Platform)
	require.Len(t, store.created, 1)
	assert.Equal(t, session, store.created[0])
}

func TestTickSkipsFutureEvent(t *testing.T) {
	now := time.Now()
	source := &fakeSource{events: []Event{event(now.Add(time.Minute))}}
	runner := &fakeRunner{}
	s := newTestScheduler(source, &fakeStore{}, runner, now)

	require.NoError(t, s.Tick(context.Background()))
	assert.Empty(t, runner.dispatched)
}

func TestTickSkipsStaleEvent(t *testing.T) {
	now := time.Now()
	// Join window is JoinDelay (2m) + grace (60s); 4 minutes is past it.
	source := &fakeSource{events: []Event{event(now.Add(-4 * time.Minute))}}
	runner := &fakeRunner{}
	s := newTestScheduler(source, &fakeStore{}, runner, now)

	require.NoError(t, s.Tick(context.Background()))
	assert.Empty(t, runner.dispatched)
}

func TestTickAcceptsEdgeOfWindow(t *testing.T) {
	now := time.Now()
	source := &fakeSource{events: []Event{event(now.Add(-3 * time.Minute))}}
	runner := &fakeRunner{}
	s := newTestScheduler(source, &fakeStore{}, runner, now)

	require.NoError(t, s.Tick(context.Background()))
	assert.Len(t, runner.dispatched, 1)
}

func TestTickSkipsOptedOutEvent(t *testing.T) {
	now := time.Now()
	ev := event(now.Add(-time.Minute))
	ev.AutoJoin = false
	runner := &fakeRunner{}
	s := newTestScheduler(&fakeSource{events: []Event{ev}}, &fakeStore{}, runner, now)

	require.NoError(t, s.Tick(context.Background()))
	assert.Empty(t, runner.dispatched)
}

func TestTickSkipsUnrecognizedLink(t *testing.T) {
	now := time.Now()
	ev := event(now.Add(-time.Minute))
	ev.MeetingURL = "https://example.com/call/123"
	runner := &fakeRunner{}
	s := newTestScheduler(&fakeSource{events: []Event{ev}}, &fakeStore{}, runner, now)

	require.NoError(t, s.Tick(context.Background()))
	assert.Empty(t, runner.dispatched)
}

func TestTickDeduplicatesActiveSession(t *testing.T) {
	now := time.Now()
	ev := event(now.Add(-time.Minute))
	existing := meeting.NewSession("alice", ev.MeetingURL, nil)
	existing.State = meeting.StateRecording

	store := &fakeStore{active: map[string]*meeting.Session{ev.MeetingURL: existing}}
	runner := &fakeRunner{}
	s := newTestScheduler(&fakeSource{events: []Event{ev}}, store, runner, now)

	require.NoError(t, s.Tick(context.Background()))
	assert.Empty(t, runner.dispatched)
	assert.Empty(t, store.created)
}

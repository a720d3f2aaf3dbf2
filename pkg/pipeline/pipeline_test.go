package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	renaerrors "github.com/renalabs/rena/pkg/errors"
	"github.com/renalabs/rena/pkg/logging"
	"github.com/renalabs/rena/pkg/meeting"
	"github.com/renalabs/rena/pkg/queues"
)

type fakeIntel struct {
	segments      []meeting.TranscriptSegment
	transcribeErr error
	gotTranscript []meeting.TranscriptSegment
	gotStats      meeting.Analytics
}

func (f *fakeIntel) Transcribe(_ context.Context, _ string) ([]meeting.TranscriptSegment, error) {
	return f.segments, f.transcribeErr
}

func (f *fakeIntel) GenerateReport(_ context.Context, session *meeting.Session, transcript []meeting.TranscriptSegment, stats meeting.Analytics) *meeting.Report {
	f.gotTranscript = transcript
	f.gotStats = stats
	return &meeting.Report{
		SessionID:  session.ID,
		UserID:     session.UserID,
		SummaryEN:  "summary",
		Minutes:    []string{"point"},
		Actions:    []meeting.ActionItem{},
		Transcript: transcript,
		Analytics:  stats,
		CreatedAt:  time.Now().UTC(),
	}
}

type fakeDiarizer struct {
	spans []meeting.DiarizationSpan
	err   error
}

func (f *fakeDiarizer) Diarize(_ context.Context, _ string) ([]meeting.DiarizationSpan, error) {
	return f.spans, f.err
}

type fakeReports struct {
	saved []*meeting.Report
	err   error
}

func (f *fakeReports) Save(_ context.Context, rep *meeting.Report) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, rep)
	return nil
}

type fakeEnqueuer struct {
	jobs []*queues.IndexJob
	err  error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, job *queues.IndexJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeSessions struct {
	updated []*meeting.Session
	err     error
}

func (f *fakeSessions) Update(ctx context.Context, s *meeting.Session) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if f.err != nil {
		return f.err
	}
	f.updated = append(f.updated, s)
	return nil
}

func completedSession() *meeting.Session {
	s := meeting.NewSession("alice", "https://meet.google.com/abc-defg-hij", nil)
	s.State = meeting.StateCompleted
	s.AudioPath = "/recordings/" + s.ID.String() + ".wav"
	return s
}

func segments() []meeting.TranscriptSegment {
	return []meeting.TranscriptSegment{
		{Start: 0, End: 5, Text: "hello everyone"},
		{Start: 5, End: 10, Text: "let us begin"},
	}
}

func TestProcessEndToEnd(t *testing.T) {
	intel := &fakeIntel{segments: segments()}
	diarizer := &fakeDiarizer{spans: []meeting.DiarizationSpan{
		{Start: 0, End: 5, Speaker: "SPEAKER_00"},
		{Start: 5, End: 10, Speaker: "SPEAKER_01"},
	}}
	reports := &fakeReports{}
	queue := &fakeEnqueuer{}
	p := New(intel, diarizer, reports, queue, WithLogger(logging.NewNopLogger()))

	session := completedSession()
	rep, err := p.Process(context.Background(), session)
	require.NoError(t, err)

	require.Len(t, reports.saved, 1)
	assert.Equal(t, rep, reports.saved[0])

	// Synthesis received the speaker-attributed transcript.
	require.Len(t, intel.gotTranscript, 2)
	assert.Equal(t, "SPEAKER_00", intel.gotTranscript[0].Speaker)
	assert.Equal(t, "SPEAKER_01", intel.gotTranscript[1].Speaker)
	assert.Equal(t, 2, intel.gotStats.SpeakerCount)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, session.ID, queue.jobs[0].SessionID)
	assert.Equal(t, "alice", queue.jobs[0].UserID)
}

func TestProcessDiarizationFailureDegrades(t *testing.T) {
	intel := &fakeIntel{segments: segments()}
	diarizer := &fakeDiarizer{err: errors.New("diarizer offline")}
	reports := &fakeReports{}
	p := New(intel, diarizer, reports, &fakeEnqueuer{}, WithLogger(logging.NewNopLogger()))

	rep, err := p.Process(context.Background(), completedSession())
	require.NoError(t, err)

	for _, seg := range rep.Transcript {
		assert.Equal(t, meeting.UnknownSpeaker, seg.Speaker)
	}
	assert.Len(t, reports.saved, 1)
}

func TestProcessTranscriptionFailureIsFatal(t *testing.T) {
	intel := &fakeIntel{transcribeErr: renaerrors.NewSessionError(
		renaerrors.ReasonTranscriptionUnavailable, "", "all attempts failed", nil)}
	reports := &fakeReports{}
	queue := &fakeEnqueuer{}
	p := New(intel, &fakeDiarizer{}, reports, queue, WithLogger(logging.NewNopLogger()))

	_, err := p.Process(context.Background(), completedSession())
	require.Error(t, err)

	assert.Equal(t, renaerrors.ReasonTranscriptionUnavailable, renaerrors.ReasonOf(err))
	assert.Empty(t, reports.saved)
	assert.Empty(t, queue.jobs)
}

func TestProcessPersistFailure(t *testing.T) {
	intel := &fakeIntel{segments: segments()}
	reports := &fakeReports{err: errors.New("db down")}
	queue := &fakeEnqueuer{}
	p := New(intel, &fakeDiarizer{}, reports, queue, WithLogger(logging.NewNopLogger()))

	_, err := p.Process(context.Background(), completedSession())
	require.Error(t, err)
	assert.Equal(t, renaerrors.ReasonStorageFailed, renaerrors.ReasonOf(err))
	assert.Empty(t, queue.jobs, "no indexing job for an unpersisted report")
}

func TestProcessMarksSessionFailedOnTranscriptionFailure(t *testing.T) {
	intel := &fakeIntel{transcribeErr: renaerrors.NewSessionError(
		renaerrors.ReasonTranscriptionUnavailable, "", "all attempts failed", nil)}
	sessions := &fakeSessions{}
	p := New(intel, &fakeDiarizer{}, &fakeReports{}, &fakeEnqueuer{},
		WithLogger(logging.NewNopLogger()), WithSessionStore(sessions))

	session := completedSession()
	_, err := p.Process(context.Background(), session)
	require.Error(t, err)

	// The session must end up FAILED with its terminal reason, both in
	// memory and in the store, so meeting list shows it as failed.
	assert.Equal(t, meeting.StateFailed, session.State)
	assert.Equal(t, renaerrors.ReasonTranscriptionUnavailable, session.FailureReason)
	assert.Equal(t, meeting.StateCompleted, session.FailedFrom)
	require.Len(t, sessions.updated, 1)
	assert.Same(t, session, sessions.updated[0])
}

func TestProcessMarksSessionFailedOnPersistFailure(t *testing.T) {
	intel := &fakeIntel{segments: segments()}
	sessions := &fakeSessions{}
	p := New(intel, &fakeDiarizer{}, &fakeReports{err: errors.New("db down")}, &fakeEnqueuer{},
		WithLogger(logging.NewNopLogger()), WithSessionStore(sessions))

	session := completedSession()
	_, err := p.Process(context.Background(), session)
	require.Error(t, err)

	assert.Equal(t, meeting.StateFailed, session.State)
	assert.Equal(t, renaerrors.ReasonStorageFailed, session.FailureReason)
	require.Len(t, sessions.updated, 1)
}

func TestProcessFailurePersistsWithCancelledContext(t *testing.T) {
	intel := &fakeIntel{transcribeErr: renaerrors.NewSessionError(
		renaerrors.ReasonTranscriptionUnavailable, "", "all attempts failed", nil)}
	sessions := &fakeSessions{}
	p := New(intel, &fakeDiarizer{}, &fakeReports{}, &fakeEnqueuer{},
		WithLogger(logging.NewNopLogger()), WithSessionStore(sessions))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := completedSession()
	_, err := p.Process(ctx, session)
	require.Error(t, err)

	// The failure write must not ride the pipeline's cancelled context.
	require.Len(t, sessions.updated, 1)
	assert.Equal(t, meeting.StateFailed, sessions.updated[0].State)
}

func TestProcessEnqueueFailureIsNotFatal(t *testing.T) {
	intel := &fakeIntel{segments: segments()}
	reports := &fakeReports{}
	queue := &fakeEnqueuer{err: errors.New("redis down")}
	p := New(intel, &fakeDiarizer{}, reports, queue, WithLogger(logging.NewNopLogger()))

	rep, err := p.Process(context.Background(), completedSession())
	require.NoError(t, err)
	assert.NotNil(t, rep)
	assert.Len(t, reports.saved, 1)
}

func TestProcessRejectsNonCompletedSession(t *testing.T) {
	p := New(&fakeIntel{}, &fakeDiarizer{}, &fakeReports{}, &fakeEnqueuer{}, WithLogger(logging.NewNopLogger()))

	session := completedSession()
	session.State = meeting.StateRecording

	_, err := p.Process(context.Background(), session)
	assert.ErrorIs(t, err, renaerrors.ErrInvalidState)
}

func TestProcessRejectsMissingArtifact(t *testing.T) {
	p := New(&fakeIntel{}, &fakeDiarizer{}, &fakeReports{}, &fakeEnqueuer{}, WithLogger(logging.NewNopLogger()))

	session := completedSession()
	session.AudioPath = ""

	_, err := p.Process(context.Background(), session)
	assert.ErrorIs(t, err, renaerrors.ErrValidation)
}

// Package meeting defines the core domain model for captured meetings:
// sessions, transcripts, diarization spans, analytics, and intelligence
// reports. Every entity downstream of a session carries the session's owning
// user identity; that identity scopes every read path in the system.
package meeting

import (
	"time"

	"github.com/google/uuid"

	renaerrors "github.com/renalabs/rena/pkg/errors"
)

// State is a lifecycle state of a bot session.
type State string

const (
	StateScheduled   State = "SCHEDULED"
	StateJoining     State = "JOINING"
	StateWaitingRoom State = "WAITING_ROOM"
	StateInMeeting   State = "IN_MEETING"
	StateRecording   State = "RECORDING"
	StateLeaving     State = "LEAVING"
	StateCompleted   State = "COMPLETED"
	StateFailed      State = "FAILED"
	StateCancelled   State = "CANCELLED"
)

// Terminal reports whether a session in this state is immutable.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Session is a dispatched bot meeting session. It is created when dispatch is
// requested and mutated only by the lifecycle state machine and the pipeline
// stages that attach results.
type Session struct {
	ID            uuid.UUID
	UserID        string
	MeetingURL    string
	Platform      Platform
	Title         string
	State         State
	FailureReason renaerrors.ReasonCode
	// FailedFrom is the state the session was in when it failed, empty
	// unless State is FAILED.
	FailedFrom State
	ScheduledAt   *time.Time
	JoinedAt      *time.Time
	LeftAt        *time.Time
	AudioPath     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewSession creates a session in SCHEDULED for the given user and URL.
func NewSession(userID, meetingURL string, scheduledAt *time.Time) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:          uuid.New(),
		UserID:      userID,
		MeetingURL:  meetingURL,
		Platform:    DetectPlatform(meetingURL),
		State:       StateScheduled,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// UnknownSpeaker is the label assigned when alignment cannot attribute a
// segment to any diarization span without guessing.
const UnknownSpeaker = "unknown"

// TranscriptSegment is one timed piece of transcribed speech. Offsets are
// seconds from session start and monotonic within a session.
type TranscriptSegment struct {
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Text       string   `json:"text"`
	Speaker    string   `json:"speaker,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Duration returns the segment length in seconds.
func (s TranscriptSegment) Duration() float64 {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// DiarizationSpan is a speaker-attributed time interval from the diarization
// service. Spans are consumed by alignment and never persisted standalone.
type DiarizationSpan struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// SpeakerProfile holds derived per-speaker metrics for one session. Profiles
// are recomputed whenever the aligned transcript changes.
type SpeakerProfile struct {
	Speaker        string   `json:"speaker"`
	TalkTimeSec    float64  `json:"talk_time_sec"`
	WordCount      int      `json:"word_count"`
	TurnCount      int      `json:"turn_count"`
	WordsPerMinute *float64 `json:"words_per_minute"` // nil when talk time is zero
}

// Analytics is the quantitative snapshot derived from an aligned transcript.
type Analytics struct {
	DurationSec     float64          `json:"duration_sec"`
	SpeakerCount    int              `json:"speaker_count"`
	TotalWords      int              `json:"total_words"`
	Speakers        []SpeakerProfile `json:"speakers"`
	EngagementScore float64          `json:"engagement_score"`
}

// ActionItem is a task extracted from the meeting.
type ActionItem struct {
	Task     string `json:"task"`
	Owner    string `json:"owner"`
	Deadline string `json:"deadline,omitempty"`
}

// Report is the structured synthesis output for one session. It is one-to-one
// with a session once synthesis succeeds and immutable after creation except
// for replace-on-regeneration.
type Report struct {
	SessionID uuid.UUID    `json:"session_id"`
	UserID    string       `json:"user_id"`
	SummaryEN string       `json:"summary_en"`
	SummaryHI string       `json:"summary_hi"`
	Minutes   []string     `json:"minutes"`
	Actions   []ActionItem `json:"actions"`

	Transcript []TranscriptSegment `json:"transcript"`
	Analytics  Analytics           `json:"analytics"`

	// SynthesisIncomplete marks a partial report: the transcript and analytics
	// are present but narrative synthesis failed on every model.
	SynthesisIncomplete bool `json:"synthesis_incomplete"`

	CreatedAt time.Time `json:"created_at"`
}

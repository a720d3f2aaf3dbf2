package meeting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url  string
		want Platform
	}{
		{"https://meet.google.com/abc-defg-hij", PlatformMeet},
		{"http://meet.google.com/xyz-abcd-efg?authuser=1", PlatformMeet},
		{"https://zoom.us/j/123456789", PlatformZoom},
		{"https://us02web.zoom.us/j/123456789?pwd=x", PlatformZoom},
		{"https://company.zoom.us/my/room", PlatformZoom},
		{"https://zoom.us/s/987654321", PlatformZoom},
		{"https://teams.microsoft.com/l/meetup-join/x", PlatformUnknown},
		{"https://example.com/meet.google.com", PlatformMeet},
		{"", PlatformUnknown},
		{"not a url", PlatformUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectPlatform(tt.url), "url %q", tt.url)
	}
}

func TestNewSession(t *testing.T) {
	start := time.Now().UTC()
	s := NewSession("alice", "https://meet.google.com/abc-defg-hij", &start)

	assert.NotEqual(t, "", s.ID.String())
	assert.Equal(t, StateScheduled, s.State)
	assert.Equal(t, PlatformMeet, s.Platform)
	assert.Equal(t, &start, s.ScheduledAt)
	assert.False(t, s.State.Terminal())
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateCancelled.Terminal())
	for _, s := range []State{StateScheduled, StateJoining, StateWaitingRoom, StateInMeeting, StateRecording, StateLeaving} {
		assert.False(t, s.Terminal(), "state %s", s)
	}
}

func TestTranscriptSegmentDuration(t *testing.T) {
	seg := TranscriptSegment{Start: 1.5, End: 4.0}
	assert.InDelta(t, 2.5, seg.Duration(), 1e-9)
}

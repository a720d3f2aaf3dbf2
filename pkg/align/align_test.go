package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renalabs/rena/pkg/meeting"
)

func seg(start, end float64, text string) meeting.TranscriptSegment {
	return meeting.TranscriptSegment{Start: start, End: end, Text: text}
}

func span(start, end float64, speaker string) meeting.DiarizationSpan {
	return meeting.DiarizationSpan{Start: start, End: end, Speaker: speaker}
}

func TestAlign_GreatestOverlapWins(t *testing.T) {
	segments := []meeting.TranscriptSegment{seg(0, 10, "hello there")}
	spans := []meeting.DiarizationSpan{
		span(0, 3, "SpeakerA"),  // 3s overlap
		span(3, 10, "SpeakerB"), // 7s overlap
	}

	aligned := Align(segments, spans)
	require.Len(t, aligned, 1)
	assert.Equal(t, "SpeakerB", aligned[0].Speaker)
}

func TestAlign_EqualOverlapCloserStartWins(t *testing.T) {
	segments := []meeting.TranscriptSegment{seg(10, 20, "mid segment")}
	spans := []meeting.DiarizationSpan{
		span(5, 15, "SpeakerA"),  // 5s overlap, start 5s before segment
		span(15, 28, "SpeakerB"), // 5s overlap, start 5s after segment start
	}

	aligned := Align(segments, spans)
	require.Len(t, aligned, 1)
	// Both overlap 5s; SpeakerA's start (5) is 5 away from the segment start,
	// SpeakerB's start (15) is also 5 away. True tie -> unknown.
	assert.Equal(t, meeting.UnknownSpeaker, aligned[0].Speaker)
}

func TestAlign_EqualOverlapDistinctDistances(t *testing.T) {
	segments := []meeting.TranscriptSegment{seg(10, 20, "mid segment")}
	spans := []meeting.DiarizationSpan{
		span(8, 15, "SpeakerA"),  // 5s overlap, start 2s from segment start
		span(15, 30, "SpeakerB"), // 5s overlap, start 5s from segment start
	}

	aligned := Align(segments, spans)
	require.Len(t, aligned, 1)
	assert.Equal(t, "SpeakerA", aligned[0].Speaker)
}

func TestAlign_NoOverlappingSpanIsUnknownNotDropped(t *testing.T) {
	segments := []meeting.TranscriptSegment{
		seg(0, 5, "covered"),
		seg(100, 105, "orphan"),
	}
	spans := []meeting.DiarizationSpan{span(0, 5, "SpeakerA")}

	aligned := Align(segments, spans)
	require.Len(t, aligned, 2)
	assert.Equal(t, "SpeakerA", aligned[0].Speaker)
	assert.Equal(t, meeting.UnknownSpeaker, aligned[1].Speaker)
	assert.Equal(t, "orphan", aligned[1].Text)
}

func TestAlign_PreservesSegmentCountTextAndOrder(t *testing.T) {
	segments := []meeting.TranscriptSegment{
		seg(0, 2, "one"),
		seg(2, 4, "two"),
		seg(4, 6, "three"),
		seg(6, 8, "four"),
	}
	spans := []meeting.DiarizationSpan{
		span(0, 3, "A"),
		span(3, 8, "B"),
	}

	aligned := Align(segments, spans)
	require.Len(t, aligned, len(segments))
	for i := range segments {
		assert.Equal(t, segments[i].Text, aligned[i].Text)
		assert.Equal(t, segments[i].Start, aligned[i].Start)
		assert.Equal(t, segments[i].End, aligned[i].End)
	}
	// Input slice untouched.
	assert.Empty(t, segments[0].Speaker)
}

func TestAlign_UnsortedSpans(t *testing.T) {
	segments := []meeting.TranscriptSegment{
		seg(0, 10, "first"),
		seg(10, 20, "second"),
	}
	spans := []meeting.DiarizationSpan{
		span(10, 20, "B"),
		span(0, 10, "A"),
	}

	aligned := Align(segments, spans)
	assert.Equal(t, "A", aligned[0].Speaker)
	assert.Equal(t, "B", aligned[1].Speaker)
}

func TestAlign_SpanCoveringMultipleSegments(t *testing.T) {
	segments := []meeting.TranscriptSegment{
		seg(0, 100, "long opener"),
		seg(100, 110, "short reply"),
	}
	spans := []meeting.DiarizationSpan{
		span(0, 105, "A"),
		span(105, 120, "B"),
	}

	aligned := Align(segments, spans)
	assert.Equal(t, "A", aligned[0].Speaker)
	// Segment 2: A overlaps 5s, B overlaps 5s; A starts 100s away, B 5s away.
	assert.Equal(t, "B", aligned[1].Speaker)
}

func TestAlign_TwoSpeakerMeetingScenario(t *testing.T) {
	// 10-minute meeting: SpeakerA owns [0,300), SpeakerB owns [300,600).
	spans := []meeting.DiarizationSpan{
		span(0, 300, "SpeakerA"),
		span(300, 600, "SpeakerB"),
	}
	var segments []meeting.TranscriptSegment
	for start := 0.0; start < 600; start += 30 {
		segments = append(segments, seg(start+1, start+29, "segment text"))
	}

	aligned := Align(segments, spans)
	require.Len(t, aligned, 20)
	for _, s := range aligned {
		if s.End <= 300 {
			assert.Equal(t, "SpeakerA", s.Speaker)
		} else {
			assert.Equal(t, "SpeakerB", s.Speaker)
		}
	}
}

func TestAlign_EmptyInputs(t *testing.T) {
	assert.Empty(t, Align(nil, nil))
	aligned := Align([]meeting.TranscriptSegment{seg(0, 1, "x")}, nil)
	require.Len(t, aligned, 1)
	assert.Equal(t, meeting.UnknownSpeaker, aligned[0].Speaker)
}

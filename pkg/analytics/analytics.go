// Package analytics derives quantitative speaker and meeting metrics from an
// aligned transcript. It is a pure function of its input and makes no external
// calls, so it can run alongside synthesis without coordination.
package analytics

import (
	"sort"
	"strings"

	"github.com/renalabs/rena/pkg/meeting"
)

// Saturation constants for the engagement score. Each component is mapped
// through x/(x+k), which is monotonic increasing and bounded below 1, so the
// weighted combination stays inside [0, 100] and never decreases when any
// input grows.
const (
	turnSaturation    = 20.0  // turns at which the turn component reaches 0.5
	speakerSaturation = 4.0   // speakers at which the diversity component reaches 0.5
	densitySaturation = 150.0 // words/min at which the density component reaches 0.5

	turnWeight    = 0.4
	speakerWeight = 0.3
	densityWeight = 0.3
)

// Compute builds the analytics snapshot for an aligned transcript. The
// transcript is expected in chronological order with speaker labels attached;
// segments labeled meeting.UnknownSpeaker are counted as their own speaker for
// talk time but excluded from the diversity component.
func Compute(transcript []meeting.TranscriptSegment) meeting.Analytics {
	a := meeting.Analytics{}
	if len(transcript) == 0 {
		return a
	}

	a.DurationSec = transcript[len(transcript)-1].End

	byName := make(map[string]*meeting.SpeakerProfile)
	prevSpeaker := ""
	for _, seg := range transcript {
		p, ok := byName[seg.Speaker]
		if !ok {
			p = &meeting.SpeakerProfile{Speaker: seg.Speaker}
			byName[seg.Speaker] = p
		}

		p.TalkTimeSec += seg.Duration()
		words := len(strings.Fields(seg.Text))
		p.WordCount += words
		a.TotalWords += words

		// A turn is a maximal run of consecutive segments by the same speaker.
		if seg.Speaker != prevSpeaker {
			p.TurnCount++
			prevSpeaker = seg.Speaker
		}
	}

	totalTurns := 0
	for _, p := range byName {
		if p.TalkTimeSec > 0 {
			wpm := float64(p.WordCount) / (p.TalkTimeSec / 60.0)
			p.WordsPerMinute = &wpm
		}
		totalTurns += p.TurnCount
		a.Speakers = append(a.Speakers, *p)
		if p.Speaker != meeting.UnknownSpeaker {
			a.SpeakerCount++
		}
	}
	sort.Slice(a.Speakers, func(i, j int) bool {
		return a.Speakers[i].TalkTimeSec > a.Speakers[j].TalkTimeSec
	})

	a.EngagementScore = engagementScore(totalTurns, a.SpeakerCount, wordDensity(a.TotalWords, a.DurationSec))
	return a
}

// wordDensity is words per minute of meeting duration.
func wordDensity(totalWords int, durationSec float64) float64 {
	if durationSec <= 0 {
		return 0
	}
	return float64(totalWords) / (durationSec / 60.0)
}

// engagementScore combines normalized turn count, speaker diversity, and word
// density into a score in [0, 100]. Each component saturates via x/(x+k), so
// the score is monotonic non-decreasing in every input.
func engagementScore(turns, speakers int, density float64) float64 {
	turnComponent := saturate(float64(turns), turnSaturation)
	speakerComponent := saturate(float64(speakers), speakerSaturation)
	densityComponent := saturate(density, densitySaturation)

	return 100 * (turnWeight*turnComponent + speakerWeight*speakerComponent + densityWeight*densityComponent)
}

func saturate(x, k float64) float64 {
	if x <= 0 {
		return 0
	}
	return x / (x + k)
}

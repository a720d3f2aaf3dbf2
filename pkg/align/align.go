// Package align merges independently time-boxed transcription and diarization
// outputs into a single ordered, speaker-attributed transcript.
//
// Alignment only attaches speaker labels: it never drops, merges, or reorders
// transcript segments, since that would corrupt the word-for-word record.
package align

import (
	"math"
	"sort"

	"github.com/renalabs/rena/pkg/meeting"
)

// Align assigns a speaker label to every transcript segment by overlapping it
// with diarization spans. For each segment the span with the greatest overlap
// duration wins; on equal overlap the span whose start is closer to the
// segment's start wins; on a true tie, or when no span overlaps, the segment
// is labeled meeting.UnknownSpeaker.
//
// Segments are expected in chronological order. Spans may arrive in any order;
// they are sorted by start time and consumed with a sweep so the join stays
// near-linear instead of a full cross product.
func Align(segments []meeting.TranscriptSegment, spans []meeting.DiarizationSpan) []meeting.TranscriptSegment {
	out := make([]meeting.TranscriptSegment, len(segments))
	copy(out, segments)

	if len(out) == 0 {
		return out
	}

	sorted := make([]meeting.DiarizationSpan, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	// lo trails behind the current segment: spans ending before it can never
	// intersect a later segment because segment starts are monotonic.
	lo := 0
	for i := range out {
		seg := &out[i]

		for lo < len(sorted) && sorted[lo].End <= seg.Start {
			lo++
		}

		seg.Speaker = pickSpeaker(*seg, sorted[lo:])
	}

	return out
}

// pickSpeaker scans candidate spans (sorted by start) that may intersect the
// segment and applies the overlap and tie-break rules.
func pickSpeaker(seg meeting.TranscriptSegment, candidates []meeting.DiarizationSpan) string {
	var (
		best      string
		bestOv    float64
		bestDist  float64
		ambiguous bool
	)

	for _, sp := range candidates {
		if sp.Start >= seg.End {
			break
		}
		ov := overlap(seg.Start, seg.End, sp.Start, sp.End)
		if ov <= 0 {
			continue
		}
		dist := math.Abs(sp.Start - seg.Start)

		switch {
		case ov > bestOv:
			best, bestOv, bestDist, ambiguous = sp.Speaker, ov, dist, false
		case ov == bestOv:
			if dist < bestDist {
				best, bestDist, ambiguous = sp.Speaker, dist, false
			} else if dist == bestDist && sp.Speaker != best {
				// Equal overlap and equally close starts: refuse to guess.
				ambiguous = true
			}
		}
	}

	if bestOv <= 0 || ambiguous {
		return meeting.UnknownSpeaker
	}
	return best
}

// overlap returns the length of the intersection of [aStart,aEnd) and
// [bStart,bEnd), or 0 when they are disjoint.
func overlap(aStart, aEnd, bStart, bEnd float64) float64 {
	start := math.Max(aStart, bStart)
	end := math.Min(aEnd, bEnd)
	if end <= start {
		return 0
	}
	return end - start
}

// Package synthesis drives the external transcription and report-generation
// calls with a deterministic fallback chain: primary model, one retry, then a
// lower-cost secondary model. Transcription failure is fatal to the session;
// report-generation failure degrades to a partial report, because a transcript
// without narrative synthesis is still valuable and must reach the user.
package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	renaerrors "github.com/renalabs/rena/pkg/errors"
	"github.com/renalabs/rena/pkg/logging"
	"github.com/renalabs/rena/pkg/meeting"
)

// Transcriber converts an audio artifact into timestamped transcript segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, modelHint string) ([]meeting.TranscriptSegment, error)
}

// Synthesizer produces the raw structured-report JSON for a transcript.
type Synthesizer interface {
	Synthesize(ctx context.Context, transcript, model string) (json.RawMessage, error)
}

// Config holds the model chain and per-call deadline.
type Config struct {
	PrimaryModel  string
	FallbackModel string
	CallTimeout   time.Duration
}

// Orchestrator coordinates transcription and report generation.
type Orchestrator struct {
	transcriber Transcriber
	synthesizer Synthesizer
	cfg         Config
	logger      logging.Logger
}

// New creates an orchestrator over the given service clients.
func New(transcriber Transcriber, synthesizer Synthesizer, cfg Config, logger logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.MustGlobal()
	}
	return &Orchestrator{
		transcriber: transcriber,
		synthesizer: synthesizer,
		cfg:         cfg,
		logger:      logger.With(logging.F("component", "synthesis_orchestrator")),
	}
}

// Transcribe runs the transcription fallback chain: primary model, one retry
// against the primary, then the fallback model. When every attempt fails the
// session must be failed with reason "transcription unavailable" -- no partial
// report is possible without a transcript.
func (o *Orchestrator) Transcribe(ctx context.Context, audioPath string) ([]meeting.TranscriptSegment, error) {
	attempts := []string{o.cfg.PrimaryModel, o.cfg.PrimaryModel, o.cfg.FallbackModel}

	var lastErr error
	for i, model := range attempts {
		segments, err := o.callTranscribe(ctx, audioPath, model)
		if err == nil {
			if i > 0 {
				o.logger.Info("Transcription succeeded after fallback",
					logging.F("model", model),
					logging.F("attempt", i+1))
			}
			return segments, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if !renaerrors.IsRetryable(err) {
			o.logger.Error("Transcription failed with non-retryable error", logging.Err(err))
			break
		}
		o.logger.Warn("Transcription attempt failed",
			logging.F("model", model),
			logging.F("attempt", i+1),
			logging.Err(err))
	}

	return nil, renaerrors.NewSessionError(
		renaerrors.ReasonTranscriptionUnavailable, "",
		"all transcription models failed", lastErr)
}

func (o *Orchestrator) callTranscribe(ctx context.Context, audioPath, model string) ([]meeting.TranscriptSegment, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()
	return o.transcriber.Transcribe(callCtx, audioPath, model)
}

// GenerateReport runs report generation over the aligned transcript. Malformed
// output is retried once on the same model before falling back; total failure
// yields a partial report flagged synthesis-incomplete rather than an error.
func (o *Orchestrator) GenerateReport(ctx context.Context, session *meeting.Session, transcript []meeting.TranscriptSegment, stats meeting.Analytics) *meeting.Report {
	report := &meeting.Report{
		SessionID:  session.ID,
		UserID:     session.UserID,
		Transcript: transcript,
		Analytics:  stats,
		CreatedAt:  time.Now().UTC(),
	}

	text := FormatTranscript(transcript)
	attempts := []string{o.cfg.PrimaryModel, o.cfg.PrimaryModel, o.cfg.FallbackModel}

	for i, model := range attempts {
		payload, err := o.callSynthesize(ctx, text, model)
		if err == nil {
			report.SummaryEN = payload.SummaryEN
			report.SummaryHI = payload.SummaryHI
			report.Minutes = payload.Minutes
			report.Actions = payload.actionItems()
			return report
		}
		if ctx.Err() != nil {
			break
		}
		o.logger.Warn("Report generation attempt failed",
			logging.F("model", model),
			logging.F("attempt", i+1),
			logging.Err(err))
	}

	o.logger.Error("All synthesis models failed, producing partial report",
		logging.F("session_id", session.ID.String()))
	report.SynthesisIncomplete = true
	report.Minutes = []string{}
	report.Actions = []meeting.ActionItem{}
	return report
}

func (o *Orchestrator) callSynthesize(ctx context.Context, transcript, model string) (*reportPayload, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	raw, err := o.synthesizer.Synthesize(callCtx, transcript, model)
	if err != nil {
		return nil, err
	}
	return parsePayload(raw)
}

// FormatTranscript renders an aligned transcript as the line-per-segment text
// the synthesis prompt consumes: "[MM:SS] Speaker: text".
func FormatTranscript(transcript []meeting.TranscriptSegment) string {
	var b strings.Builder
	for _, seg := range transcript {
		m := int(seg.Start) / 60
		s := int(seg.Start) % 60
		speaker := seg.Speaker
		if speaker == "" {
			speaker = meeting.UnknownSpeaker
		}
		fmt.Fprintf(&b, "[%02d:%02d] %s: %s\n", m, s, speaker, seg.Text)
	}
	return b.String()
}

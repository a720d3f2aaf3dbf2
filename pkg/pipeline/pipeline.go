// Package pipeline turns a completed session's audio artifact into a stored
// intelligence report: diarization and transcription, speaker alignment,
// analytics, report synthesis, persistence, and an indexing job for the
// knowledge base.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/renalabs/rena/pkg/align"
	"github.com/renalabs/rena/pkg/analytics"
	renaerrors "github.com/renalabs/rena/pkg/errors"
	"github.com/renalabs/rena/pkg/logging"
	"github.com/renalabs/rena/pkg/meeting"
	"github.com/renalabs/rena/pkg/queues"
)

// Intelligence is the transcription and synthesis surface the pipeline needs.
type Intelligence interface {
	Transcribe(ctx context.Context, audioPath string) ([]meeting.TranscriptSegment, error)
	GenerateReport(ctx context.Context, session *meeting.Session, transcript []meeting.TranscriptSegment, stats meeting.Analytics) *meeting.Report
}

// Diarizer produces speaker spans for an audio artifact.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string) ([]meeting.DiarizationSpan, error)
}

// ReportStore persists finished reports.
type ReportStore interface {
	Save(ctx context.Context, rep *meeting.Report) error
}

// SessionStore persists session state changes.
type SessionStore interface {
	Update(ctx context.Context, s *meeting.Session) error
}

// Enqueuer hands completed reports to the indexing queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *queues.IndexJob) error
}

// Pipeline orchestrates post-meeting processing.
type Pipeline struct {
	intel    Intelligence
	diarize  Diarizer
	reports  ReportStore
	queue    Enqueuer
	sessions SessionStore
	tracer   *Tracer
	logger   logging.Logger

	processed *prometheus.CounterVec
	duration  prometheus.Histogram
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger.
func WithLogger(logger logging.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithSessionStore lets the pipeline record a processing failure on the
// session itself.
func WithSessionStore(sessions SessionStore) Option {
	return func(p *Pipeline) { p.sessions = sessions }
}

// WithRegistry registers pipeline metrics with the given registry.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(p *Pipeline) {
		reg.MustRegister(p.processed, p.duration)
	}
}

// New creates a processing pipeline.
func New(intel Intelligence, diarize Diarizer, reports ReportStore, queue Enqueuer, opts ...Option) *Pipeline {
	p := &Pipeline{
		intel:   intel,
		diarize: diarize,
		reports: reports,
		queue:   queue,
		tracer:  NewTracer(),
		logger:  logging.MustGlobal(),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rena",
			Subsystem: "pipeline",
			Name:      "sessions_total",
			Help:      "Sessions processed, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rena",
			Subsystem: "pipeline",
			Name:      "processing_seconds",
			Help:      "End-to-end processing time per session.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(logging.F("component", "pipeline"))
	return p
}

// Process runs the full post-meeting pipeline for a completed session and
// returns the stored report. Diarization failure degrades to an unattributed
// transcript; transcription failure is fatal. Synthesis failure never is: the
// orchestrator hands back a partial report instead.
func (p *Pipeline) Process(ctx context.Context, session *meeting.Session) (*meeting.Report, error) {
	if session.State != meeting.StateCompleted {
		return nil, fmt.Errorf("%w: session %s is %s, not COMPLETED",
			renaerrors.ErrInvalidState, session.ID, session.State)
	}
	if session.AudioPath == "" {
		return nil, fmt.Errorf("%w: session %s has no audio artifact",
			renaerrors.ErrValidation, session.ID)
	}

	ctx = context.WithValue(ctx, logging.SessionIDKey, session.ID.String())
	ctx, root := p.tracer.StartSessionSpan(ctx, session.UserID, session.ID.String())
	start := time.Now()

	rep, err := p.process(ctx, session)
	endStage(root, err)
	p.duration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.processed.WithLabelValues("failed").Inc()
		p.markFailed(session, err)
		return nil, err
	}
	if rep.SynthesisIncomplete {
		p.processed.WithLabelValues("partial").Inc()
	} else {
		p.processed.WithLabelValues("ok").Inc()
	}
	return rep, nil
}

func (p *Pipeline) process(ctx context.Context, session *meeting.Session) (*meeting.Report, error) {
	logger := p.logger.WithContext(ctx)
	logger.Info("Processing session",
		logging.F("session_id", session.ID.String()),
		logging.F("audio_path", session.AudioPath))

	// Diarization runs first; its failure only costs speaker labels.
	sctx, span := p.tracer.StartStageSpan(ctx, "diarize")
	spans, err := p.diarize.Diarize(sctx, session.AudioPath)
	endStage(span, err)
	if err != nil {
		logger.Warn("Diarization failed, transcript will be unattributed",
			logging.Err(err))
		spans = nil
	}

	sctx, span = p.tracer.StartStageSpan(ctx, "transcribe")
	segments, err := p.intel.Transcribe(sctx, session.AudioPath)
	endStage(span, err)
	if err != nil {
		return nil, err
	}

	_, span = p.tracer.StartStageSpan(ctx, "align")
	transcript := align.Align(segments, spans)
	span.SetAttributes(attribute.Int(AttrSegments, len(transcript)))
	endStage(span, nil)

	stats := analytics.Compute(transcript)
	logger.Info("Transcript analyzed",
		logging.F("segments", len(transcript)),
		logging.F("speakers", stats.SpeakerCount),
		logging.F("engagement", stats.EngagementScore))

	sctx, span = p.tracer.StartStageSpan(ctx, "synthesize")
	rep := p.intel.GenerateReport(sctx, session, transcript, stats)
	endStage(span, nil)

	sctx, span = p.tracer.StartStageSpan(ctx, "persist")
	err = p.reports.Save(sctx, rep)
	endStage(span, err)
	if err != nil {
		return nil, renaerrors.NewSessionError(renaerrors.ReasonStorageFailed,
			string(session.State), "failed to persist report", err)
	}

	// Indexing is asynchronous; a queue hiccup must not fail a session whose
	// report is already durable.
	if p.queue != nil {
		job := queues.NewIndexJob(session.UserID, session.ID)
		if err := p.queue.Enqueue(ctx, job); err != nil {
			logger.Error("Failed to enqueue indexing job", logging.Err(err))
		}
	}

	logger.Info("Session processed",
		logging.F("session_id", session.ID.String()),
		logging.F("synthesis_incomplete", rep.SynthesisIncomplete))
	return rep, nil
}

// markFailed moves the session to FAILED with the failure's reason code and
// persists it. A meeting that finished but lost its transcript must read as
// failed with a terminal reason, not as completed without a report. The write
// uses a detached context so a cancelled pipeline still records its outcome.
func (p *Pipeline) markFailed(session *meeting.Session, cause error) {
	session.FailedFrom = session.State
	session.State = meeting.StateFailed
	reason := renaerrors.ReasonOf(cause)
	if reason == "" {
		reason = renaerrors.ReasonUnknown
	}
	session.FailureReason = reason
	session.UpdatedAt = time.Now().UTC()

	if p.sessions == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.sessions.Update(ctx, session); err != nil {
		p.logger.Error("Failed to persist session failure",
			logging.F("session_id", session.ID.String()),
			logging.F("reason", string(reason)),
			logging.Err(err))
	}
}

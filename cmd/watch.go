package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/renalabs/rena/client"
	"github.com/renalabs/rena/config"
	"github.com/renalabs/rena/pkg/bot"
	"github.com/renalabs/rena/pkg/db"
	"github.com/renalabs/rena/pkg/kb"
	"github.com/renalabs/rena/pkg/logging"
	"github.com/renalabs/rena/pkg/meeting"
	"github.com/renalabs/rena/pkg/pipeline"
	"github.com/renalabs/rena/pkg/queues"
	"github.com/renalabs/rena/pkg/scheduler"
	"github.com/renalabs/rena/pkg/store"
)

// NewWatchCommand runs the auto-join scheduler and the indexing worker until
// interrupted.
func NewWatchCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Auto-join meetings from the calendar",
		Long: `Watch the calendar and dispatch the bot into meetings as they start.

Events are joined when they started within the join window and carry a
recognized meeting link. Each joined meeting is recorded, processed, and
indexed into the knowledge base. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), app)
		},
	}
}

func runWatch(ctx context.Context, app *App) error {
	cfg, err := app.Config()
	if err != nil {
		return err
	}
	logger := app.Logger()

	sessions, err := app.Sessions(ctx)
	if err != nil {
		return err
	}
	pool, err := app.DB(ctx)
	if err != nil {
		return err
	}
	hs := db.Check(ctx, pool)
	if !hs.Healthy {
		return fmt.Errorf("database unhealthy: %w", hs.Error)
	}
	logger.Info("Database healthy", logging.F("latency", hs.Latency))
	p, err := app.Pipeline(ctx)
	if err != nil {
		return err
	}

	calBase, err := app.serviceClient("calendar")
	if err != nil {
		return err
	}
	calendar := client.NewCalendarClient(calBase, cfg.Services.CalendarURL, app.UserID)

	runner := &botRunner{app: app, cfg: cfg, sessions: sessions, pipeline: p, logger: logger}
	sched := scheduler.New(calendar, sessions, runner, scheduler.Config{
		PollInterval: cfg.Scheduler.PollInterval,
		JoinDelay:    cfg.Scheduler.JoinDelay,
	}, logger)

	// The indexing worker shares the process with the scheduler.
	queue, err := app.Queue()
	if err != nil {
		return err
	}
	if err := queue.Ping(ctx); err != nil {
		return fmt.Errorf("redis unavailable: %w", err)
	}
	kbSvc, err := app.KB(ctx)
	if err != nil {
		return err
	}
	reports, err := app.Reports(ctx)
	if err != nil {
		return err
	}
	worker := queues.NewWorker(queue, indexHandler(reports, kbSvc),
		queues.DefaultRetryPolicy(), nil, logger)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		_ = worker.Run(ctx)
	}()

	fmt.Println("Watching calendar for meetings. Press Ctrl+C to stop.")
	err = sched.Run(ctx)
	<-workerDone
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// indexHandler loads the stored report for a job and indexes it.
func indexHandler(reports *store.ReportRepository, kbSvc *kb.Service) queues.Handler {
	return func(ctx context.Context, job *queues.IndexJob) error {
		rep, err := reports.Get(ctx, job.UserID, job.SessionID)
		if err != nil {
			return err
		}
		return kbSvc.IndexReport(ctx, rep)
	}
}

// botRunner launches one lifecycle machine per dispatched session and pushes
// the finished recording through the pipeline.
type botRunner struct {
	app      *App
	cfg      *config.Config
	sessions *store.SessionRepository
	pipeline *pipeline.Pipeline
	logger   logging.Logger
}

func (r *botRunner) Dispatch(ctx context.Context, session *meeting.Session) error {
	room, err := r.app.RoomClient()
	if err != nil {
		return err
	}
	captureMgr, err := r.app.CaptureManager()
	if err != nil {
		return err
	}

	machine := bot.NewMachine(session, room, captureMgr, bot.Config{
		PollInterval:     r.cfg.Bot.PollInterval,
		AdmissionTimeout: r.cfg.Bot.AdmissionTimeout,
		IdleRoomTimeout:  r.cfg.Bot.IdleRoomTimeout,
	}, persistTransitions(r.sessions, r.logger), r.logger)

	go func() {
		if err := machine.Run(ctx); err != nil {
			r.logger.Error("Session failed",
				logging.F("session_id", session.ID.String()),
				logging.Err(err))
			return
		}
		if session.State != meeting.StateCompleted {
			return
		}
		if _, err := r.pipeline.Process(ctx, session); err != nil {
			r.logger.Error("Processing failed",
				logging.F("session_id", session.ID.String()),
				logging.Err(err))
		}
	}()
	return nil
}

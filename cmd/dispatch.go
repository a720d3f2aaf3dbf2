package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/renalabs/rena/pkg/bot"
	"github.com/renalabs/rena/pkg/logging"
	"github.com/renalabs/rena/pkg/meeting"
)

// NewDispatchCommand sends the bot into a meeting right now and, once the
// session completes, runs the processing pipeline on the recording.
func NewDispatchCommand(app *App) *cobra.Command {
	var (
		title     string
		noProcess bool
	)

	cmd := &cobra.Command{
		Use:   "dispatch <meeting-url>",
		Short: "Join a meeting now and record it",
		Long: `Dispatch the bot into a meeting immediately.

The bot joins the meeting, waits out the lobby if there is one, records the
audio, and leaves when the call ends or the room stays empty. The recording
is then transcribed, attributed to speakers, and synthesized into a report.

Examples:
  rena dispatch https://meet.google.com/abc-defg-hij
  rena dispatch https://zoom.us/j/123456789 --title "Vendor sync"
  rena dispatch https://meet.google.com/abc-defg-hij --no-process`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(cmd.Context(), app, args[0], title, noProcess)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "meeting title for the session record")
	cmd.Flags().BoolVar(&noProcess, "no-process", false, "skip pipeline processing after the meeting")
	return cmd
}

func runDispatch(ctx context.Context, app *App, url, title string, noProcess bool) error {
	if meeting.DetectPlatform(url) == meeting.PlatformUnknown {
		return fmt.Errorf("unrecognized meeting URL: %s", url)
	}

	cfg, err := app.Config()
	if err != nil {
		return err
	}
	logger := app.Logger()

	sessions, err := app.Sessions(ctx)
	if err != nil {
		return err
	}

	session := meeting.NewSession(app.UserID, url, nil)
	session.Title = title
	if err := sessions.Create(ctx, session); err != nil {
		return err
	}
	fmt.Printf("Session %s created, joining meeting...\n", session.ID)

	room, err := app.RoomClient()
	if err != nil {
		return err
	}
	captureMgr, err := app.CaptureManager()
	if err != nil {
		return err
	}

	machine := bot.NewMachine(session, room, captureMgr, bot.Config{
		PollInterval:     cfg.Bot.PollInterval,
		AdmissionTimeout: cfg.Bot.AdmissionTimeout,
		IdleRoomTimeout:  cfg.Bot.IdleRoomTimeout,
	}, persistTransitions(sessions, logger), logger)

	if err := machine.Run(ctx); err != nil {
		return fmt.Errorf("session failed: %w", err)
	}
	if session.State != meeting.StateCompleted {
		fmt.Printf("Session ended in state %s\n", session.State)
		return nil
	}

	fmt.Printf("Meeting recorded to %s\n", session.AudioPath)
	if noProcess {
		return nil
	}

	p, err := app.Pipeline(ctx)
	if err != nil {
		return err
	}
	rep, err := p.Process(ctx, session)
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	printReportSummary(rep)
	return nil
}

// sessionUpdater is the slice of the session repository the transition
// observer needs.
type sessionUpdater interface {
	Update(ctx context.Context, s *meeting.Session) error
}

// persistTransitions writes every lifecycle state change through to the
// session store so crashes leave an accurate record. Each write uses its own
// short-lived context: the terminal CANCELLED/FAILED transition fires exactly
// when the command's signal-bound context is already cancelled, and it must
// still land or the stored session stays active forever.
func persistTransitions(sessions sessionUpdater, logger logging.Logger) bot.TransitionObserver {
	return func(s *meeting.Session) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sessions.Update(ctx, s); err != nil {
			logger.Error("Failed to persist session state",
				logging.F("session_id", s.ID.String()),
				logging.F("state", string(s.State)),
				logging.Err(err))
		}
	}
}

func printReportSummary(rep *meeting.Report) {
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Println("  " + rep.SummaryEN)
	if len(rep.Minutes) > 0 {
		fmt.Println("Minutes:")
		for _, m := range rep.Minutes {
			fmt.Println("  - " + m)
		}
	}
	if len(rep.Actions) > 0 {
		fmt.Println("Action items:")
		for _, a := range rep.Actions {
			line := fmt.Sprintf("  - %s (%s", a.Task, a.Owner)
			if a.Deadline != "" {
				line += ", due " + a.Deadline
			}
			fmt.Println(line + ")")
		}
	}
	if rep.SynthesisIncomplete {
		fmt.Println("Note: synthesis was unavailable; transcript and analytics are stored, summary is missing.")
	}
	fmt.Printf("Engagement score: %.1f (%d speakers, %d words)\n",
		rep.Analytics.EngagementScore, rep.Analytics.SpeakerCount, rep.Analytics.TotalWords)
}

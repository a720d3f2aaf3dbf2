package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/renalabs/rena/pkg/meeting"
)

// NewProcessCommand runs the post-meeting pipeline, either re-processing a
// stored session or ingesting a standalone audio file.
func NewProcessCommand(app *App) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "process <session-id | audio-file>",
		Short: "Run the processing pipeline on a recording",
		Long: `Process a recording into an intelligence report.

Given a session ID, the stored session's recording is re-processed and its
report replaced. Given an audio file path, a completed session is created for
it and processed; use this to ingest recordings made outside the bot.

Examples:
  rena process 4f8b9c1e-7d2a-4c3b-9e1f-2a6b8c0d4e5f
  rena process ./standup.wav --title "Monday standup"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), app, args[0], title)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "meeting title when ingesting an audio file")
	return cmd
}

func runProcess(ctx context.Context, app *App, target, title string) error {
	sessions, err := app.Sessions(ctx)
	if err != nil {
		return err
	}

	var session *meeting.Session
	if id, parseErr := uuid.Parse(target); parseErr == nil {
		session, err = sessions.Get(ctx, app.UserID, id)
		if err != nil {
			return fmt.Errorf("session %s: %w", id, err)
		}
	} else {
		if _, err := os.Stat(target); err != nil {
			return fmt.Errorf("audio file %s: %w", target, err)
		}
		session = meeting.NewSession(app.UserID, "file://"+target, nil)
		session.Title = title
		session.State = meeting.StateCompleted
		session.AudioPath = target
		if err := sessions.Create(ctx, session); err != nil {
			return err
		}
		fmt.Printf("Created session %s for %s\n", session.ID, target)
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

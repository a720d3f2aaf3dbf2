package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	renaerrors "github.com/renalabs/rena/pkg/errors"
	"github.com/renalabs/rena/pkg/meeting"
)

// NewMeetingCommand groups the session inspection subcommands.
func NewMeetingCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meeting",
		Short: "Inspect recorded meetings",
	}
	cmd.AddCommand(newMeetingListCommand(app))
	cmd.AddCommand(newMeetingShowCommand(app))
	return cmd
}

func newMeetingListCommand(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your meeting sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeetingList(cmd.Context(), app, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sessions to list")
	return cmd
}

func newMeetingShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session and its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid session id: %w", err)
			}
			return runMeetingShow(cmd.Context(), app, id)
		},
	}
}

func runMeetingList(ctx context.Context, app *App, limit int) error {
	sessions, err := app.Sessions(ctx)
	if err != nil {
		return err
	}
	list, err := sessions.List(ctx, app.UserID, limit)
	if err != nil {
		return err
	}

	if app.JSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(list) == 0 {
		fmt.Println("No meetings recorded yet.")
		return nil
	}
	for _, s := range list {
		title := s.Title
		if title == "" {
			title = s.MeetingURL
		}
		line := fmt.Sprintf("%s  %-11s  %s", s.ID, s.State, title)
		if s.State == meeting.StateFailed && s.FailureReason != "" {
			line += fmt.Sprintf("  (%s)", s.FailureReason)
		}
		fmt.Println(line)
	}
	return nil
}

func runMeetingShow(ctx context.Context, app *App, id uuid.UUID) error {
	sessions, err := app.Sessions(ctx)
	if err != nil {
		return err
	}
	session, err := sessions.Get(ctx, app.UserID, id)
	if err != nil {
		return err
	}

	reports, err := app.Reports(ctx)
	if err != nil {
		return err
	}
	rep, err := reports.Get(ctx, app.UserID, id)
	if err != nil && !errors.Is(err, renaerrors.ErrNotFound) {
		return err
	}

	if app.JSONOutput {
		out := struct {
			Session *meeting.Session `json:"session"`
			Report  *meeting.Report  `json:"report,omitempty"`
		}{session, rep}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Session:   %s\n", session.ID)
	fmt.Printf("State:     %s\n", session.State)
	fmt.Printf("Platform:  %s\n", session.Platform)
	fmt.Printf("URL:       %s\n", session.MeetingURL)
	if session.Title != "" {
		fmt.Printf("Title:     %s\n", session.Title)
	}
	if session.JoinedAt != nil && session.LeftAt != nil {
		fmt.Printf("Duration:  %s\n", session.LeftAt.Sub(*session.JoinedAt).Round(time.Second))
	}
	if session.FailureReason != "" {
		fmt.Printf("Failure:   %s\n", session.FailureReason.Describe())
	}
	if session.FailedFrom != "" {
		fmt.Printf("Failed in: %s\n", session.FailedFrom)
	}

	if rep == nil {
		fmt.Println("\nNo report stored for this session.")
		return nil
	}
	printReportSummary(rep)
	if rep.SummaryHI != "" {
		fmt.Println("\nसारांश:")
		fmt.Println("  " + rep.SummaryHI)
	}
	return nil
}

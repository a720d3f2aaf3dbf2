package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	renaerrors "github.com/renalabs/rena/pkg/errors"
	"github.com/renalabs/rena/pkg/meeting"
)

// NewCancelCommand cancels a session that has not joined its meeting yet.
func NewCancelCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <session-id>",
		Short: "Cancel a scheduled or joining session",
		Long: `Cancel a session before the bot is in the meeting.

Only sessions still in SCHEDULED or JOINING can be cancelled. Cancelling an
already-cancelled session is a no-op.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid session id: %w", err)
			}
			return runCancel(cmd.Context(), app, id)
		},
	}
}

func runCancel(ctx context.Context, app *App, id uuid.UUID) error {
	sessions, err := app.Sessions(ctx)
	if err != nil {
		return err
	}
	session, err := sessions.Get(ctx, app.UserID, id)
	if err != nil {
		return err
	}

	switch session.State {
	case meeting.StateCancelled:
		fmt.Printf("Session %s is already cancelled.\n", id)
		return nil
	case meeting.StateScheduled, meeting.StateJoining:
		// cancellable
	default:
		return fmt.Errorf("%w: session is %s, cancel is only valid before the bot is in the meeting",
			renaerrors.ErrInvalidState, session.State)
	}

	session.State = meeting.StateCancelled
	session.UpdatedAt = time.Now().UTC()
	if err := sessions.Update(ctx, session); err != nil {
		return err
	}

	fmt.Printf("Session %s cancelled.\n", id)
	return nil
}

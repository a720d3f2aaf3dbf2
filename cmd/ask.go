package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	renaerrors "github.com/renalabs/rena/pkg/errors"
)

// NewAskCommand queries the knowledge base.
func NewAskCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about your past meetings",
		Long: `Answer a question from your indexed meeting reports.

Retrieval is strictly scoped to your own meetings. When nothing relevant is
indexed, the command says so instead of inventing an answer.

Examples:
  rena ask "what did we decide about the Q3 budget?"
  rena ask "who owns the migration runbook?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), app, strings.Join(args, " "))
		},
	}
}

func runAsk(ctx context.Context, app *App, question string) error {
	kbSvc, err := app.KB(ctx)
	if err != nil {
		return err
	}

	ans, err := kbSvc.Ask(ctx, app.UserID, question)
	if errors.Is(err, renaerrors.ErrNoRelevantMeeting) {
		fmt.Println("No relevant meeting found for that question.")
		return nil
	}
	if err != nil {
		return err
	}

	if app.JSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ans)
	}

	fmt.Println(ans.Text)
	if len(ans.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, id := range ans.Sources {
			fmt.Println("  " + id.String())
		}
	}
	return nil
}

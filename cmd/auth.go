package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/renalabs/rena/credentials"
)

// NewAuthCommand manages API keys for the hosted services.
func NewAuthCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage service API keys",
		Long: `Store and remove API keys for the transcription, synthesis, and
embedding services. Keys live in the system keyring; set
RENA_<SERVICE>_API_KEY to bypass it in CI.`,
	}
	cmd.AddCommand(newAuthSetCommand(app))
	cmd.AddCommand(newAuthClearCommand(app))
	return cmd
}

func newAuthSetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:       "set <service>",
		Short:     "Store an API key (prompted, hidden input)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{credentials.ServiceSynthesis, credentials.ServiceTranscription, credentials.ServiceEmbedding},
		RunE: func(cmd *cobra.Command, args []string) error {
			service := args[0]
			key, err := credentials.PromptAPIKey(service)
			if err != nil {
				return err
			}
			if err := app.Credentials().Set(service, key); err != nil {
				return err
			}
			fmt.Printf("API key for %s stored.\n", service)
			return nil
		},
	}
}

func newAuthClearCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <service>",
		Short: "Remove a stored API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Credentials().Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("API key for %s removed.\n", args[0])
			return nil
		},
	}
}

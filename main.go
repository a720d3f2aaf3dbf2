// Package main provides the rena CLI entry point.
// rena is the command-line interface for the Rena meeting assistant: a bot
// that joins meetings, records them, and turns recordings into searchable
// intelligence reports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/renalabs/rena/cmd"
)

var (
	cfgFile    string
	userID     string
	jsonOutput bool
	debug      bool
)

var app = cmd.NewApp()

var rootCmd = &cobra.Command{
	Use:   "rena",
	Short: "Rena - meeting capture and intelligence",
	Long: `rena records your meetings and turns them into searchable knowledge.

The bot joins Google Meet and Zoom calls, records the audio, transcribes it
with speaker attribution, and synthesizes bilingual summaries, minutes, and
action items. Reports feed a per-user knowledge base you can question later.

COMMON WORKFLOWS:
  Join a meeting now:  rena dispatch <meeting-url>
  Auto-join all day:   rena watch
  Query past meetings: rena ask "what did we decide about X?"
  Review sessions:     rena meeting list, then rena meeting show <id>
  Re-run processing:   rena process <session-id>`,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		if c.Name() == "help" || c.Name() == "completion" {
			return nil
		}
		app.ConfigPath = cfgFile
		app.UserID = resolveUserID()
		app.JSONOutput = jsonOutput
		app.Debug = debug
		if _, err := app.Config(); err != nil {
			return err
		}
		app.Logger()
		return nil
	},
	PersistentPostRun: func(c *cobra.Command, args []string) {
		app.Close()
	},
}

// resolveUserID picks the tenant identity: flag, then env, then OS user.
func resolveUserID() string {
	if userID != "" {
		return userID
	}
	if v := os.Getenv("RENA_USER"); v != "" {
		return v
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	return "default"
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.rena/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "user the sessions and queries belong to")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "machine-readable output where supported")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(cmd.NewDispatchCommand(app))
	rootCmd.AddCommand(cmd.NewWatchCommand(app))
	rootCmd.AddCommand(cmd.NewProcessCommand(app))
	rootCmd.AddCommand(cmd.NewAskCommand(app))
	rootCmd.AddCommand(cmd.NewMeetingCommand(app))
	rootCmd.AddCommand(cmd.NewCancelCommand(app))
	rootCmd.AddCommand(cmd.NewAuthCommand(app))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

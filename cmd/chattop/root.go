package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chattop",
		Short:         "Telegram group chat leaderboard and quiz bot",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().String("config", "", "Path to configuration file (default ./config.yaml if present)")

	serve := newServeCmd()
	cmd.AddCommand(serve)
	cmd.AddCommand(newMigrateCmd())

	// Running the binary without a subcommand serves the bot.
	cmd.RunE = serve.RunE
	return cmd
}

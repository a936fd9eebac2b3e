// Package cli implements tweetctl, the operator command line for the bot.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	botconfig "github.com/prashanttc/tweetAut/internal/config"
	"github.com/prashanttc/tweetAut/pkg/config"
	"github.com/prashanttc/tweetAut/pkg/database"
	"github.com/prashanttc/tweetAut/pkg/logging"
)

var (
	output  string
	verbose bool
)

// NewRootCmd returns the root command for tweetctl.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tweetctl",
		Short:         "Operate the tweet bot from the command line",
		Long:          "tweetctl runs posting agents once, inspects recent tweets and manages the ledger schema.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "output format: json|text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newLogsCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// setup loads .env files and the bot configuration. Logs go to stderr so
// command output stays parseable.
func setup(cmd *cobra.Command) (botconfig.Config, logging.Logger) {
	logger := logging.NewLoggerWithService("tweetctl")
	logger.SetOutput(cmd.ErrOrStderr())
	config.LoadEnv(logger)
	logger.SetLevel(config.GetLogLevel())
	if verbose {
		logger.SetLevel(logging.DebugLevel)
	}
	return botconfig.LoadConfig(), logger
}

func openDB(ctx context.Context, cfg botconfig.Config, logger logging.Logger) (*database.DB, error) {
	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	return database.Connect(ctx, dbCfg, logger)
}

func jsonOutput() bool { return output == "json" }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ask-kyra/internal/app"
	"ask-kyra/internal/config"
	"ask-kyra/internal/logging"
)

var (
	services *app.App
	logger   = logging.Nop()
	verbose  bool
	envFile  = ".env"
)

var rootCmd = &cobra.Command{
	Use:   "kyractl",
	Short: "Operate the Ask Ky'ra stores from the shell",
	Long: `kyractl works on the same stores as the web form.

Available subcommands:
  import  - Append a student mapping CSV to the project store
  history - Print the stored questions and projects of a student
  digest  - Print the activity summary of one day
  admins  - Manage the admin allow-list`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && verbose {
			cmd.PrintErrf("Warning: .env file not found: %v\n", err)
		}
		cfg, err := config.New()
		if err != nil {
			return err
		}
		if verbose {
			zl, err := logging.NewZap("debug", cfg.LogFormat)
			if err != nil {
				return err
			}
			logger = logging.New(zl)
		}
		ctx := logging.ContextWithLogger(cmd.Context(), logger)
		cmd.SetContext(ctx)
		services, err = app.Build(ctx, cfg, logger)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if services == nil {
			return nil
		}
		err := services.Close()
		services = nil
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	rootCmd.AddCommand(importCmd, historyCmd, digestCmd, adminsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Zap().Debug("command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	digestDate string
	digestJSON bool
	digestSend bool
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Print the activity summary of one day",
	Args:  cobra.NoArgs,
	RunE:  runDigest,
}

func init() {
	digestCmd.Flags().StringVar(&digestDate, "date", "", "day as DD-MM-YYYY (default today)")
	digestCmd.Flags().BoolVar(&digestJSON, "json", false, "print JSON instead of text")
	digestCmd.Flags().BoolVar(&digestSend, "send", false, "also send the summary to the admin")
}

func runDigest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	day := time.Now()
	if digestDate != "" {
		parsed, err := time.ParseInLocation("02-01-2006", digestDate, time.Local)
		if err != nil {
			return fmt.Errorf("--date must be DD-MM-YYYY: %w", err)
		}
		day = parsed
	}

	stats, err := services.Desk.Digest(ctx, day)
	if err != nil {
		return err
	}
	summary := stats.GenerateReportSummary()
	if digestJSON {
		js, err := stats.ToJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), js)
	} else {
		fmt.Fprint(cmd.OutOrStdout(), summary)
	}
	if digestSend {
		return services.Notifier.Notify(ctx, summary)
	}
	return nil
}

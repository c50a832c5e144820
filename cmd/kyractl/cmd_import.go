package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ask-kyra/internal/desk"
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Append a student mapping CSV to the project store",
	Long: `Append every row of a mapping file to the project store with one shared timestamp.

The file needs a header with student_id and project_title. Other columns are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open mapping: %w", err)
	}
	defer f.Close()

	n, err := services.Desk.ImportMapping(cmd.Context(), f)
	var ve *desk.ValidationError
	if errors.As(err, &ve) {
		return errors.New(ve.Message)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rows from %s\n", n, args[0])
	return nil
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ask-kyra/internal/storage"
)

var historyJSON bool

var historyCmd = &cobra.Command{
	Use:   "history <email>",
	Short: "Print the stored questions and projects of a student",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print JSON instead of text")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	email := args[0]
	queries, err := services.Desk.QueryHistory(ctx, email)
	if err != nil {
		return err
	}
	projects, err := services.Desk.ProjectHistory(ctx, email)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		if queries == nil {
			queries = []storage.QueryRecord{}
		}
		if projects == nil {
			projects = []storage.ProjectRecord{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"queries": queries, "projects": projects})
	}

	fmt.Fprintf(out, "Questions (%d)\n", len(queries))
	for _, q := range queries {
		fmt.Fprintf(out, "  [%s] %s\n    -> %s\n", q.Timestamp, q.Query, q.Response)
	}
	fmt.Fprintf(out, "Projects (%d)\n", len(projects))
	for _, p := range projects {
		fmt.Fprintf(out, "  [%s] %s\n", p.Timestamp, p.ProjectTitle)
	}
	return nil
}

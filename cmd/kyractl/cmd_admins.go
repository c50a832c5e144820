package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ask-kyra/internal/auth"
)

var adminNote string

var adminsCmd = &cobra.Command{
	Use:   "admins",
	Short: "Manage the admin allow-list",
	Long: `Manage the emails that get the admin view in addition to the marker rule.

Available subcommands:
  list   - Print the allow-listed admins
  add    - Allow-list an email
  remove - Remove an email from the allow-list`,
}

var adminsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the allow-listed admins",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		admins := services.Auth.List()
		if len(admins) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No allow-listed admins.")
			return nil
		}
		for _, a := range admins {
			if a.Note != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", a.Email, a.Note)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), a.Email)
			}
		}
		return nil
	},
}

var adminsAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Allow-list an email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !auth.ValidEmail(args[0]) {
			return fmt.Errorf("not an email address: %s", args[0])
		}
		if err := services.Auth.Upsert(auth.Admin{Email: args[0], Note: adminNote}); err != nil {
			return fmt.Errorf("save admin: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", args[0])
		return nil
	},
}

var adminsRemoveCmd = &cobra.Command{
	Use:   "remove <email>",
	Short: "Remove an email from the allow-list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := services.Auth.Remove(args[0]); err != nil {
			return fmt.Errorf("remove admin: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	},
}

func init() {
	adminsAddCmd.Flags().StringVar(&adminNote, "note", "", "free-form note stored with the email")
	adminsCmd.AddCommand(adminsListCmd, adminsAddCmd, adminsRemoveCmd)
}

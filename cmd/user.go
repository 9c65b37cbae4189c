package cmd

import (
	"fmt"

	"github.com/bnema/atm-server/internal/client"
	"github.com/spf13/cobra"
)

func newUserCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage login credentials",
	}

	cmd.AddCommand(
		newUserAddCmd(app),
		newUserListCmd(app),
		newUserRemoveCmd(app),
	)

	return cmd
}

func newUserAddCmd(app *app) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "add <user-id>",
		Short: "Add or replace a user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.credentials.Save(cmd.Context(), args[0], client.HashPassword(password)); err != nil {
				return fmt.Errorf("save credentials: %w", err)
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "saved %s to %s\n", args[0], app.credentials.Path())
			return err
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Password the user logs in with")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newUserListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users with stored credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := app.credentials.Users(cmd.Context())
			if err != nil {
				return err
			}

			for _, user := range users {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), user)
			}

			return nil
		},
	}
}

func newUserRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <user-id>",
		Short: "Remove a user's credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.credentials.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("remove credentials: %w", err)
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return err
		},
	}
}

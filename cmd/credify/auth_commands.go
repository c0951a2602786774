package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newLoginCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in to Reddit in a browser window and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := ctx.authManager()
			if err != nil {
				return err
			}
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			fmt.Fprintln(cmd.OutOrStdout(), "Log in to Reddit in the browser window that opens...")
			if err := mgr.Login(signalCtx); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in. Restart the daemon to use the new session.")
			return nil
		},
	}
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored Reddit session",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := ctx.authManager()
			if err != nil {
				return err
			}
			if err := mgr.Logout(); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

// ABOUTME: Logout command
// ABOUTME: Revokes the saved session and clears local state

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if cfg.SessionToken == "" {
			fmt.Println("Not signed in.")
			return nil
		}
		if err := openStore(ctx); err != nil {
			return err
		}
		if session, err := combined.Resume(ctx, cfg.SessionToken); err == nil {
			eng.Bootstrap(ctx, session)
			if err := eng.Signout(ctx); err != nil {
				fmt.Printf("Warning: remote sign-out failed: %v\n", err)
			}
		}
		cfg.SessionToken = ""
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("clearing saved session: %w", err)
		}
		fmt.Println("Signed out.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

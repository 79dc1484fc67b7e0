// ABOUTME: Sharing toggle command
// ABOUTME: Enables or disables live location publishing

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var shareCmd = &cobra.Command{
	Use:   "share <on|off>",
	Short: "Toggle live location sharing",
	Long: `Toggle whether your position is published to friends.

Turning sharing off stops publishing within one sample interval; friends
keep your last published position until it expires.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := resumeSession(ctx); err != nil {
			return err
		}

		var enabled bool
		switch args[0] {
		case "on":
			enabled = true
		case "off":
			enabled = false
		default:
			return fmt.Errorf("expected 'on' or 'off', got %q", args[0])
		}

		if err := eng.ToggleSharing(ctx, enabled); err != nil {
			return err
		}
		if enabled {
			fmt.Println(color.GreenString("Sharing enabled."))
		} else {
			fmt.Println(color.YellowString("Sharing disabled."))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(shareCmd)
}

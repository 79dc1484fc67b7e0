// ABOUTME: SOS command
// ABOUTME: Sends a high-priority alert with last position to every friend

package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var sosCmd = &cobra.Command{
	Use:   "sos [message]",
	Short: "Alert all friends that you need help",
	Long: `Send a high-priority SOS alert to every friend. Your last known
position is attached when available.

Examples:
  trackmate sos
  trackmate sos "car broke down on the A10"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := resumeSession(ctx); err != nil {
			return err
		}

		message := strings.Join(args, " ")
		if err := eng.RaiseSOS(ctx, message); err != nil {
			return err
		}
		fmt.Println(color.New(color.FgRed, color.Bold).Sprint("SOS sent to all friends."))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sosCmd)
}

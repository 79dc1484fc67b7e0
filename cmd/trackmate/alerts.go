// ABOUTME: Alerts listing and dismissal commands
// ABOUTME: Shows the recent alert window, newest first

package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fightbackff-oss/trackmate/internal/ui"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List recent alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := resumeSession(ctx); err != nil {
			return err
		}

		alerts := eng.Snapshot().Alerts
		unreadOnly, _ := cmd.Flags().GetBool("unread")
		shown := 0
		for _, a := range alerts {
			if unreadOnly && a.IsRead {
				continue
			}
			fmt.Printf("%s  %s\n", a.ID.String()[:8], ui.FormatAlert(&a))
			shown++
		}
		if shown == 0 {
			fmt.Println("No alerts.")
		}
		return nil
	},
}

var dismissCmd = &cobra.Command{
	Use:   "dismiss <alert-id>",
	Short: "Dismiss an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := resumeSession(ctx); err != nil {
			return err
		}

		id, err := resolveAlertID(args[0])
		if err != nil {
			return err
		}
		eng.DismissAlert(ctx, id)
		fmt.Println("Alert dismissed.")
		return nil
	},
}

// resolveAlertID accepts a full UUID or the 8-character prefix shown by the
// alerts listing.
func resolveAlertID(arg string) (uuid.UUID, error) {
	if id, err := uuid.Parse(arg); err == nil {
		return id, nil
	}
	var matches []uuid.UUID
	for _, a := range eng.Snapshot().Alerts {
		if len(arg) >= 4 && len(arg) <= 36 && a.ID.String()[:len(arg)] == arg {
			matches = append(matches, a.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return uuid.Nil, fmt.Errorf("no alert matches %q", arg)
	default:
		return uuid.Nil, fmt.Errorf("%q is ambiguous, use the full id", arg)
	}
}

func init() {
	alertsCmd.Flags().Bool("unread", false, "Show only unread alerts")
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(dismissCmd)
}

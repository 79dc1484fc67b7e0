// ABOUTME: Friends listing command
// ABOUTME: Shows each friend with presence, location, and battery

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fightbackff-oss/trackmate/internal/ui"
	"github.com/fightbackff-oss/trackmate/internal/view"
)

var friendsCmd = &cobra.Command{
	Use:     "friends",
	Aliases: []string{"ls"},
	Short:   "List friends and where they are",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := resumeSession(ctx); err != nil {
			return err
		}

		snap := eng.Snapshot()
		filter, _ := cmd.Flags().GetString("filter")
		friends := view.FilterFriends(snap.Friends, filter)
		if len(friends) == 0 {
			if filter != "" {
				fmt.Printf("No friends matching %q.\n", filter)
			} else {
				fmt.Println("No friends yet. Send a request with 'trackmate request <email or username>'.")
			}
			return nil
		}

		for _, f := range friends {
			fmt.Println(ui.FormatFriend(&f))
		}
		if n := view.UnreadCount(snap); n > 0 {
			fmt.Printf("\n%s\n", color.YellowString("%d unread (alerts and pending requests)", n))
		}
		return nil
	},
}

func init() {
	friendsCmd.Flags().String("filter", "", "Filter by name or username")
	rootCmd.AddCommand(friendsCmd)
}

// ABOUTME: Locate command
// ABOUTME: Centers the terminal map on one friend's latest position

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fightbackff-oss/trackmate/internal/mapview"
	"github.com/fightbackff-oss/trackmate/internal/ui"
	"github.com/fightbackff-oss/trackmate/internal/view"
)

var locateCmd = &cobra.Command{
	Use:   "locate <username>",
	Short: "Show one friend on the map",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := resumeSession(ctx); err != nil {
			return err
		}

		snap := eng.Snapshot()
		for _, f := range snap.Friends {
			if !strings.EqualFold(f.Username, args[0]) {
				continue
			}
			fmt.Println(ui.FormatFriend(&f))
			if f.Location == nil {
				return nil
			}
			term := mapview.NewTerminal(os.Stdout, 60, 14)
			term.FlyTo(f.Location.Lat, f.Location.Lng, 14)
			term.SetMarkers(view.Markers(snap))
			return term.Render()
		}
		return fmt.Errorf("no friend with username %q", args[0])
	},
}

func init() {
	rootCmd.AddCommand(locateCmd)
}

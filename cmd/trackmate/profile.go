// ABOUTME: Profile show and edit commands
// ABOUTME: Displays the signed-in user and applies profile updates

package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fightbackff-oss/trackmate/internal/store"
	"github.com/fightbackff-oss/trackmate/internal/ui"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or edit your profile",
	Long: `Show the signed-in profile, or change fields with flags.

Examples:
  trackmate profile
  trackmate profile --name "Ada Lovelace"
  trackmate profile --username ada --avatar builtin:avatar-2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := resumeSession(ctx); err != nil {
			return err
		}

		var updates store.ProfileUpdate
		changed := false
		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			updates.Name = &name
			changed = true
		}
		if cmd.Flags().Changed("username") {
			username, _ := cmd.Flags().GetString("username")
			updates.Username = &username
			changed = true
		}
		if cmd.Flags().Changed("avatar") {
			avatar, _ := cmd.Flags().GetString("avatar")
			updates.Avatar = &avatar
			changed = true
		}

		if changed {
			err := eng.UpdateProfile(ctx, updates)
			if errors.Is(err, store.ErrUsernameTaken) {
				return fmt.Errorf("that username is taken")
			}
			if err != nil {
				return err
			}
			fmt.Println(color.GreenString("Profile updated."))
		}

		self := eng.Snapshot().Self
		if self == nil {
			return fmt.Errorf("no profile loaded")
		}
		fmt.Printf("%s (@%s)\n", color.GreenString(self.Name), self.Username)
		fmt.Printf("  email    %s\n", self.Email)
		fmt.Printf("  avatar   %s\n", self.Avatar)
		fmt.Printf("  sharing  %v\n", self.IsSharing)
		fmt.Printf("  status   %s\n", ui.FormatStatus(self.Status))
		if self.Location != nil {
			fmt.Printf("  position (%.4f, %.4f) %s\n",
				self.Location.Lat, self.Location.Lng,
				ui.FormatRelativeTime(self.Location.Timestamp))
		}
		return nil
	},
}

func init() {
	profileCmd.Flags().String("name", "", "Display name")
	profileCmd.Flags().String("username", "", "Unique handle, lowercased")
	profileCmd.Flags().String("avatar", "", "Avatar identifier")
	rootCmd.AddCommand(profileCmd)
}

// ABOUTME: Theme preference command
// ABOUTME: Shows or sets the terminal UI theme in the config file

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fightbackff-oss/trackmate/internal/config"
)

var themeCmd = &cobra.Command{
	Use:       "theme [dark|light]",
	Short:     "Show or set the UI theme",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{config.ThemeDark, config.ThemeLight},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Println(cfg.GetTheme())
			return nil
		}
		switch args[0] {
		case config.ThemeDark, config.ThemeLight:
			cfg.Theme = args[0]
		default:
			return fmt.Errorf("unknown theme %q, expected dark or light", args[0])
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Printf("Theme set to %s.\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(themeCmd)
}

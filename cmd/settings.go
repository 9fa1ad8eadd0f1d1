package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Feature toggles",
}

var hotkeysCmd = &cobra.Command{
	Use:       "hotkeys [on|off]",
	Short:     "Show or switch the D/A/S/W/Q hotkeys",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			s, err := e.repo.Settings(ctx)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				fmt.Printf("hotkeys: %s\n", onOff(s.HotkeysEnabled))
				return nil
			}

			switch args[0] {
			case "on":
				s.HotkeysEnabled = true
			case "off":
				s.HotkeysEnabled = false
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
			return e.repo.SetSettings(ctx, s)
		})
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(hotkeysCmd)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

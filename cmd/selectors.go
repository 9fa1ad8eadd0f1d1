package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spigell/liqa/internal/dom"
	"github.com/spigell/liqa/internal/locator"
)

var selectorsCmd = &cobra.Command{
	Use:   "selectors",
	Short: "Show, change and test the CSS selectors of the four page actions",
}

var selectorsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active selectors",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			selectors, err := e.repo.Selectors(ctx)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(locator.Kinds))
			for _, kind := range locator.Kinds {
				rows = append(rows, []string{kind.String(), kind.Region(), kind.Selector(selectors)})
			}
			printTable([]string{"ACTION", "REGION", "SELECTOR"}, rows)
			return nil
		})
	},
}

var selectorsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Override selectors; omitted actions keep their current value",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			stored, err := e.repo.SelectorOverrides(ctx)
			if err != nil {
				return err
			}

			changed := false
			for _, kind := range locator.Kinds {
				if !cmd.Flags().Changed(kind.String()) {
					continue
				}
				value, _ := cmd.Flags().GetString(kind.String())
				if value = strings.TrimSpace(value); value != "" {
					if _, err := dom.Compile(value); err != nil {
						return fmt.Errorf("%s: invalid selector syntax: %w", kind, err)
					}
				}
				stored = kind.WithSelector(stored, value)
				changed = true
			}

			if !changed {
				return errors.New("nothing to set, pass at least one of --next, --prev, --save, --hide")
			}
			return e.repo.SetSelectors(ctx, stored)
		})
	},
}

var selectorsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop all overrides",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			return e.repo.ResetSelectors(ctx)
		})
	},
}

var selectorsTestCmd = &cobra.Command{
	Use:   "test <action> [selector]",
	Short: "Count what a selector matches in a saved page",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return errors.New("--file is required")
		}

		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			kind, err := locator.ParseKind(args[0])
			if err != nil {
				return err
			}

			selector := ""
			if len(args) == 2 {
				selector = strings.TrimSpace(args[1])
			}
			if selector == "" {
				active, err := e.repo.Selectors(ctx)
				if err != nil {
					return err
				}
				selector = kind.Selector(active)
			}

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("opening page: %w", err)
			}
			defer f.Close()

			doc, err := dom.Parse(f, "file://"+file)
			if err != nil {
				return err
			}

			result, err := locator.Test(doc, selector)
			if err != nil {
				fmt.Println("Invalid selector syntax")
				return nil
			}
			if result.Total == 0 {
				fmt.Printf("No match for %s\n", kind)
				return nil
			}

			fmt.Printf("Matched %d for %s\n", result.Total, kind)
			for _, el := range result.Matches {
				fmt.Printf("  %s\n", el.Path())
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(selectorsCmd)
	selectorsCmd.AddCommand(selectorsShowCmd, selectorsSetCmd, selectorsResetCmd, selectorsTestCmd)

	for _, kind := range locator.Kinds {
		selectorsSetCmd.Flags().String(kind.String(), "", fmt.Sprintf("selector for the %s action, empty restores the default", kind))
	}
	selectorsTestCmd.Flags().String("file", "", "saved HTML page to test against")
}

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/spigell/liqa/internal/settings"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Manage agent personalities (system prompt presets)",
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored agents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			entries, err := e.repo.Agents(ctx)
			if err != nil {
				return err
			}
			def, err := e.repo.DefaultAgent(ctx)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				mark := ""
				if entry.ID == def {
					mark = "default"
				}
				rows = append(rows, []string{entry.Name, entry.ID, mark})
			}
			printTable([]string{"NAME", "ID", ""}, rows)
			return nil
		})
	},
}

var agentsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an agent, or update it when --id is given",
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, _ := cmd.Flags().GetString("id")
		name, _ := cmd.Flags().GetString("name")
		prompt, err := textFlag(cmd, "prompt", "prompt-file")
		if err != nil {
			return err
		}

		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			agent, err := e.repo.SaveAgent(ctx, settings.Agent{ID: id, Name: name, Prompt: prompt})
			if err != nil {
				return err
			}
			fmt.Printf("saved agent %q (%s)\n", agent.Name, agent.ID)
			return nil
		})
	},
}

var agentsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an agent; the default moves to the first remaining one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			return e.repo.RemoveAgent(ctx, args[0])
		})
	},
}

var agentsDefaultCmd = &cobra.Command{
	Use:   "default [id]",
	Short: "Choose the agent whose prompt is used for scoring",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			if len(args) == 1 {
				return e.repo.SetDefaultAgent(ctx, args[0])
			}

			entries, err := e.repo.Agents(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return errors.New("no agents stored, add one with `liqa agents add`")
			}

			names := make([]string, 0, len(entries))
			for _, entry := range entries {
				names = append(names, entry.Name)
			}
			picker := promptui.Select{Label: "Default agent", Items: names}
			index, _, err := picker.Run()
			if err != nil {
				return err
			}
			return e.repo.SetDefaultAgent(ctx, entries[index].ID)
		})
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
	agentsCmd.AddCommand(agentsListCmd, agentsAddCmd, agentsRemoveCmd, agentsDefaultCmd)

	agentsAddCmd.Flags().String("id", "", "id of the agent to update")
	agentsAddCmd.Flags().String("name", "", "agent name")
	agentsAddCmd.Flags().String("prompt", "", "system prompt")
	agentsAddCmd.Flags().String("prompt-file", "", "read the system prompt from a file")
}

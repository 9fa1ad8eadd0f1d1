package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/spigell/liqa/internal/settings"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage job descriptions candidates are scored against",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			entries, err := e.repo.Jobs(ctx)
			if err != nil {
				return err
			}
			last, ok, err := e.repo.LastJobIndex(ctx)
			if err != nil {
				return err
			}
			if !ok {
				last = 0
			}

			rows := make([][]string, 0, len(entries))
			for i, entry := range entries {
				mark := ""
				if i == last {
					mark = "*"
				}
				rows = append(rows, []string{strconv.Itoa(i), mark, entry.Name, entry.ID})
			}
			printTable([]string{"#", "", "NAME", "ID"}, rows)
			return nil
		})
	},
}

var jobsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a job, or update it when --id is given",
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, _ := cmd.Flags().GetString("id")
		name, _ := cmd.Flags().GetString("name")
		impact, _ := cmd.Flags().GetString("impact-profile")
		text, err := textFlag(cmd, "text", "text-file")
		if err != nil {
			return err
		}

		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			job, err := e.repo.SaveJob(ctx, settings.Job{ID: id, Name: name, Text: text, ImpactProfile: impact})
			if err != nil {
				return err
			}
			fmt.Printf("saved job %q (%s)\n", job.Name, job.ID)
			return nil
		})
	},
}

var jobsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			return e.repo.RemoveJob(ctx, args[0])
		})
	},
}

var jobsUseCmd = &cobra.Command{
	Use:   "use [index]",
	Short: "Pick the job used by the Q hotkey",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			entries, err := e.repo.Jobs(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return errors.New("no jobs stored, add one with `liqa jobs add`")
			}

			var index int
			if len(args) == 1 {
				index, err = strconv.Atoi(args[0])
				if err != nil || index < 0 || index >= len(entries) {
					return fmt.Errorf("job index must be between 0 and %d", len(entries)-1)
				}
			} else {
				names := make([]string, 0, len(entries))
				for _, entry := range entries {
					names = append(names, entry.Name)
				}
				picker := promptui.Select{Label: "Job for scoring", Items: names}
				index, _, err = picker.Run()
				if err != nil {
					return err
				}
			}

			if err := e.repo.SetLastJobIndex(ctx, index); err != nil {
				return err
			}
			fmt.Printf("using job %q\n", entries[index].Name)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsAddCmd, jobsRemoveCmd, jobsUseCmd)

	jobsAddCmd.Flags().String("id", "", "id of the job to update")
	jobsAddCmd.Flags().String("name", "", "job title")
	jobsAddCmd.Flags().String("text", "", "job description")
	jobsAddCmd.Flags().String("text-file", "", "read the job description from a file")
	jobsAddCmd.Flags().String("impact-profile", "", "what impact the role needs, overrides the global profile")
}

// withEnv opens the store for the duration of fn.
func withEnv(ctx context.Context, fn func(context.Context, *env) error) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e)
}

// textFlag reads a value given inline or through a file flag.
func textFlag(cmd *cobra.Command, inline, file string) (string, error) {
	value, _ := cmd.Flags().GetString(inline)
	path, _ := cmd.Flags().GetString(file)
	if path == "" {
		return value, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading --%s: %w", file, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("nothing stored")
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	fmt.Println(t.String())
}

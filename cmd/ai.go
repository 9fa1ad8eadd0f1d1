package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/liqa/internal/ai"
	"github.com/spigell/liqa/internal/secrets"
)

var aiCmd = &cobra.Command{
	Use:   "ai",
	Short: "Scoring configuration: API key, model, auto-scan and prompts",
}

var aiSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the stored AI configuration; omitted flags keep their value",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			cfg, err := e.repo.AIConfig(ctx)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("key") {
				cfg.APIKey, _ = flags.GetString("key")
				cfg.APIKey = strings.TrimSpace(cfg.APIKey)
			}
			if flags.Changed("model") {
				cfg.Model, _ = flags.GetString("model")
			}
			if flags.Changed("auto-scan") {
				cfg.AutoScan, _ = flags.GetBool("auto-scan")
			}
			if flags.Changed("impact-profile") || flags.Changed("impact-profile-file") {
				if cfg.ImpactProfile, err = textFlag(cmd, "impact-profile", "impact-profile-file"); err != nil {
					return err
				}
			}
			if flags.Changed("system-prompt") || flags.Changed("system-prompt-file") {
				if cfg.SystemPrompt, err = textFlag(cmd, "system-prompt", "system-prompt-file"); err != nil {
					return err
				}
			}

			return e.repo.SetAIConfig(ctx, cfg)
		})
	},
}

var aiShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored AI configuration with the key masked",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			cfg, err := e.repo.AIConfig(ctx)
			if err != nil {
				return err
			}

			printTable([]string{"SETTING", "VALUE"}, [][]string{
				{"provider", e.provider()},
				{"api key", secrets.Mask(cfg.APIKey)},
				{"model", cfg.ResolvedModel()},
				{"auto-scan", onOff(cfg.AutoScan)},
				{"impact profile", preview(cfg.ImpactProfile)},
				{"system prompt", preview(cfg.SystemPrompt)},
			})
			return nil
		})
	},
}

var aiModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available to the stored key",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			cfg, err := e.repo.AIConfig(ctx)
			if err != nil {
				return err
			}

			models := ai.DefaultModels
			completer, err := e.completer(ctx, cfg.APIKey)
			if err == nil {
				var listed []string
				listed, err = completer.ListModels(ctx)
				if err == nil && len(listed) > 0 {
					models = listed
				}
			}
			if err != nil {
				e.logger.Warn("listing models, showing defaults", zap.Error(err))
			}

			current := cfg.ResolvedModel()
			for _, m := range models {
				mark := " "
				if m == current {
					mark = "*"
				}
				fmt.Printf("%s %s\n", mark, m)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(aiCmd)
	aiCmd.AddCommand(aiSetCmd, aiShowCmd, aiModelsCmd)

	aiSetCmd.Flags().String("key", "", "API key of the completion service")
	aiSetCmd.Flags().String("model", "", "model id, empty means the default")
	aiSetCmd.Flags().Bool("auto-scan", false, "score automatically when a profile opens")
	aiSetCmd.Flags().String("impact-profile", "", "default impact profile")
	aiSetCmd.Flags().String("impact-profile-file", "", "read the impact profile from a file")
	aiSetCmd.Flags().String("system-prompt", "", "system prompt used when no agent is the default")
	aiSetCmd.Flags().String("system-prompt-file", "", "read the system prompt from a file")
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "-"
	}
	if r := []rune(s); len(r) > 60 {
		return string(r[:60]) + "…"
	}
	return s
}

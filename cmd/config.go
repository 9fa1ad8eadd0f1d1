package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/liqa/internal/settings"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Move the whole stored configuration between machines",
}

var configExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write both storage tiers as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		withSecrets, _ := cmd.Flags().GetBool("with-secrets")
		output, _ := cmd.Flags().GetString("output")

		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			bundle, err := e.repo.Export(ctx, withSecrets)
			if err != nil {
				return err
			}

			pretty, err := json.MarshalIndent(bundle, "", "  ")
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				fmt.Println(string(pretty))
				return nil
			}
			if err := os.WriteFile(output, append(pretty, '\n'), 0o600); err != nil {
				return fmt.Errorf("writing bundle: %w", err)
			}
			e.logger.Info("exported configuration", zap.String("filename", output))
			return nil
		})
	},
}

var configImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Validate a bundle and write it to the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("reading bundle: %w", err)
		}

		bundle, err := settings.ParseBundle(data)
		if err != nil {
			return err
		}

		return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
			if err := e.repo.Import(ctx, bundle); err != nil {
				return err
			}
			e.logger.Info("imported configuration",
				zap.Int("sync_keys", len(bundle.Sync)),
				zap.Int("local_keys", len(bundle.Local)),
			)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configExportCmd, configImportCmd)

	configExportCmd.Flags().Bool("with-secrets", false, "include the API key")
	configExportCmd.Flags().StringP("output", "o", "", "file to write, default is stdout")
}

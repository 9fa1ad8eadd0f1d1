package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/liqa/internal/browser"
	"github.com/spigell/liqa/internal/dom"
	"github.com/spigell/liqa/internal/overlay"
	"github.com/spigell/liqa/internal/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one candidate profile from a saved page or a URL",
	RunE: func(cmd *cobra.Command, _ []string) error {
		file, _ := cmd.Flags().GetString("file")
		url, _ := cmd.Flags().GetString("url")
		if (file == "") == (url == "") {
			return errors.New("exactly one of --file or --url is required")
		}

		var job *int
		if cmd.Flags().Changed("job") {
			idx, _ := cmd.Flags().GetInt("job")
			job = &idx
		}

		return score(cmd.Context(), file, url, job)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().String("file", "", "saved HTML of a candidate profile page")
	scoreCmd.Flags().String("url", "", "profile URL to load in a headless browser")
	scoreCmd.Flags().Int("job", 0, "job index (default is the last used job)")
}

func score(ctx context.Context, file, url string, job *int) error {
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	doc, err := loadDocument(ctx, e, file, url)
	if err != nil {
		return err
	}

	pipeline := scoring.New(scoring.Config{
		Page:     &staticPage{doc: doc, logger: e.logger},
		Settings: e.repo,
		Connect:  e.connector(),
		Provider: e.provider(),
		Logger:   e.logger,
	})

	result, err := pipeline.Score(ctx, job)
	if err != nil {
		return err
	}

	fmt.Println(overlay.RenderTerminal(result.Score, result.Strengths, result.Weaknesses))
	return nil
}

func loadDocument(ctx context.Context, e *env, file, url string) (*dom.Document, error) {
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("opening page: %w", err)
		}
		defer f.Close()
		return dom.Parse(f, "file://"+file)
	}

	page, err := browser.New(ctx, browser.Options{
		Headless:    true,
		UserDataDir: e.config.Browser.UserDataDir,
		ExecPath:    e.config.Browser.ExecPath,
	}, e.logger)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := page.Open(ctx, url); err != nil {
		return nil, err
	}
	return page.Snapshot(ctx)
}

// staticPage serves a fixed document. Page notices go to the log.
type staticPage struct {
	doc    *dom.Document
	logger *zap.Logger
}

func (p *staticPage) Snapshot(context.Context) (*dom.Document, error) {
	return p.doc, nil
}

func (p *staticPage) Toast(_ context.Context, text string, kind overlay.ToastKind) error {
	if kind == overlay.ToastError {
		p.logger.Warn(text)
		return nil
	}
	p.logger.Info(text)
	return nil
}

func (p *staticPage) ShowProgress(context.Context) error {
	p.logger.Info("scoring candidate")
	return nil
}

func (p *staticPage) HideProgress(context.Context) error { return nil }

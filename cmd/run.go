package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/liqa/internal/autoscan"
	"github.com/spigell/liqa/internal/browser"
	"github.com/spigell/liqa/internal/dispatch"
	"github.com/spigell/liqa/internal/metrics"
	"github.com/spigell/liqa/internal/overlay"
	"github.com/spigell/liqa/internal/scoring"
	"github.com/spigell/liqa/internal/settings"
	"github.com/spigell/liqa/internal/storage"
)

var errPageClosed = errors.New("browser page closed")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open LinkedIn Recruiter in Chrome with hotkeys and AI scoring",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("url", "", "page to open (default is host-url from the config)")
	runCmd.Flags().Bool("headless", false, "run chrome without a window")
	runCmd.Flags().String("user-data-dir", "", "chrome profile directory, keeps the LinkedIn session between runs")
	runCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090")

	viper.BindPFlag("host-url", runCmd.Flags().Lookup("url"))
	viper.BindPFlag("browser.headless", runCmd.Flags().Lookup("headless"))
	viper.BindPFlag("browser.user-data-dir", runCmd.Flags().Lookup("user-data-dir"))
	viper.BindPFlag("metrics-addr", runCmd.Flags().Lookup("metrics-addr"))
}

// run is the main command for the cli.
func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	logger := e.logger
	logger.Info("starting liqa", zap.String("version", version), zap.String("url", e.config.HostURL))

	m := metrics.NewManager(metrics.WithConstLabels(map[string]string{"version": version}))

	page, err := browser.New(ctx, browser.Options{
		Headless:    e.config.Browser.Headless,
		UserDataDir: e.config.Browser.UserDataDir,
		ExecPath:    e.config.Browser.ExecPath,
	}, logger)
	if err != nil {
		return err
	}
	defer page.Close()

	state := overlay.NewStore()
	pipeline := scoring.New(scoring.Config{
		Page:     page,
		Settings: e.repo,
		Connect:  e.connector(),
		State:    state,
		Metrics:  m,
		Provider: e.provider(),
		Logger:   logger,
	})

	trigger := autoscan.New(page, pipeline, e.repo, autoscan.WithMetrics(m), autoscan.WithLogger(logger))
	defer trigger.Stop()

	dispatcher := dispatch.New(ctx, dispatch.Config{
		Page:     page,
		Scorer:   pipeline,
		Settings: e.repo,
		State:    state,
		Autoscan: trigger,
		Metrics:  m,
		Logger:   logger,
	})
	defer dispatcher.Wait()

	cancelWatch := dispatcher.Watch(ctx, e.store)
	defer cancelWatch()

	cancelHotkeys := e.store.Sync.Subscribe(func(c storage.Change) {
		if c.Key != settings.KeySettings {
			return
		}
		if err := page.SetHotkeys(ctx, settings.SettingsFromValue(c.NewValue).HotkeysEnabled); err != nil {
			logger.Debug("syncing hotkeys to page", zap.Error(err))
		}
	})
	defer cancelHotkeys()

	panel := newPanelRenderer(page, logger)
	cancelPanel := state.Subscribe(panel.push)
	defer cancelPanel()

	if err := page.Open(ctx, e.config.HostURL); err != nil {
		return err
	}
	if err := page.SetHotkeys(ctx, dispatcher.HotkeysEnabled()); err != nil {
		logger.Debug("syncing hotkeys to page", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(gctx, page.Events(), trigger)
	})

	g.Go(func() error {
		return panel.run(gctx)
	})

	g.Go(func() error {
		if err := e.watch(gctx); err != nil {
			logger.Warn("storage change feed stopped", zap.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-page.Done():
			return errPageClosed
		}
	})

	if addr := e.config.MetricsAddr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("serving metrics", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Info("exiting", zap.String("reason", "interrupted"))
		return nil
	case errors.Is(err, errPageClosed):
		logger.Info("exiting", zap.String("reason", "browser closed"))
		return nil
	default:
		return err
	}
}

// panelRenderer draws panel states one at a time, skipping states that were
// replaced before they could be drawn.
type panelRenderer struct {
	page   *browser.Page
	logger *zap.Logger

	mu     sync.Mutex
	latest overlay.State
	kick   chan struct{}
}

func newPanelRenderer(page *browser.Page, logger *zap.Logger) *panelRenderer {
	return &panelRenderer{page: page, logger: logger, kick: make(chan struct{}, 1)}
}

func (r *panelRenderer) push(s overlay.State) {
	r.mu.Lock()
	r.latest = s
	r.mu.Unlock()

	select {
	case r.kick <- struct{}{}:
	default:
	}
}

func (r *panelRenderer) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.kick:
			r.mu.Lock()
			s := r.latest
			r.mu.Unlock()

			if err := r.page.RenderOverlay(ctx, s); err != nil && !errors.Is(err, browser.ErrDetached) {
				r.logger.Debug("rendering panel", zap.String("phase", string(s.Phase())), zap.Error(err))
			}
		}
	}
}

// Package dispatch turns page events into actions: hotkeys, pagination
// clicks, panel clicks and cross-context messages.
package dispatch

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/liqa/internal/ai"
	"github.com/spigell/liqa/internal/dom"
	"github.com/spigell/liqa/internal/logger"
	"github.com/spigell/liqa/internal/metrics"
	"github.com/spigell/liqa/internal/overlay"
	"github.com/spigell/liqa/internal/settings"
)

// Highlight durations.
const (
	PulseDuration     = 800 * time.Millisecond
	TestPulseDuration = 2000 * time.Millisecond
)

// Page is the part of the host page the dispatcher drives. Elements passed
// in come from a snapshot taken for the same event.
type Page interface {
	Snapshot(ctx context.Context) (*dom.Document, error)
	Click(ctx context.Context, el dom.Element) error
	Pulse(ctx context.Context, el dom.Element, d time.Duration) error
	Toast(ctx context.Context, text string, kind overlay.ToastKind) error
}

// Scorer runs and resets scoring.
type Scorer interface {
	Score(ctx context.Context, jobIndex *int) (*ai.Result, error)
	Reset()
}

// Rearmer forgets the last automatically scored page.
type Rearmer interface {
	ResetURL()
}

// binding is one immutable selector set. Key handling reads exactly one
// binding per event.
type binding struct {
	selectors settings.Selectors
}

// Config holds the dispatcher dependencies.
type Config struct {
	Page     Page
	Scorer   Scorer
	Settings *settings.Repository
	State    *overlay.Store
	Autoscan Rearmer
	Metrics  *metrics.Manager
	Logger   *zap.Logger
}

// Dispatcher routes events. It is safe for concurrent use.
type Dispatcher struct {
	cfg     Config
	logger  *zap.Logger
	binding atomic.Pointer[binding]
	hotkeys atomic.Bool
	runs    sync.WaitGroup
}

// New loads the selectors and settings and installs the first binding.
// Read failures fall back to defaults.
func New(ctx context.Context, cfg Config) *Dispatcher {
	if cfg.State == nil {
		cfg.State = overlay.NewStore()
	}
	d := &Dispatcher{cfg: cfg, logger: logger.Named(cfg.Logger, "dispatch")}

	selectors, err := cfg.Settings.Selectors(ctx)
	if err != nil {
		d.logger.Warn("reading selectors, using defaults", zap.Error(err))
	}
	d.Rebind(selectors)

	s, err := cfg.Settings.Settings(ctx)
	if err != nil {
		d.logger.Warn("reading settings, using defaults", zap.Error(err))
	}
	d.hotkeys.Store(s.HotkeysEnabled)

	return d
}

// Rebind replaces the active selector set in one step.
func (d *Dispatcher) Rebind(s settings.Selectors) {
	d.binding.Store(&binding{selectors: settings.MergeSelectors(settings.DefaultSelectors(), s)})
}

// Selectors returns the active selector set.
func (d *Dispatcher) Selectors() settings.Selectors {
	return d.binding.Load().selectors
}

// SetHotkeys enables or disables key handling.
func (d *Dispatcher) SetHotkeys(enabled bool) {
	d.hotkeys.Store(enabled)
}

// HotkeysEnabled reports whether keys are handled.
func (d *Dispatcher) HotkeysEnabled() bool {
	return d.hotkeys.Load()
}

// Wait blocks until scoring runs started by the dispatcher have finished.
func (d *Dispatcher) Wait() {
	d.runs.Wait()
}

// HandlePagination reacts to a click on a pagination link.
func (d *Dispatcher) HandlePagination() {
	d.cfg.Scorer.Reset()
	if d.cfg.Autoscan != nil {
		d.cfg.Autoscan.ResetURL()
	}
}

// HandleScoreClick toggles the details panel.
func (d *Dispatcher) HandleScoreClick() {
	d.cfg.State.ToggleDetails()
}

// SyncPresence attaches the panel while the slide-in is open and detaches
// it otherwise.
func (d *Dispatcher) SyncPresence(slideIn bool) {
	if d.cfg.State.Get().Present == slideIn {
		return
	}
	d.cfg.State.SetPresent(slideIn)
}

func (d *Dispatcher) score(ctx context.Context, jobIndex int) {
	d.runs.Add(1)
	go func() {
		defer d.runs.Done()
		if _, err := d.cfg.Scorer.Score(ctx, &jobIndex); err != nil {
			d.logger.Debug("scoring ended", zap.Int("job_index", jobIndex), zap.Error(err))
		}
	}()
}

func (d *Dispatcher) toast(ctx context.Context, text string, kind overlay.ToastKind) {
	if err := d.cfg.Page.Toast(ctx, text, kind); err != nil {
		d.logger.Debug("showing toast", zap.String("text", text), zap.Error(err))
	}
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

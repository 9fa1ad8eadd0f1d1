// Package autoscan scores the candidate on its own when the page settles on
// a new profile.
package autoscan

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/liqa/internal/ai"
	"github.com/spigell/liqa/internal/dom"
	"github.com/spigell/liqa/internal/logger"
	"github.com/spigell/liqa/internal/metrics"
	"github.com/spigell/liqa/internal/settings"
)

// DefaultDelay is the debounce window for page mutations.
const DefaultDelay = 150 * time.Millisecond

// Page is the part of the host page autoscan reads.
type Page interface {
	Snapshot(ctx context.Context) (*dom.Document, error)
	// Valid reports whether the page can still be driven.
	Valid() bool
}

// Scorer runs the scoring pipeline.
type Scorer interface {
	Score(ctx context.Context, jobIndex *int) (*ai.Result, error)
}

// AIConfig reads the stored scoring configuration.
type AIConfig interface {
	AIConfig(ctx context.Context) (settings.AIConfig, error)
}

// Trigger coalesces mutation bursts and starts at most one scoring per URL.
type Trigger struct {
	page    Page
	scorer  Scorer
	config  AIConfig
	delay   time.Duration
	metrics *metrics.Manager
	logger  *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	lastURL string
	stopped bool
	runs    sync.WaitGroup
}

// Option configures a Trigger.
type Option func(*Trigger)

// WithDelay overrides the debounce window.
func WithDelay(d time.Duration) Option {
	return func(t *Trigger) {
		if d > 0 {
			t.delay = d
		}
	}
}

// WithMetrics counts triggered runs.
func WithMetrics(m *metrics.Manager) Option {
	return func(t *Trigger) { t.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Trigger) {
		if l != nil {
			t.logger = l
		}
	}
}

func New(page Page, scorer Scorer, config AIConfig, opts ...Option) *Trigger {
	t := &Trigger{
		page:   page,
		scorer: scorer,
		config: config,
		delay:  DefaultDelay,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logger.Named(t.logger, "autoscan")
	return t
}

// Notify reports a page mutation. The first mutation arms the timer; later
// ones are absorbed until it fires.
func (t *Trigger) Notify(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.timer != nil {
		return
	}

	t.timer = time.AfterFunc(t.delay, func() {
		t.mu.Lock()
		t.timer = nil
		if t.stopped {
			t.mu.Unlock()
			return
		}
		t.runs.Add(1)
		t.mu.Unlock()

		defer t.runs.Done()
		t.evaluate(ctx)
	})
}

// ResetURL forgets the last scored URL so the same page may be scored again.
func (t *Trigger) ResetURL() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastURL = ""
}

// Stop cancels a pending evaluation and waits for a running one.
func (t *Trigger) Stop() {
	t.mu.Lock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()

	t.runs.Wait()
}

func (t *Trigger) evaluate(ctx context.Context) {
	if ctx.Err() != nil || !t.page.Valid() {
		return
	}

	doc, err := t.page.Snapshot(ctx)
	if err != nil {
		t.logger.Debug("snapshot for autoscan", zap.Error(err))
		return
	}
	if !doc.SlideInOpen() {
		return
	}

	url := doc.URL()
	t.mu.Lock()
	same := url == t.lastURL
	t.mu.Unlock()
	if same {
		return
	}

	cfg, err := t.config.AIConfig(ctx)
	if err != nil {
		t.logger.Debug("reading ai configuration", zap.Error(err))
		return
	}
	if !cfg.AutoScan {
		return
	}

	t.mu.Lock()
	if url == t.lastURL {
		t.mu.Unlock()
		return
	}
	t.lastURL = url
	t.mu.Unlock()

	t.metrics.RecordAutoscan()
	t.logger.Debug("scoring after page change", zap.String("url", url))
	if _, err := t.scorer.Score(ctx, nil); err != nil {
		t.logger.Debug("autoscan scoring ended", zap.Error(err))
	}
}

// Package browser drives the recruiter page in Chrome over the DevTools
// protocol. It injects the bridge script, turns binding calls into events and
// performs the page side effects: clicks, highlights, toasts, the progress
// bar and the floating panel.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/spigell/liqa/internal/bridge"
	"github.com/spigell/liqa/internal/dom"
	"github.com/spigell/liqa/internal/logger"
	"github.com/spigell/liqa/internal/overlay"
)

// ErrDetached is returned once the tab is gone. Callers treat it as a
// silent no-op.
var ErrDetached = errors.New("page is detached")

// ErrGone is returned when an element from a snapshot no longer exists.
var ErrGone = errors.New("element is no longer on the page")

const eventBuffer = 64

// Options configure the Chrome instance.
type Options struct {
	Headless    bool
	UserDataDir string
	ExecPath    string
	// NavigateTimeout bounds Open. Zero means one minute.
	NavigateTimeout time.Duration
}

// Page is one browser tab showing the host application.
type Page struct {
	tab       context.Context
	cancelTab context.CancelFunc
	cancelAll context.CancelFunc

	events    chan bridge.Event
	closeOnce sync.Once
	detached  atomic.Bool

	timeout time.Duration
	logger  *zap.Logger
}

// New starts Chrome and opens an empty tab.
func New(ctx context.Context, opts Options, log *zap.Logger) (*Page, error) {
	log = logger.Named(log, "browser")

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tab, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithErrorf(log.Sugar().Errorf))

	p := newPage(log)
	p.tab = tab
	p.cancelTab = cancelTab
	p.cancelAll = cancelAlloc
	if opts.NavigateTimeout > 0 {
		p.timeout = opts.NavigateTimeout
	}

	chromedp.ListenTarget(tab, p.onTargetEvent)

	// starts the browser
	if err := chromedp.Run(tab); err != nil {
		p.Close()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}

	return p, nil
}

func newPage(log *zap.Logger) *Page {
	return &Page{
		events:  make(chan bridge.Event, eventBuffer),
		timeout: time.Minute,
		logger:  log,
	}
}

// Open installs the bridge and navigates to url.
func (p *Page) Open(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.logger.Info("opening host page", zap.String("url", url))

	return p.run(ctx,
		runtime.AddBinding(BindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(bridgeScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	)
}

// Events returns the bridge event stream. It is closed by Close.
func (p *Page) Events() <-chan bridge.Event {
	return p.events
}

// Valid reports whether the tab is still attached.
func (p *Page) Valid() bool {
	return !p.detached.Load() && p.tab != nil && p.tab.Err() == nil
}

// Done is closed when the browser or the tab goes away.
func (p *Page) Done() <-chan struct{} {
	return p.tab.Done()
}

// Close shuts the tab and the browser down.
func (p *Page) Close() {
	p.closeOnce.Do(func() {
		p.detached.Store(true)
		if p.cancelTab != nil {
			p.cancelTab()
		}
		if p.cancelAll != nil {
			p.cancelAll()
		}
		close(p.events)
	})
}

func (p *Page) onTargetEvent(ev any) {
	switch e := ev.(type) {
	case *runtime.EventBindingCalled:
		if e.Name != BindingName {
			return
		}
		p.deliver(e.Payload)
	case *inspector.EventDetached:
		p.logger.Warn("page detached", zap.String("reason", string(e.Reason)))
		p.detached.Store(true)
	case *target.EventTargetCrashed:
		p.logger.Warn("page crashed", zap.String("status", e.Status))
		p.detached.Store(true)
	}
}

// deliver must not block: it runs on the DevTools event goroutine.
func (p *Page) deliver(payload string) {
	if p.detached.Load() {
		return
	}

	ev, err := bridge.DecodeEvent(payload)
	if err != nil {
		p.logger.Debug("dropping bridge payload", zap.Error(err))
		return
	}

	select {
	case p.events <- ev:
	default:
		p.logger.Warn("event buffer full, dropping", zap.String("type", string(ev.Type)))
	}
}

// run executes actions on the tab, bounded by ctx.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if !p.Valid() {
		return ErrDetached
	}

	runCtx, cancel := context.WithCancel(p.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if !p.Valid() {
			return ErrDetached
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (p *Page) eval(ctx context.Context, script string) (bool, error) {
	var ok bool
	if err := p.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return false, err
	}
	return ok, nil
}

// Snapshot parses the current document.
func (p *Page) Snapshot(ctx context.Context) (*dom.Document, error) {
	var snap struct {
		HTML string `json:"html"`
		URL  string `json:"url"`
	}
	if err := p.run(ctx, chromedp.Evaluate(snapshotScript, &snap)); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return dom.ParseString(snap.HTML, snap.URL)
}

// Click clicks the live element at el's position.
func (p *Page) Click(ctx context.Context, el dom.Element) error {
	path := el.Path()
	ok, err := p.eval(ctx, clickScript(path))
	if err != nil {
		return fmt.Errorf("click %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("click %s: %w", path, ErrGone)
	}
	return nil
}

// Pulse draws a fading ring around el for d.
func (p *Page) Pulse(ctx context.Context, el dom.Element, d time.Duration) error {
	path := el.Path()
	ok, err := p.eval(ctx, pulseScript(path, d))
	if err != nil {
		return fmt.Errorf("pulse %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("pulse %s: %w", path, ErrGone)
	}
	return nil
}

// Toast shows text for ToastDuration. A newer toast replaces the current one.
func (p *Page) Toast(ctx context.Context, text string, kind overlay.ToastKind) error {
	if text == "" {
		return nil
	}
	_, err := p.eval(ctx, toastScript(text, kind))
	return err
}

func (p *Page) ShowProgress(ctx context.Context) error {
	_, err := p.eval(ctx, showProgressScript())
	return err
}

func (p *Page) HideProgress(ctx context.Context) error {
	_, err := p.eval(ctx, hideProgressScript())
	return err
}

// RenderOverlay replaces the floating panel with the markup for s.
func (p *Page) RenderOverlay(ctx context.Context, s overlay.State) error {
	markup, err := overlay.RenderHTML(s)
	if err != nil {
		return err
	}
	_, err = p.eval(ctx, renderScript(markup))
	return err
}

// SetHotkeys tells the bridge whether Q should suppress the page default.
func (p *Page) SetHotkeys(ctx context.Context, enabled bool) error {
	_, err := p.eval(ctx, hotkeysScript(enabled))
	return err
}

package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/liqa/internal/locator"
	"github.com/spigell/liqa/internal/metrics"
	"github.com/spigell/liqa/internal/overlay"
)

// Keys.
const (
	KeyNext  = "d"
	KeyPrev  = "a"
	KeySave  = "s"
	KeyHide  = "w"
	KeyScore = "q"
)

type action struct {
	kind        locator.Kind
	resetScore  bool
	done        string
	unavailable string
	notFound    string
}

var actions = map[string]action{
	KeyNext: {kind: locator.Next, resetScore: true, done: "Next candidate ▶", unavailable: "Next not available", notFound: "Next button not found"},
	KeyPrev: {kind: locator.Prev, resetScore: true, done: "Previous candidate ◀", unavailable: "Previous not available", notFound: "Previous button not found"},
	KeySave: {kind: locator.Save, done: "Saved ✓", unavailable: "Save not available", notFound: "Save button not found"},
	KeyHide: {kind: locator.Hide, done: "Hidden ✕", unavailable: "Hide not available", notFound: "Hide button not found"},
}

// HandleKey handles one keydown. It reports whether the key was consumed, in
// which case the page default should be suppressed.
func (d *Dispatcher) HandleKey(ctx context.Context, key string, inTextField bool) bool {
	if inTextField || !d.hotkeys.Load() {
		return false
	}

	key = normalizeKey(key)
	if key == KeyScore {
		d.handleScoreKey(ctx)
		return true
	}

	act, ok := actions[key]
	if !ok {
		return false
	}

	d.perform(ctx, act, d.binding.Load())
	return true
}

func (d *Dispatcher) perform(ctx context.Context, act action, b *binding) {
	if act.resetScore {
		d.cfg.Scorer.Reset()
	}

	name := act.kind.String()
	doc, err := d.cfg.Page.Snapshot(ctx)
	if err != nil {
		d.logger.Debug("snapshot for hotkey", zap.String("action", name), zap.Error(err))
		d.cfg.Metrics.RecordHotkey(name, metrics.ResultIgnored)
		return
	}

	el, found := locator.Resolve(doc, act.kind, b.selectors)
	switch {
	case found:
	case !doc.SlideInOpen():
		d.toast(ctx, act.unavailable, overlay.ToastError)
		d.cfg.Metrics.RecordHotkey(name, metrics.ResultUnavailable)
		return
	default:
		d.toast(ctx, act.notFound, overlay.ToastError)
		d.cfg.Metrics.RecordHotkey(name, metrics.ResultNotFound)
		return
	}

	if err := d.cfg.Page.Pulse(ctx, el, PulseDuration); err != nil {
		d.logger.Debug("pulse", zap.String("action", name), zap.Error(err))
	}
	if err := d.cfg.Page.Click(ctx, el); err != nil {
		d.logger.Warn("click", zap.String("action", name), zap.String("path", el.Path()), zap.Error(err))
		d.toast(ctx, act.notFound, overlay.ToastError)
		d.cfg.Metrics.RecordHotkey(name, metrics.ResultNotFound)
		return
	}

	d.toast(ctx, act.done, overlay.ToastOK)
	d.cfg.Metrics.RecordHotkey(name, metrics.ResultDone)
}

// handleScoreKey clears the panel and scores with the last used job. A
// failed read falls back to the first job.
func (d *Dispatcher) handleScoreKey(ctx context.Context) {
	d.cfg.Scorer.Reset()

	index, ok, err := d.cfg.Settings.LastJobIndex(ctx)
	if err != nil {
		d.logger.Debug("reading last job index", zap.Error(err))
	}
	if err != nil || !ok {
		index = 0
	}

	d.cfg.Metrics.RecordHotkey("score", metrics.ResultDone)
	d.score(ctx, index)
}

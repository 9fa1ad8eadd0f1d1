package dispatch

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/liqa/internal/bridge"
	"github.com/spigell/liqa/internal/locator"
	"github.com/spigell/liqa/internal/overlay"
)

// HandleMessage acts on one cross-context message.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg bridge.Message) {
	switch msg.Type {
	case bridge.ScoreRequest:
		d.score(ctx, msg.Index())
	case bridge.ScoreOverlayUpdate:
		patch, err := overlay.FromMessage(msg.Score, msg.Strengths, msg.Weaknesses)
		if err != nil {
			d.logger.Debug("ignoring overlay update", zap.Error(err))
			return
		}
		d.cfg.State.Update(patch)
	case bridge.ScoreOverlayClose:
		d.cfg.Scorer.Reset()
	case bridge.TestSelector:
		d.testSelector(ctx, msg.Kind, msg.Selector)
	default:
		d.logger.Debug("ignoring message", zap.String("type", string(msg.Type)))
	}
}

// testSelector highlights what a selector matches. Without a selector in the
// message the stored one for kind is tried.
func (d *Dispatcher) testSelector(ctx context.Context, kindName string, given *string) {
	selector := ""
	if given != nil {
		selector = strings.TrimSpace(*given)
	}

	if selector == "" {
		if kind, err := locator.ParseKind(kindName); err == nil {
			stored, err := d.cfg.Settings.Selectors(ctx)
			if err != nil {
				d.logger.Debug("reading selectors", zap.Error(err))
			} else {
				selector = kind.Selector(stored)
			}
		}
	}

	if selector == "" {
		d.toast(ctx, fmt.Sprintf("No selector configured for %s", kindName), overlay.ToastError)
		return
	}

	doc, err := d.cfg.Page.Snapshot(ctx)
	if err != nil {
		d.logger.Debug("snapshot for selector test", zap.Error(err))
		return
	}

	result, err := locator.Test(doc, selector)
	if err != nil {
		d.toast(ctx, "Invalid selector syntax", overlay.ToastError)
		return
	}
	if result.Total == 0 {
		d.toast(ctx, fmt.Sprintf("No match for %s", kindName), overlay.ToastError)
		return
	}

	for _, el := range result.Matches {
		if err := d.cfg.Page.Pulse(ctx, el, TestPulseDuration); err != nil {
			d.logger.Debug("pulse", zap.Error(err))
		}
	}
	d.toast(ctx, fmt.Sprintf("Matched %d for %s", result.Total, kindName), overlay.ToastOK)
}

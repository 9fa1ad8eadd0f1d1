package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/liqa/internal/overlay"
	"github.com/spigell/liqa/internal/settings"
	"github.com/spigell/liqa/internal/storage"
)

// Toast texts for configuration changes.
const (
	MsgSelectorsUpdated = "Selectors updated"
	MsgHotkeysEnabled   = "Hotkeys enabled"
	MsgHotkeysDisabled  = "Hotkeys disabled"
)

// Watch follows sync tier changes: new selectors replace the binding, new
// settings switch hotkeys. It returns a cancel func.
func (d *Dispatcher) Watch(ctx context.Context, store *storage.Storage) func() {
	return store.Sync.Subscribe(func(c storage.Change) {
		switch c.Key {
		case settings.KeySelectors:
			d.Rebind(settings.SelectorsFromValue(c.NewValue))
			d.logger.Info("selectors replaced")
			d.toast(ctx, MsgSelectorsUpdated, overlay.ToastInfo)
		case settings.KeySettings:
			enabled := settings.SettingsFromValue(c.NewValue).HotkeysEnabled
			d.SetHotkeys(enabled)
			d.logger.Info("hotkeys toggled", zap.Bool("enabled", enabled))
			if enabled {
				d.toast(ctx, MsgHotkeysEnabled, overlay.ToastInfo)
			} else {
				d.toast(ctx, MsgHotkeysDisabled, overlay.ToastInfo)
			}
		}
	})
}

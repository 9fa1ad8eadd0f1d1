package browser

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spigell/liqa/internal/overlay"
)

// BindingName is the page function the bridge script reports through.
const BindingName = "__liqaEmit"

// ToastDuration is how long a toast stays visible.
const ToastDuration = 1800 * time.Millisecond

//go:embed bridge.js
var bridgeScript string

const pulseStyleID = "liqa-pulse-style"

var toastBorders = map[overlay.ToastKind]string{
	overlay.ToastOK:    "rgba(52,211,153,0.3)",
	overlay.ToastError: "rgba(248,113,113,0.3)",
	overlay.ToastInfo:  "rgba(34,211,238,0.3)",
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

func clickScript(path string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  el.click();
  return true;
})()`, jsString(path))
}

func pulseScript(path string, d time.Duration) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  if (!document.getElementById(%s)) {
    const style = document.createElement('style');
    style.id = %[2]s;
    style.textContent = '@keyframes liqa-pulse{0%%{box-shadow:0 0 0 2px rgba(6,182,212,.6)}50%%{box-shadow:0 0 0 3px rgba(34,211,238,.9),0 0 24px 8px rgba(34,211,238,.5)}100%%{box-shadow:0 0 0 2px rgba(6,182,212,.6)}}@keyframes liqa-pulse-fade{0%%{opacity:1}70%%{opacity:1}100%%{opacity:0}}';
    document.documentElement.appendChild(style);
  }
  const rect = el.getBoundingClientRect();
  if (rect.width === 0 && rect.height === 0) return true;
  const pad = 4;
  const ring = document.createElement('div');
  ring.id = 'liqa-pulse-' + Math.random().toString(36).slice(2);
  ring.style.cssText = 'position:fixed;pointer-events:none;z-index:2147483647;box-sizing:border-box;' +
    'border:2px solid rgba(34,211,238,0.8);border-radius:8px;background:rgba(6,182,212,0.08);' +
    'animation:liqa-pulse 800ms ease-in-out infinite, liqa-pulse-fade %[3]dms ease-out forwards';
  ring.style.top = Math.max(0, rect.top - pad) + 'px';
  ring.style.left = Math.max(0, rect.left - pad) + 'px';
  ring.style.width = (rect.width + pad * 2) + 'px';
  ring.style.height = (rect.height + pad * 2) + 'px';
  document.documentElement.appendChild(ring);
  setTimeout(() => ring.remove(), %[3]d);
  return true;
})()`, jsString(path), jsString(pulseStyleID), d.Milliseconds())
}

func toastScript(text string, kind overlay.ToastKind) string {
	border, ok := toastBorders[kind]
	if !ok {
		border = "rgba(255,255,255,0.1)"
	}

	return fmt.Sprintf(`(() => {
  let toast = document.getElementById(%s);
  if (!toast) {
    toast = document.createElement('div');
    toast.id = %[1]s;
    toast.style.cssText = 'position:fixed;top:20px;left:50%%;transform:translateX(-50%%) translateY(-10px);' +
      'background:rgba(15,23,42,0.85);backdrop-filter:blur(12px);border:1px solid;color:#fff;padding:10px 16px;' +
      'border-radius:12px;font-size:13px;font-weight:500;z-index:2147483647;transition:all 0.25s;opacity:0;pointer-events:none;' +
      'font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif';
    document.documentElement.appendChild(toast);
  }
  toast.textContent = %s;
  toast.dataset.kind = %s;
  toast.style.borderColor = %s;
  toast.style.opacity = '1';
  toast.style.transform = 'translateX(-50%%) translateY(0)';
  clearTimeout(window.__liqaToastTimer);
  window.__liqaToastTimer = setTimeout(() => {
    toast.style.opacity = '0';
    toast.style.transform = 'translateX(-50%%) translateY(-10px)';
  }, %d);
  return true;
})()`, jsString(overlay.ToastID), jsString(text), jsString(string(kind)), jsString(border), ToastDuration.Milliseconds())
}

func showProgressScript() string {
	return fmt.Sprintf(`(() => {
  if (document.getElementById(%s)) return true;
  const bar = document.createElement('div');
  bar.id = %[1]s;
  bar.style.cssText = 'position:fixed;top:0;left:0;right:0;height:2px;z-index:2147483647;' +
    'background:linear-gradient(90deg,#06b6d4,#22d3ee,#67e8f9,#06b6d4);background-size:300%% 100%%';
  document.documentElement.appendChild(bar);
  return true;
})()`, jsString(overlay.ProgressID))
}

func hideProgressScript() string {
	return fmt.Sprintf(`(() => {
  const bar = document.getElementById(%s);
  if (bar) bar.remove();
  return true;
})()`, jsString(overlay.ProgressID))
}

// renderScript replaces the panel with markup. Empty markup removes it.
func renderScript(markup string) string {
	return fmt.Sprintf(`(() => {
  const old = document.getElementById(%s);
  if (old) old.remove();
  const markup = %s;
  if (markup) document.documentElement.insertAdjacentHTML('beforeend', markup);
  return true;
})()`, jsString(overlay.PanelID), jsString(markup))
}

func hotkeysScript(enabled bool) string {
	return fmt.Sprintf(`(() => { window.__liqaHotkeys = %t; return true; })()`, enabled)
}

const snapshotScript = `(() => ({
  html: document.documentElement.outerHTML,
  url: location.href
}))()`

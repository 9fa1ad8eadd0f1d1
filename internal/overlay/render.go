package overlay

import (
	"bytes"
	"fmt"
	"html/template"
)

// Element ids of the injected markup.
const (
	PanelID        = "liqa-control-bar"
	ScoreSectionID = "liqa-score-section"
	ToastID        = "liqa-hint"
	ProgressID     = "liqa-progress"
)

const accent = "#22d3ee"

type view struct {
	PanelID        string
	ScoreSectionID string
	Phase          Phase
	Score          int
	Tier           Tier
	Expanded       bool
	HasDetails     bool
	Strengths      []string
	Weaknesses     []string
	Hint           string
	Accent         string
	Danger         string
}

var funcs = template.FuncMap{
	"color": func(c string) template.CSS { return template.CSS("color:" + c) },
}

var panel = template.Must(template.New("panel").Funcs(funcs).Parse(`<div id="{{.PanelID}}" style="position:fixed;bottom:16px;right:16px;display:flex;align-items:center;gap:2px;background:rgba(15,23,42,0.85);border:1px solid rgba(255,255,255,0.1);padding:4px 8px;border-radius:18px;z-index:2147483647;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;color:#fff">
<div style="display:flex;align-items:center;padding-right:4px;margin-right:4px">
<span data-liqa-key="A" title="Previous candidate" style="padding:8px 12px;font-size:12px">A Prev</span>
<span data-liqa-key="D" title="Next candidate" style="padding:8px 12px;font-size:12px">D Next</span>
</div>
<div style="display:flex;align-items:center;padding-right:4px;margin-right:4px">
<span data-liqa-key="S" title="Save to pipeline" style="padding:8px 12px;font-size:12px;color:#34d399">S Save</span>
<span data-liqa-key="W" title="Hide candidate" style="padding:8px 12px;font-size:12px;color:#f87171">W Hide</span>
</div>
<div id="{{.ScoreSectionID}}" data-phase="{{.Phase}}" style="display:flex;align-items:center;gap:8px;padding:8px 14px;border-radius:12px;cursor:pointer;background:rgba(6,182,212,0.15);border:1px solid rgba(6,182,212,0.4)">
<span style="font-size:11px;font-weight:600;text-transform:uppercase;{{color .Accent}}">Score</span>
{{- if eq .Phase "loading"}}
<span id="liqa-score-value" style="font-size:16px;font-weight:700;{{color .Accent}}">···</span>
{{- else if eq .Phase "error"}}
<span id="liqa-score-value" title="Scoring failed" style="font-size:16px;font-weight:700;{{color .Danger}}">!</span>
{{- else if eq .Phase "scored"}}
<span id="liqa-score-value" style="font-size:16px;font-weight:700;{{color .Tier.Color}}">{{.Score}}</span>
<span id="liqa-score-label" style="font-size:10px;font-weight:600;text-transform:uppercase;{{color .Tier.Color}}">{{.Tier.Label}}</span>
{{- else}}
<span id="liqa-score-value" style="font-size:16px;font-weight:700;color:rgba(255,255,255,0.55)">—</span>
{{- end}}
</div>
{{- if .Hint}}
<span id="liqa-hint-text" style="font-size:11px;margin-left:10px;color:rgba(255,255,255,0.6)"><kbd>Q</kbd> {{.Hint}}</span>
{{- end}}
{{- if and (eq .Phase "scored") .Expanded .HasDetails}}
<div id="liqa-details-panel" style="position:absolute;bottom:100%;right:0;margin-bottom:8px;width:320px;background:rgba(15,23,42,0.85);border-radius:16px;padding:16px">
<div style="display:flex;justify-content:space-between;margin-bottom:12px">
<span id="liqa-detail-score" style="font-size:32px;font-weight:700;{{color .Tier.Color}}">{{.Score}}<small>/100</small></span>
<span id="liqa-detail-label" style="font-size:12px;font-weight:600;{{color .Tier.Color}}">{{.Tier.Label}}</span>
</div>
{{- if .Strengths}}
<div><strong style="font-size:10px;text-transform:uppercase;color:#34d399">Strengths</strong><ul>{{range .Strengths}}<li>{{.}}</li>{{end}}</ul></div>
{{- end}}
{{- if .Weaknesses}}
<div><strong style="font-size:10px;text-transform:uppercase;color:#f87171">Gaps</strong><ul>{{range .Weaknesses}}<li>{{.}}</li>{{end}}</ul></div>
{{- end}}
</div>
{{- end}}
</div>`))

// RenderHTML renders the floating panel for s. It returns an empty string
// when the panel is absent.
func RenderHTML(s State) (string, error) {
	if s.Phase() == PhaseAbsent {
		return "", nil
	}

	v := view{
		PanelID:        PanelID,
		ScoreSectionID: ScoreSectionID,
		Phase:          s.Phase(),
		Expanded:       s.Expanded,
		HasDetails:     s.HasDetails(),
		Strengths:      s.TopStrengths(),
		Weaknesses:     s.TopWeaknesses(),
		Accent:         accent,
		Danger:         ColorDanger,
	}

	switch v.Phase {
	case PhaseScored:
		v.Score = *s.Score
		v.Tier = TierFor(*s.Score)
		v.Hint = "Rescore"
	case PhaseError:
		v.Hint = "Retry"
	case PhaseIdle:
		v.Hint = "AI Score"
	}

	var buf bytes.Buffer
	if err := panel.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render score panel: %w", err)
	}
	return buf.String(), nil
}

// Package settings reads and writes the typed configuration records kept in
// the two storage tiers.
package settings

import "strings"

// Storage keys. Versioned records use <namespace>-<entity>-v<version>,
// per-record entries use <namespace>-<entity>-<id>.
const (
	KeySelectors    = "liqa-selectors-v1"
	KeySettings     = "liqa-settings-v1"
	KeyAIConfig     = "liqa-ai-config-v1"
	KeyJobsIndex    = "liqa-jobs-index-v1"
	JobPrefix       = "liqa-job-"
	KeyLastJob      = "liqa-last-job-index"
	KeyAgentsIndex  = "liqa-agents-index-v1"
	AgentPrefix     = "liqa-agent-"
	KeyDefaultAgent = "liqa-default-agent"
)

// DefaultModel is used when the AI configuration leaves the model empty.
const DefaultModel = "gpt-4o-mini"

// Selectors maps the four actions to CSS selectors.
type Selectors struct {
	Next string `json:"next,omitempty" mapstructure:"next"`
	Prev string `json:"prev,omitempty" mapstructure:"prev"`
	Save string `json:"save,omitempty" mapstructure:"save"`
	Hide string `json:"hide,omitempty" mapstructure:"hide"`
}

// DefaultSelectors returns the built-in selectors for LinkedIn Recruiter.
func DefaultSelectors() Selectors {
	return Selectors{
		Next: `nav[data-test-ts-pagination] a[rel="next"], a[data-test-pagination-next]`,
		Prev: `nav[data-test-ts-pagination] a[rel="prev"], a[data-test-pagination-previous]`,
		Save: `[data-live-test-profile-container] button[data-live-test-save-to-first-stage], [data-live-test-profile-container] [data-live-test-component="save-to-pipeline-btn"] .save-to-pipeline__button`,
		Hide: `[data-live-test-profile-container] button[data-live-test-component="hide-btn"]`,
	}
}

// MergeSelectors overlays override on base. Empty override fields keep the base value.
func MergeSelectors(base, override Selectors) Selectors {
	pick := func(b, o string) string {
		if strings.TrimSpace(o) == "" {
			return b
		}
		return o
	}

	return Selectors{
		Next: pick(base.Next, override.Next),
		Prev: pick(base.Prev, override.Prev),
		Save: pick(base.Save, override.Save),
		Hide: pick(base.Hide, override.Hide),
	}
}

// Settings holds the feature toggles kept in the sync tier.
type Settings struct {
	HotkeysEnabled bool  `json:"hotkeysEnabled" mapstructure:"hotkeysEnabled"`
	LegendEnabled  *bool `json:"legendEnabled,omitempty" mapstructure:"legendEnabled"`
}

// DefaultSettings enables hotkeys.
func DefaultSettings() Settings {
	return Settings{HotkeysEnabled: true}
}

// AIConfig is the scoring configuration kept in the local tier.
type AIConfig struct {
	APIKey        string `json:"apiKey,omitempty" mapstructure:"apiKey"`
	Model         string `json:"model,omitempty" mapstructure:"model"`
	AutoScan      bool   `json:"autoScan,omitempty" mapstructure:"autoScan"`
	ImpactProfile string `json:"impactProfile,omitempty" mapstructure:"impactProfile"`
	SystemPrompt  string `json:"systemPrompt,omitempty" mapstructure:"systemPrompt"`
}

// ResolvedModel returns the configured model or DefaultModel.
func (c AIConfig) ResolvedModel() string {
	if m := strings.TrimSpace(c.Model); m != "" {
		return m
	}
	return DefaultModel
}

// IndexEntry is one row of the job or agent index.
type IndexEntry struct {
	ID   string `json:"id" mapstructure:"id"`
	Name string `json:"name" mapstructure:"name"`
}

// Job is a stored job description.
type Job struct {
	ID            string `json:"id" mapstructure:"id"`
	Name          string `json:"name" mapstructure:"name" validate:"required"`
	Text          string `json:"text" mapstructure:"text" validate:"required"`
	ImpactProfile string `json:"impactProfile,omitempty" mapstructure:"impactProfile"`
}

// Agent is a named system prompt preset.
type Agent struct {
	ID     string `json:"id" mapstructure:"id"`
	Name   string `json:"name" mapstructure:"name" validate:"required"`
	Prompt string `json:"prompt" mapstructure:"prompt" validate:"required"`
}

// JobKey returns the storage key of the full job record.
func JobKey(id string) string { return JobPrefix + id }

// AgentKey returns the storage key of the full agent record.
func AgentKey(id string) string { return AgentPrefix + id }

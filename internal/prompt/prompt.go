// Package prompt assembles the system and user messages sent for scoring.
package prompt

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"go.uber.org/zap"
)

//go:embed resources/*.txt
var bundled embed.FS

// Bundled resource names.
const (
	SystemPromptFile   = "resources/system-prompt.txt"
	FallbackPromptFile = "resources/fallback-prompt.txt"
	UserTemplateFile   = "resources/user-prompt-template.txt"
)

// Template placeholders.
const (
	JobPlaceholder       = "{{JOB_DESCRIPTION}}"
	ImpactPlaceholder    = "{{IMPACT_PROFILE}}"
	CandidatePlaceholder = "{{CANDIDATE_PROFILE}}"
)

const (
	builtinSystemPrompt = "You are an expert recruiter. Score candidates 0-100 based on role fit and impact profile. Return JSON with keys: score (0-100), strengths (array), weaknesses (array)."
	builtinTemplate     = "Job Description:\n" + JobPlaceholder + "\n\nImpact Profile:\n" + ImpactPlaceholder + "\n\nCandidate Profile:\n" + CandidatePlaceholder + "\n\nRespond in strict JSON. If you return Markdown or text, still ensure a valid JSON block exists."
)

// Source names where the system prompt came from.
type Source string

const (
	SourceAgent    Source = "agent"
	SourceConfig   Source = "config"
	SourceBundled  Source = "bundled"
	SourceFallback Source = "fallback"
	SourceBuiltin  Source = "builtin"
)

// AgentPrompts supplies the default agent's prompt.
type AgentPrompts interface {
	DefaultAgentPrompt(ctx context.Context) (string, error)
}

// Input is the per-invocation context. Nothing here is cached.
type Input struct {
	JobText       string
	ImpactProfile string
	CandidateText string
	// ConfigPrompt is the system prompt set in the AI configuration.
	ConfigPrompt string
}

// Messages are the two messages of a completion request.
type Messages struct {
	System string
	User   string
	Source Source
}

// Assembler resolves prompts from agents, configuration and bundled resources.
type Assembler struct {
	agents    AgentPrompts
	resources fs.FS
	logger    *zap.Logger
}

// NewAssembler uses the bundled resources.
func NewAssembler(agents AgentPrompts, logger *zap.Logger) *Assembler {
	return NewAssemblerFS(agents, bundled, logger)
}

// NewAssemblerFS reads resources from fsys.
func NewAssemblerFS(agents AgentPrompts, fsys fs.FS, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{agents: agents, resources: fsys, logger: logger}
}

// Build resolves both messages.
func (a *Assembler) Build(ctx context.Context, in Input) Messages {
	system, source := a.SystemPrompt(ctx, in.ConfigPrompt)
	return Messages{
		System: system,
		User:   Fill(a.Template(), in.JobText, in.ImpactProfile, in.CandidateText),
		Source: source,
	}
}

// SystemPrompt walks the tiers: default agent, configured prompt, bundled
// prompt, bundled fallback, built-in string. A tier is skipped when it is
// empty or fails.
func (a *Assembler) SystemPrompt(ctx context.Context, configPrompt string) (string, Source) {
	if a.agents != nil {
		p, err := a.agents.DefaultAgentPrompt(ctx)
		if err != nil {
			a.logger.Debug("default agent prompt unavailable", zap.Error(err))
		} else if p = strings.TrimSpace(p); p != "" {
			return p, SourceAgent
		}
	}

	if p := strings.TrimSpace(configPrompt); p != "" {
		return p, SourceConfig
	}

	p, err := a.read(SystemPromptFile)
	if err == nil {
		return p, SourceBundled
	}
	a.logger.Debug("bundled system prompt unavailable", zap.Error(err))

	if p, err := a.read(FallbackPromptFile); err == nil {
		return p, SourceFallback
	}

	return builtinSystemPrompt, SourceBuiltin
}

// Template returns the bundled user template or the built-in one.
func (a *Assembler) Template() string {
	t, err := a.read(UserTemplateFile)
	if err != nil {
		a.logger.Debug("bundled user template unavailable", zap.Error(err))
		return builtinTemplate
	}
	return t
}

func (a *Assembler) read(name string) (string, error) {
	if a.resources == nil {
		return "", fmt.Errorf("no resources")
	}
	data, err := fs.ReadFile(a.resources, name)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%s is empty", name)
	}
	return text, nil
}

// Fill substitutes the three placeholders in one pass so substituted text is
// never scanned for placeholders again.
func Fill(template, job, impact, candidate string) string {
	r := strings.NewReplacer(
		JobPlaceholder, job,
		ImpactPlaceholder, impact,
		CandidatePlaceholder, candidate,
	)
	return r.Replace(template)
}

// Package scoring runs one candidate scoring: read the page, resolve the job
// and prompts, call the completion service, present the result.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/liqa/internal/ai"
	"github.com/spigell/liqa/internal/dom"
	"github.com/spigell/liqa/internal/extract"
	"github.com/spigell/liqa/internal/logger"
	"github.com/spigell/liqa/internal/metrics"
	"github.com/spigell/liqa/internal/overlay"
	"github.com/spigell/liqa/internal/prompt"
	"github.com/spigell/liqa/internal/settings"
)

// User visible messages.
const (
	MsgNoProfile     = "Cannot read profile"
	MsgNotConfigured = "AI not configured"
	MsgJobMissing    = "Job description missing"
	MsgFailed        = "Scoring failed"
)

var (
	ErrNoProfile     = errors.New("cannot read profile")
	ErrNotConfigured = errors.New("ai not configured")
	ErrJobMissing    = errors.New("job description missing")
	// ErrSuperseded is returned by a run whose result was dropped because a
	// newer run started or the panel was reset.
	ErrSuperseded = errors.New("scoring superseded")
)

// Page is the part of the host page the pipeline needs.
type Page interface {
	Snapshot(ctx context.Context) (*dom.Document, error)
	Toast(ctx context.Context, text string, kind overlay.ToastKind) error
	ShowProgress(ctx context.Context) error
	HideProgress(ctx context.Context) error
}

// Connector builds a completer for the stored AI configuration. It is called
// on every run so credential changes apply immediately. It fails when no
// credential can be resolved from the configuration or its other sources.
type Connector func(ctx context.Context, cfg settings.AIConfig) (ai.Completer, error)

// Config holds the pipeline dependencies.
type Config struct {
	Page     Page
	Settings *settings.Repository
	Prompts  *prompt.Assembler
	Connect  Connector
	State    *overlay.Store
	Metrics  *metrics.Manager
	// Provider labels completion error metrics.
	Provider string
	Logger   *zap.Logger
}

// Pipeline scores the candidate shown on the page. Runs may overlap; only the
// most recently started run may change the panel state.
type Pipeline struct {
	cfg    Config
	logger *zap.Logger

	token    atomic.Uint64
	inflight atomic.Int32
}

func New(cfg Config) *Pipeline {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.State == nil {
		cfg.State = overlay.NewStore()
	}
	if cfg.Prompts == nil {
		cfg.Prompts = prompt.NewAssembler(cfg.Settings, log)
	}
	return &Pipeline{cfg: cfg, logger: logger.Named(log, "scoring")}
}

// State returns the presentation store the pipeline writes to.
func (p *Pipeline) State() *overlay.Store { return p.cfg.State }

// Reset clears the panel and drops the result of any run in flight.
func (p *Pipeline) Reset() {
	p.token.Add(1)
	p.cfg.State.Reset()
}

// Score runs the pipeline. jobIndex selects the job; nil means the last used
// job, or the first one.
func (p *Pipeline) Score(ctx context.Context, jobIndex *int) (*ai.Result, error) {
	started := time.Now()
	token := p.token.Add(1)

	doc, err := p.cfg.Page.Snapshot(ctx)
	if err != nil {
		p.settle(token)
		return nil, fmt.Errorf("snapshot page: %w", err)
	}

	profile := extract.ProfileText(doc)
	if profile == "" {
		p.settle(token)
		p.toast(ctx, MsgNoProfile, overlay.ToastError)
		return nil, ErrNoProfile
	}

	aiCfg, err := p.cfg.Settings.AIConfig(ctx)
	if err != nil {
		p.logger.Warn("reading ai configuration", zap.Error(err))
	}
	completer, err := p.cfg.Connect(ctx, aiCfg)
	if err != nil {
		p.logger.Debug("connecting completion service", zap.Error(err))
		p.settle(token)
		p.toast(ctx, MsgNotConfigured, overlay.ToastError)
		return nil, fmt.Errorf("%w: %w", ErrNotConfigured, err)
	}

	index := p.resolveIndex(ctx, jobIndex)
	job, err := p.cfg.Settings.JobAt(ctx, index)
	if err != nil {
		p.logger.Warn("reading job", zap.Int("index", index), zap.Error(err))
	}
	if job == nil || strings.TrimSpace(job.Text) == "" {
		p.settle(token)
		p.toast(ctx, MsgJobMissing, overlay.ToastError)
		return nil, ErrJobMissing
	}

	log := p.logger.With(logger.RunFields(token, index, job.Name)...)

	if _, ok := p.cfg.State.UpdateIf(p.current(token), overlay.Loading()); !ok {
		log.Debug("dropping run reset before loading")
		p.cfg.Metrics.RecordScoringRun(metrics.OutcomeSuperseded, time.Since(started))
		return nil, ErrSuperseded
	}
	p.showProgress(ctx)
	defer p.hideProgress(ctx)

	result, runErr := p.complete(ctx, completer, aiCfg, job, profile, log)
	if runErr != nil {
		p.cfg.Metrics.RecordCompletionError(p.cfg.Provider)
		if recovered, ok := fromErrorText(runErr); ok {
			log.Debug("recovered result from error message")
			result, runErr = recovered, nil
		}
	}

	outcome := overlay.Failed()
	if runErr == nil {
		outcome = overlay.Scored(result.Score, result.Strengths, result.Weaknesses)
	}
	if _, ok := p.cfg.State.UpdateIf(p.current(token), outcome); !ok {
		log.Debug("dropping superseded result")
		p.cfg.Metrics.RecordScoringRun(metrics.OutcomeSuperseded, time.Since(started))
		return nil, ErrSuperseded
	}

	if runErr != nil {
		log.Warn("scoring failed", zap.Error(runErr))
		p.toast(ctx, MsgFailed, overlay.ToastError)
		p.cfg.Metrics.RecordScoringRun(metrics.OutcomeError, time.Since(started))
		return nil, runErr
	}

	p.cfg.Metrics.RecordScoringRun(metrics.OutcomeScored, time.Since(started))
	log.Info("candidate scored", zap.Int("score", result.Score))

	if jobIndex != nil {
		if err := p.cfg.Settings.SetLastJobIndex(ctx, index); err != nil {
			log.Warn("remembering job index", zap.Error(err))
		}
	}

	return &result, nil
}

// settle is called by a run that stops before loading. It supersedes older
// runs, so it ends their loading phase.
func (p *Pipeline) settle(token uint64) {
	p.cfg.State.UpdateIf(p.current(token), overlay.Idle())
}

// current reports whether token still belongs to the latest run.
func (p *Pipeline) current(token uint64) func() bool {
	return func() bool { return p.token.Load() == token }
}

func (p *Pipeline) complete(ctx context.Context, completer ai.Completer, cfg settings.AIConfig, job *settings.Job, profile string, log *zap.Logger) (ai.Result, error) {
	impact := job.ImpactProfile
	if strings.TrimSpace(impact) == "" {
		impact = cfg.ImpactProfile
	}

	msgs := p.cfg.Prompts.Build(ctx, prompt.Input{
		JobText:       job.Text,
		ImpactProfile: impact,
		CandidateText: profile,
		ConfigPrompt:  cfg.SystemPrompt,
	})
	log.Debug("prompts resolved", zap.String("system_source", string(msgs.Source)))

	text, err := completer.Complete(ctx, ai.Request{
		Model:       cfg.ResolvedModel(),
		System:      msgs.System,
		User:        msgs.User,
		Temperature: ai.Temperature,
	})
	if err != nil {
		return ai.Result{}, err
	}

	return ai.ParseResult(text)
}

// fromErrorText tries the error text itself: upstream errors sometimes carry the
// JSON answer.
func fromErrorText(err error) (ai.Result, bool) {
	msg := err.Error()
	if !strings.Contains(msg, "{") {
		return ai.Result{}, false
	}
	result, perr := ai.ParseResult(msg)
	if perr != nil {
		return ai.Result{}, false
	}
	return result, true
}

// resolveIndex prefers the explicit index, then the stored one, then 0.
// Read failures fall back to 0.
func (p *Pipeline) resolveIndex(ctx context.Context, jobIndex *int) int {
	if jobIndex != nil {
		return *jobIndex
	}
	index, ok, err := p.cfg.Settings.LastJobIndex(ctx)
	if err != nil {
		p.logger.Debug("reading last job index", zap.Error(err))
		return 0
	}
	if !ok {
		return 0
	}
	return index
}

func (p *Pipeline) showProgress(ctx context.Context) {
	if p.inflight.Add(1) == 1 {
		if err := p.cfg.Page.ShowProgress(ctx); err != nil {
			p.logger.Debug("showing progress", zap.Error(err))
		}
	}
}

// hideProgress hides the indicator once no run is loading.
func (p *Pipeline) hideProgress(ctx context.Context) {
	if p.inflight.Add(-1) == 0 {
		if err := p.cfg.Page.HideProgress(ctx); err != nil {
			p.logger.Debug("hiding progress", zap.Error(err))
		}
	}
}

func (p *Pipeline) toast(ctx context.Context, text string, kind overlay.ToastKind) {
	if err := p.cfg.Page.Toast(ctx, text, kind); err != nil {
		p.logger.Debug("showing toast", zap.String("text", text), zap.Error(err))
	}
}

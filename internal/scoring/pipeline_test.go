package scoring

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/liqa/internal/ai"
	"github.com/spigell/liqa/internal/dom"
	"github.com/spigell/liqa/internal/metrics"
	"github.com/spigell/liqa/internal/overlay"
	"github.com/spigell/liqa/internal/secrets"
	"github.com/spigell/liqa/internal/settings"
	"github.com/spigell/liqa/internal/storage"
)

const profilePage = `<html><body>
<div data-live-test-profile-container>
  <span data-test-row-lockup-full-name>Ada Lovelace</span>
  <span data-test-row-lockup-headline>Staff Engineer</span>
</div>
</body></html>`

const emptyPage = `<html><body><div data-live-test-profile-container></div></body></html>`

type toast struct {
	text string
	kind overlay.ToastKind
}

type fakePage struct {
	mu       sync.Mutex
	markup   string
	toasts   []toast
	progress []bool

	// hold, when set, parks Snapshot until it is closed.
	hold    chan struct{}
	holding chan struct{}
}

func (f *fakePage) Snapshot(context.Context) (*dom.Document, error) {
	if f.hold != nil {
		f.holding <- struct{}{}
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return dom.ParseString(f.markup, "https://www.linkedin.com/talent/profile/1")
}

func (f *fakePage) Toast(_ context.Context, text string, kind overlay.ToastKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, toast{text, kind})
	return nil
}

func (f *fakePage) ShowProgress(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, true)
	return nil
}

func (f *fakePage) HideProgress(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, false)
	return nil
}

func (f *fakePage) toastTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	texts := make([]string, 0, len(f.toasts))
	for _, t := range f.toasts {
		texts = append(texts, t.text)
	}
	return texts
}

type fakeCompleter struct {
	mu       sync.Mutex
	requests []ai.Request
	reply    func(ai.Request) (string, error)
}

func (f *fakeCompleter) Complete(_ context.Context, req ai.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	reply := f.reply
	f.mu.Unlock()
	return reply(req)
}

func (f *fakeCompleter) ListModels(context.Context) ([]string, error) { return ai.DefaultModels, nil }

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fixture struct {
	page      *fakePage
	completer *fakeCompleter
	repo      *settings.Repository
	pipeline  *Pipeline
}

func newFixture(t *testing.T, markup string, reply func(ai.Request) (string, error)) *fixture {
	t.Helper()

	repo := settings.New(storage.NewMemory())
	f := &fixture{
		page:      &fakePage{markup: markup},
		completer: &fakeCompleter{reply: reply},
		repo:      repo,
	}
	f.pipeline = New(Config{
		Page:     f.page,
		Settings: repo,
		Connect: func(_ context.Context, cfg settings.AIConfig) (ai.Completer, error) {
			if _, err := secrets.Load(secrets.Source{Name: "api key", Value: cfg.APIKey, Env: testKeyEnv}); err != nil {
				return nil, err
			}
			return f.completer, nil
		},
		Metrics:  metrics.NewManager(),
		Provider: "openai",
	})
	f.pipeline.State().SetPresent(true)
	return f
}

func (f *fixture) configure(t *testing.T, jobs ...settings.Job) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.repo.SetAIConfig(ctx, settings.AIConfig{APIKey: "sk-test", ImpactProfile: "bias for action"}))
	for _, job := range jobs {
		_, err := f.repo.SaveJob(ctx, job)
		require.NoError(t, err)
	}
}

const testKeyEnv = "LIQA_SCORING_TEST_KEY"

func reply(text string) func(ai.Request) (string, error) {
	return func(ai.Request) (string, error) { return text, nil }
}

func TestScoreEmptyProfile(t *testing.T) {
	f := newFixture(t, emptyPage, reply("{}"))
	f.configure(t, settings.Job{Name: "Backend", Text: "Go"})

	_, err := f.pipeline.Score(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoProfile)

	assert.Equal(t, []string{MsgNoProfile}, f.page.toastTexts())
	assert.Zero(t, f.completer.calls())
	assert.Empty(t, f.page.progress)
}

func TestScoreNotConfigured(t *testing.T) {
	t.Setenv(testKeyEnv, "")
	f := newFixture(t, profilePage, reply("{}"))
	_, err := f.repo.SaveJob(context.Background(), settings.Job{Name: "Backend", Text: "Go"})
	require.NoError(t, err)

	_, err = f.pipeline.Score(context.Background(), nil)
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, []string{MsgNotConfigured}, f.page.toastTexts())
	assert.Zero(t, f.completer.calls())
	assert.Empty(t, f.page.progress)
}

func TestScoreWithKeyFromEnvironmentOnly(t *testing.T) {
	t.Setenv(testKeyEnv, "sk-from-env")
	f := newFixture(t, profilePage, reply(`{"score": 61}`))
	_, err := f.repo.SaveJob(context.Background(), settings.Job{Name: "Backend", Text: "Go"})
	require.NoError(t, err)

	cfg, err := f.repo.AIConfig(context.Background())
	require.NoError(t, err)
	require.Empty(t, cfg.APIKey, "nothing is stored")

	result, err := f.pipeline.Score(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 61, result.Score)
	assert.Equal(t, 1, f.completer.calls())
	assert.Empty(t, f.page.toastTexts())
}

func TestScoreJobMissing(t *testing.T) {
	f := newFixture(t, profilePage, reply("{}"))
	f.configure(t, settings.Job{Name: "Backend", Text: "Go"})

	index := 3
	_, err := f.pipeline.Score(context.Background(), &index)
	require.ErrorIs(t, err, ErrJobMissing)

	assert.Equal(t, []string{MsgJobMissing}, f.page.toastTexts())
	assert.Zero(t, f.completer.calls())
	assert.Equal(t, overlay.PhaseIdle, f.pipeline.State().Get().Phase())
}

func TestScoreSuccess(t *testing.T) {
	f := newFixture(t, profilePage, reply(`Here you go: {"score": 82, "strengths":["Strong leadership"], "weaknesses":[]}`))
	f.configure(t, settings.Job{Name: "Backend", Text: "Build Go services"})

	result, err := f.pipeline.Score(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, result)

	st := f.pipeline.State().Get()
	require.NotNil(t, st.Score)
	assert.Equal(t, 82, *st.Score)
	assert.Equal(t, []string{"Strong leadership"}, st.Strengths)
	assert.Empty(t, st.Weaknesses)
	assert.False(t, st.Loading)

	tier := overlay.TierFor(*st.Score)
	assert.Equal(t, "Strong Match", tier.Label)
	assert.Equal(t, overlay.ColorSuccess, tier.Color)

	assert.Equal(t, []bool{true, false}, f.page.progress)
	assert.Empty(t, f.page.toastTexts())

	require.Equal(t, 1, f.completer.calls())
	req := f.completer.requests[0]
	assert.Equal(t, settings.DefaultModel, req.Model)
	assert.Equal(t, ai.Temperature, req.Temperature)
	assert.Contains(t, req.User, "Build Go services")
	assert.Contains(t, req.User, "Ada Lovelace")
	assert.Contains(t, req.User, "bias for action", "impact profile falls back to the AI configuration")
	assert.NotEmpty(t, req.System)
}

func TestScoreProseFails(t *testing.T) {
	f := newFixture(t, profilePage, reply("I cannot evaluate this candidate."))
	f.configure(t, settings.Job{Name: "Backend", Text: "Go"})

	_, err := f.pipeline.Score(context.Background(), nil)
	require.ErrorIs(t, err, ai.ErrNoJSON)

	st := f.pipeline.State().Get()
	assert.Nil(t, st.Score)
	assert.False(t, st.Loading)
	assert.Equal(t, []string{MsgFailed}, f.page.toastTexts())
	assert.Equal(t, []bool{true, false}, f.page.progress)
}

func TestScoreRecoversFromErrorText(t *testing.T) {
	f := newFixture(t, profilePage, func(ai.Request) (string, error) {
		return "", errors.New(`upstream said {"score": 64, "strengths": ["x"]}`)
	})
	f.configure(t, settings.Job{Name: "Backend", Text: "Go"})

	result, err := f.pipeline.Score(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 64, result.Score)
	assert.Empty(t, f.page.toastTexts())
}

func TestScoreUsesJobImpactAndRemembersIndex(t *testing.T) {
	f := newFixture(t, profilePage, reply(`{"score": 50}`))
	f.configure(t,
		settings.Job{Name: "Backend", Text: "Go"},
		settings.Job{Name: "Frontend", Text: "TypeScript", ImpactProfile: "design taste"},
	)

	index := 1
	_, err := f.pipeline.Score(context.Background(), &index)
	require.NoError(t, err)

	req := f.completer.requests[0]
	assert.Contains(t, req.User, "TypeScript")
	assert.Contains(t, req.User, "design taste")
	assert.NotContains(t, req.User, "bias for action")

	last, ok, err := f.repo.LastJobIndex(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, last)

	_, err = f.pipeline.Score(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, f.completer.requests[1].User, "TypeScript", "the remembered job is used next time")
}

func TestLatestRunWins(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var calls atomic.Int32
	f := newFixture(t, profilePage, func(ai.Request) (string, error) {
		if calls.Add(1) == 1 {
			entered <- struct{}{}
			<-release
			return `{"score": 10}`, nil
		}
		return `{"score": 90}`, nil
	})
	f.configure(t, settings.Job{Name: "Backend", Text: "Go"})

	var slowErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, slowErr = f.pipeline.Score(context.Background(), nil)
	}()

	<-entered
	_, err := f.pipeline.Score(context.Background(), nil)
	require.NoError(t, err)

	close(release)
	<-done

	require.ErrorIs(t, slowErr, ErrSuperseded)
	assert.Equal(t, 90, *f.pipeline.State().Get().Score)

	f.page.mu.Lock()
	defer f.page.mu.Unlock()
	assert.Equal(t, []bool{true, false}, f.page.progress, "progress stays up until the last run ends")
}

func TestResetDropsInflightResult(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	f := newFixture(t, profilePage, func(ai.Request) (string, error) {
		entered <- struct{}{}
		<-release
		return `{"score": 77}`, nil
	})
	f.configure(t, settings.Job{Name: "Backend", Text: "Go"})

	errs := make(chan error, 1)
	go func() {
		_, err := f.pipeline.Score(context.Background(), nil)
		errs <- err
	}()

	<-entered
	f.pipeline.Reset()
	close(release)

	require.ErrorIs(t, <-errs, ErrSuperseded)
	st := f.pipeline.State().Get()
	assert.Nil(t, st.Score)
	assert.False(t, st.Loading)
}

func TestResetWhileReadingPageDropsRun(t *testing.T) {
	f := newFixture(t, profilePage, reply(`{"score": 88}`))
	f.configure(t, settings.Job{Name: "Backend", Text: "Go"})
	f.page.hold = make(chan struct{})
	f.page.holding = make(chan struct{}, 1)

	errs := make(chan error, 1)
	go func() {
		_, err := f.pipeline.Score(context.Background(), nil)
		errs <- err
	}()

	<-f.page.holding
	f.pipeline.Reset()
	close(f.page.hold)

	require.ErrorIs(t, <-errs, ErrSuperseded)
	st := f.pipeline.State().Get()
	assert.Nil(t, st.Score)
	assert.False(t, st.Loading)
	assert.Equal(t, overlay.PhaseIdle, st.Phase())
	assert.Zero(t, f.completer.calls())
	assert.Empty(t, f.page.progress)
}

func TestAbortedRunEndsOlderLoading(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	f := newFixture(t, profilePage, func(ai.Request) (string, error) {
		entered <- struct{}{}
		<-release
		return `{"score": 40}`, nil
	})
	f.configure(t, settings.Job{Name: "Backend", Text: "Go"})

	errs := make(chan error, 1)
	go func() {
		_, err := f.pipeline.Score(context.Background(), nil)
		errs <- err
	}()
	<-entered
	require.True(t, f.pipeline.State().Get().Loading)

	f.page.mu.Lock()
	f.page.markup = emptyPage
	f.page.mu.Unlock()

	_, err := f.pipeline.Score(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoProfile)
	assert.False(t, f.pipeline.State().Get().Loading)

	close(release)
	require.ErrorIs(t, <-errs, ErrSuperseded)
	assert.Equal(t, overlay.PhaseIdle, f.pipeline.State().Get().Phase())
}

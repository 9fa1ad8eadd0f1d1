package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/liqa/internal/ai"
	"github.com/spigell/liqa/internal/ai/gemini"
	"github.com/spigell/liqa/internal/ai/openai"
	"github.com/spigell/liqa/internal/scoring"
	"github.com/spigell/liqa/internal/secrets"
	"github.com/spigell/liqa/internal/settings"
	"github.com/spigell/liqa/internal/storage"
)

const (
	providerOpenAI = "openai"
	providerGemini = "gemini"

	apiKeyEnv = "LIQA_AI_API_KEY"
)

// env is what every subcommand needs: config, logger and the opened store.
type env struct {
	config  *Config
	logger  *zap.Logger
	store   *storage.Storage
	repo    *settings.Repository
	watch   func(ctx context.Context) error
	closeFn func()
}

func (e *env) Close() {
	if e.closeFn != nil {
		e.closeFn()
	}
	_ = e.logger.Sync()
}

func setup(ctx context.Context) (*env, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}

	config, err := getConfig()
	if err != nil {
		return nil, fmt.Errorf("getting a config: %w", err)
	}

	e := &env{config: config, logger: logger}
	if err := e.openStorage(ctx); err != nil {
		return nil, err
	}
	e.repo = settings.New(e.store)

	return e, nil
}

func (e *env) openStorage(ctx context.Context) error {
	cfg := e.config.Storage

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "file":
		store, err := storage.NewFile(cfg.Dir, e.logger.Named("storage"))
		if err != nil {
			return fmt.Errorf("opening file storage: %w", err)
		}
		e.store = store
		e.watch = func(ctx context.Context) error {
			watchers := []*storage.FileStore{store.Sync.(*storage.FileStore), store.Local.(*storage.FileStore)}
			errs := make(chan error, len(watchers))
			for _, w := range watchers {
				go func() { errs <- w.Watch(ctx) }()
			}
			for range watchers {
				if err := <-errs; err != nil {
					return err
				}
			}
			return nil
		}
		e.logger.Debug("using file storage", zap.String("dir", cfg.Dir))
	case "postgres":
		if cfg.PostgresURL == "" {
			return fmt.Errorf("storage.postgres-url is required for the postgres backend")
		}
		pg, err := storage.OpenPostgres(ctx, cfg.PostgresURL, e.logger.Named("storage"))
		if err != nil {
			return err
		}
		e.store = pg.Storage()
		e.watch = pg.Listen
		e.closeFn = pg.Close
		e.logger.Debug("using postgres storage")
	default:
		return fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}

	return nil
}

func (e *env) provider() string {
	provider := strings.ToLower(strings.TrimSpace(e.config.AI.Provider))
	if provider == "" {
		return providerOpenAI
	}
	return provider
}

// connector builds the completer for the configured provider. The key comes
// from ai.api-key-file, then LIQA_AI_API_KEY, then the stored AI configuration;
// the pipeline reports a failure here as "AI not configured".
func (e *env) connector() scoring.Connector {
	return func(ctx context.Context, stored settings.AIConfig) (ai.Completer, error) {
		return e.completer(ctx, stored.APIKey)
	}
}

func (e *env) completer(ctx context.Context, storedKey string) (ai.Completer, error) {
	cfg := e.config.AI
	provider := e.provider()

	apiKey, err := secrets.Load(secrets.Source{
		Name:  provider + " api key",
		Value: storedKey,
		Env:   apiKeyEnv,
		File:  cfg.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (run `liqa ai set --key`, set LIQA_AI_API_KEY or ai.api-key-file)", err)
	}

	switch provider {
	case providerOpenAI:
		client, err := openai.New(apiKey, openai.Options{
			BaseURL:      cfg.BaseURL,
			MaxRetries:   cfg.MaxRetries,
			MaxLogLength: cfg.MaxLogLength,
		}, e.logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	case providerGemini:
		model := ""
		if cfg.Gemini != nil {
			model = cfg.Gemini.Model
		}
		generator, err := gemini.NewGenerator(ctx, apiKey, model, cfg.MaxRetries, e.logger)
		if err != nil {
			return nil, err
		}
		return generator, nil
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

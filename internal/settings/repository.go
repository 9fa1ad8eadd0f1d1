package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/spigell/liqa/internal/storage"
)

// ErrInvalid wraps validation failures of jobs and agents.
var ErrInvalid = errors.New("invalid record")

// ErrNotFound is returned when a record id is not present in its index.
var ErrNotFound = errors.New("record not found")

// Repository gives typed access to the configuration records.
type Repository struct {
	store    *storage.Storage
	validate *validator.Validate
	newID    func() string
}

// New creates a Repository over store.
func New(store *storage.Storage) *Repository {
	return &Repository{
		store:    store,
		validate: validator.New(),
		newID:    uuid.NewString,
	}
}

// Storage returns the underlying tiers.
func (r *Repository) Storage() *storage.Storage {
	return r.store
}

// Selectors returns the stored overrides merged over the defaults.
func (r *Repository) Selectors(ctx context.Context) (Selectors, error) {
	var override Selectors
	if err := r.read(ctx, r.store.Sync, KeySelectors, &override); err != nil {
		return DefaultSelectors(), err
	}
	return MergeSelectors(DefaultSelectors(), override), nil
}

// SelectorOverrides returns the stored overrides without defaults.
func (r *Repository) SelectorOverrides(ctx context.Context) (Selectors, error) {
	var override Selectors
	err := r.read(ctx, r.store.Sync, KeySelectors, &override)
	return override, err
}

// SelectorsFromValue merges a raw stored value over the defaults. Undecodable
// values yield the defaults.
func SelectorsFromValue(value any) Selectors {
	var override Selectors
	if err := decode(value, &override); err != nil {
		return DefaultSelectors()
	}
	return MergeSelectors(DefaultSelectors(), override)
}

// SetSelectors stores overrides. Empty fields fall back to defaults when read.
func (r *Repository) SetSelectors(ctx context.Context, s Selectors) error {
	return r.store.Sync.Set(ctx, KeySelectors, s)
}

// ResetSelectors removes all overrides.
func (r *Repository) ResetSelectors(ctx context.Context) error {
	return r.store.Sync.Remove(ctx, KeySelectors)
}

// Settings returns the toggles with defaults applied.
func (r *Repository) Settings(ctx context.Context) (Settings, error) {
	s := DefaultSettings()
	if err := r.read(ctx, r.store.Sync, KeySettings, &s); err != nil {
		return DefaultSettings(), err
	}
	return s, nil
}

// SettingsFromValue decodes a raw stored value. Hotkeys stay enabled unless
// the value explicitly disables them.
func SettingsFromValue(value any) Settings {
	s := DefaultSettings()
	if err := decode(value, &s); err != nil {
		return DefaultSettings()
	}
	return s
}

func (r *Repository) SetSettings(ctx context.Context, s Settings) error {
	return r.store.Sync.Set(ctx, KeySettings, s)
}

// AIConfig returns the scoring configuration. A missing record yields the zero value.
func (r *Repository) AIConfig(ctx context.Context) (AIConfig, error) {
	var cfg AIConfig
	err := r.read(ctx, r.store.Local, KeyAIConfig, &cfg)
	return cfg, err
}

func (r *Repository) SetAIConfig(ctx context.Context, cfg AIConfig) error {
	return r.store.Local.Set(ctx, KeyAIConfig, cfg)
}

// LastJobIndex returns the remembered job index. ok is false when nothing
// numeric is stored.
func (r *Repository) LastJobIndex(ctx context.Context) (index int, ok bool, err error) {
	values, err := r.store.Local.Get(ctx, KeyLastJob)
	if err != nil {
		return 0, false, err
	}

	switch v := values[KeyLastJob].(type) {
	case float64:
		return int(v), true, nil
	case int:
		return v, true, nil
	default:
		return 0, false, nil
	}
}

func (r *Repository) SetLastJobIndex(ctx context.Context, index int) error {
	return r.store.Local.Set(ctx, KeyLastJob, index)
}

func (r *Repository) read(ctx context.Context, store storage.Store, key string, out any) error {
	values, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}

	if err := decode(values[key], out); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

func (r *Repository) readIndex(ctx context.Context, key string) ([]IndexEntry, error) {
	var index []IndexEntry
	if err := r.read(ctx, r.store.Local, key, &index); err != nil {
		return nil, err
	}
	return index, nil
}

func (r *Repository) check(record any) error {
	if err := r.validate.Struct(record); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, strings.ToLower(fe.Field()))
			}
			return fmt.Errorf("%w: %s required", ErrInvalid, strings.Join(fields, " and "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func decode(value any, out any) error {
	if value == nil {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(value)
}

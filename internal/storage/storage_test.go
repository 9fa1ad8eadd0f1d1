package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) record(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	rec := &recorder{}
	cancel := store.Subscribe(rec.record)

	require.NoError(t, store.Set(ctx, "liqa-last-job-index", 2))
	require.NoError(t, store.Set(ctx, "liqa-settings-v1", map[string]any{"hotkeysEnabled": false}))

	values, err := store.Get(ctx, "liqa-last-job-index", "missing")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"liqa-last-job-index": float64(2)}, values)

	all, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, map[string]any{"hotkeysEnabled": false}, all["liqa-settings-v1"])

	// unchanged values are not published again
	require.NoError(t, store.Set(ctx, "liqa-last-job-index", 2))

	require.NoError(t, store.Remove(ctx, "liqa-last-job-index"))
	require.NoError(t, store.Remove(ctx, "liqa-last-job-index"))

	values, err = store.Get(ctx, "liqa-last-job-index")
	require.NoError(t, err)
	assert.Empty(t, values)

	changes := rec.all()
	require.Len(t, changes, 3)
	assert.Equal(t, "liqa-last-job-index", changes[0].Key)
	assert.Equal(t, float64(2), changes[0].NewValue)
	assert.Equal(t, store.Area(), changes[0].Area)
	assert.Equal(t, "liqa-settings-v1", changes[1].Key)
	assert.Nil(t, changes[2].NewValue)
	assert.Equal(t, float64(2), changes[2].OldValue)

	cancel()
	require.NoError(t, store.Set(ctx, "after-cancel", true))
	assert.Len(t, rec.all(), 3)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewMemoryStore(Local))
}

func TestFileStore(t *testing.T) {
	t.Parallel()
	store, err := NewFileStore(t.TempDir(), Sync, zap.NewNop())
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestFileStorePersistsAcrossOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewFile(dir, nil)
	require.NoError(t, err)
	require.NoError(t, first.Local.Set(ctx, "liqa-job-1", map[string]any{"id": "1", "name": "Go"}))

	second, err := NewFile(dir, nil)
	require.NoError(t, err)
	values, err := second.Local.Get(ctx, "liqa-job-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "1", "name": "Go"}, values["liqa-job-1"])

	syncValues, err := second.Sync.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, syncValues)
}

func TestFileStoreReloadPublishesExternalEdits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(dir, Sync, nil)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "keep", "v"))
	require.NoError(t, store.Set(ctx, "drop", "v"))

	rec := &recorder{}
	store.Subscribe(rec.record)

	external := []byte(`{"keep": "v", "liqa-selectors-v1": {"save": "X"}}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sync.json"), external, 0o600))

	store.reload()

	changes := rec.all()
	require.Len(t, changes, 2)
	assert.Equal(t, "liqa-selectors-v1", changes[0].Key)
	assert.Equal(t, map[string]any{"save": "X"}, changes[0].NewValue)
	assert.Equal(t, "drop", changes[1].Key)
	assert.Nil(t, changes[1].NewValue)

	// a reload without edits publishes nothing
	store.reload()
	assert.Len(t, rec.all(), 2)
}

func TestStorageIn(t *testing.T) {
	t.Parallel()
	s := NewMemory()

	store, err := s.In(Sync)
	require.NoError(t, err)
	assert.Equal(t, Sync, store.Area())

	_, err = s.In("managed")
	assert.ErrorIs(t, err, ErrUnknownArea)

	_, err = ParseArea("nope")
	assert.ErrorIs(t, err, ErrUnknownArea)
}

func TestStorageSubscribeBothTiers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemory()

	rec := &recorder{}
	cancel := s.Subscribe(rec.record)
	defer cancel()

	require.NoError(t, s.Sync.Set(ctx, "a", 1))
	require.NoError(t, s.Local.Set(ctx, "b", 2))

	changes := rec.all()
	require.Len(t, changes, 2)
	assert.Equal(t, Sync, changes[0].Area)
	assert.Equal(t, Local, changes[1].Area)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("LIQA_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("LIQA_TEST_POSTGRES_URL is not set")
	}

	ctx := context.Background()
	backend, err := OpenPostgres(ctx, url, zap.NewNop())
	require.NoError(t, err)
	defer backend.Close()

	s := backend.Storage()
	all, err := s.Local.Get(ctx)
	require.NoError(t, err)
	for key := range all {
		require.NoError(t, s.Local.Remove(ctx, key))
	}

	exerciseStore(t, s.Local)
}

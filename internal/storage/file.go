package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileStore keeps one tier in a JSON file. Edits made to the file by other
// processes are picked up by Watch and published as changes.
type FileStore struct {
	area   Area
	path   string
	logger *zap.Logger

	mu     sync.Mutex
	values map[string]any

	notifier notifier
}

// NewFile opens (or creates) both tiers as sync.json and local.json inside dir.
func NewFile(dir string, logger *zap.Logger) (*Storage, error) {
	syncStore, err := NewFileStore(dir, Sync, logger)
	if err != nil {
		return nil, err
	}

	localStore, err := NewFileStore(dir, Local, logger)
	if err != nil {
		return nil, err
	}

	return &Storage{Sync: syncStore, Local: localStore}, nil
}

// NewFileStore opens the tier file for area inside dir.
func NewFileStore(dir string, area Area, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating storage dir %q: %w", dir, err)
	}

	f := &FileStore{
		area:   area,
		path:   filepath.Join(dir, string(area)+".json"),
		logger: logger.With(zap.String("storage_area", string(area))),
	}

	values, err := readValues(f.path)
	if err != nil {
		return nil, err
	}
	f.values = values

	return f, nil
}

func (f *FileStore) Area() Area { return f.area }

// Path returns the backing file.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Get(ctx context.Context, keys ...string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return copyValues(f.values, keys), nil
}

func (f *FileStore) Set(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	normalized, err := Normalize(value)
	if err != nil {
		return err
	}

	f.mu.Lock()
	old, existed := f.values[key]
	if existed && reflect.DeepEqual(old, normalized) {
		f.mu.Unlock()
		return nil
	}

	next := copyValues(f.values, nil)
	next[key] = normalized
	if err := writeValues(f.path, next); err != nil {
		f.mu.Unlock()
		return err
	}
	f.values = next
	f.mu.Unlock()

	f.notifier.publish(Change{Area: f.area, Key: key, OldValue: old, NewValue: normalized})
	return nil
}

func (f *FileStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	old, existed := f.values[key]
	if !existed {
		f.mu.Unlock()
		return nil
	}

	next := copyValues(f.values, nil)
	delete(next, key)
	if err := writeValues(f.path, next); err != nil {
		f.mu.Unlock()
		return err
	}
	f.values = next
	f.mu.Unlock()

	f.notifier.publish(Change{Area: f.area, Key: key, OldValue: old})
	return nil
}

func (f *FileStore) Subscribe(fn func(Change)) func() {
	return f.notifier.subscribe(fn)
}

// Watch follows the backing file until ctx is done.
func (f *FileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	// The file is replaced by rename on every write, so the directory is watched.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watching %q: %w", filepath.Dir(f.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				f.reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("storage watcher error", zap.Error(err))
		}
	}
}

func (f *FileStore) reload() {
	fresh, err := readValues(f.path)
	if err != nil {
		f.logger.Warn("reloading storage file", zap.String("path", f.path), zap.Error(err))
		return
	}

	f.mu.Lock()
	changes := diff(f.area, f.values, fresh)
	f.values = fresh
	f.mu.Unlock()

	if len(changes) > 0 {
		f.logger.Debug("storage file changed", zap.Int("changed_keys", len(changes)))
	}
	f.notifier.publish(changes...)
}

func readValues(path string) (map[string]any, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]any), nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return make(map[string]any), nil
	}

	values := make(map[string]any)
	if err := json.NewDecoder(file).Decode(&values); err != nil {
		return nil, fmt.Errorf("decoding storage file %q: %w", path, err)
	}
	return values, nil
}

func writeValues(path string, values map[string]any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp storage file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(values); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding storage file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing storage file %q: %w", path, err)
	}
	return nil
}

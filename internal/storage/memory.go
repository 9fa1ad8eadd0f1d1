package storage

import (
	"context"
	"reflect"
	"sync"
)

// MemoryStore keeps values in a map. It is used by tests and by one-shot commands.
type MemoryStore struct {
	area Area

	mu     sync.RWMutex
	values map[string]any

	notifier notifier
}

// NewMemoryStore creates an empty in-memory tier.
func NewMemoryStore(area Area) *MemoryStore {
	return &MemoryStore{area: area, values: make(map[string]any)}
}

func (m *MemoryStore) Area() Area { return m.area }

func (m *MemoryStore) Get(ctx context.Context, keys ...string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return copyValues(m.values, keys), nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	normalized, err := Normalize(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	old, existed := m.values[key]
	m.values[key] = normalized
	m.mu.Unlock()

	if existed && reflect.DeepEqual(old, normalized) {
		return nil
	}

	m.notifier.publish(Change{Area: m.area, Key: key, OldValue: old, NewValue: normalized})
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	old, existed := m.values[key]
	delete(m.values, key)
	m.mu.Unlock()

	if existed {
		m.notifier.publish(Change{Area: m.area, Key: key, OldValue: old})
	}
	return nil
}

func (m *MemoryStore) Subscribe(fn func(Change)) func() {
	return m.notifier.subscribe(fn)
}

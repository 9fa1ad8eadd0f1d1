// Package storage provides the two-tier key/value store that holds selectors,
// settings, AI credentials, jobs and agents.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Area names one of the two storage tiers.
type Area string

const (
	// Sync holds selectors and feature toggles that follow the user across machines.
	Sync Area = "sync"
	// Local holds credentials, jobs, agents and last-used indices.
	Local Area = "local"
)

// ErrUnknownArea is returned when an area other than Sync or Local is requested.
var ErrUnknownArea = errors.New("unknown storage area")

// ParseArea converts a user supplied name into an Area.
func ParseArea(name string) (Area, error) {
	switch Area(name) {
	case Sync, Local:
		return Area(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownArea, name)
	}
}

// Change describes a single key mutation. NewValue is nil when the key was removed.
type Change struct {
	Area     Area
	Key      string
	OldValue any
	NewValue any
}

// Store is a single storage tier.
type Store interface {
	Area() Area
	// Get returns the stored values for keys. Missing keys are absent from the result.
	// Without keys every stored value is returned.
	Get(ctx context.Context, keys ...string) (map[string]any, error)
	Set(ctx context.Context, key string, value any) error
	Remove(ctx context.Context, key string) error
	// Subscribe registers fn for change notifications and returns a cancel func.
	Subscribe(fn func(Change)) (cancel func())
}

// Storage bundles the two tiers.
type Storage struct {
	Sync  Store
	Local Store
}

// NewMemory returns a Storage backed by two in-memory tiers.
func NewMemory() *Storage {
	return &Storage{
		Sync:  NewMemoryStore(Sync),
		Local: NewMemoryStore(Local),
	}
}

// In returns the tier for the area.
func (s *Storage) In(area Area) (Store, error) {
	switch area {
	case Sync:
		return s.Sync, nil
	case Local:
		return s.Local, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownArea, area)
	}
}

// Subscribe registers fn on both tiers.
func (s *Storage) Subscribe(fn func(Change)) (cancel func()) {
	cancelSync := s.Sync.Subscribe(fn)
	cancelLocal := s.Local.Subscribe(fn)
	return func() {
		cancelSync()
		cancelLocal()
	}
}

// Normalize converts value into the JSON data model (maps, slices, float64,
// string, bool, nil) so that every backend returns the same shapes.
func Normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding value: %w", err)
	}

	var normalized any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return nil, fmt.Errorf("decoding value: %w", err)
	}

	return normalized, nil
}

// SortedKeys returns the keys of values in lexical order.
func SortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// diff reports the changes that turn before into after.
func diff(area Area, before, after map[string]any) []Change {
	var changes []Change
	for _, key := range SortedKeys(after) {
		old, existed := before[key]
		if existed && reflect.DeepEqual(old, after[key]) {
			continue
		}
		changes = append(changes, Change{Area: area, Key: key, OldValue: old, NewValue: after[key]})
	}
	for _, key := range SortedKeys(before) {
		if _, ok := after[key]; ok {
			continue
		}
		changes = append(changes, Change{Area: area, Key: key, OldValue: before[key]})
	}
	return changes
}

type notifier struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Change)
}

func (n *notifier) subscribe(fn func(Change)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs == nil {
		n.subs = make(map[int]func(Change))
	}

	id := n.next
	n.next++
	n.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs, id)
		})
	}
}

func (n *notifier) publish(changes ...Change) {
	if len(changes) == 0 {
		return
	}

	n.mu.RLock()
	ids := make([]int, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, n.subs[id])
	}
	n.mu.RUnlock()

	for _, change := range changes {
		for _, fn := range fns {
			fn(change)
		}
	}
}

func copyValues(values map[string]any, keys []string) map[string]any {
	result := make(map[string]any)
	if len(keys) == 0 {
		for k, v := range values {
			result[k] = v
		}
		return result
	}
	for _, k := range keys {
		if v, ok := values[k]; ok {
			result[k] = v
		}
	}
	return result
}

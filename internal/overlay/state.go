// Package overlay holds the score panel state and renders it.
package overlay

import (
	"slices"
	"sync"
)

// MaxDetails caps the strengths and weaknesses shown in the details panel.
const MaxDetails = 3

// State is the presentation state of the score panel.
type State struct {
	// Present is true while the panel is attached to the page.
	Present    bool
	Score      *int
	Loading    bool
	Strengths  []string
	Weaknesses []string
	Expanded   bool
	// Failed is set by the last run ending in an error.
	Failed bool
}

// Phase names the visible state of the panel.
type Phase string

const (
	PhaseAbsent  Phase = "absent"
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseScored  Phase = "scored"
	PhaseError   Phase = "error"
)

// Phase derives the visible phase.
func (s State) Phase() Phase {
	switch {
	case !s.Present:
		return PhaseAbsent
	case s.Loading:
		return PhaseLoading
	case s.Failed:
		return PhaseError
	case s.Score != nil:
		return PhaseScored
	default:
		return PhaseIdle
	}
}

// HasDetails reports whether there is anything to expand.
func (s State) HasDetails() bool {
	return len(s.Strengths) > 0 || len(s.Weaknesses) > 0
}

// TopStrengths returns at most MaxDetails strengths.
func (s State) TopStrengths() []string { return head(s.Strengths) }

// TopWeaknesses returns at most MaxDetails weaknesses.
func (s State) TopWeaknesses() []string { return head(s.Weaknesses) }

func head(items []string) []string {
	if len(items) > MaxDetails {
		return items[:MaxDetails]
	}
	return items
}

func (s State) clone() State {
	c := s
	if s.Score != nil {
		v := *s.Score
		c.Score = &v
	}
	c.Strengths = slices.Clone(s.Strengths)
	c.Weaknesses = slices.Clone(s.Weaknesses)
	return c
}

// Patch mutates a copy of the state.
type Patch func(*State)

// Loading marks a scoring run in flight. The previous result is dropped and
// the details collapse.
func Loading() Patch {
	return func(s *State) {
		*s = State{Present: s.Present, Loading: true}
	}
}

// Scored shows a result.
func Scored(score int, strengths, weaknesses []string) Patch {
	return func(s *State) {
		s.Loading = false
		s.Failed = false
		s.Score = &score
		if strengths != nil {
			s.Strengths = strengths
		}
		if weaknesses != nil {
			s.Weaknesses = weaknesses
		}
	}
}

// Idle ends a loading phase that no run will finish. A shown result stays.
func Idle() Patch {
	return func(s *State) {
		if s.Loading {
			*s = State{Present: s.Present}
		}
	}
}

// Failed clears the score after an error and shows the error marker.
func Failed() Patch {
	return func(s *State) {
		*s = State{Present: s.Present, Failed: true}
	}
}

// Store is the single owner of the panel state. Subscribers are called after
// every change with a copy of the new state.
type Store struct {
	mu     sync.Mutex
	state  State
	nextID int
	subs   map[int]func(State)
}

// NewStore returns a store in the absent state.
func NewStore() *Store {
	return &Store{subs: make(map[int]func(State))}
}

// Get returns a copy of the current state.
func (s *Store) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Update applies patches in order and notifies subscribers once.
func (s *Store) Update(patches ...Patch) State {
	return s.apply(func(st *State) {
		for _, p := range patches {
			if p != nil {
				p(st)
			}
		}
	})
}

// UpdateIf applies patches only when ok reports true. ok runs under the store
// lock, so a caller can tie the update to a condition that a concurrent
// change flips before touching the store.
func (s *Store) UpdateIf(ok func() bool, patches ...Patch) (State, bool) {
	return s.applyIf(ok, func(st *State) {
		for _, p := range patches {
			if p != nil {
				p(st)
			}
		}
	})
}

// Reset returns the panel to idle: no score, not loading, no error, no
// details, collapsed. Presence is kept.
func (s *Store) Reset() State {
	return s.apply(func(st *State) {
		*st = State{Present: st.Present}
	})
}

// ToggleDetails flips the details panel. It does nothing without a score.
func (s *Store) ToggleDetails() State {
	return s.apply(func(st *State) {
		if st.Score == nil {
			return
		}
		st.Expanded = !st.Expanded
	})
}

// SetPresent attaches or detaches the panel. Detaching drops the state.
func (s *Store) SetPresent(present bool) State {
	return s.apply(func(st *State) {
		if !present {
			*st = State{}
			return
		}
		st.Present = true
	})
}

// Subscribe registers fn for state changes and returns a cancel func.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) apply(fn func(*State)) State {
	st, _ := s.applyIf(nil, fn)
	return st
}

func (s *Store) applyIf(ok func() bool, fn func(*State)) (State, bool) {
	s.mu.Lock()
	if ok != nil && !ok() {
		current := s.state.clone()
		s.mu.Unlock()
		return current, false
	}
	next := s.state.clone()
	fn(&next)
	s.state = next

	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	subs := make([]func(State), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next.clone())
	}
	return next.clone(), true
}

// ToastKind selects the icon and border of a toast.
type ToastKind string

const (
	ToastOK    ToastKind = "ok"
	ToastError ToastKind = "error"
	ToastInfo  ToastKind = "info"
)

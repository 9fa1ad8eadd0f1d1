package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{
			name:   "returns empty when limit non-positive",
			input:  "hello world",
			limit:  0,
			expect: "",
		},
		{
			name:   "shorter than limit",
			input:  "hello",
			limit:  10,
			expect: "hello",
		},
		{
			name:   "truncates and adds ellipsis",
			input:  "hello world",
			limit:  5,
			expect: "hello...",
		},
		{
			name:   "trims surrounding whitespace",
			input:  "  spaced  ",
			limit:  5,
			expect: "space...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

type fakeTimer struct {
	fired   chan time.Time
	stopped bool
	asked   time.Duration
}

func useFakeTimer(t *testing.T) *fakeTimer {
	t.Helper()
	ft := &fakeTimer{fired: make(chan time.Time, 1)}
	original := newTimer
	newTimer = func(d time.Duration) (<-chan time.Time, func() bool) {
		ft.asked = d
		return ft.fired, func() bool {
			ft.stopped = true
			return true
		}
	}
	t.Cleanup(func() { newTimer = original })
	return ft
}

func TestWaitForHonoursContext(t *testing.T) {
	ft := useFakeTimer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !ft.stopped {
		t.Fatal("expected the timer to be stopped on cancellation")
	}
	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("expected zero wait to return nil, got %v", err)
	}
}

func TestWaitForReturnsWhenTimerFires(t *testing.T) {
	ft := useFakeTimer(t)
	ft.fired <- time.Now()

	if err := WaitFor(context.Background(), 3*time.Second); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if ft.asked != 3*time.Second {
		t.Fatalf("timer armed for %v", ft.asked)
	}
	if ft.stopped {
		t.Fatal("a fired timer needs no stop")
	}
}

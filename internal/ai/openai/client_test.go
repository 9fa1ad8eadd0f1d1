package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/liqa/internal/ai"
)

type chatBody struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New("sk-test", Options{BaseURL: srv.URL + "/v1", MaxRetries: 2}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func noWait(t *testing.T) {
	t.Helper()
	original := wait
	wait = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { wait = original })
}

func TestCompleteSendsSystemAndUserMessages(t *testing.T) {
	var got chatBody
	var auth string
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Here you go: {\"score\": 82}"},"finish_reason":"stop"}]}`))
	})

	text, err := c.Complete(context.Background(), ai.Request{
		Model:       "gpt-4o-mini",
		System:      "system prompt",
		User:        "user prompt",
		Temperature: ai.Temperature,
	})
	require.NoError(t, err)
	assert.Equal(t, `Here you go: {"score": 82}`, text)

	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.InDelta(t, 0.2, got.Temperature, 1e-6)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "system prompt", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "user prompt", got.Messages[1].Content)
}

func TestCompleteEmptyChoices(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	})

	text, err := c.Complete(context.Background(), ai.Request{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestCompleteNonSuccessStatusKeepsMessage(t *testing.T) {
	var calls atomic.Int32
	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	})

	_, err := c.Complete(context.Background(), ai.Request{Model: "gpt-4o"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Incorrect API key provided")
	assert.Contains(t, err.Error(), "401")
	assert.EqualValues(t, 1, calls.Load(), "client errors are not retried")
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	noWait(t)

	var calls atomic.Int32
	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	})

	text, err := c.Complete(context.Background(), ai.Request{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.EqualValues(t, 2, calls.Load())
}

func TestCompleteDropsTemperatureForReasoningModels(t *testing.T) {
	var raw map[string]any
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{}"}}]}`))
	})

	_, err := c.Complete(context.Background(), ai.Request{Model: "o3-mini", Temperature: ai.Temperature})
	require.NoError(t, err)
	_, present := raw["temperature"]
	assert.False(t, present)
}

func TestListModelsFiltersAndSorts(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"whisper-1"},{"id":"gpt-4o"},{"id":"o1-mini"},{"id":"gpt-4o"},{"id":"dall-e-3"}]}`))
	})

	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o", "o1-mini"}, models)
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New("  ", Options{}, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "api key"))
}

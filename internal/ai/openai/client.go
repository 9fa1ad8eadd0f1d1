// Package openai implements ai.Completer on the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	sdk "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/spigell/liqa/internal/ai"
	"github.com/spigell/liqa/internal/logger"
	"github.com/spigell/liqa/internal/utils"
)

const (
	provider            = "openai"
	defaultMaxLogLength = 200
	baseRetryDelay      = 2 * time.Second
)

var reasoningModel = regexp.MustCompile(`^o\d`)

var wait = utils.WaitFor

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req sdk.ChatCompletionRequest) (sdk.ChatCompletionResponse, error)
	ListModels(ctx context.Context) (sdk.ModelsList, error)
}

// Options configure a Client.
type Options struct {
	BaseURL      string
	MaxRetries   int
	MaxLogLength int
	HTTPClient   *http.Client
}

// Client talks to an OpenAI compatible endpoint.
type Client struct {
	api        chatClient
	maxRetries int
	maxLogLen  int
	logger     *zap.Logger
}

// New creates a Client authenticating with apiKey.
func New(apiKey string, opts Options, log *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	cfg := sdk.DefaultConfig(apiKey)
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.BaseURL = strings.TrimRight(base, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	return newClient(sdk.NewClientWithConfig(cfg), opts, log), nil
}

func newClient(api chatClient, opts Options, log *zap.Logger) *Client {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	maxLogLen := opts.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Client{
		api:        api,
		maxRetries: maxRetries,
		maxLogLen:  maxLogLen,
		logger:     logger.WithAI(log, provider, ""),
	}
}

// Complete sends one system and one user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, req ai.Request) (string, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return "", errors.New("model is required")
	}

	temperature := req.Temperature
	// reasoning models only accept the default temperature
	if reasoningModel.MatchString(model) {
		temperature = 0
	}

	chatReq := sdk.ChatCompletionRequest{
		Model: model,
		Messages: []sdk.ChatCompletionMessage{
			{Role: sdk.ChatMessageRoleSystem, Content: req.System},
			{Role: sdk.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: temperature,
	}

	log := c.logger.With(zap.String(logger.FieldModel, model))
	log.Debug("chat completion request",
		zap.Int("prompt_length", utf8.RuneCountInString(req.User)),
		zap.String("prompt_preview", utils.TruncateForLog(req.User, c.maxLogLen)),
	)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := c.api.CreateChatCompletion(ctx, chatReq)
		if err == nil {
			content := ""
			if len(resp.Choices) > 0 {
				content = resp.Choices[0].Message.Content
			}
			log.Debug("chat completion response",
				zap.Int("response_length", utf8.RuneCountInString(content)),
				zap.String("response_preview", utils.TruncateForLog(content, c.maxLogLen)),
			)
			return content, nil
		}

		lastErr = describe(err)
		if !temporary(err) || attempt == c.maxRetries {
			break
		}

		delay := time.Duration(attempt) * baseRetryDelay
		log.Warn("retrying chat completion", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(lastErr))
		if err := wait(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

// ListModels returns the chat model ids available to the key.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return nil, describe(err)
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ai.FilterModels(ids), nil
}

// describe keeps the upstream message in the error text; it may carry a JSON
// body worth a second parse.
func describe(err error) error {
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai api error (status %d): %s: %w", apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *sdk.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("openai request failed (status %d): %w", reqErr.HTTPStatusCode, err)
	}

	return fmt.Errorf("openai: %w", err)
}

func temporary(err error) bool {
	status := 0

	var apiErr *sdk.APIError
	var reqErr *sdk.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return false
	}

	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Package gemini implements ai.Completer on the Google GenAI API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/liqa/internal/ai"
	"github.com/spigell/liqa/internal/logger"
	"github.com/spigell/liqa/internal/utils"
)

const (
	provider            = "gemini"
	defaultModel        = "gemini-2.5-flash"
	defaultMaxLogLength = 200
	baseRetryDelay      = 2 * time.Second
	maxRetryDelay       = 30 * time.Second
)

var wait = utils.WaitFor

var retryAfter = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*s`)

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type modelLister interface {
	list(ctx context.Context) ([]string, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (g genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	chat, err := g.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

type genaiModels struct {
	models *genai.Models
}

func (g genaiModels) list(ctx context.Context) ([]string, error) {
	var names []string
	for m, err := range g.models.All(ctx) {
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		names = append(names, m.Name)
	}
	return names, nil
}

// Generator sends one-shot chats to Gemini.
type Generator struct {
	chats      chatCreator
	models     modelLister
	model      string
	maxRetries int
	maxLogLen  int
	logger     *zap.Logger
}

// NewGenerator creates a Generator for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, maxRetries int, log *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}

	return &Generator{
		chats:      genaiChats{chats: client.Chats},
		models:     genaiModels{models: client.Models},
		model:      model,
		maxRetries: maxRetries,
		maxLogLen:  defaultMaxLogLength,
		logger:     logger.WithAI(log, provider, model),
	}, nil
}

// Complete implements ai.Completer. Models other than Gemini ones (such as the
// OpenAI default stored in the AI configuration) are replaced by the
// generator's own model.
func (g *Generator) Complete(ctx context.Context, req ai.Request) (string, error) {
	model := strings.TrimSpace(req.Model)
	if !strings.HasPrefix(strings.TrimPrefix(model, "models/"), "gemini") {
		model = g.model
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       genai.Ptr(req.Temperature),
	}
	return g.send(ctx, model, cfg, req.User)
}

// ListModels returns Gemini model ids without the "models/" prefix.
func (g *Generator) ListModels(ctx context.Context) ([]string, error) {
	if g.models == nil {
		return nil, errors.New("gemini model listing is not available")
	}

	names, err := g.models.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("list gemini models: %w", err)
	}

	seen := make(map[string]struct{})
	result := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimPrefix(strings.TrimSpace(name), "models/")
		if !strings.HasPrefix(name, "gemini") {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		result = append(result, name)
	}
	sort.Strings(result)
	return result, nil
}

func (g *Generator) send(ctx context.Context, model string, cfg *genai.GenerateContentConfig, message string) (string, error) {
	if g == nil || g.chats == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message must not be empty")
	}

	log := logger.WithFields(g.logger, zap.String(logger.FieldModel, model))
	maxLogLen := g.maxLogLen
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	attempts := g.maxRetries
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		log.Debug("gemini chat request",
			zap.Int("attempt", attempt),
			zap.Int("message_length", utf8.RuneCountInString(message)),
			zap.String("message_preview", utils.TruncateForLog(message, maxLogLen)),
		)

		chat, err := g.chats.Create(ctx, model, cfg, nil)
		if err != nil {
			return "", fmt.Errorf("create chat: %w", err)
		}

		resp, err := chat.SendMessage(ctx, genai.Part{Text: message})
		if err == nil {
			output := responseText(resp)
			if output == "" {
				return "", errors.New("gemini api returned empty response")
			}
			log.Debug("gemini chat response",
				zap.Int("response_length", utf8.RuneCountInString(output)),
				zap.String("response_preview", utils.TruncateForLog(output, maxLogLen)),
			)
			return output, nil
		}

		lastErr = fmt.Errorf("generate content: %w", err)

		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == attempts {
			break
		}

		log.Warn("retrying gemini request", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		if err := wait(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

// retryDelay decides whether err is worth another attempt and how long to wait.
// Quota errors asking for a longer pause than maxRetryDelay are not retried.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	switch apiErr.Code {
	case http.StatusTooManyRequests:
		if m := retryAfter.FindStringSubmatch(apiErr.Message); m != nil {
			seconds, perr := strconv.ParseFloat(m[1], 64)
			if perr == nil {
				delay := time.Duration(seconds * float64(time.Second))
				if delay > maxRetryDelay {
					return 0, false
				}
				return delay, true
			}
		}
		return time.Duration(attempt) * baseRetryDelay, true
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return time.Duration(attempt) * baseRetryDelay, true
	default:
		return 0, false
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}

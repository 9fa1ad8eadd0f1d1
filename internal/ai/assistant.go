// Package ai defines the completion backends used for scoring and the
// tolerant parser for their free-form answers.
package ai

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// Temperature is low to favour deterministic scores.
const Temperature float32 = 0.2

// Request is a single scoring completion: one system and one user message.
type Request struct {
	Model       string
	System      string
	User        string
	Temperature float32
}

// Completer is an external text completion service.
type Completer interface {
	// Complete returns the raw text of the first choice.
	Complete(ctx context.Context, req Request) (string, error)
	// ListModels returns the model identifiers usable for scoring.
	ListModels(ctx context.Context) ([]string, error)
}

// DefaultModels is offered when the model list cannot be fetched.
var DefaultModels = []string{"gpt-4o-mini", "gpt-4o", "gpt-4-turbo"}

var chatModel = regexp.MustCompile(`(?i)(gpt|o\d)`)

// FilterModels keeps chat model ids, sorted and without duplicates.
func FilterModels(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || !chatModel.MatchString(id) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

package ai

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoJSON is returned when a response contains no JSON object.
var ErrNoJSON = errors.New("no JSON found in response")

// Result is a parsed score. It is never persisted.
type Result struct {
	Score      int      `json:"score"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

// ParseResult takes the text from the first "{" to the last "}" and reads
// score, strengths and weaknesses from it. Missing or non-array lists become
// empty lists.
func ParseResult(text string) (Result, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return Result{}, ErrNoJSON
	}

	raw := text[start : end+1]
	if !gjson.Valid(raw) {
		return Result{}, fmt.Errorf("parse response: invalid JSON object")
	}

	parsed := gjson.Parse(raw)
	return Result{
		Score:      ClampScore(coerceFloat(parsed.Get("score"))),
		Strengths:  stringList(parsed.Get("strengths")),
		Weaknesses: stringList(parsed.Get("weaknesses")),
	}, nil
}

// ClampScore rounds half up to an integer and clamps into [0, 100].
func ClampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	rounded := math.Floor(v + 0.5)
	switch {
	case rounded < 0:
		return 0
	case rounded > 100:
		return 100
	default:
		return int(rounded)
	}
}

func coerceFloat(v gjson.Result) float64 {
	switch v.Type {
	case gjson.Number:
		return v.Float()
	case gjson.True:
		return 1
	case gjson.String:
		trimmed := strings.TrimSpace(v.Str)
		if trimmed == "" {
			return 0
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return 0
	}
}

func stringList(v gjson.Result) []string {
	result := []string{}
	if !v.IsArray() {
		return result
	}
	for _, item := range v.Array() {
		var s string
		if item.Type == gjson.String {
			s = strings.TrimSpace(item.Str)
		} else {
			s = strings.TrimSpace(item.Raw)
		}
		if s != "" && s != "null" {
			result = append(result, s)
		}
	}
	return result
}

package overlay

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/liqa/internal/ai"
)

// Score values with a special meaning in overlay update messages.
const (
	ScoreLoading = "…"
	ScoreError   = "error"
)

// FromMessage turns the payload of an overlay update message into a patch.
// score is the loading marker, the error marker, or a number.
func FromMessage(score any, strengths, weaknesses []string) (Patch, error) {
	switch v := score.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		switch trimmed {
		case ScoreLoading, "...":
			return Loading(), nil
		case ScoreError:
			return Failed(), nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("unknown overlay score %q", v)
		}
		return Scored(ai.ClampScore(f), strengths, weaknesses), nil
	case int:
		return Scored(ai.ClampScore(float64(v)), strengths, weaknesses), nil
	case float64:
		return Scored(ai.ClampScore(v), strengths, weaknesses), nil
	case nil:
		return Failed(), nil
	default:
		return nil, fmt.Errorf("unsupported overlay score type %T", score)
	}
}

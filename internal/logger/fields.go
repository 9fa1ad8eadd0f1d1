package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured field keys shared by the scoring components.
const (
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
	FieldRun      = "scoring_run"
	FieldJobIndex = "job_index"
	FieldJob      = "job"
)

// StringField is a string-valued structured field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts pairs into zap fields. Entries with an empty key or
// value are dropped.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		value := strings.TrimSpace(field.Value)
		if key == "" || value == "" {
			continue
		}
		result = append(result, zap.String(key, value))
	}
	return result
}

// WithFields attaches fields to log. A nil log becomes a no-op logger.
func WithFields(log *zap.Logger, fields ...zap.Field) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

// WithAI tags log with the completion provider and model.
func WithAI(log *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(log, StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)...)
}

// RunFields identify one scoring run.
func RunFields(run uint64, jobIndex int, job string) []zap.Field {
	fields := []zap.Field{
		zap.Uint64(FieldRun, run),
		zap.Int(FieldJobIndex, jobIndex),
	}
	return append(fields, StringFields(StringField{Key: FieldJob, Value: job})...)
}

package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStringFields(t *testing.T) {
	fields := StringFields(
		StringField{Key: "  provider  ", Value: "  openai  "},
		StringField{Key: "ignored", Value: "   "},
		StringField{Key: "   ", Value: "empty key"},
	)

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}
	if fields[0].Key != "provider" || fields[0].String != "openai" {
		t.Fatalf("unexpected provider field: %+v", fields[0])
	}
}

func TestWithAI(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithAI(zap.New(core), "gemini", "gemini-2.5-flash").Info("request")
	WithAI(zap.New(core), "openai", "").Info("no model")

	entries := observed.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0].ContextMap()
	if first[FieldProvider] != "gemini" || first[FieldModel] != "gemini-2.5-flash" {
		t.Fatalf("unexpected fields: %v", first)
	}

	second := entries[1].ContextMap()
	if _, ok := second[FieldModel]; ok {
		t.Fatalf("empty model should be omitted: %v", second)
	}

	// nil falls back to a no-op logger
	WithAI(nil, "openai", "gpt-4o").Info("dropped")
}

func TestRunFields(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	zap.New(core).With(RunFields(7, 2, "Backend")...).Debug("scored")
	zap.New(core).With(RunFields(8, 0, " ")...).Debug("scored")

	entries := observed.All()
	ctx := entries[0].ContextMap()
	if ctx[FieldRun] != uint64(7) || ctx[FieldJobIndex] != int64(2) || ctx[FieldJob] != "Backend" {
		t.Fatalf("unexpected run fields: %v", ctx)
	}
	if _, ok := entries[1].ContextMap()[FieldJob]; ok {
		t.Fatalf("blank job name should be omitted")
	}
}

func TestNamedToleratesNil(t *testing.T) {
	if Named(nil, "dispatch") == nil {
		t.Fatal("expected a no-op logger")
	}

	core, observed := observer.New(zapcore.InfoLevel)
	Named(zap.New(core), "dispatch").Info("ready")
	if got := observed.All()[0].LoggerName; got != "dispatch" {
		t.Fatalf("logger name = %q", got)
	}
}

func TestNewBuildsLevels(t *testing.T) {
	log, err := New(true, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug should be disabled")
	}

	log, err = New(false, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug should be enabled")
	}
}

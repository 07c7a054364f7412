package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"unknown", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := New(tt.level, "json")
			assert.True(t, l.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestZapWrapper_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).
		WithFields(map[string]interface{}{"taskType": "detect-pii"}).
		WithError(errors.New("boom"))

	log.Warn("stage failed", map[string]interface{}{"attempt": 2})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "detect-pii", ctx["taskType"])
		assert.Equal(t, "boom", ctx["error"])
		assert.Equal(t, int64(2), ctx["attempt"])
		assert.Equal(t, "stage failed", entries[0].Message)
	}
}

func TestNoOpLogger(t *testing.T) {
	log := NewNoOpLogger().With(map[string]interface{}{"k": "v"})
	log.Info("ignored", nil)
	log.Error("ignored", map[string]interface{}{})
}

func TestPromptFields_NoContent(t *testing.T) {
	f := PromptFields("Show contacts near john@example.com")
	assert.Equal(t, 35, f["promptLength"])
	assert.Equal(t, 4, f["promptWords"])
	assert.Len(t, f, 2)
}

func TestMerge(t *testing.T) {
	got := Merge(map[string]interface{}{"a": 1, "b": 1}, nil, map[string]interface{}{"b": 2})
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 2}, got)
}

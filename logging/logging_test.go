package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"":        InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"fatal":   FatalLevel,
	}
	for name, want := range cases {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestWriterLoggerFormatsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf)

	logger.WithFields(Fields{"component": "engine"}).Info("chord changed", Fields{"label": "C major"})

	out := buf.String()
	assert.Contains(t, out, "[INFO] chord changed")
	assert.Contains(t, out, "component=engine label=C major")
}

func TestWriterLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf)
	logger.SetLevel(WarnLevel)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Error(errors.New("boom"), "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[ERROR] shown: boom")
}

func TestWithContextMergesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf)

	ctx := ContextWithFields(context.Background(), Fields{"session": "abc"})
	ctx = ContextWithFields(ctx, Fields{"source": "tone"})
	logger.WithContext(ctx).Info("started")

	assert.Contains(t, buf.String(), "session=abc")
	assert.Contains(t, buf.String(), "source=tone")
}

func TestFatalUsesExitHook(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf)
	code := 0
	logger.exit = func(c int) { code = c }

	logger.Fatal(errors.New("no device"), "cannot start")

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "[FATAL] cannot start: no device")
}

package log

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo}, // 默认值
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "")
		t.Setenv("LOG_FORMAT", "")
		t.Setenv("LOG_SERVICE", "")
		t.Setenv("ENV", "")

		cfg := NewConfigFromEnv()

		assert.Equal(t, "info", cfg.Level)
		assert.Equal(t, "console", cfg.Format)
		assert.Equal(t, "stdout", cfg.Output)
		assert.Equal(t, "ragchat-backend", cfg.Service)
	})

	t.Run("custom config", func(t *testing.T) {
		t.Setenv("ENV", "")
		t.Setenv("LOG_LEVEL", "warn")
		t.Setenv("LOG_FORMAT", "json")
		t.Setenv("LOG_SERVICE", "ragchat-test")

		cfg := NewConfigFromEnv()

		assert.Equal(t, "warn", cfg.Level)
		assert.Equal(t, "json", cfg.Format)
		assert.Equal(t, "ragchat-test", cfg.Service)
	})

	t.Run("development mode", func(t *testing.T) {
		t.Setenv("ENV", "development")
		t.Setenv("LOG_LEVEL", "error") // 应该被覆盖

		cfg := NewConfigFromEnv()

		assert.Equal(t, "debug", cfg.Level)
		assert.Equal(t, "console", cfg.Format)
		assert.True(t, cfg.AddSource)
	})
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		defaultValue bool
		envValue     string
		expected     bool
	}{
		{"true value", false, "true", true},
		{"false value", true, "false", false},
		{"invalid value", true, "invalid", true}, // 默认值
		{"missing env", false, "", false},        // 默认值
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.envValue)
			assert.Equal(t, tt.expected, getEnvBool("TEST_BOOL", tt.defaultValue))
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("init with defaults", func(t *testing.T) {
		Init(nil)
		assert.NotNil(t, GetLogger())
	})

	t.Run("init with debug level", func(t *testing.T) {
		Init(&Config{Level: "debug", Format: "json", Output: "stdout"})
		assert.True(t, IsDebugMode())
	})

	t.Run("init with file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "app.log")
		Init(&Config{Level: "info", Format: "json", Output: "file:" + path})

		GetLogger().Info("written to file")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "written to file")
		assert.Contains(t, string(data), "ragchat-backend")

		Init(&Config{Level: "info", Output: "stdout"})
	})
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithConversationID(ctx, "conv-1")
	ctx = WithFileID(ctx, "file-1")

	FromContext(ctx, base).Info("turn started")

	out := buf.String()
	assert.True(t, strings.Contains(out, "request_id=req-1"))
	assert.True(t, strings.Contains(out, "conversation_id=conv-1"))
	assert.True(t, strings.Contains(out, "file_id=file-1"))
	assert.False(t, strings.Contains(out, "owner_id"))
}

func TestFromContext_Empty(t *testing.T) {
	base := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	assert.Same(t, base, FromContext(context.Background(), base))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "***", MaskSecret("short"))
	assert.Equal(t, "sk-a...wxyz", MaskSecret("sk-abcdefghijklmnopqrstuvwxyz"))
}

func TestNewModuleLogger(t *testing.T) {
	Init(nil)
	assert.NotNil(t, NewModuleLogger("rag", "test"))
}

package observability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bkr/apigateway/internal/util"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{name: "default", cfg: DefaultLogConfig()},
		{name: "console stderr", cfg: LogConfig{Level: "debug", Format: "console", Output: OutputStderr}},
		{name: "empty level", cfg: LogConfig{Format: "json"}},
		{name: "invalid level", cfg: LogConfig{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestNewLogger_FileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gateway.log")
	cfg := DefaultLogConfig()
	cfg.Output = path

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.Info("request begin", String("path", "/api/v1/ord/1"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"request begin"`)
	assert.Contains(t, string(data), `"path":"/api/v1/ord/1"`)
}

func TestLogger_WithContext(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewObservedLogger(core)

	ctx := util.ContextWithRequestID(context.Background(), "req-42")
	ctx = ContextWithTraceID(ctx, "trace-1")
	ctx = ContextWithSpanID(ctx, "span-1")

	logger.WithContext(ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "trace-1", fields["trace_id"])
	assert.Equal(t, "span-1", fields["span_id"])
}

func TestLogger_WithContextEmpty(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewObservedLogger(core)

	logger.WithContext(context.Background()).With(String("k", "v")).Warn("w")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, map[string]interface{}{"k": "v"}, logs.All()[0].ContextMap())
}

func TestNopLogger(t *testing.T) {
	t.Parallel()

	logger := NopLogger()
	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")
	assert.NoError(t, logger.Sync())
}

func TestContextIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, TraceIDFromContext(ctx))
	assert.Empty(t, SpanIDFromContext(ctx))

	ctx = ContextWithTraceID(ctx, "t")
	ctx = ContextWithSpanID(ctx, "s")
	assert.Equal(t, "t", TraceIDFromContext(ctx))
	assert.Equal(t, "s", SpanIDFromContext(ctx))
}

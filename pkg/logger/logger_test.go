package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	buffer := &bytes.Buffer{}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "msg"

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(buffer),
		zap.DebugLevel,
	)
	old := Log
	Log = zap.New(core)
	t.Cleanup(func() { Log = old })
	return buffer
}

func TestLogger_Info_WithTraceAndRequestID(t *testing.T) {
	buffer := captureLog(t)

	ctx := context.WithValue(context.Background(), TraceIdKey, "test-trace-12345")
	ctx = context.WithValue(ctx, RequestIdKey, "req-1")

	Info(ctx, "转账成功", zap.Int64("account", 7), zap.String("amount", "100.50"))

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &logEntry), "日志输出必须是合法的 JSON")

	assert.Equal(t, "info", logEntry["level"])
	assert.Equal(t, "转账成功", logEntry["msg"])
	assert.Equal(t, float64(7), logEntry["account"])
	assert.Equal(t, "100.50", logEntry["amount"])
	assert.Equal(t, "test-trace-12345", logEntry["trace_id"])
	assert.Equal(t, "req-1", logEntry["request_id"])
}

func TestLogger_Error_NoTraceID(t *testing.T) {
	buffer := captureLog(t)

	Error(context.Background(), "数据库连接失败", zap.String("db", "mysql"))

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &logEntry))

	_, exists := logEntry["trace_id"]
	assert.False(t, exists, "没有 TraceID 的 Context 不应该输出 trace_id 字段")
	assert.Equal(t, "error", logEntry["level"])
}

func TestLogger_NopBeforeInit(t *testing.T) {
	old := Log
	Log = zap.NewNop()
	defer func() { Log = old }()

	assert.NotPanics(t, func() {
		Warn(nil, "no ctx")
		Debug(context.Background(), "nop")
	})
}

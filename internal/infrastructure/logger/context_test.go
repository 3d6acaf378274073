package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))

	ctx = WithRequestID(ctx, "req")
	ctx = WithTenantID(ctx, "tenant")
	ctx = WithUserID(ctx, "user")
	ctx = WithDeviceID(ctx, "device")

	assert.Equal(t, "req", GetRequestID(ctx))
	assert.Equal(t, "tenant", GetTenantID(ctx))
	assert.Equal(t, "user", GetUserID(ctx))
	assert.Equal(t, "device", GetDeviceID(ctx))
}

func TestFromContext_Default(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}

func TestL_InjectsCorrelationFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := WithContext(context.Background(), zap.New(core))
	ctx = WithTenantID(ctx, "tenant-1")
	ctx = WithDeviceID(ctx, "dev-1")

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx = trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	L(ctx).With(zap.String("stage", "counting")).Warn("fail open")

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "tenant-1", fields["tenant_id"])
	assert.Equal(t, "dev-1", fields["device_id"])
	assert.Equal(t, "counting", fields["stage"])
	assert.Equal(t, traceID.String(), fields["trace_id"])
	assert.Equal(t, spanID.String(), fields["span_id"])
}

func TestWithLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	WithLogger(context.Background(), zap.New(core)).Info("hello")
	assert.Equal(t, 1, recorded.Len())
}

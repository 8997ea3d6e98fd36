package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/billingwatch/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// restoreGlobals puts the global providers back after a test installs its own
func restoreGlobals(t *testing.T) {
	t.Helper()
	tp, mp, lp := otel.GetTracerProvider(), otel.GetMeterProvider(), global.GetLoggerProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		global.SetLoggerProvider(lp)
	})
}

func TestSetup_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := telemetry.ProvidersConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:4317",
		ServiceName:       "billingwatch-test",
		LogsEnabled:       true,
	}

	p, err := telemetry.Setup(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, p.TracingEnabled())
	assert.False(t, p.LogsEnabled())
	assert.Equal(t, cfg, p.Config())
	assert.NotNil(t, p.Meter("test"))
	assert.False(t, p.LogCore(zapcore.InfoLevel).Enabled(zapcore.ErrorLevel))
	assert.NoError(t, p.ForceFlush(ctx))
	assert.NoError(t, p.Shutdown(ctx))
}

func TestSetup_NilLogger(t *testing.T) {
	p, err := telemetry.Setup(context.Background(), telemetry.ProvidersConfig{}, nil)
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetup_Enabled(t *testing.T) {
	restoreGlobals(t)
	ctx := context.Background()

	// the gRPC exporters connect lazily, so creation succeeds without a collector
	p, err := telemetry.Setup(ctx, telemetry.ProvidersConfig{
		Enabled:               true,
		CollectorEndpoint:     "localhost:4317",
		ServiceName:           "billingwatch-test",
		Insecure:              true,
		SamplingRatio:         0.5,
		MetricsExportInterval: time.Hour,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.True(t, p.TracingEnabled())
	assert.False(t, p.LogsEnabled())
	assert.False(t, p.LogCore(zapcore.DebugLevel).Enabled(zapcore.ErrorLevel))

	_, span := otel.Tracer("test").Start(ctx, "op")
	span.End()

	counter, err := p.Meter("test").Int64Counter("test_total")
	require.NoError(t, err)
	counter.Add(ctx, 1)

	shutdownCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(shutdownCtx)
}

func TestSetup_LogsEnabled(t *testing.T) {
	restoreGlobals(t)
	ctx := context.Background()

	p, err := telemetry.Setup(ctx, telemetry.ProvidersConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:4317",
		ServiceName:       "billingwatch-test",
		Insecure:          true,
		SamplingRatio:     1,
		LogsEnabled:       true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.True(t, p.LogsEnabled())

	core := p.LogCore(zapcore.WarnLevel)
	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.ErrorLevel))

	shutdownCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(shutdownCtx)
}

func TestLogCore_NilProviders(t *testing.T) {
	var p *telemetry.Providers
	assert.False(t, p.LogCore(zapcore.DebugLevel).Enabled(zapcore.ErrorLevel))
}

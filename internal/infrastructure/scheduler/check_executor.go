package scheduler

import (
	"context"

	"github.com/billingwatch/backend/internal/domain/billingcheck"
	"github.com/billingwatch/backend/internal/infrastructure/logger"
	"github.com/billingwatch/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CheckRunner runs one billing check by reference key
type CheckRunner interface {
	Execute(ctx context.Context, referenceKey string) (billingcheck.Outcome, error)
}

// CheckExecutor adapts a CheckRunner to JobExecutor.
// Skipped outcomes count as successful jobs.
type CheckExecutor struct {
	runner CheckRunner
	logger *zap.Logger
}

// NewCheckExecutor creates a new check executor
func NewCheckExecutor(runner CheckRunner, l *zap.Logger) *CheckExecutor {
	if l == nil {
		l = zap.NewNop()
	}
	return &CheckExecutor{runner: runner, logger: l}
}

// Execute implements JobExecutor.
// Each job runs under a consumer span so the check shows up as its own trace.
func (e *CheckExecutor) Execute(ctx context.Context, job *Job) error {
	ctx, span := telemetry.StartSpan(ctx, "scheduler.run_job",
		telemetry.WithSpanKind(trace.SpanKindConsumer),
		telemetry.WithAttribute(telemetry.SpanAttrJobID, job.ID.String()),
	)
	defer span.End()

	ctx, _ = logger.WithJobID(ctx, e.logger, job.ID.String())
	if _, err := e.runner.Execute(ctx, job.ReferenceKey); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetOK(span)
	return nil
}

var _ JobExecutor = (*CheckExecutor)(nil)

// Package billingcheck runs billing checks handed over by reference key and
// accepts new check requests.
package billingcheck

import (
	"context"
	"time"

	"github.com/billingwatch/backend/internal/domain/billingcheck"
	"github.com/billingwatch/backend/internal/infrastructure/logger"
	"github.com/billingwatch/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CheckService resolves a reference key to a credential, gates the run on a
// per-credential lease, queries billing and records the resulting state.
type CheckService struct {
	exchange     billingcheck.CredentialExchange
	lease        billingcheck.LeaseManager
	tracker      billingcheck.StateTracker
	checker      billingcheck.BillingChecker
	keys         billingcheck.KeySpace
	leaseTimeout time.Duration
	metrics      *telemetry.CheckMetrics
	logger       *zap.Logger
}

// CheckServiceOption configures a CheckService
type CheckServiceOption func(*CheckService)

// WithLeaseTimeout overrides the lease timeout
func WithLeaseTimeout(timeout time.Duration) CheckServiceOption {
	return func(s *CheckService) {
		if timeout > 0 {
			s.leaseTimeout = timeout
		}
	}
}

// WithCheckMetrics records run outcomes on m
func WithCheckMetrics(m *telemetry.CheckMetrics) CheckServiceOption {
	return func(s *CheckService) {
		s.metrics = m
	}
}

// WithCheckLogger sets the service logger
func WithCheckLogger(l *zap.Logger) CheckServiceOption {
	return func(s *CheckService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewCheckService creates a new check service
func NewCheckService(
	exchange billingcheck.CredentialExchange,
	lease billingcheck.LeaseManager,
	tracker billingcheck.StateTracker,
	checker billingcheck.BillingChecker,
	keys billingcheck.KeySpace,
	opts ...CheckServiceOption,
) *CheckService {
	s := &CheckService{
		exchange:     exchange,
		lease:        lease,
		tracker:      tracker,
		checker:      checker,
		keys:         keys,
		leaseTimeout: billingcheck.DefaultLeaseTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs one check for referenceKey.
// Expected absences end the run with a skipped Outcome and a nil error.
// Store and collaborator errors are returned as is and no state is written
// after a collaborator failure. Nothing is retried.
func (s *CheckService) Execute(ctx context.Context, referenceKey string) (billingcheck.Outcome, error) {
	start := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, "billing_check", "execute")
	defer span.End()

	log := logger.WithTraceContext(ctx, s.logger)
	if jobID := logger.GetJobID(ctx); jobID != "" {
		log = log.With(zap.String("job_id", jobID))
	}

	outcome, err := s.run(ctx, referenceKey, log)
	elapsed := time.Since(start)

	if err != nil {
		telemetry.RecordError(span, err)
		s.recordRun(ctx, telemetry.CheckStatusFailed, "", elapsed)
		log.Error("Billing check failed", zap.Error(err), zap.Duration("duration", elapsed))
		return billingcheck.Outcome{}, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrStatus, string(outcome.Status))
	if outcome.IsSkipped() {
		telemetry.SetAttributes(span, telemetry.SpanAttrSkipReason, string(outcome.SkipReason))
		s.recordRun(ctx, telemetry.CheckStatusSkipped, string(outcome.SkipReason), elapsed)
		log.Debug("Billing check skipped", zap.String("reason", string(outcome.SkipReason)))
		return outcome, nil
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrBillingEnabled, outcome.BillingEnabled,
		telemetry.SpanAttrTransitioned, outcome.Transitioned,
		telemetry.SpanAttrProjectCount, len(outcome.EnabledProjects),
	)
	telemetry.SetOK(span)
	s.recordRun(ctx, telemetry.CheckStatusRan, "", elapsed)
	log.Info("Billing check completed",
		zap.Bool("billing_enabled", outcome.BillingEnabled),
		zap.Bool("transitioned", outcome.Transitioned),
		zap.Int("enabled_projects", len(outcome.EnabledProjects)),
		zap.Duration("duration", elapsed),
	)
	return outcome, nil
}

func (s *CheckService) run(ctx context.Context, referenceKey string, log *zap.Logger) (billingcheck.Outcome, error) {
	if referenceKey == "" {
		return billingcheck.Skipped(billingcheck.SkipReasonMissingReferenceKey), nil
	}

	credential, found, err := s.exchange.Retrieve(ctx, referenceKey)
	if err != nil {
		return billingcheck.Outcome{}, err
	}
	if !found {
		return billingcheck.Skipped(billingcheck.SkipReasonCredentialUnavailable), nil
	}

	// The lease is never renewed or released; a check outliving it can race
	// with the next run on the final state write.
	acquired, err := s.lease.TryAcquire(ctx, s.keys.LeaseKey(credential), s.leaseTimeout)
	if err != nil {
		return billingcheck.Outcome{}, err
	}
	if !acquired {
		return billingcheck.Skipped(billingcheck.SkipReasonLeaseHeld), nil
	}

	projects, err := s.checker.Execute(ctx, credential)
	if err != nil {
		return billingcheck.Outcome{}, err
	}

	previous, err := s.tracker.ReadPrevious(ctx, credential)
	if err != nil {
		return billingcheck.Outcome{}, err
	}

	outcome := billingcheck.Ran(projects, false)
	// Counted before the state write; a run whose write fails is counted again on retry.
	if billingcheck.DetectTransition(previous, outcome.BillingEnabled) {
		total, err := s.tracker.IncrementChanges(ctx)
		if err != nil {
			return billingcheck.Outcome{}, err
		}
		outcome.Transitioned = true
		if s.metrics != nil {
			s.metrics.RecordTransition(ctx)
		}
		telemetry.AddEvent(telemetry.SpanFromContext(ctx), "billing_enabled_transition",
			telemetry.SpanAttrChangesTotal, total,
		)
		log.Info("Billing enabled transition detected", zap.Int64("changes_total", total))
	}

	if err := s.tracker.WriteCurrent(ctx, credential, outcome.BillingEnabled); err != nil {
		return billingcheck.Outcome{}, err
	}

	return outcome, nil
}

func (s *CheckService) recordRun(ctx context.Context, status, skipReason string, d time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordRun(ctx, status, skipReason, d)
}

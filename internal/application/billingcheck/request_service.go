package billingcheck

import (
	"context"
	"fmt"

	"github.com/billingwatch/backend/internal/domain/billingcheck"
	"github.com/billingwatch/backend/internal/infrastructure/scheduler"
	"github.com/billingwatch/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// JobSubmitter queues a check for a reference key
type JobSubmitter interface {
	Submit(referenceKey string) (*scheduler.Job, error)
}

// CheckRequest is an accepted billing check request
type CheckRequest struct {
	ReferenceKey string
	JobID        string
}

// RequestService parks a credential in the exchange and queues a check that
// receives only the reference key.
type RequestService struct {
	exchange  billingcheck.CredentialExchange
	submitter JobSubmitter
	logger    *zap.Logger
}

// NewRequestService creates a new request service
func NewRequestService(exchange billingcheck.CredentialExchange, submitter JobSubmitter, logger *zap.Logger) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		exchange:  exchange,
		submitter: submitter,
		logger:    logger,
	}
}

// Request stores credential and queues a check for it.
// When queueing fails the stored credential simply expires.
func (s *RequestService) Request(ctx context.Context, credential string) (*CheckRequest, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing_check", "request")
	defer span.End()

	referenceKey, err := s.exchange.Store(ctx, credential)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	job, err := s.submitter.Submit(referenceKey)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to queue billing check: %w", err)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrJobID, job.ID.String())
	s.logger.Debug("Billing check queued", zap.String("job_id", job.ID.String()))

	return &CheckRequest{
		ReferenceKey: referenceKey,
		JobID:        job.ID.String(),
	}, nil
}

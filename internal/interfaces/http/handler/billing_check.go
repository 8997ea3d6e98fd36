package handler

import (
	"context"
	"errors"
	"net/http"

	billingcheckapp "github.com/billingwatch/backend/internal/application/billingcheck"
	"github.com/billingwatch/backend/internal/domain/billingcheck"
	"github.com/billingwatch/backend/internal/infrastructure/logger"
	"github.com/billingwatch/backend/internal/infrastructure/scheduler"
	"github.com/billingwatch/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// CheckRequester parks a credential and queues a billing check for it
type CheckRequester interface {
	Request(ctx context.Context, credential string) (*billingcheckapp.CheckRequest, error)
}

// BillingCheckHandler accepts billing check requests
type BillingCheckHandler struct {
	BaseHandler
	requester CheckRequester
}

// NewBillingCheckHandler creates a new BillingCheckHandler
func NewBillingCheckHandler(requester CheckRequester) *BillingCheckHandler {
	return &BillingCheckHandler{requester: requester}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *BillingCheckHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/billing-checks", h.Create)
}

// Create parks the token and queues a check.
// The response carries the reference key and job id, never the token.
func (h *BillingCheckHandler) Create(c *gin.Context) {
	var req dto.CreateBillingCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Bodies without a declared length only trip the limit while decoding
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.ErrorWithCode(c, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
			return
		}
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidationRequired), dto.ErrCodeValidationRequired, "token is required")
			return
		}
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeInvalidJSON), dto.ErrCodeInvalidJSON, "request body must be a JSON object")
		return
	}

	ctx := c.Request.Context()
	accepted, err := h.requester.Request(ctx, req.Token)
	if err != nil {
		h.handleRequestError(c, err)
		return
	}

	h.Accepted(c, dto.BillingCheckAcceptedResponse{
		ReferenceKey: accepted.ReferenceKey,
		JobID:        accepted.JobID,
	})
}

func (h *BillingCheckHandler) handleRequestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, billingcheck.ErrEmptyCredential):
		h.ErrorWithCode(c, dto.ErrCodeValidationRequired, "token is required")
	case errors.Is(err, scheduler.ErrJobQueueFull):
		h.ErrorWithCode(c, dto.ErrCodeQueueFull, "billing check queue is full, retry later")
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		h.ServiceUnavailable(c, "billing check worker is not accepting requests")
	default:
		logger.L(c.Request.Context()).Error("Failed to accept billing check", zap.Error(err))
		h.InternalError(c, "failed to accept billing check")
	}
}

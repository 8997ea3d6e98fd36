package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/billingwatch/backend/internal/infrastructure/auth"
	"github.com/billingwatch/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Service token context keys
const (
	ServiceClaimsKey = "service_claims"
	ServiceCallerKey = "service_caller"
	AuthHeaderKey    = "Authorization"
	BearerPrefix     = "Bearer "
)

// TokenValidator validates a bearer service token
type TokenValidator interface {
	Enabled() bool
	Validate(tokenString string) (*auth.ServiceClaims, error)
}

// ServiceTokenConfig holds configuration for the service token middleware
type ServiceTokenConfig struct {
	// Validator is required for token validation
	Validator TokenValidator
	// Logger for middleware logging
	Logger *zap.Logger
}

// ServiceTokenAuth creates service token authentication middleware.
// When the validator has no secret configured every request passes.
func ServiceTokenAuth(cfg ServiceTokenConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if cfg.Validator == nil || !cfg.Validator.Enabled() {
		log.Warn("Service token authentication disabled; request endpoint is unauthenticated")
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			handleAuthError(c, log, auth.ErrInvalidToken, "Missing authorization header")
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			handleAuthError(c, log, auth.ErrInvalidToken, "Invalid authorization header format")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, BearerPrefix)
		if tokenString == "" {
			handleAuthError(c, log, auth.ErrInvalidToken, "Missing token")
			return
		}

		claims, err := cfg.Validator.Validate(tokenString)
		if err != nil {
			handleAuthError(c, log, err, "Token validation failed")
			return
		}

		c.Set(ServiceClaimsKey, claims)
		c.Set(ServiceCallerKey, claims.Caller())

		log.Debug("Service token authentication successful",
			zap.String("caller", claims.Caller()),
		)

		c.Next()
	}
}

// GetServiceCaller returns the authenticated caller, or empty when auth is disabled
func GetServiceCaller(c *gin.Context) string {
	return c.GetString(ServiceCallerKey)
}

func handleAuthError(c *gin.Context, log *zap.Logger, err error, message string) {
	log.Warn("Service token authentication failed",
		zap.Error(err),
		zap.String("message", message),
		zap.String("path", c.Request.URL.Path),
	)

	errorCode := dto.ErrCodeUnauthorized
	errorMessage := "Authentication required"

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		errorCode = dto.ErrCodeTokenExpired
		errorMessage = "Token has expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidIssuer),
		errors.Is(err, auth.ErrTokenNotYetValid):
		errorCode = dto.ErrCodeTokenInvalid
		errorMessage = "Invalid token"
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(errorCode, errorMessage, c.GetString(RequestIDKey)))
}

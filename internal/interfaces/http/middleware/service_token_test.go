package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/billingwatch/backend/internal/infrastructure/auth"
	"github.com/billingwatch/backend/internal/infrastructure/config"
	"github.com/billingwatch/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenService(secret string) *auth.ServiceTokenService {
	return auth.NewServiceTokenService(config.AuthConfig{
		ServiceTokenSecret: secret,
		ServiceTokenIssuer: "billingwatch",
	})
}

func newAuthRouter(validator TokenValidator, caller *string) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), ServiceTokenAuth(ServiceTokenConfig{Validator: validator}))
	router.POST("/checks", func(c *gin.Context) {
		*caller = GetServiceCaller(c)
		c.Status(http.StatusAccepted)
	})
	return router
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestServiceTokenAuth_ValidToken(t *testing.T) {
	svc := newTokenService("test-secret-key-at-least-32-chars")
	token, err := svc.Issue("gitlab-rails", time.Minute)
	require.NoError(t, err)

	var caller string
	req := httptest.NewRequest(http.MethodPost, "/checks", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	w := httptest.NewRecorder()
	newAuthRouter(svc, &caller).ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "gitlab-rails", caller)
}

func TestServiceTokenAuth_Rejections(t *testing.T) {
	svc := newTokenService("test-secret-key-at-least-32-chars")

	expired := newTokenService("test-secret-key-at-least-32-chars")
	expiredToken, err := expired.Issue("gitlab-rails", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{"missing header", "", dto.ErrCodeTokenInvalid},
		{"wrong scheme", "Basic dXNlcjpwYXNz", dto.ErrCodeTokenInvalid},
		{"empty bearer", BearerPrefix, dto.ErrCodeTokenInvalid},
		{"garbage token", BearerPrefix + "not.a.jwt", dto.ErrCodeTokenInvalid},
		{"expired token", BearerPrefix + expiredToken, dto.ErrCodeTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var caller string
			req := httptest.NewRequest(http.MethodPost, "/checks", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			newAuthRouter(svc, &caller).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Empty(t, caller)

			errInfo := decodeError(t, w)
			assert.Equal(t, tt.wantCode, errInfo.Code)
			assert.Equal(t, w.Header().Get(RequestIDHeader), errInfo.RequestID)
		})
	}
}

func TestServiceTokenAuth_DisabledWithoutSecret(t *testing.T) {
	var caller string
	w := httptest.NewRecorder()
	newAuthRouter(newTokenService(""), &caller).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/checks", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, caller)
}

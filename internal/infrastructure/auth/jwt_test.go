package auth

import (
	"testing"
	"time"

	"github.com/billingwatch/backend/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars"

func newTestService() *ServiceTokenService {
	return NewServiceTokenService(config.AuthConfig{
		ServiceTokenSecret: testSecret,
		ServiceTokenIssuer: "test-issuer",
	})
}

func TestNewServiceTokenService(t *testing.T) {
	svc := newTestService()

	assert.True(t, svc.Enabled())
	assert.Equal(t, []byte(testSecret), svc.secret)
	assert.Equal(t, "test-issuer", svc.issuer)
}

func TestServiceTokenService_Disabled(t *testing.T) {
	svc := NewServiceTokenService(config.AuthConfig{})

	assert.False(t, svc.Enabled())

	_, err := svc.Issue("gitlab-rails", time.Minute)
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = svc.Validate("anything")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestIssueAndValidate(t *testing.T) {
	svc := newTestService()

	token, err := svc.Issue("gitlab-rails", 5*time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "gitlab-rails", claims.Caller())
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestIssue_MissingCaller(t *testing.T) {
	_, err := newTestService().Issue("", time.Minute)
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestValidate_Expired(t *testing.T) {
	svc := newTestService()
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := svc.Issue("gitlab-rails", time.Minute)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidate_NotYetValid(t *testing.T) {
	svc := newTestService()
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }

	token, err := svc.Issue("gitlab-rails", 2*time.Hour)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrTokenNotYetValid)
}

func TestValidate_WrongSecret(t *testing.T) {
	other := NewServiceTokenService(config.AuthConfig{
		ServiceTokenSecret: "another-secret-key-at-least-32-ch",
		ServiceTokenIssuer: "test-issuer",
	})
	token, err := other.Issue("gitlab-rails", time.Minute)
	require.NoError(t, err)

	_, err = newTestService().Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_WrongIssuer(t *testing.T) {
	other := NewServiceTokenService(config.AuthConfig{
		ServiceTokenSecret: testSecret,
		ServiceTokenIssuer: "someone-else",
	})
	token, err := other.Issue("gitlab-rails", time.Minute)
	require.NoError(t, err)

	_, err = newTestService().Validate(token)
	assert.ErrorIs(t, err, ErrInvalidIssuer)
}

func TestValidate_RejectsNonHMAC(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			Subject:   "gitlab-rails",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestService().Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_Garbage(t *testing.T) {
	_, err := newTestService().Validate("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

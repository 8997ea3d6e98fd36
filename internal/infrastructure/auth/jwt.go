package auth

import (
	"errors"
	"time"

	"github.com/billingwatch/backend/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrInvalidIssuer    = errors.New("invalid token issuer")
	ErrMissingSubject   = errors.New("missing subject in claims")
	ErrMissingSecret    = errors.New("service token secret is not configured")
)

// ServiceClaims are the claims carried by a service token.
// The subject names the calling service.
type ServiceClaims struct {
	jwt.RegisteredClaims
}

// Caller returns the calling service name
func (c *ServiceClaims) Caller() string {
	return c.Subject
}

// ServiceTokenService signs and validates HS256 service tokens
type ServiceTokenService struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewServiceTokenService creates a new service token service
func NewServiceTokenService(cfg config.AuthConfig) *ServiceTokenService {
	return &ServiceTokenService{
		secret: []byte(cfg.ServiceTokenSecret),
		issuer: cfg.ServiceTokenIssuer,
		now:    time.Now,
	}
}

// Enabled reports whether a secret is configured.
// Without one the request endpoint accepts unauthenticated calls.
func (s *ServiceTokenService) Enabled() bool {
	return len(s.secret) > 0
}

// Issue signs a token for caller, valid for ttl
func (s *ServiceTokenService) Issue(caller string, ttl time.Duration) (string, error) {
	if !s.Enabled() {
		return "", ErrMissingSecret
	}
	if caller == "" {
		return "", ErrMissingSubject
	}

	now := s.now()
	claims := &ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   caller,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses a service token and returns its claims
func (s *ServiceTokenService) Validate(tokenString string) (*ServiceClaims, error) {
	if !s.Enabled() {
		return nil, ErrMissingSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*ServiceClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrInvalidIssuer
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	return claims, nil
}

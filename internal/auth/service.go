package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenMalformed = errors.New("could not validate credentials")
	ErrMissingSubject = errors.New("token missing subject")
)

// Service issues and validates signed bearer tokens. Tokens are
// stateless: there is no revocation list, a token stays valid until
// its expiry.
type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService constructs a token service with the supplied signing
// secret and token lifetime.
func NewService(secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{secret: []byte(secret), ttl: ttl}
}

// TokenTTL reports the configured token lifetime.
func (s *Service) TokenTTL() time.Duration { return s.ttl }

// IssueToken mints an HS256 token whose subject is the username.
func (s *Service) IssueToken(subject string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken verifies signature and expiry and returns the subject.
func (s *Service) ValidateToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenMalformed
	}
	if claims.Subject == "" {
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}

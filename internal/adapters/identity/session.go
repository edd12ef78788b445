package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/poyrazK/dyndns/internal/core/domain"
)

// SessionCookie carries the signed session token for browser clients.
const SessionCookie = "ddns_session"

const sessionIssuer = "dyndns"

var errInvalidToken = errors.New("invalid session token")

type sessionClaims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies HS256 session tokens. It implements
// ports.IdentityProvider.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime of newly issued tokens.
func (s *Sessions) TTL() time.Duration { return s.ttl }

func (s *Sessions) Issue(id domain.Identity) (string, error) {
	if id.SubjectID == "" {
		return "", fmt.Errorf("issue session: %w", domain.ErrUnauthenticated)
	}
	now := s.now()
	claims := sessionClaims{
		Email: id.Email,
		Roles: id.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    sessionIssuer,
			Subject:   id.SubjectID,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

func (s *Sessions) Verify(tokenString string) (*domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(sessionIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errInvalidToken
	}
	return &domain.Identity{SubjectID: claims.Subject, Email: claims.Email, Roles: claims.Roles}, nil
}

// Identify reads the token from the session cookie or a Bearer header. A
// missing or invalid token is anonymous, not an error.
func (s *Sessions) Identify(r *http.Request) (*domain.Identity, error) {
	raw := bearerToken(r)
	if raw == "" {
		if c, err := r.Cookie(SessionCookie); err == nil {
			raw = c.Value
		}
	}
	if raw == "" {
		return nil, nil
	}
	id, err := s.Verify(raw)
	if err != nil {
		return nil, nil
	}
	return id, nil
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

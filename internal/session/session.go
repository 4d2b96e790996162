// Package session issues and validates the signed bearer tokens that
// gate owner-only operations. Sessions are stateless: there is no
// server-side revocation list and logout is client-side token discard.
package session

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hushbox/service-api/internal/account/entity"
)

// ErrInvalidSession covers missing, malformed, tampered and expired
// tokens alike. Validation never panics on garbage input.
var ErrInvalidSession = errors.New("invalid session")

// Claims carries the Principal snapshot. The verified and accepting
// values are frozen at issue time; callers that need live state must
// read the store.
type Claims struct {
	jwt.RegisteredClaims
	Username          string `json:"username"`
	Verified          bool   `json:"verified"`
	AcceptingMessages bool   `json:"accepting_messages"`
}

type Config struct {
	Secret []byte
	TTL    time.Duration
}

// ConfigFromEnv reads the session secret and validity window from env
// vars. An empty SESSION_SECRET is rejected by the caller at startup.
func ConfigFromEnv() Config {
	ttl := 7 * 24 * time.Hour
	if v := os.Getenv("SESSION_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = time.Duration(n) * time.Minute
		}
	}
	return Config{Secret: []byte(os.Getenv("SESSION_SECRET")), TTL: ttl}
}

// Manager signs and verifies session tokens with a server-held secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Manager{secret: cfg.Secret, ttl: ttl}, nil
}

// Issue produces a signed token encoding the Principal snapshot.
func (m *Manager) Issue(p *entity.Principal) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Username:          p.Username,
		Verified:          p.Verified,
		AcceptingMessages: p.AcceptingMessages,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature and expiry and returns the decoded
// Principal, or ErrInvalidSession.
func (m *Manager) Validate(token string) (*entity.Principal, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidSession
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidSession
	}
	return &entity.Principal{
		ID:                id,
		Username:          claims.Username,
		Verified:          claims.Verified,
		AcceptingMessages: claims.AcceptingMessages,
	}, nil
}

// TTLSeconds reports the validity window, for the login response body.
func (m *Manager) TTLSeconds() int64 { return int64(m.ttl / time.Second) }

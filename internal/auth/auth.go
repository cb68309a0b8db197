// Package auth issues and verifies API bearer tokens.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalid is returned for tokens that fail verification.
	ErrInvalid = errors.New("invalid token")
	// ErrExpired is returned for tokens past their expiry.
	ErrExpired = errors.New("token expired")
)

// LocalUser is the identity attached to requests when auth is disabled.
const LocalUser = "local"

// Config configures token signing and verification.
type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
	Now      func() time.Time
}

// Claims are the registered JWT claims. Subject holds the user's email.
type Claims struct {
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	cfg Config
}

// NewIssuer validates cfg.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) < 16 {
		return nil, errors.New("auth secret must be at least 16 bytes")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Issuer{cfg: cfg}, nil
}

// Issue signs a token for email.
func (i *Issuer) Issue(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", errors.New("token subject is required")
	}
	now := i.cfg.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   email,
		Issuer:    i.cfg.Issuer,
		Audience:  jwt.ClaimStrings{i.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TTL)),
		ID:        uuid.NewString(),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, issuer, audience and expiry, and
// returns the token subject.
func (i *Issuer) Verify(token string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), &claims,
		func(*jwt.Token) (any, error) { return i.cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithAudience(i.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.cfg.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: %w", ErrExpired, err)
		}
		return "", fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalid)
	}
	return claims.Subject, nil
}

type ctxKey struct{}

// WithUser attaches a user to ctx.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// UserFrom returns the authenticated user, if any.
func UserFrom(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(ctxKey{}).(string)
	return u, ok && u != ""
}

// Allowlist is a concurrency-safe set of permitted users. An empty list
// admits every verified user.
type Allowlist struct {
	mu    sync.RWMutex
	users map[string]bool
}

// NewAllowlist builds an allowlist from emails.
func NewAllowlist(users []string) *Allowlist {
	a := &Allowlist{}
	a.Set(users)
	return a
}

// Set replaces the allowed users. Emails compare case-insensitively.
func (a *Allowlist) Set(users []string) {
	m := make(map[string]bool, len(users))
	for _, u := range users {
		if u = strings.ToLower(strings.TrimSpace(u)); u != "" {
			m[u] = true
		}
	}
	a.mu.Lock()
	a.users = m
	a.mu.Unlock()
}

// Allows reports whether user may call the API.
func (a *Allowlist) Allows(user string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.users) == 0 || a.users[strings.ToLower(user)]
}

// Middleware requires a valid bearer token from an allowed user. A nil
// issuer disables checking and marks requests as LocalUser.
func Middleware(issuer *Issuer, allow *Allowlist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if issuer == nil {
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), LocalUser)))
				return
			}

			const prefix = "Bearer "
			h := r.Header.Get("Authorization")
			if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
				unauthorized(w)
				return
			}
			user, err := issuer.Verify(h[len(prefix):])
			if err != nil || (allow != nil && !allow.Allows(user)) {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="household"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Not authenticated"})
}

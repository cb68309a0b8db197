package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestIssuer(t *testing.T, now time.Time) *Issuer {
	t.Helper()
	iss, err := NewIssuer(Config{
		Secret:   testSecret,
		Issuer:   "household",
		Audience: "household-api",
		TTL:      time.Hour,
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)
	return iss
}

func TestIssueVerify(t *testing.T) {
	now := time.Now()
	iss := newTestIssuer(t, now)

	tok, err := iss.Issue("me@example.com")
	require.NoError(t, err)

	user, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", user)

	_, err = iss.Issue("  ")
	assert.Error(t, err)
}

func TestVerifyExpired(t *testing.T) {
	now := time.Now()
	tok, err := newTestIssuer(t, now.Add(-2*time.Hour)).Issue("me@example.com")
	require.NoError(t, err)

	_, err = newTestIssuer(t, now).Verify(tok)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejects(t *testing.T) {
	now := time.Now()
	iss := newTestIssuer(t, now)

	other, err := NewIssuer(Config{Secret: testSecret, Issuer: "someone-else", Audience: "household-api", Now: func() time.Time { return now }})
	require.NoError(t, err)
	wrongIssuer, err := other.Issue("me@example.com")
	require.NoError(t, err)

	otherSecret, err := NewIssuer(Config{Secret: []byte("ffffffffffffffffffffffff"), Issuer: "household", Audience: "household-api", Now: func() time.Time { return now }})
	require.NoError(t, err)
	wrongKey, err := otherSecret.Issue("me@example.com")
	require.NoError(t, err)

	noneTok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "me@example.com",
		Issuer:    "household",
		Audience:  jwt.ClaimStrings{"household-api"},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":      "not.a.token",
		"wrong issuer": wrongIssuer,
		"wrong key":    wrongKey,
		"alg none":     noneTok,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := iss.Verify(tok)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestNewIssuerShortSecret(t *testing.T) {
	_, err := NewIssuer(Config{Secret: []byte("short")})
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	iss := newTestIssuer(t, time.Now())
	allowed, err := iss.Issue("me@example.com")
	require.NoError(t, err)
	stranger, err := iss.Issue("stranger@example.com")
	require.NoError(t, err)

	var seen string
	h := Middleware(iss, NewAllowlist([]string{"ME@example.com"}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"invalid", "Bearer junk", http.StatusUnauthorized},
		{"not allowed", "Bearer " + stranger, http.StatusUnauthorized},
		{"ok", "Bearer " + allowed, http.StatusNoContent},
		{"lowercase scheme", "bearer " + allowed, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"Not authenticated"}`, rec.Body.String())
			}
		})
	}
	assert.Equal(t, "me@example.com", seen)
}

func TestMiddlewareDisabled(t *testing.T) {
	var seen string
	h := Middleware(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFrom(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, LocalUser, seen)
}

func TestAllowlistEmptyAdmitsAll(t *testing.T) {
	a := NewAllowlist(nil)
	assert.True(t, a.Allows("anyone@example.com"))
	a.Set([]string{"x@example.com"})
	assert.False(t, a.Allows("anyone@example.com"))
}

// internal/session/session.go
//
// Signed session tokens.
// Responsibilities:
//   - Mint random session ids and sign them as HS256 JWTs with an expiry.
//   - Read the token from Authorization: Bearer, the session cookie, or ?token=
//     (browsers cannot set headers on WebSocket upgrades).
//   - Middleware that rejects requests without a valid session and puts the
//     session id in the request context.
//
// A session id only names a slot in the round store; there are no accounts.

package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultCookieName is used when Config.CookieName is empty.
const DefaultCookieName = "semantic_session"

var (
	ErrNoToken      = errors.New("no session token")
	ErrInvalidToken = errors.New("invalid session token")
)

// Config controls token signing and cookie attributes.
type Config struct {
	Secret     string
	TTL        time.Duration // default 14 days
	CookieName string
	Secure     bool // Secure + SameSite=None cookies for cross-site clients
}

// Issuer signs and verifies session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	cookie string
	secure bool
	now    func() time.Time
}

// NewIssuer builds an Issuer. An empty secret is rejected.
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("session secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 14 * 24 * time.Hour
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	return &Issuer{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		cookie: cfg.CookieName,
		secure: cfg.Secure,
		now:    time.Now,
	}, nil
}

// claims carries the session id in the registered subject.
type claims struct {
	jwt.RegisteredClaims
}

// Sign returns a token for id and its expiry.
func (i *Issuer) Sign(id string) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{jwt.RegisteredClaims{
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}})
	ss, err := t.SignedString(i.secret)
	return ss, exp, err
}

// Issue mints a fresh session id and signs it.
func (i *Issuer) Issue() (id, token string, exp time.Time, err error) {
	id = newID()
	token, exp, err = i.Sign(id)
	return id, token, exp, err
}

// Parse verifies token and returns its session id.
func (i *Issuer) Parse(token string) (string, error) {
	if token == "" {
		return "", ErrNoToken
	}
	var c claims
	t, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !t.Valid {
		return "", ErrInvalidToken
	}
	if c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}

// FromRequest extracts a raw token: bearer header first, then cookie, then ?token=.
func (i *Issuer) FromRequest(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(i.cookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

// SetCookie writes the session cookie.
func (i *Issuer) SetCookie(w http.ResponseWriter, token string, exp time.Time) {
	sameSite := http.SameSiteLaxMode
	if i.secure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     i.cookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   i.secure,
		SameSite: sameSite,
		Expires:  exp,
	})
}

type ctxKey struct{}

// WithID stores a session id in ctx.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ID returns the session id placed by Require.
func ID(ctx context.Context) (string, bool) {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id, id != ""
}

// Require rejects requests without a valid session token.
func (i *Issuer) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := i.Parse(i.FromRequest(r))
		if err != nil {
			code := `{"error":"invalid_session"}`
			if errors.Is(err, ErrNoToken) {
				code = `{"error":"no_session"}`
			}
			http.Error(w, code, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}

// newID creates a 22-char URL-safe, crypto-random identifier (no padding).
func newID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

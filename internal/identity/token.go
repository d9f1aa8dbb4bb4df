package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Caller is the identity behind a request.
type Caller struct {
	ID     string `json:"id"`
	Wallet string `json:"wallet,omitempty"`
}

type callerKey struct{}

// WithCaller returns a context carrying c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored on ctx.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok && c.ID != ""
}

// Claims are the JWT claims carried by identity tokens.
type Claims struct {
	Wallet string `json:"wallet,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 identity tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses a token and returns its caller. The subject is the user id.
func (v *Verifier) Verify(token string) (Caller, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Caller{}, fmt.Errorf("verifying token: %w", err)
	}
	if claims.Subject == "" {
		return Caller{}, errors.New("verifying token: missing subject")
	}
	return Caller{ID: claims.Subject, Wallet: claims.Wallet}, nil
}

// IssueToken signs a token for a caller, valid for ttl.
func IssueToken(secret string, c Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Wallet: c.Wallet,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Dev-mode identity headers, trusted only when no verifier is configured.
const (
	HeaderUserID = "X-User-ID"
	HeaderWallet = "X-Wallet"
)

// rateLimiter tracks failed token attempts per IP.
type rateLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

const (
	rateLimitWindow  = 1 * time.Minute
	rateLimitMaxFail = 10
)

// recordFailure records a failed attempt and returns true if rate limited.
func (rl *rateLimiter) recordFailure(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rateLimitWindow)

	valid := rl.attempts[ip][:0]
	for _, t := range rl.attempts[ip] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	valid = append(valid, now)
	rl.attempts[ip] = valid

	return len(valid) > rateLimitMaxFail
}

// Middleware resolves the caller of each request and stores it on the context.
// Requests without credentials pass through anonymously; handlers that need a
// caller reject them. An invalid bearer token is rejected with 401.
// With a nil verifier and devMode set, X-User-ID and X-Wallet are trusted.
func Middleware(v *Verifier, devMode bool) func(http.Handler) http.Handler {
	limiter := &rateLimiter{attempts: make(map[string][]time.Time)}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")

			if v != nil && strings.HasPrefix(authHeader, "Bearer ") {
				caller, err := v.Verify(strings.TrimPrefix(authHeader, "Bearer "))
				if err != nil {
					ip := clientIP(r)
					if limiter.recordFailure(ip) {
						writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests")
						return
					}
					writeError(w, http.StatusUnauthorized, "invalid_token", "Invalid identity token")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
				return
			}

			if v == nil && devMode {
				if id := strings.TrimSpace(r.Header.Get(HeaderUserID)); id != "" {
					caller := Caller{ID: id, Wallet: strings.TrimSpace(r.Header.Get(HeaderWallet))}
					next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}

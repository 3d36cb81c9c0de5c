// ABOUTME: HTTP middleware and resolution logic for visitor scopes
// ABOUTME: Handles abid cookies, identity promotion, and request context plumbing

package scope

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// DefaultCookieName is the cookie carrying the anonymous visitor token.
const DefaultCookieName = "abid"

// DefaultCookieMaxAge keeps the token for roughly a year.
const DefaultCookieMaxAge = 365 * 24 * time.Hour

// ErrNoToken is returned by PrincipalStore implementations when a user has no
// stored visitor token.
var ErrNoToken = errors.New("no visitor token")

// PrincipalStore persists visitor tokens on authenticated users so anonymous
// activity links forward after login.
type PrincipalStore interface {
	VisitorToken(ctx context.Context, userID string) (string, error)
	SetVisitorToken(ctx context.Context, userID, token string) error
}

// Authenticator extracts the authenticated user from a request, if any. The
// host application supplies this; the resolver has no opinion on how auth
// works.
type Authenticator interface {
	UserID(r *http.Request) (string, bool)
}

// Resolver produces stable scope keys for incoming requests.
type Resolver struct {
	principals    PrincipalStore
	authenticator Authenticator
	cookieName    string
	cookieMaxAge  time.Duration
	logger        *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCookie overrides the cookie name and lifetime.
func WithCookie(name string, maxAge time.Duration) Option {
	return func(rv *Resolver) {
		if name != "" {
			rv.cookieName = name
		}
		if maxAge > 0 {
			rv.cookieMaxAge = maxAge
		}
	}
}

// WithAuthenticator wires an authenticated-user source into the resolver.
func WithAuthenticator(a Authenticator) Option {
	return func(rv *Resolver) { rv.authenticator = a }
}

// NewResolver creates a Resolver. principals may be nil when the deployment
// has no authenticated users; promotion is then skipped.
func NewResolver(principals PrincipalStore, opts ...Option) *Resolver {
	rv := &Resolver{
		principals:   principals,
		cookieName:   DefaultCookieName,
		cookieMaxAge: DefaultCookieMaxAge,
		logger:       slog.Default().With("component", "scope"),
	}
	for _, opt := range opts {
		opt(rv)
	}
	return rv
}

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const scopeContextKey contextKey = "ab_scope"

// WithScope attaches a resolved scope to the context.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey, s)
}

// FromContext returns the scope resolved earlier in the request, if any.
func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeContextKey).(Scope)
	return s, ok && !s.IsZero()
}

// Resolve applies the priority order: explicit scope, then the scope already
// attached to the request context. Returns the zero scope when neither is
// available; callers treat that as "skip tracking".
func (rv *Resolver) Resolve(ctx context.Context, explicit Scope) Scope {
	if !explicit.IsZero() {
		return explicit
	}
	if s, ok := FromContext(ctx); ok {
		return s
	}
	return Scope{}
}

// Middleware resolves the visitor token for each request, generating and
// persisting one when missing, and attaches the resulting scope to the
// request context. Token priority: the authenticated user's stored token
// wins; otherwise the cookie token is reused (and promoted onto the user);
// otherwise a fresh token is generated.
func (rv *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := rv.readToken(r)

		if userID, ok := rv.authenticatedUser(r); ok {
			token = rv.resolveForUser(r.Context(), userID, token, w, r)
		} else if token == "" {
			token = GenerateToken()
			rv.setCookie(w, r, token)
		}

		if token != "" {
			r = r.WithContext(WithScope(r.Context(), Token(token)))
		}
		next.ServeHTTP(w, r)
	})
}

// resolveForUser reconciles the user's stored token with the cookie token.
func (rv *Resolver) resolveForUser(ctx context.Context, userID, cookieToken string, w http.ResponseWriter, r *http.Request) string {
	if rv.principals == nil {
		if cookieToken == "" {
			cookieToken = GenerateToken()
			rv.setCookie(w, r, cookieToken)
		}
		return cookieToken
	}

	stored, err := rv.principals.VisitorToken(ctx, userID)
	switch {
	case err == nil && stored != "":
		// The user's own token is authoritative; refresh the cookie so the
		// browser agrees.
		if stored != cookieToken {
			rv.setCookie(w, r, stored)
		}
		return stored

	case err != nil && !errors.Is(err, ErrNoToken):
		rv.logger.Warn("visitor token lookup failed", "user_id", userID, "error", err)
		if cookieToken == "" {
			cookieToken = GenerateToken()
			rv.setCookie(w, r, cookieToken)
		}
		return cookieToken

	case cookieToken != "":
		// Promote the anonymous token onto the user.
		if err := rv.principals.SetVisitorToken(ctx, userID, cookieToken); err != nil {
			rv.logger.Warn("visitor token promotion failed", "user_id", userID, "error", err)
		}
		return cookieToken

	default:
		token := GenerateToken()
		if err := rv.principals.SetVisitorToken(ctx, userID, token); err != nil {
			rv.logger.Warn("saving visitor token failed", "user_id", userID, "error", err)
		}
		rv.setCookie(w, r, token)
		return token
	}
}

func (rv *Resolver) authenticatedUser(r *http.Request) (string, bool) {
	if rv.authenticator == nil {
		return "", false
	}
	return rv.authenticator.UserID(r)
}

func (rv *Resolver) readToken(r *http.Request) string {
	cookie, err := r.Cookie(rv.cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (rv *Resolver) setCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     rv.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(rv.cookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

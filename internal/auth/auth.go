package auth

import (
	"net/http"
	"strings"
)

// SessionCookie is the cookie name carrying the session token.
const SessionCookie = "session"

// Gatekeeper wires together the session store, login rate limiter, XSRF
// token, and configured password hash into the request-level auth
// surface described in spec.md §4.13 and §5, grounded directly on
// original_source/src/auth.rs's AppState-held collaborators.
type Gatekeeper struct {
	PasswordHash string // empty or UnauthenticatedMagic disables auth entirely
	Sessions     *SessionStore
	RateLimiter  *LoginRateLimiter
	XSRF         *TokenStore
	SecureCookie bool
}

// New constructs a Gatekeeper. passwordHash is SOLVENCY_PASSWORD_HASH
// verbatim; pass UnauthenticatedMagic or "" to disable auth.
func New(passwordHash string, secureCookie bool) *Gatekeeper {
	return &Gatekeeper{
		PasswordHash: passwordHash,
		Sessions:     NewSessionStore(),
		RateLimiter:  NewLoginRateLimiter(),
		XSRF:         NewTokenStore(),
		SecureCookie: secureCookie,
	}
}

// Unauthenticated reports whether the deployment disables password
// checking entirely.
func (g *Gatekeeper) Unauthenticated() bool {
	return g.PasswordHash == "" || g.PasswordHash == UnauthenticatedMagic
}

// publicPaths bypass the session check even when auth is enabled.
var publicPaths = []string{"/login", "/logout", "/health"}

func isPublic(path string) bool {
	if strings.HasPrefix(path, "/static/") {
		return true
	}
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// RequireSession is the authentication middleware: unauthenticated
// deployments pass every request through untouched; otherwise a valid
// session cookie is required for any path outside publicPaths. API/HTMX
// requests without a session receive 401; browser navigations are
// redirected to /login.
func (g *Gatekeeper) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.Unauthenticated() || isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if cookie, err := r.Cookie(SessionCookie); err == nil && g.Sessions.Valid(cookie.Value) {
			next.ServeHTTP(w, r)
			return
		}

		if r.Header.Get("HX-Request") != "" || strings.HasPrefix(r.URL.Path, "/api/") {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
}

// ClientIP extracts a rate-limiting identity from X-Forwarded-For (first
// hop) falling back to X-Real-Ip, then "unknown" — mirrors
// original_source/src/auth.rs's client_ip.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0])
	}
	if real := r.Header.Get("X-Real-Ip"); real != "" {
		return strings.TrimSpace(real)
	}
	return "unknown"
}

// Login verifies password against the configured hash and, on success,
// rotates the XSRF token and mints a fresh session. Returns the new session
// token and true on success. Login does not touch the rate limiter: the
// caller checks it before calling Login, records a failed attempt, and
// resets it after a success.
func (g *Gatekeeper) Login(password string) (token string, ok bool) {
	if !VerifyPassword(password, g.PasswordHash) {
		return "", false
	}
	g.XSRF.Rotate()
	return g.Sessions.Create(), true
}

// Logout revokes a session token.
func (g *Gatekeeper) Logout(token string) {
	g.Sessions.Revoke(token)
}

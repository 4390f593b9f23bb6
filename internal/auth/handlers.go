package auth

import (
	"encoding/json"
	"net/http"
)

// LoginRequest is the JSON/form payload for POST /login.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginHandler authenticates a password against the configured hash,
// applying the rate limiter before attempting verification, and sets the
// session cookie on success. Mirrors original_source/src/auth.rs's
// login_submit, adapted to return JSON instead of a rendered template
// (templating is an out-of-scope external collaborator per spec.md §1).
func (g *Gatekeeper) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if g.Unauthenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	ip := ClientIP(r)
	if g.RateLimiter.LockedOut(ip) {
		http.Error(w, "too many failed attempts, try again later", http.StatusTooManyRequests)
		return
	}

	var req LoginRequest
	switch {
	case r.Header.Get("Content-Type") == "application/json":
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	default:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form data", http.StatusBadRequest)
			return
		}
		req.Password = r.FormValue("password")
	}

	token, ok := g.Login(req.Password)
	if !ok {
		g.RateLimiter.RecordFailure(ip)
		http.Error(w, "invalid password", http.StatusUnauthorized)
		return
	}
	g.RateLimiter.Reset(ip)

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// LogoutHandler removes the session cookie and revokes the server-side
// token, mirroring original_source/src/auth.rs's logout.
func (g *Gatekeeper) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		g.Logout(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

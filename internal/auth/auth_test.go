package auth

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"
)

func encodeTestHash(password string, memory, iterations uint32, threads uint8) string {
	salt := []byte("0123456789abcdef")
	hash := argon2.IDKey([]byte(password), salt, iterations, memory, threads, 32)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memory, iterations, threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
}

func TestVerifyPassword_MatchesAndRejects(t *testing.T) {
	hash := encodeTestHash("correct horse", 19*1024, 2, 1)

	assert.True(t, VerifyPassword("correct horse", hash))
	assert.False(t, VerifyPassword("wrong password", hash))
}

func TestVerifyPassword_MalformedHashFailsClosed(t *testing.T) {
	assert.False(t, VerifyPassword("anything", "not-a-valid-hash"))
	assert.False(t, VerifyPassword("anything", "$bcrypt$v=1$whatever"))
	assert.False(t, VerifyPassword("anything", UnauthenticatedMagic))
}

func TestLoginRateLimiter_LocksOutAfterFiveFailures(t *testing.T) {
	l := NewLoginRateLimiter()
	ip := "203.0.113.5"

	for i := 0; i < maxLoginAttempts; i++ {
		assert.False(t, l.LockedOut(ip))
		l.RecordFailure(ip)
	}
	assert.True(t, l.LockedOut(ip))

	l.Reset(ip)
	assert.False(t, l.LockedOut(ip))
}

func TestSessionStore_CreateValidRevoke(t *testing.T) {
	s := NewSessionStore()
	token := s.Create()
	assert.True(t, s.Valid(token))
	assert.False(t, s.Valid("not-a-real-token"))

	s.Revoke(token)
	assert.False(t, s.Valid(token))
}

func TestXSRFMiddleware_HeaderTakesPriority(t *testing.T) {
	tokens := NewTokenStore()
	handler := Middleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader(""))
	req.Header.Set(XSRFHeader, tokens.Value())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestXSRFMiddleware_WrongHeaderRejected(t *testing.T) {
	tokens := NewTokenStore()
	handler := Middleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader(""))
	req.Header.Set(XSRFHeader, "wrong-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestXSRFMiddleware_FormBodyFallback(t *testing.T) {
	tokens := NewTokenStore()
	var receivedBody string
	handler := Middleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(body)
		receivedBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	form := "name=Checking&_xsrf_token=" + tokens.Value()
	req := httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, receivedBody, "name=Checking")
}

func TestXSRFMiddleware_MultipartRequiresHeader(t *testing.T) {
	tokens := NewTokenStore()
	handler := Middleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/import/upload", strings.NewReader("--boundary--"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=boundary")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestXSRFMiddleware_NonMutatingMethodsPassThrough(t *testing.T) {
	tokens := NewTokenStore()
	handler := Middleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGatekeeper_RequireSession_UnauthenticatedBypassesCheck(t *testing.T) {
	g := New(UnauthenticatedMagic, false)
	handler := g.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGatekeeper_LoginHandler_RejectsAfterLockout(t *testing.T) {
	hash := encodeTestHash("s3cret", 19*1024, 2, 1)
	g := New(hash, false)

	for i := 0; i < maxLoginAttempts; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("password=wrong"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Real-Ip", "198.51.100.9")
		rec := httptest.NewRecorder()
		g.LoginHandler(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("password=s3cret"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Real-Ip", "198.51.100.9")
	rec := httptest.NewRecorder()
	g.LoginHandler(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestGatekeeper_LoginHandler_SuccessSetsCookieAndRotatesXSRF(t *testing.T) {
	hash := encodeTestHash("s3cret", 19*1024, 2, 1)
	g := New(hash, false)
	previousXSRF := g.XSRF.Value()

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("password=s3cret"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	g.LoginHandler(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, g.Sessions.Valid(cookies[0].Value))
	assert.NotEqual(t, previousXSRF, g.XSRF.Value())
}

func TestLoginRateLimiter_WindowExpiry(t *testing.T) {
	l := NewLoginRateLimiter()
	ip := "203.0.113.9"
	l.mu.Lock()
	l.attempts[ip] = attemptRecord{count: maxLoginAttempts, firstFail: time.Now().Add(-2 * loginWindow)}
	l.mu.Unlock()

	assert.False(t, l.LockedOut(ip))
}

// Package auth implements the single-password login: a shared password is
// exchanged for a signed session token carried in an HttpOnly cookie.
package auth

import (
	"net/http"
	"time"
)

// CookieName is the session cookie.
const CookieName = "auth_token"

// DefaultSessionTTL is how long a login lasts.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Authenticator combines the password check with session tokens.
type Authenticator struct {
	passwords    *PasswordChecker
	tokens       *JWTManager
	secureCookie bool
}

// NewAuthenticator creates an Authenticator. secureCookie marks cookies
// Secure, which production deployments behind TLS want.
func NewAuthenticator(passwords *PasswordChecker, tokens *JWTManager, secureCookie bool) *Authenticator {
	return &Authenticator{passwords: passwords, tokens: tokens, secureCookie: secureCookie}
}

// Login checks the password and issues a session token.
func (a *Authenticator) Login(password string) (string, *Session, error) {
	if err := a.passwords.Check(password); err != nil {
		return "", nil, err
	}
	return a.tokens.Generate()
}

// Verify validates a session token.
func (a *Authenticator) Verify(token string) (*Session, error) {
	return a.tokens.Validate(token)
}

// SessionCookie builds the cookie carrying token until the session expires.
func (a *Authenticator) SessionCookie(token string, session *Session) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   a.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie builds a cookie that removes the session cookie.
func (a *Authenticator) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// TokenFromHeader extracts the session token from a Cookie header set, or
// from a Bearer Authorization header for API clients.
func TokenFromHeader(h http.Header) string {
	for _, line := range h.Values("Cookie") {
		cookies, err := http.ParseCookie(line)
		if err != nil {
			continue
		}
		for _, c := range cookies {
			if c.Name == CookieName && c.Value != "" {
				return c.Value
			}
		}
	}
	const prefix = "Bearer "
	if v := h.Get("Authorization"); len(v) > len(prefix) && v[:len(prefix)] == prefix {
		return v[len(prefix):]
	}
	return ""
}

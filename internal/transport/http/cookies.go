package http

import (
	"net/http"
	"time"

	"github.com/AtoyanMikhail/tasks-auth/internal/config"
	"github.com/AtoyanMikhail/tasks-auth/internal/session"
)

// cookieJar writes tokens as httpOnly, SameSite=Strict cookies that live
// exactly as long as the token inside them.
type cookieJar struct {
	cfg config.CookieConfig
	now func() time.Time
}

func (c cookieJar) setPair(w http.ResponseWriter, pair *session.TokenPair) {
	c.set(w, c.cfg.AccessName, pair.AccessToken, pair.AccessExpiresAt)
	c.set(w, c.cfg.RefreshName, pair.RefreshToken, pair.RefreshExpiresAt)
}

func (c cookieJar) set(w http.ResponseWriter, name, value string, expiresAt time.Time) {
	maxAge := int(expiresAt.Sub(c.now()).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.cfg.Path,
		Domain:   c.cfg.Domain,
		Expires:  expiresAt.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c cookieJar) clear(w http.ResponseWriter) {
	for _, name := range []string{c.cfg.AccessName, c.cfg.RefreshName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     c.cfg.Path,
			Domain:   c.cfg.Domain,
			Expires:  time.Unix(0, 0).UTC(),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   c.cfg.Secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func (c cookieJar) refresh(r *http.Request) string {
	return c.value(r, c.cfg.RefreshName)
}

func (c cookieJar) access(r *http.Request) string {
	return c.value(r, c.cfg.AccessName)
}

func (c cookieJar) value(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

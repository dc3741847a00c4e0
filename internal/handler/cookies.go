package handler

import (
	"net/http"
	"time"

	"github.com/hitoshi/summit/internal/middleware"
	"github.com/hitoshi/summit/internal/model"
)

// CookieConfig はセッションCookieの属性。
type CookieConfig struct {
	Domain string
	Secure bool
}

// setSession はセッションの有効期限に合わせたHTTP Only Cookieを設定する。
func (c CookieConfig) setSession(w http.ResponseWriter, session *model.Session) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSession はセッションCookieを削除する。
func (c CookieConfig) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

package security

import (
	"net/http"

	"bildung/internal/platform/config"

	"github.com/gorilla/securecookie"
)

// SessionCookieName is the cookie carrying the encrypted session token.
const SessionCookieName = "session_id"

var cookieCodec *securecookie.SecureCookie

// InitCookies sets up the authenticated-encryption codec for session cookies.
func InitCookies() {
	cookieCodec = securecookie.New(config.AppConfig.CookieHashKey, config.AppConfig.CookieBlockKey)
	cookieCodec.MaxAge(int(config.AppConfig.SessionExpiry.Seconds()))
}

// SetSessionCookie stores the session token in a signed+encrypted cookie.
func SetSessionCookie(w http.ResponseWriter, token string) error {
	encoded, err := cookieCodec.Encode(SessionCookieName, token)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ReadSessionCookie extracts and decrypts the session token from the request.
// A missing or undecodable cookie yields ok=false.
func ReadSessionCookie(r *http.Request) (token string, ok bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", false
	}
	if err := cookieCodec.Decode(SessionCookieName, cookie.Value, &token); err != nil {
		return "", false
	}
	return token, true
}

// ClearSessionCookie removes the session cookie from the client.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

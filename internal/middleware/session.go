// Package middleware provides HTTP middleware and the authentication layer
// for the capture service.
package middleware

import (
	"fmt"
	"hash/crc32"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/formrelay/capture_layer/internal/errors"
)

// sessionTTL bounds how long an authenticated admin session stays valid
// without re-entering credentials.
const sessionTTL = 12 * time.Hour

// Sessions mints and verifies the signed session cookies issued after a
// successful basic-auth exchange. The cookie claims bind the username to a
// per-capture identity hash so concurrent captures never share a session.
type Sessions struct {
	secret []byte
	now    func() time.Time
}

// NewSessions creates a session manager signing with secret.
func NewSessions(secret string) (*Sessions, error) {
	if secret == "" {
		return nil, errors.Configuration("session secret is not configured")
	}
	return &Sessions{secret: []byte(secret), now: time.Now}, nil
}

type sessionClaims struct {
	Capture string `json:"capture"`
	jwt.RegisteredClaims
}

// captureID derives the stable per-capture identity hash used in cookie
// names and claims.
func captureID(name string) string {
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(name)))
}

func cookieName(name string) string {
	return "capture_sess_" + captureID(name)
}

// Issue sets a session cookie for username on the given capture.
func (s *Sessions) Issue(w http.ResponseWriter, captureName, username string) error {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Capture: captureID(captureName),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return errors.Wrap(errors.KindAuthentication, "unable to issue session", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName(captureName),
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  now.Add(sessionTTL),
	})
	return nil
}

// User returns the authenticated username carried by the request's session
// cookie for the given capture, if the cookie is present and valid.
func (s *Sessions) User(r *http.Request, captureName string) (string, bool) {
	cookie, err := r.Cookie(cookieName(captureName))
	if err != nil {
		return "", false
	}

	var claims sessionClaims
	token, err := jwt.ParseWithClaims(cookie.Value, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return "", false
	}
	if claims.Capture != captureID(captureName) {
		return "", false
	}
	return claims.Subject, true
}

// Clear expires the session cookie for the given capture.
func (s *Sessions) Clear(w http.ResponseWriter, captureName string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName(captureName),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

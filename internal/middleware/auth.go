package middleware

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/formrelay/capture_layer/internal/logging"
)

// authRealm is the challenge realm presented to unauthenticated clients.
const authRealm = "Email Registration Management"

// BasicAuth authenticates protected capture actions with HTTP Basic
// credentials. Credentials are checked against the per-capture user table
// unioned with the global table; a success is cached in a per-capture
// session cookie.
type BasicAuth struct {
	global   map[string]string
	sessions *Sessions
	log      *logging.Logger
}

// NewBasicAuth creates the authenticator. globalUsers maps usernames to
// password hashes applied to every capture.
func NewBasicAuth(globalUsers map[string]string, sessions *Sessions, log *logging.Logger) *BasicAuth {
	if log == nil {
		log = logging.NewNop()
	}
	return &BasicAuth{global: globalUsers, sessions: sessions, log: log}
}

// Require authenticates the request for the named capture. It returns the
// username on success. On failure it writes a 401 challenge and halts; the
// caller must not run any handler logic. The response never reveals
// whether the capture or action exists.
func (a *BasicAuth) Require(w http.ResponseWriter, r *http.Request, captureName string, users map[string]string) (string, bool) {
	if a.sessions != nil {
		if username, ok := a.sessions.User(r, captureName); ok {
			return username, true
		}
	}

	username, password, ok := r.BasicAuth()
	if ok && a.validate(username, password, users) {
		if a.sessions != nil {
			if err := a.sessions.Issue(w, captureName, username); err != nil {
				a.log.WithContext(r.Context()).WithError(err).Warn("unable to issue session cookie")
			}
		}
		a.log.WithContext(r.Context()).WithField("user", username).Debug("authentication successful")
		return username, true
	}

	w.Header().Set("WWW-Authenticate", `Basic realm="`+authRealm+`"`)
	http.Error(w, "This action requires you to be authenticated.", http.StatusUnauthorized)
	return "", false
}

// Logout clears the session marker for the named capture.
func (a *BasicAuth) Logout(w http.ResponseWriter, captureName string) {
	if a.sessions != nil {
		a.sessions.Clear(w, captureName)
	}
}

// validate checks username/password against the per-capture table unioned
// with the global table. Passwords are stored as irreversible hashes:
// bcrypt, or legacy md5 hex.
func (a *BasicAuth) validate(username, password string, users map[string]string) bool {
	if username == "" || password == "" {
		return false
	}

	hash, ok := users[username]
	if !ok {
		hash, ok = a.global[username]
	}
	if !ok || hash == "" {
		return false
	}

	if strings.HasPrefix(hash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
	sum := md5.Sum([]byte(password))
	return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(strings.ToLower(hash))) == 1
}

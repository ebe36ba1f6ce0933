package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/seoulfie/drivegallery/internal/metrics"
)

const (
	sessionCookie = "gallery_session"
	sessionTTL    = 12 * time.Hour
)

// Auth gates the gallery behind a single shared password. The stored value
// is a bcrypt hash; a successful login issues a signed session cookie.
type Auth struct {
	passwordHash []byte
	jwtSecret    []byte
}

// NewAuth creates the password gate. Returns nil if no hash is configured,
// which leaves the gallery open.
func NewAuth(passwordHash, jwtSecret string) *Auth {
	if passwordHash == "" {
		return nil
	}
	return &Auth{
		passwordHash: []byte(passwordHash),
		jwtSecret:    []byte(jwtSecret),
	}
}

// HandleLogin verifies the password and sets the session cookie.
func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(req.Password)); err != nil {
		metrics.RecordAuthAttempt(false)
		sendError(w, http.StatusUnauthorized, "wrong password")
		return
	}
	metrics.RecordAuthAttempt(true)

	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
	})
	signed, err := tok.SignedString(a.jwtSecret)
	if err != nil {
		sendError(w, http.StatusInternalServerError, "session token: "+err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	sendJSON(w, map[string]bool{"ok": true})
}

// valid reports whether the request carries a live session cookie.
func (a *Auth) valid(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	_, err = jwt.Parse(c.Value, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	return err == nil
}

// Middleware rejects API requests without a valid session. A nil *Auth
// passes everything through.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	if a == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.valid(r) {
			sendError(w, http.StatusUnauthorized, "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Package session issues and verifies the signed session cookie and carries
// one-shot flash messages across redirects.
//
// The session cookie holds an HS256 JWT whose subject is the user id and whose
// "ver" claim is the user's session version at login. Bumping the version on
// the server invalidates every cookie issued before.
package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/PressureTank/watchlist/backend/common"
)

// FlashCookieName is the cookie holding pending flash messages.
const FlashCookieName = "watchlist_flash"

// Config controls how session cookies are issued.
type Config struct {
	Secret     []byte
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Claims is the JWT payload of a session cookie.
type Claims struct {
	jwt.RegisteredClaims
	Version int64 `json:"ver"`
}

// UserID returns the user id carried in the subject claim.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// Manager issues, reads and clears session and flash cookies.
type Manager struct {
	cfg Config
	now func() time.Time
}

// NewManager creates a Manager for the given cookie settings.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, now: time.Now}
}

// Issue signs a session for userID at the given session version and sets it on w.
func (m *Manager) Issue(w http.ResponseWriter, userID, version int64) error {
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.TTL)),
		},
		Version: version,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.Secret)
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read verifies the session cookie on r and returns its claims.
// Any missing, malformed, expired or foreign-signed cookie yields common.ErrUnauthenticated.
func (m *Manager) Read(r *http.Request) (*Claims, error) {
	c, err := r.Cookie(m.cfg.CookieName)
	if err != nil || c.Value == "" {
		return nil, common.ErrUnauthenticated
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(c.Value, claims, func(t *jwt.Token) (interface{}, error) {
		return m.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", common.ErrUnauthenticated, err)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: bad subject", common.ErrUnauthenticated)
	}
	return claims, nil
}

// Clear expires the session cookie. Clearing an absent session is a no-op for the client.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Flash adds msg to the messages already pending on r and stores them for
// the next rendered page.
func (m *Manager) Flash(w http.ResponseWriter, r *http.Request, msg string) {
	data, err := json.Marshal(append(m.pending(r), msg))
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlashes returns the pending flash messages and clears them.
// It must be called before the response header is written.
func (m *Manager) PopFlashes(w http.ResponseWriter, r *http.Request) []string {
	msgs := m.pending(r)
	if msgs == nil {
		if _, err := r.Cookie(FlashCookieName); err != nil {
			return nil
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return msgs
}

// pending decodes the flash cookie on r. A missing or corrupt cookie yields nil.
func (m *Manager) pending(r *http.Request) []string {
	c, err := r.Cookie(FlashCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	data, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var msgs []string
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil
	}
	return msgs
}

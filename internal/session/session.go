package session

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"konterku/engine/internal/domain"
)

// Session carries the authenticated caller's bearer token and the backend
// base URL. It is passed explicitly into every component that talks to the
// backend instead of being read from ambient global state.
type Session struct {
	baseURL string
	token   string
	now     func() time.Time
}

func New(baseURL string, token string) *Session {
	return &Session{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		now:     time.Now,
	}
}

func (s *Session) BaseURL() string {
	return s.baseURL
}

func (s *Session) Token() string {
	return s.token
}

// Validate fails fast before a network call is attempted. When the token is a
// JWT its expiry claim is inspected locally; the client never holds the
// signing secret, so the parse is unverified and serves only to avoid sending
// requests that are guaranteed to bounce. Opaque tokens skip the check and
// are left for the server to judge.
func (s *Session) Validate() error {
	if s.token == "" {
		return domain.ErrSessionExpired
	}

	claims := jwtlib.MapClaims{}
	parser := jwtlib.NewParser()
	if _, _, err := parser.ParseUnverified(s.token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if s.now().After(exp.Time) {
		return domain.ErrSessionExpired
	}
	return nil
}

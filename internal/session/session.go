package session

import (
	"time"

	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// State is a step in the store's lifecycle
type State int

const (
	StateInit State = iota
	StateAuthenticated
	StateUnauthenticated
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateDisposed:
		return "disposed"
	}
	return "unknown"
}

// Session is an authenticated identity and its credential
type Session struct {
	Identity models.User `json:"identity"`
	Token    string      `json:"token"`
	Expiry   time.Time   `json:"expiry"`
}

// Expired reports whether the credential is past its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return !s.Expiry.IsZero() && !now.Before(s.Expiry)
}

func (s *Session) valid(now time.Time) bool {
	if s == nil || s.Token == "" || s.Expiry.IsZero() {
		return false
	}
	if _, ok := models.ParseRole(string(s.Identity.Role)); !ok {
		return false
	}
	return !s.Expired(now)
}

// tokenExpiry reads the exp claim without verifying the signature. The
// client cannot verify it and only uses it to schedule local expiry.
func tokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

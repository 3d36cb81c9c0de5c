// ABOUTME: Tagged scope value for experiment attribution
// ABOUTME: Wraps user IDs and anonymous tokens behind a single Key projection

package scope

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// Scope identifies the visitor an event is attributed to. The zero value is
// an empty scope, which tracking treats as "do not record".
type Scope struct {
	kind   kind
	userID string
	token  string
}

type kind int

const (
	kindEmpty kind = iota
	kindUser
	kindToken
)

// User returns a scope for an authenticated user.
func User(id string) Scope {
	if id == "" {
		return Scope{}
	}
	return Scope{kind: kindUser, userID: id}
}

// Token returns a scope for an anonymous visitor token.
func Token(value string) Scope {
	if value == "" {
		return Scope{}
	}
	return Scope{kind: kindToken, token: value}
}

// IsZero reports whether the scope is empty.
func (s Scope) IsZero() bool {
	return s.kind == kindEmpty
}

// IsUser reports whether the scope belongs to an authenticated user.
func (s Scope) IsUser() bool {
	return s.kind == kindUser
}

// Key returns the stable string identifier used in cache keys and lookups.
func (s Scope) Key() string {
	switch s.kind {
	case kindUser:
		return "user-" + s.userID
	case kindToken:
		return "token-" + s.token
	default:
		return ""
	}
}

// GenerateToken produces a new anonymous visitor token. The value combines a
// time-seeded component with a random suffix so collisions are implausible
// even across restarts.
func GenerateToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails on a broken platform; fall back to time alone
		return "ab_" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return "ab_" + strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + hex.EncodeToString(b)
}

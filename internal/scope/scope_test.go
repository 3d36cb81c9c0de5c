// ABOUTME: Tests for scope values and token generation
// ABOUTME: Covers key projection, zero handling, and token uniqueness

package scope

import (
	"strings"
	"testing"
)

func TestScopeKey(t *testing.T) {
	if got := User("42").Key(); got != "user-42" {
		t.Errorf("User key = %q, want user-42", got)
	}
	if got := Token("ab_xyz").Key(); got != "token-ab_xyz" {
		t.Errorf("Token key = %q, want token-ab_xyz", got)
	}
	if got := (Scope{}).Key(); got != "" {
		t.Errorf("zero scope key = %q, want empty", got)
	}
}

func TestScopeZero(t *testing.T) {
	if !(Scope{}).IsZero() {
		t.Error("zero scope should report IsZero")
	}
	if User("1").IsZero() {
		t.Error("user scope should not report IsZero")
	}
	if Token("t").IsZero() {
		t.Error("token scope should not report IsZero")
	}

	// Empty identifiers stay zero
	if !User("").IsZero() {
		t.Error("user scope with empty id should be zero")
	}
	if !Token("").IsZero() {
		t.Error("token scope with empty value should be zero")
	}
}

func TestGenerateToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := GenerateToken()
		if !strings.HasPrefix(token, "ab_") {
			t.Fatalf("token %q missing ab_ prefix", token)
		}
		if seen[token] {
			t.Fatalf("duplicate token generated: %q", token)
		}
		seen[token] = true
	}
}

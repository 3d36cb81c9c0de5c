// ABOUTME: Package documentation for visitor scope resolution
// ABOUTME: Explains the scope model and the abid cookie lifecycle

// Package scope resolves the stable identity key that views and conversions
// are attributed to.
//
// A scope is either an authenticated user (keyed "user-<id>") or an anonymous
// visitor token (keyed "token-<value>"). The HTTP middleware reads the token
// from the abid cookie, generates one when missing, and persists it for about
// a year so repeat visits resolve to the same scope. When an authenticated
// user shows up carrying an anonymous token but has none stored, the token is
// promoted onto the user so prior anonymous activity links forward.
package scope

// Package auth covers identity on both sides of the API: verifiers that turn
// a bearer token into a user id on the server, and providers that sign a user
// in, report auth-state changes and hand out ID tokens on the client.
package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNoUser is returned when a token is requested while signed out.
	ErrNoUser = errors.New("auth: no signed-in user")
	// ErrInvalidToken is returned by verifiers for unusable tokens.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// User is the signed-in identity.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Label is what screens show for the user.
func (u *User) Label() string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Email != "" {
		return u.Email
	}
	return u.UID
}

// Credentials are what a provider needs to sign in.
type Credentials struct {
	Email       string
	Password    string
	DisplayName string
}

// Provider is the client-side identity provider.
type Provider interface {
	// Subscribe registers fn for auth-state changes. fn is first called,
	// asynchronously, with the current state. The returned func unsubscribes.
	Subscribe(fn func(*User)) (unsubscribe func())
	// CurrentUser returns the signed-in user or nil.
	CurrentUser() *User
	// IDToken returns a bearer token for the current user, refreshing it
	// when forceRefresh is set or it has expired.
	IDToken(ctx context.Context, forceRefresh bool) (string, error)
	SignIn(ctx context.Context, creds Credentials) (*User, error)
	SignOut(ctx context.Context) error
}

// Verifier is the server-side token check.
type Verifier interface {
	// Verify returns the user id the token was issued for.
	Verify(ctx context.Context, token string) (string, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

package identity

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var ErrNoIdentity = errors.New("no identity in context")

// Identity is the authenticated caller as seen by the session layer.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// Provider supplies the identity of the current caller.
type Provider interface {
	Current(ctx context.Context) (Identity, error)
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// Static always returns the same identity. The websocket gateway builds one per connection.
type Static Identity

func (s Static) Current(ctx context.Context) (Identity, error) {
	if s.UserID == "" {
		return Identity{}, ErrNoIdentity
	}
	return Identity(s), nil
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext reads the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}

// ContextProvider resolves the caller from the request context.
type ContextProvider struct{}

func (ContextProvider) Current(ctx context.Context) (Identity, error) {
	return FromContext(ctx)
}

// FallbackName picks a display name: the explicit name, else the local part of
// the email, else "user-" plus the first 8 characters of the user id.
func FallbackName(userID, name, email string) string {
	if n := strings.TrimSpace(name); n != "" {
		return norm.NFC.String(n)
	}
	if local, _, ok := strings.Cut(strings.TrimSpace(email), "@"); ok && local != "" {
		return norm.NFC.String(local)
	}
	id := userID
	if len(id) > 8 {
		id = id[:8]
	}
	return "user-" + id
}

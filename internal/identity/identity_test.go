package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackName(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		given  string
		email  string
		want   string
	}{
		{name: "explicit name wins", userID: "u1", given: "  Ana ", email: "ana@example.com", want: "Ana"},
		{name: "email local part", userID: "u1", email: "singer@example.com", want: "singer"},
		{name: "short id", userID: "abc", want: "user-abc"},
		{name: "long id truncated", userID: "0123456789abcdef", want: "user-01234567"},
		{name: "email without at sign ignored", userID: "abcdefghij", email: "nobody", want: "user-abcdefgh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FallbackName(tt.userID, tt.given, tt.email))
		})
	}
}

func TestFallbackNameNormalizesToNFC(t *testing.T) {
	decomposed := "Jose\u0301"
	assert.Equal(t, "Jos\u00e9", FallbackName("u", decomposed, ""))
}

func TestContextProvider(t *testing.T) {
	_, err := ContextProvider{}.Current(context.Background())
	require.ErrorIs(t, err, ErrNoIdentity)

	ctx := WithIdentity(context.Background(), Identity{UserID: "u1", DisplayName: "Ana"})
	id, err := ContextProvider{}.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ana", id.DisplayName)
}

func TestStaticProvider(t *testing.T) {
	id, err := Static{UserID: "u1", DisplayName: "Ana"}.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", DisplayName: "Ana"}, id)

	_, err = Static{}.Current(context.Background())
	require.ErrorIs(t, err, ErrNoIdentity)
}

func TestJWTVerifierRoundTrip(t *testing.T) {
	v := NewJWTVerifier("secret")
	token, err := v.Sign("user-42", "", "karaoke@example.com", time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", id.UserID)
	assert.Equal(t, "karaoke", id.DisplayName)
}

func TestJWTVerifierRejects(t *testing.T) {
	v := NewJWTVerifier("secret")

	other := NewJWTVerifier("other")
	foreign, err := other.Sign("u1", "x", "", time.Hour)
	require.NoError(t, err)

	expired, err := v.Sign("u1", "x", "", -time.Minute)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"name": "x"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"wrong secret": foreign,
		"expired":      expired,
		"missing sub":  noSubject,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

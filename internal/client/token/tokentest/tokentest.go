// Package tokentest mints signed tokens shaped like the backend's for tests.
package tokentest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var secret = []byte("test-signing-key")

// Options describe the claims of a minted token.
type Options struct {
	UserID    any
	Username  string
	Email     string
	TeacherID any
	TokenType string
	ExpiresAt time.Time
}

// Mint returns a HS256 token with the given claims. A zero ExpiresAt leaves
// exp out of the token.
func Mint(t testing.TB, o Options) string {
	t.Helper()

	claims := jwt.MapClaims{}
	if o.UserID != nil {
		claims["user_id"] = o.UserID
	}
	if o.Username != "" {
		claims["username"] = o.Username
	}
	if o.Email != "" {
		claims["email"] = o.Email
	}
	if o.TeacherID != nil {
		claims["teacher_id"] = o.TeacherID
	}
	if o.TokenType != "" {
		claims["token_type"] = o.TokenType
	}
	if !o.ExpiresAt.IsZero() {
		claims["exp"] = o.ExpiresAt.Unix()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return signed
}

// Access mints an access token for userID expiring at exp.
func Access(t testing.TB, userID any, exp time.Time) string {
	t.Helper()
	return Mint(t, Options{UserID: userID, Username: "student", TeacherID: 0, TokenType: "access", ExpiresAt: exp})
}

// Refresh mints a refresh token for userID expiring at exp.
func Refresh(t testing.TB, userID any, exp time.Time) string {
	t.Helper()
	return Mint(t, Options{UserID: userID, TokenType: "refresh", ExpiresAt: exp})
}

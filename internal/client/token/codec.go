package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrDecode is returned for any token that cannot be turned into Claims.
var ErrDecode = errors.New("token decode failed")

var parser = jwt.NewParser()

// Decode extracts Claims from raw without verifying its signature.
func Decode(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrDecode)
	}

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return claims, nil
}

// IsExpired reports whether raw is unusable at now. Empty, malformed and
// exp-less tokens count as expired. A token is expired when exp < now.
func IsExpired(raw string, now time.Time) bool {
	claims, err := Decode(raw)
	if err != nil {
		return true
	}
	return claims.ExpiredAt(now)
}

// ExpiredAt applies the expiry rule to already decoded claims.
func (c *Claims) ExpiredAt(now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return true
	}
	exp := float64(c.ExpiresAt.Unix())
	return exp < float64(now.UnixNano())/float64(time.Second)
}

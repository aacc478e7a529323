package cart

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf16"
)

// IDLength is the number of digits in a cart id.
const IDLength = 10

// UserCartID derives the cart id of a logged in user. The same user id
// always yields the same id: a 31-multiplier hash over the UTF-16 code units
// of userID with 32-bit wrap-around, made non-negative and fitted to
// IDLength digits.
func UserCartID(userID string) string {
	var h int32
	for _, unit := range utf16.Encode([]rune(userID)) {
		h = h*31 + int32(unit)
	}

	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}

	s := strconv.FormatInt(abs, 10)
	if len(s) < IDLength {
		s = strings.Repeat("0", IDLength-len(s)) + s
	}
	return s[:IDLength]
}

// RandomCartID returns IDLength uniformly random digits read from r.
// A nil r uses crypto/rand.
func RandomCartID(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	ten := big.NewInt(10)

	var b strings.Builder
	b.Grow(IDLength)
	for i := 0; i < IDLength; i++ {
		d, err := rand.Int(r, ten)
		if err != nil {
			return "", fmt.Errorf("generate cart id: %w", err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// Valid reports whether a stored cart id is usable. Values written by
// broken serialisation ("null", "undefined") and empty values are not.
func Valid(id string) bool {
	switch strings.TrimSpace(id) {
	case "", "null", "undefined":
		return false
	}
	return true
}

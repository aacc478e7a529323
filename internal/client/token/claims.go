// Package token decodes access and refresh tokens issued by the EduMarket
// backend. Signatures are not verified here; the backend does that. Decoded
// claims are only used to drive client-side session decisions.
package token

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// FlexID is an identifier that the backend may encode as a JSON number or a
// JSON string. It is kept in its decimal string form.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*f = FlexID(strconv.FormatInt(i, 10))
		return nil
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string { return string(f) }

// Claims are the identity fields carried by an access token.
type Claims struct {
	jwt.RegisteredClaims
	UserID    FlexID `json:"user_id"`
	Username  string `json:"username,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	Email     string `json:"email,omitempty"`
	TeacherID FlexID `json:"teacher_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
}

// IsTeacher reports whether the token belongs to an instructor. The backend
// issues teacher_id 0 for regular students.
func (c *Claims) IsTeacher() bool {
	if c == nil {
		return false
	}
	return c.TeacherID != "" && c.TeacherID != "0"
}

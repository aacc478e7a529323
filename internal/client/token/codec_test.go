package token

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/edumarket/internal/client/token/tokentest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Claims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := tokentest.Mint(t, tokentest.Options{
		UserID:    7,
		Username:  "ada",
		Email:     "ada@example.org",
		TeacherID: 3,
		TokenType: "access",
		ExpiresAt: exp,
	})

	c, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, FlexID("7"), c.UserID)
	assert.Equal(t, "ada", c.Username)
	assert.Equal(t, "ada@example.org", c.Email)
	assert.Equal(t, FlexID("3"), c.TeacherID)
	assert.Equal(t, "access", c.TokenType)
	assert.Equal(t, exp.Unix(), c.ExpiresAt.Unix())
	assert.True(t, c.IsTeacher())
}

func TestDecode_Malformed(t *testing.T) {
	for _, raw := range []string{"", "   ", "not-a-token", "a.b", "a.b.c", "eyJhbGciOiJIUzI1NiJ9.%%%.sig"} {
		t.Run(raw, func(t *testing.T) {
			c, err := Decode(raw)
			require.ErrorIs(t, err, ErrDecode)
			assert.Nil(t, c)
		})
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{name: "past", raw: tokentest.Access(t, 1, now.Add(-time.Second)), want: true},
		{name: "long past", raw: tokentest.Access(t, 1, now.Add(-48*time.Hour)), want: true},
		{name: "future", raw: tokentest.Access(t, 1, now.Add(86400*time.Second)), want: false},
		{name: "no exp", raw: tokentest.Mint(t, tokentest.Options{UserID: 1}), want: true},
		{name: "empty", raw: "", want: true},
		{name: "garbage", raw: "x9f2-not-jwt", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExpired(tt.raw, now))
		})
	}
}

func TestExpiredAt_BoundaryIsNotExpired(t *testing.T) {
	exp := time.Unix(1_700_000_000, 0)
	c, err := Decode(tokentest.Access(t, 1, exp))
	require.NoError(t, err)

	assert.False(t, c.ExpiredAt(exp), "exp == now is still usable")
	assert.True(t, c.ExpiredAt(exp.Add(time.Millisecond)))
	assert.False(t, c.ExpiredAt(exp.Add(-time.Second)))
}

func TestIsTeacher(t *testing.T) {
	var nilClaims *Claims
	assert.False(t, nilClaims.IsTeacher())
	assert.False(t, (&Claims{}).IsTeacher())
	assert.False(t, (&Claims{TeacherID: "0"}).IsTeacher())
	assert.True(t, (&Claims{TeacherID: "12"}).IsTeacher())
}

func TestFlexID_Unmarshal(t *testing.T) {
	var v struct {
		A FlexID `json:"a"`
		B FlexID `json:"b"`
		C FlexID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 42, "b": "u-9", "c": null}`), &v))
	assert.Equal(t, FlexID("42"), v.A)
	assert.Equal(t, FlexID("u-9"), v.B)
	assert.Equal(t, FlexID(""), v.C)
}

package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := Cursor{
		V:   1,
		Sid: "session-123",
		Dv:  4,
		Off: 20,
		Ps:  10,
		Sf:  "Sales",
		Sd:  Desc,
		Iat: 1700000000,
	}

	token, err := Encode(c)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, c, *got)
}

func TestEncodeDefaults(t *testing.T) {
	token, err := Encode(Cursor{Sid: "s", Ps: 10})
	require.NoError(t, err)

	got, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, 1, got.V)
	assert.NotZero(t, got.Iat)
	assert.Empty(t, got.Sf)
}

func TestEncodeRejectsInvalid(t *testing.T) {
	cases := []Cursor{
		{Ps: 10},                           // missing sid
		{Sid: "s"},                         // ps <= 0
		{Sid: "s", Ps: 10, Off: -1},        // negative offset
		{Sid: "s", Ps: 10, Sd: "sideways"}, // bad direction
	}
	for _, c := range cases {
		_, err := Encode(c)
		require.Error(t, err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "   ", "!!not-base64!!", "aGVsbG8"} {
		_, err := Decode(token)
		require.Error(t, err, token)
	}
}

func TestNextOffset(t *testing.T) {
	assert.Equal(t, 30, NextOffset(20, 10))
	assert.Equal(t, 20, NextOffset(20, 0))
	assert.Equal(t, 10, NextOffset(-5, 10))
}

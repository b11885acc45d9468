package repository

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	key := cursorKey{
		createdAt: time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC),
		id:        uuid.New(),
	}

	got, err := decodeCursor(encodeCursor(key))
	require.NoError(t, err)

	assert.True(t, key.createdAt.Equal(got.createdAt), "createdAt: want %s, got %s", key.createdAt, got.createdAt)
	assert.Equal(t, key.id, got.id)
}

func TestCursorRoundTrip_MicrosecondPrecision(t *testing.T) {
	// Sub-microsecond digits are not representable in the cursor; timestamps
	// from PostgreSQL are microsecond-precise already, so nothing is lost.
	key := cursorKey{createdAt: time.UnixMicro(1767225599999999).UTC(), id: uuid.New()}

	got, err := decodeCursor(encodeCursor(key))
	require.NoError(t, err)
	assert.Equal(t, key.createdAt.UnixMicro(), got.createdAt.UnixMicro())
}

func TestDecodeCursor_Malformed(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"not base64", "!!not-base64!!"},
		{"no separator", encode("1712345678")},
		{"bad timestamp", encode("abc|" + uuid.NewString())},
		{"bad uuid", encode("1712345678|not-a-uuid")},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeCursor(tc.in)
			assert.ErrorIs(t, err, errBadCursor)
		})
	}
}

func encode(raw string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, 500: MaxLimit}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeLimit(in), "limit %d", in)
	}
	assert.Equal(t, 11, LimitWithBuffer(10))
}

type row struct {
	id string
	at time.Time
}

func rowKey(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

func TestSplit(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := []row{{"c", base.Add(2 * time.Minute)}, {"b", base.Add(time.Minute)}, {"a", base}}

	page, next := Split(rows, 2, rowKey)
	require.NotNil(t, next)
	assert.Len(t, page, 2)
	assert.Equal(t, "b", next.ID)
	assert.True(t, next.CreatedAt.Equal(base.Add(time.Minute)))

	page, next = Split(rows[:2], 2, rowKey)
	assert.Nil(t, next)
	assert.Len(t, page, 2)
}

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 123, time.UTC)

	got, err := ParseCursor(EncodeCursor(Cursor{CreatedAt: at, ID: "42|x"}))
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(at))
	assert.Equal(t, "42|x", got.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	c, err := ParseCursor("  ")
	assert.Nil(t, c)
	assert.NoError(t, err)

	for _, bad := range []string{"!!!", encodeRaw("not json"), encodeRaw(`{"t":0,"i":"1"}`), encodeRaw(`{"t":5}`)} {
		_, err := ParseCursor(bad)
		assert.Error(t, err, "cursor %q", bad)
	}
}

func encodeRaw(payload string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

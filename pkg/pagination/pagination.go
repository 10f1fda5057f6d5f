// Package pagination implements keyset paging over (created_at, id) ordered
// rows with opaque client cursors.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Cursor is the key of the last row a client has seen.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

type wireCursor struct {
	At int64  `json:"t"`
	ID string `json:"i"`
}

// NormalizeLimit clamps limit into [1, MaxLimit], using DefaultLimit when unset.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// LimitWithBuffer asks for one extra row so callers can tell whether a next
// page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Split trims rows fetched with LimitWithBuffer to the page size and returns
// the cursor of the page's last row when more rows remain.
func Split[T any](rows []T, limit int, key func(T) Cursor) ([]T, *Cursor) {
	size := NormalizeLimit(limit)
	if len(rows) <= size {
		return rows, nil
	}
	page := rows[:size]
	next := key(page[size-1])
	return page, &next
}

func EncodeCursor(cursor Cursor) string {
	raw, _ := json.Marshal(wireCursor{At: cursor.CreatedAt.UTC().UnixNano(), ID: cursor.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor returns nil for a blank value.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var wire wireCursor
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	if wire.ID == "" || wire.At <= 0 {
		return nil, errors.New("cursor missing position")
	}
	return &Cursor{CreatedAt: time.Unix(0, wire.At).UTC(), ID: wire.ID}, nil
}

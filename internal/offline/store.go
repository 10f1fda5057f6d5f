package offline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrMiss is returned when a generation holds no entry for a key.
var ErrMiss = errors.New("cache miss")

// Entry is one stored response.
type Entry struct {
	Status     int         `json:"status"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"body"`
	CapturedAt time.Time   `json:"captured_at"`
}

// Store holds cache generations and the marker of the active one.
type Store interface {
	Put(ctx context.Context, generation, key string, entry Entry) error
	Match(ctx context.Context, generation, key string) (Entry, error)
	Generations(ctx context.Context) ([]string, error)
	DropGeneration(ctx context.Context, generation string) error
	SetActive(ctx context.Context, generation string) error
	Active(ctx context.Context) (string, error)
}

func encodeEntry(entry Entry) ([]byte, error) {
	return json.Marshal(entry)
}

func decodeEntry(data []byte) (Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, err
	}
	if entry.Status < 100 || entry.Status > 599 {
		return Entry{}, errors.New("cache entry has invalid status")
	}
	return entry, nil
}

var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// storableHeader drops headers that must not be replayed from cache.
func storableHeader(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		out = http.Header{}
	}
	removeHopHeaders(out)
	out.Del("Set-Cookie")
	out.Del("Content-Length")
	out.Del(HeaderCache)
	return out
}

func removeHopHeaders(h http.Header) {
	for _, name := range strings.Split(h.Get("Connection"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			h.Del(name)
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// Package offline intercepts every request the UI makes, applying a
// network-first policy to API calls and a cache-first policy to everything
// else, backed by versioned cache generations.
package offline

import (
	"net/http"
	"strings"
)

// Policy selects how an intercepted request is served.
type Policy string

const (
	PolicyNetworkFirst Policy = "network_first"
	PolicyCacheFirst   Policy = "cache_first"
	PolicyBypass       Policy = "bypass"
)

// Result values reported in the X-Vendorr-Cache header.
const (
	HeaderCache = "X-Vendorr-Cache"

	ResultHit      = "hit"
	ResultMiss     = "miss"
	ResultFallback = "fallback"
	ResultOffline  = "offline"
	ResultBypass   = "bypass"
)

// Classifier routes requests by path prefix.
type Classifier struct {
	apiPrefix string
}

// NewClassifier builds a classifier treating paths under apiPrefix as API calls.
func NewClassifier(apiPrefix string) Classifier {
	if apiPrefix == "" {
		apiPrefix = "/api/"
	}
	return Classifier{apiPrefix: apiPrefix}
}

// Classify picks the policy for r. API calls are always network-first; other
// GETs are cache-first and any other method passes straight through.
func (c Classifier) Classify(r *http.Request) Policy {
	if strings.HasPrefix(r.URL.Path, c.apiPrefix) {
		return PolicyNetworkFirst
	}
	if r.Method == http.MethodGet {
		return PolicyCacheFirst
	}
	return PolicyBypass
}

// Cacheable reports whether responses to r may be stored.
func Cacheable(r *http.Request) bool {
	return r.Method == http.MethodGet
}

// CacheKey normalises a request to method, path and sorted query.
func CacheKey(r *http.Request) string {
	return KeyFor(r.Method, r.URL.Path, r.URL.Query().Encode())
}

// KeyFor builds a cache key from its parts. query must already be canonical.
func KeyFor(method, path, query string) string {
	if path == "" {
		path = "/"
	}
	key := strings.ToUpper(method) + " " + path
	if query != "" {
		key += "?" + query
	}
	return key
}

// IsNavigation reports whether r is a page load rather than a subresource fetch.
func IsNavigation(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if mode := r.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return mode == "navigate"
	}
	return prefersHTML(r.Header.Get("Accept"))
}

func prefersHTML(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		switch mediaType {
		case "text/html", "application/xhtml+xml":
			return true
		case "":
			continue
		default:
			// the first listed type is the preferred one
			return false
		}
	}
	return false
}

package offline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vendorr/vendorr-edge/pkg/metrics"
)

// Upstream forwards intercepted requests to the backend origin. Every round
// trip, body included, is bounded by the configured timeout and a timeout
// counts as a network failure.
type Upstream struct {
	base    *url.URL
	client  *http.Client
	metrics *metrics.CacheMetrics
}

// NewUpstream builds a forwarder for baseURL.
func NewUpstream(baseURL string, timeout time.Duration, m *metrics.CacheMetrics) (*Upstream, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing upstream url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("upstream url %q must be absolute", baseURL)
	}
	return &Upstream{
		base:    parsed,
		client:  &http.Client{Timeout: timeout},
		metrics: m,
	}, nil
}

// Forward replays r against the backend.
func (u *Upstream) Forward(r *http.Request) (*http.Response, error) {
	target := *u.base
	target.Path = u.base.Path + r.URL.Path
	target.RawQuery = r.URL.RawQuery

	var body io.Reader
	if r.Body != nil && r.Body != http.NoBody {
		body = r.Body
	}
	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), body)
	if err != nil {
		return nil, err
	}
	out.Header = r.Header.Clone()
	removeHopHeaders(out.Header)
	out.ContentLength = r.ContentLength
	return u.do(out)
}

// Get fetches a path from the backend.
func (u *Upstream) Get(ctx context.Context, path string) (*http.Response, error) {
	target := *u.base
	target.Path = u.base.Path + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	return u.do(req)
}

func (u *Upstream) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := u.client.Do(req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	u.metrics.ObserveUpstream(outcome, time.Since(start))
	return resp, err
}

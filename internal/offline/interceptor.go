package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	pkgerrors "github.com/vendorr/vendorr-edge/pkg/errors"
	"github.com/vendorr/vendorr-edge/pkg/logger"
	"github.com/vendorr/vendorr-edge/pkg/metrics"
	"github.com/vendorr/vendorr-edge/pkg/types"
)

type cache interface {
	Serving() string
	Match(ctx context.Context, key string) (Entry, error)
	Put(ctx context.Context, key string, entry Entry) error
}

type forwarder interface {
	Forward(r *http.Request) (*http.Response, error)
}

// InterceptorConfig tunes the interceptor.
type InterceptorConfig struct {
	APIPrefix     string
	OfflinePage   string
	MaxEntryBytes int64
}

// Interceptor serves every request the UI makes that is not part of the
// control surface.
type Interceptor struct {
	classifier    Classifier
	cache         cache
	upstream      forwarder
	metrics       *metrics.CacheMetrics
	logg          *logger.Logger
	offlinePage   string
	maxEntryBytes int64
}

func NewInterceptor(c cache, upstream forwarder, cfg InterceptorConfig, m *metrics.CacheMetrics, logg *logger.Logger) *Interceptor {
	offlinePage := cfg.OfflinePage
	if offlinePage == "" {
		offlinePage = "/offline.html"
	}
	return &Interceptor{
		classifier:    NewClassifier(cfg.APIPrefix),
		cache:         c,
		upstream:      upstream,
		metrics:       m,
		logg:          logg,
		offlinePage:   offlinePage,
		maxEntryBytes: cfg.MaxEntryBytes,
	}
}

func (i *Interceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	policy := i.classifier.Classify(r)
	if i.cache.Serving() == "" {
		policy = PolicyBypass
	}

	var result string
	switch policy {
	case PolicyNetworkFirst:
		result = i.networkFirst(w, r)
	case PolicyCacheFirst:
		result = i.cacheFirst(w, r)
	default:
		result = i.bypass(w, r)
	}
	i.metrics.IncLookup(string(policy), result)
}

func (i *Interceptor) networkFirst(w http.ResponseWriter, r *http.Request) string {
	resp, err := i.upstream.Forward(r)
	if err == nil {
		if err = i.relay(w, r, resp, ResultMiss); err == nil {
			return ResultMiss
		}
	}
	i.warn(r.Context(), "api request failed, falling back to cache", err)

	if Cacheable(r) {
		entry, matchErr := i.cache.Match(r.Context(), CacheKey(r))
		if matchErr == nil {
			writeEntry(w, entry, entry.Status, ResultFallback)
			return ResultFallback
		}
		i.logMatchError(r.Context(), matchErr)
	}
	i.writeOffline(w, r)
	return ResultOffline
}

func (i *Interceptor) cacheFirst(w http.ResponseWriter, r *http.Request) string {
	entry, err := i.cache.Match(r.Context(), CacheKey(r))
	if err == nil {
		writeEntry(w, entry, entry.Status, ResultHit)
		return ResultHit
	}
	i.logMatchError(r.Context(), err)

	resp, err := i.upstream.Forward(r)
	if err == nil {
		if err = i.relay(w, r, resp, ResultMiss); err == nil {
			return ResultMiss
		}
	}
	i.warn(r.Context(), "asset fetch failed", err)

	if IsNavigation(r) {
		i.writeOffline(w, r)
		return ResultOffline
	}
	w.Header().Set(HeaderCache, ResultOffline)
	writeEnvelope(w, http.StatusBadGateway, pkgerrors.CodeUnreachable, "upstream unreachable")
	return ResultOffline
}

func (i *Interceptor) bypass(w http.ResponseWriter, r *http.Request) string {
	resp, err := i.upstream.Forward(r)
	if err != nil {
		i.warn(r.Context(), "pass-through request failed", err)
		w.Header().Set(HeaderCache, ResultBypass)
		writeEnvelope(w, http.StatusBadGateway, pkgerrors.CodeUnreachable, "upstream unreachable")
		return ResultBypass
	}
	defer resp.Body.Close()
	copyHeader(w.Header(), resp.Header)
	w.Header().Set(HeaderCache, ResultBypass)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
	return ResultBypass
}

// relay writes resp to w, storing a copy when it is a successful GET small
// enough to cache. It returns an error only while nothing has been written,
// so the caller can still fall back.
func (i *Interceptor) relay(w http.ResponseWriter, r *http.Request, resp *http.Response, result string) error {
	defer resp.Body.Close()

	storable := Cacheable(r) && resp.StatusCode >= 200 && resp.StatusCode <= 299
	if !storable {
		copyHeader(w.Header(), resp.Header)
		w.Header().Set(HeaderCache, result)
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
		return nil
	}

	reader := io.Reader(resp.Body)
	if i.maxEntryBytes > 0 {
		reader = io.LimitReader(resp.Body, i.maxEntryBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if i.maxEntryBytes > 0 && int64(len(body)) > i.maxEntryBytes {
		copyHeader(w.Header(), resp.Header)
		w.Header().Set(HeaderCache, result)
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, io.MultiReader(bytes.NewReader(body), resp.Body))
		return nil
	}

	entry := Entry{Status: resp.StatusCode, Header: storableHeader(resp.Header), Body: body}
	if err := i.cache.Put(r.Context(), CacheKey(r), entry); err != nil {
		i.warn(r.Context(), "cache write failed", err)
	}

	copyHeader(w.Header(), resp.Header)
	w.Header().Del("Content-Length")
	w.Header().Set(HeaderCache, result)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
	return nil
}

func (i *Interceptor) writeOffline(w http.ResponseWriter, r *http.Request) {
	entry, err := i.cache.Match(r.Context(), KeyFor(http.MethodGet, i.offlinePage, ""))
	if err == nil {
		writeEntry(w, entry, http.StatusServiceUnavailable, ResultOffline)
		return
	}
	w.Header().Set(HeaderCache, ResultOffline)
	writeEnvelope(w, http.StatusServiceUnavailable, pkgerrors.CodeUnreachable, "you are offline")
}

func (i *Interceptor) logMatchError(ctx context.Context, err error) {
	if err == nil || errors.Is(err, ErrMiss) {
		return
	}
	i.warn(ctx, "cache entry unreadable, treating as miss", err)
}

func (i *Interceptor) warn(ctx context.Context, msg string, err error) {
	if i.logg == nil || err == nil {
		return
	}
	i.logg.Warn(i.logg.WithField(ctx, "error", err.Error()), msg)
}

func writeEntry(w http.ResponseWriter, entry Entry, status int, result string) {
	copyHeader(w.Header(), entry.Header)
	w.Header().Set(HeaderCache, result)
	w.WriteHeader(status)
	_, _ = w.Write(entry.Body)
}

func writeEnvelope(w http.ResponseWriter, status int, code pkgerrors.Code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.NewErrorEnvelope(string(code), message, nil))
}

func copyHeader(dst, src http.Header) {
	for name, values := range src {
		if name == HeaderCache {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
	removeHopHeaders(dst)
}

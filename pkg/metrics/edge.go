package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics counts interceptor outcomes and upstream latency.
type CacheMetrics struct {
	lookups  *prometheus.CounterVec
	upstream *prometheus.HistogramVec
}

// NewCacheMetrics registers interceptor metrics on reg.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	if reg == nil {
		return &CacheMetrics{}
	}
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Intercepted requests by routing policy and cache result.",
	}, []string{"policy", "result"})
	upstream := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_fetch_seconds",
		Help:      "Upstream fetch latency by outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(lookups, upstream)
	return &CacheMetrics{lookups: lookups, upstream: upstream}
}

// IncLookup counts one intercepted request.
func (c *CacheMetrics) IncLookup(policy, result string) {
	if c == nil || c.lookups == nil {
		return
	}
	c.lookups.WithLabelValues(normalizeLabel(policy), normalizeLabel(result)).Inc()
}

// ObserveUpstream records one upstream round trip. outcome is "ok" or "error".
func (c *CacheMetrics) ObserveUpstream(outcome string, duration time.Duration) {
	if c == nil || c.upstream == nil {
		return
	}
	c.upstream.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// SyncMetrics counts background sync work.
type SyncMetrics struct {
	replays   *prometheus.CounterVec
	syncs     *prometheus.CounterVec
	presented *prometheus.CounterVec
	dropped   prometheus.Counter
}

// NewSyncMetrics registers replay and presentation metrics on reg.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	replays := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replay_entries_total",
		Help:      "Pending submissions replayed by outcome.",
	}, []string{"outcome"})
	syncs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_runs_total",
		Help:      "Background sync runs by tag and outcome.",
	}, []string{"tag", "outcome"})
	presented := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_presented_total",
		Help:      "Notifications presented by source.",
	}, []string{"source"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "controller_events_dropped_total",
		Help:      "Controller events dropped because no listener kept up.",
	})
	reg.MustRegister(replays, syncs, presented, dropped)
	return &SyncMetrics{replays: replays, syncs: syncs, presented: presented, dropped: dropped}
}

// IncReplay counts one replayed entry ("delivered" or "failed").
func (s *SyncMetrics) IncReplay(outcome string) {
	if s == nil || s.replays == nil {
		return
	}
	s.replays.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncSync counts one sync tag run.
func (s *SyncMetrics) IncSync(tag, outcome string) {
	if s == nil || s.syncs == nil {
		return
	}
	s.syncs.WithLabelValues(normalizeLabel(tag), normalizeLabel(outcome)).Inc()
}

// IncPresented counts one presented notification.
func (s *SyncMetrics) IncPresented(source string) {
	if s == nil || s.presented == nil {
		return
	}
	s.presented.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncDroppedEvent counts one event the controller could not publish.
func (s *SyncMetrics) IncDroppedEvent() {
	if s == nil || s.dropped == nil {
		return
	}
	s.dropped.Inc()
}

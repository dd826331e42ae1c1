// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nanochat_cache_lookups_total",
		Help: "Cache-aside lookups by result (hit, miss, error)",
	}, []string{"result"})

	CacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nanochat_cache_invalidations_total",
		Help: "Cache invalidations by granularity (key, pattern) and outcome",
	}, []string{"granularity", "outcome"})

	BroadcastEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nanochat_broadcast_events_total",
		Help: "Realtime events published by event name",
	}, []string{"event"})

	BroadcastDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nanochat_broadcast_dropped_total",
		Help: "Frames dropped because a session send buffer was full",
	})

	ConnectedSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nanochat_realtime_sessions",
		Help: "Currently connected realtime sessions",
	})

	OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nanochat_online_users",
		Help: "Users with at least one authenticated session",
	})

	PresenceTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nanochat_presence_transitions_total",
		Help: "Online/offline transitions",
	}, []string{"state"})
)

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides Prometheus metrics for docchat.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the counters below.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeRejected  = "rejected"
	OutcomeCancelled = "cancelled"
)

// =============================================================================
// METRICS
// =============================================================================

// Metrics groups the collectors recorded by the client components.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	streams         *prometheus.CounterVec
	fragments       prometheus.Counter
	streamBytes     prometheus.Counter
	uploads         *prometheus.CounterVec
	uploadBytes     prometheus.Counter
	cacheLoads      *prometheus.CounterVec
	notifications   *prometheus.CounterVec
}

// New creates a Metrics set registered on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Name:      "api_requests_total",
			Help:      "Backend requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docchat",
			Name:      "api_request_duration_seconds",
			Help:      "Backend request latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Name:      "query_streams_total",
			Help:      "Query streams by outcome.",
		}, []string{"outcome"}),
		fragments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docchat",
			Name:      "stream_fragments_total",
			Help:      "Fragments received from query streams.",
		}),
		streamBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docchat",
			Name:      "stream_bytes_total",
			Help:      "Bytes received from query streams.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Name:      "uploads_total",
			Help:      "Document uploads by outcome.",
		}, []string{"outcome"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docchat",
			Name:      "upload_bytes_total",
			Help:      "Bytes of successfully uploaded documents.",
		}),
		cacheLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Name:      "cache_loads_total",
			Help:      "Chat list cache reads by scope and result.",
		}, []string{"scope", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Name:      "notifications_total",
			Help:      "Notifications surfaced to the user by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.streams,
		m.fragments,
		m.streamBytes,
		m.uploads,
		m.uploadBytes,
		m.cacheLoads,
		m.notifications,
	)
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// =============================================================================
// RECORDING
// =============================================================================

// ObserveRequest records one backend request started at start.
func (m *Metrics) ObserveRequest(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, outcome(err)).Inc()
	m.requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ObserveFragment records one stream fragment of n bytes.
func (m *Metrics) ObserveFragment(n int) {
	if m == nil {
		return
	}
	m.fragments.Inc()
	m.streamBytes.Add(float64(n))
}

// StreamFinished records the outcome of a query stream.
func (m *Metrics) StreamFinished(result string) {
	if m == nil {
		return
	}
	m.streams.WithLabelValues(result).Inc()
}

// UploadFinished records an upload outcome and, on success, its size.
func (m *Metrics) UploadFinished(result string, size int64) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(result).Inc()
	if result == OutcomeOK && size > 0 {
		m.uploadBytes.Add(float64(size))
	}
}

// CacheLoad records a cache read. result is "hit", "miss" or "stale".
func (m *Metrics) CacheLoad(scope, result string) {
	if m == nil {
		return
	}
	m.cacheLoads.WithLabelValues(scope, result).Inc()
}

// Notified records a notification of the given kind.
func (m *Metrics) Notified(kind string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

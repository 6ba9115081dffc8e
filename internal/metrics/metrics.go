// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ServiceName = "regionmap"
)

var (
	ReloadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    prometheus.BuildFQName(ServiceName, "snapshot", "reload_duration_seconds"),
		Help:    "Duration of snapshot reloads in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"source"})
	Reloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(ServiceName, "snapshot", "reloads_total"),
		Help: "Snapshot reloads by outcome",
	}, []string{"result"})
	SnapshotRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: prometheus.BuildFQName(ServiceName, "snapshot", "rows"),
		Help: "Rows folded into the current snapshot",
	})
	SnapshotRegions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: prometheus.BuildFQName(ServiceName, "snapshot", "regions"),
		Help: "Boundary regions in the current snapshot by presence class",
	}, []string{"class"})
	SnapshotCategories = promauto.NewGauge(prometheus.GaugeOpts{
		Name: prometheus.BuildFQName(ServiceName, "snapshot", "categories"),
		Help: "Distinct categories in the current snapshot",
	})
	Warnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(ServiceName, "ingest", "warnings_total"),
		Help: "Degraded-data warnings raised while loading snapshots",
	}, []string{"kind"})
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    prometheus.BuildFQName(ServiceName, "http", "request_duration_seconds"),
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)

// Result labels for Reloads.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
	ResultBusy   = "busy"
)

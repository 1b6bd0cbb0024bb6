package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register and
// no-op until then.
var (
	regOK atomic.Bool

	serverStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostmock",
			Subsystem: "server",
			Name:      "starts_total",
			Help:      "Number of mock servers that reached running.",
		}, []string{"id"},
	)
	serverStartFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostmock",
			Subsystem: "server",
			Name:      "start_failures_total",
			Help:      "Number of startServer calls that ended in error.",
		}, []string{"id"},
	)
	serverStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostmock",
			Subsystem: "server",
			Name:      "stops_total",
			Help:      "Number of explicit stops (graceful or kill).",
		}, []string{"id"},
	)
	serverCrashes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostmock",
			Subsystem: "server",
			Name:      "crashes_total",
			Help:      "Number of unexpected terminations observed by the crash monitor.",
		}, []string{"id"},
	)
	portConflictRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hostmock",
			Subsystem: "server",
			Name:      "port_conflict_retries_total",
			Help:      "Number of spawn retries caused by address-in-use.",
		},
	)
	startupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hostmock",
			Subsystem: "server",
			Name:      "startup_duration_seconds",
			Help:      "Time from spawn to ready marker.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"id"},
	)
	runningServers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hostmock",
			Subsystem: "server",
			Name:      "running",
			Help:      "Current number of running mock servers.",
		},
	)
)

// Register registers all collectors with r. It is safe to call multiple
// times; calls after the first success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		serverStarts, serverStartFailures, serverStops, serverCrashes,
		portConflictRetries, startupDuration, runningServers,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves Prometheus metrics for the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

func IncStart(id string) {
	if regOK.Load() {
		serverStarts.WithLabelValues(id).Inc()
	}
}

func IncStartFailure(id string) {
	if regOK.Load() {
		serverStartFailures.WithLabelValues(id).Inc()
	}
}

func IncStop(id string) {
	if regOK.Load() {
		serverStops.WithLabelValues(id).Inc()
	}
}

func IncCrash(id string) {
	if regOK.Load() {
		serverCrashes.WithLabelValues(id).Inc()
	}
}

func IncPortConflictRetry() {
	if regOK.Load() {
		portConflictRetries.Inc()
	}
}

func ObserveStartupDuration(id string, seconds float64) {
	if regOK.Load() {
		startupDuration.WithLabelValues(id).Observe(seconds)
	}
}

func SetRunning(n int) {
	if regOK.Load() {
		runningServers.Set(float64(n))
	}
}

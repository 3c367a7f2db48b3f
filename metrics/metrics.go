// Package metrics exports cache and stream events as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unkn0wn-root/tiercache"
	"github.com/unkn0wn-root/tiercache/stream"
)

// Hooks implements tiercache.Hooks and stream.Hooks.
type Hooks struct {
	Lookups        *prometheus.CounterVec // tier, result
	DiskFallbacks  prometheus.Counter
	DiskReadErrors prometheus.Counter
	AsyncErrors    *prometheus.CounterVec // op
	Promotions     prometheus.Counter

	Streams        *prometheus.CounterVec // result, status
	StreamBytes    prometheus.Counter
	StreamDuration prometheus.Histogram
}

var (
	_ tiercache.Hooks = (*Hooks)(nil)
	_ stream.Hooks    = (*Hooks)(nil)
)

// New registers every metric with reg (nil => prometheus.DefaultRegisterer).
func New(reg prometheus.Registerer) *Hooks {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Hooks{
		Lookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tiercache_lookups_total",
				Help: "Cache reads by answering tier",
			},
			[]string{"tier", "result"},
		),
		DiskFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "tiercache_disk_decode_fallbacks_total",
			Help: "Disk values returned as raw strings because they were not JSON",
		}),
		DiskReadErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "tiercache_disk_read_errors_total",
			Help: "Disk reads that failed and were reported as misses",
		}),
		AsyncErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tiercache_async_errors_total",
				Help: "Failed async tier operations",
			},
			[]string{"op"},
		),
		Promotions: factory.NewCounter(prometheus.CounterOpts{
			Name: "tiercache_promotions_total",
			Help: "Disk hits copied into memory",
		}),
		Streams: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tiercache_streams_total",
				Help: "Finished streaming fetches",
			},
			[]string{"result", "status"},
		),
		StreamBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "tiercache_stream_received_bytes_total",
			Help: "Decoded text bytes received by streaming fetches",
		}),
		StreamDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tiercache_stream_duration_seconds",
			Help:    "Streaming fetch duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}

// Handler serves the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (h *Hooks) Lookup(tier tiercache.Tier, hit bool) {
	if !hit {
		h.Lookups.WithLabelValues("none", "miss").Inc()
		return
	}
	h.Lookups.WithLabelValues(string(tier), "hit").Inc()
}

func (h *Hooks) DiskDecodeFallback(string)         { h.DiskFallbacks.Inc() }
func (h *Hooks) DiskReadError(string, error)       { h.DiskReadErrors.Inc() }
func (h *Hooks) AsyncError(op, _ string, _ error) { h.AsyncErrors.WithLabelValues(op).Inc() }
func (h *Hooks) Promoted(string)                   { h.Promotions.Inc() }

func (h *Hooks) StreamFinished(ok bool, status, received int, elapsed time.Duration) {
	result := "success"
	if !ok {
		result = "failure"
	}
	h.Streams.WithLabelValues(result, strconv.Itoa(status)).Inc()
	h.StreamBytes.Add(float64(received))
	h.StreamDuration.Observe(elapsed.Seconds())
}

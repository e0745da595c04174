// Package metrics exposes announcer counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robocup-ssl/audioref/internal/playback"
)

const shutdownTimeout = 5 * time.Second

// Metrics holds Prometheus counters and gauges for the announcer.
type Metrics struct {
	registry         *prometheus.Registry
	packetsTotal     *prometheus.CounterVec
	decodeErrors     *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	duplicateSources *prometheus.CounterVec
	resolverMisses   prometheus.Counter
	geometryUpdates  prometheus.Counter
}

// New creates and registers the announcer metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		packetsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audioref_packets_total",
			Help: "Total number of packets received per feed",
		}, []string{"feed"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audioref_decode_errors_total",
			Help: "Total number of packets dropped because they could not be decoded",
		}, []string{"feed"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audioref_transitions_total",
			Help: "Total number of detected transitions per kind",
		}, []string{"kind"}),
		duplicateSources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audioref_duplicate_sources_total",
			Help: "Total number of sender changes detected per feed",
		}, []string{"feed"}),
		resolverMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audioref_resolver_misses_total",
			Help: "Total number of cue keys without a configured cue",
		}),
		geometryUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audioref_geometry_updates_total",
			Help: "Total number of field size updates applied",
		}),
	}

	registry.MustRegister(
		m.packetsTotal,
		m.decodeErrors,
		m.transitionsTotal,
		m.duplicateSources,
		m.resolverMisses,
		m.geometryUpdates,
	)
	return m
}

// ObserveScheduler exports the scheduler's own counters, read at scrape
// time.
func (m *Metrics) ObserveScheduler(s *playback.Scheduler) {
	stat := func(f func(playback.Stats) float64) func() float64 {
		return func() float64 { return f(s.Stats()) }
	}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "audioref_queue_length",
			Help: "Number of cue lines waiting to be played",
		}, stat(func(st playback.Stats) float64 { return float64(st.CurrentSize) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "audioref_cues_enqueued_total",
			Help: "Total number of cue lines queued",
		}, stat(func(st playback.Stats) float64 { return float64(st.TotalEnqueued) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "audioref_cues_dropped_total",
			Help: "Total number of queued cue lines dropped on overflow",
		}, stat(func(st playback.Stats) float64 { return float64(st.TotalDropped) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "audioref_cues_played_total",
			Help: "Total number of queued cue lines played",
		}, stat(func(st playback.Stats) float64 { return float64(st.TotalPlayed) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "audioref_immediate_cues_total",
			Help: "Total number of immediate cues started",
		}, stat(func(st playback.Stats) float64 { return float64(st.TotalImmediate) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "audioref_playback_failures_total",
			Help: "Total number of clips the audio output refused",
		}, stat(func(st playback.Stats) float64 { return float64(st.TotalFailed) })),
	)
}

// IncPackets increments the packet counter of a feed.
func (m *Metrics) IncPackets(feed string) {
	m.packetsTotal.WithLabelValues(feed).Inc()
}

// IncDecodeErrors increments the decode error counter of a feed.
func (m *Metrics) IncDecodeErrors(feed string) {
	m.decodeErrors.WithLabelValues(feed).Inc()
}

// IncTransitions increments the transition counter of a kind.
func (m *Metrics) IncTransitions(kind string) {
	m.transitionsTotal.WithLabelValues(kind).Inc()
}

// IncDuplicateSources increments the duplicate source counter of a feed.
func (m *Metrics) IncDuplicateSources(feed string) {
	m.duplicateSources.WithLabelValues(feed).Inc()
}

// AddResolverMisses adds n to the resolver miss counter.
func (m *Metrics) AddResolverMisses(n int) {
	m.resolverMisses.Add(float64(n))
}

// IncGeometryUpdates increments the geometry update counter.
func (m *Metrics) IncGeometryUpdates() {
	m.geometryUpdates.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Router mounts the metrics handler at /metrics.
func (m *Metrics) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/metrics", m.Handler().ServeHTTP)
	return r
}

// Serve listens on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Metrics shutdown error", "error", err)
		}
		return nil
	}
}

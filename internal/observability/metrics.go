// Package observability provides Prometheus metrics for simulation runs.
package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics holds the Prometheus collectors for one simulator.
type Metrics struct {
	registry *prometheus.Registry

	// Tick metrics
	DaysSimulated prometheus.Counter
	CurrentDay    prometheus.Gauge
	TickDuration  prometheus.Histogram
	PricesApplied *prometheus.CounterVec

	// Phenomenon metrics
	Transitions    *prometheus.CounterVec
	ActivePatterns *prometheus.GaugeVec

	// News metrics
	NewsPublished *prometheus.CounterVec

	// Validation metrics
	Diagnostics *prometheus.CounterVec

	// Persistence metrics
	PersistErrors *prometheus.CounterVec
}

// NewMetrics registers every collector on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "phenomsim"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		DaysSimulated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "days_total",
			Help:      "Total number of simulated days advanced",
		}),
		CurrentDay: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "current_day",
			Help:      "Last simulated day",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent advancing one simulated day",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		PricesApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "price_updates_total",
			Help:      "Price updates by source (effect or model)",
		}, []string{"source"}),

		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "phenomenon",
			Name:      "transitions_total",
			Help:      "Phase transitions by phenomenon kind and target phase",
		}, []string{"kind", "from", "to"}),
		ActivePatterns: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "phenomenon",
			Name:      "active_patterns",
			Help:      "Instruments currently holding a record, by kind and phase",
		}, []string{"kind", "phase"}),

		NewsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "news",
			Name:      "published_total",
			Help:      "News items published by source and sentiment",
		}, []string{"source", "sentiment"}),

		Diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coupling",
			Name:      "diagnostics_total",
			Help:      "Coupling diagnostics by kind and severity",
		}, []string{"kind", "severity"}),

		PersistErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "persist_errors_total",
			Help:      "Failed persistence writes by operation",
		}, []string{"operation"}),
	}
}

// Registry exposes the underlying registry for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordDay marks one advanced day.
func (m *Metrics) RecordDay(day int, elapsed time.Duration) {
	m.DaysSimulated.Inc()
	m.CurrentDay.Set(float64(day))
	m.TickDuration.Observe(elapsed.Seconds())
}

// RecordPrice counts one applied price update.
func (m *Metrics) RecordPrice(fromEffect bool) {
	source := "model"
	if fromEffect {
		source = "effect"
	}
	m.PricesApplied.WithLabelValues(source).Inc()
}

// RecordTransition counts one phase change.
func (m *Metrics) RecordTransition(kind, from, to string) {
	m.Transitions.WithLabelValues(kind, from, to).Inc()
}

// SetActivePatterns replaces the active pattern gauges with the given counts.
func (m *Metrics) SetActivePatterns(counts map[[2]string]int) {
	m.ActivePatterns.Reset()
	for key, n := range counts {
		m.ActivePatterns.WithLabelValues(key[0], key[1]).Set(float64(n))
	}
}

// RecordNews counts one published item.
func (m *Metrics) RecordNews(source, sentiment string) {
	m.NewsPublished.WithLabelValues(source, sentiment).Inc()
}

// RecordDiagnostic counts one coupling finding.
func (m *Metrics) RecordDiagnostic(kind, severity string) {
	m.Diagnostics.WithLabelValues(kind, severity).Inc()
}

// RecordPersistError counts one failed write.
func (m *Metrics) RecordPersistError(operation string) {
	m.PersistErrors.WithLabelValues(operation).Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve metrics: %w", err)
	}
}

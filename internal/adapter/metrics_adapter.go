package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	m "templar.dev/pkg/templar/internal/model"
)

// MetricsAdapter exports fuzzing counters.
type MetricsAdapter interface {
	ObserveIteration(rec m.IterationRecord)
	SetCorpus(size int, best m.Score)
	// Serve exposes /metrics on addr until ctx is done.
	Serve(ctx context.Context, addr string) error
}

// PrometheusMetricsAdapter keeps its collectors in a private registry so
// several fuzz runs in one process do not collide.
type PrometheusMetricsAdapter struct {
	registry   *prometheus.Registry
	iterations prometheus.Counter
	executions *prometheus.CounterVec
	admitted   prometheus.Counter
	crashes    *prometheus.CounterVec
	rejections *prometheus.CounterVec
	duration   prometheus.Histogram
	corpusSize prometheus.Gauge
	bestScore  prometheus.Gauge
}

// NewPrometheusMetricsAdapter registers the templar collectors.
func NewPrometheusMetricsAdapter() *PrometheusMetricsAdapter {
	a := &PrometheusMetricsAdapter{
		registry: prometheus.NewRegistry(),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "templar_iterations_total",
			Help: "Fuzz iterations completed.",
		}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "templar_executions_total",
			Help: "Engine executions by outcome.",
		}, []string{"status"}),
		admitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "templar_corpus_admissions_total",
			Help: "Programs admitted to the corpus.",
		}),
		crashes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "templar_crash_classes_total",
			Help: "New crash classes by kind.",
		}, []string{"kind"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "templar_mutation_rejections_total",
			Help: "Rejected mutations by operator.",
		}, []string{"operator"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "templar_execution_seconds",
			Help:    "Engine execution wall time.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		corpusSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "templar_corpus_size",
			Help: "Programs retained in the corpus.",
		}),
		bestScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "templar_best_score",
			Help: "Highest coverage score admitted.",
		}),
	}

	a.registry.MustRegister(
		a.iterations, a.executions, a.admitted, a.crashes,
		a.rejections, a.duration, a.corpusSize, a.bestScore,
	)

	return a
}

// Registry exposes the collectors, mainly for tests.
func (a *PrometheusMetricsAdapter) Registry() *prometheus.Registry {
	return a.registry
}

// ObserveIteration updates the counters from one journal record.
func (a *PrometheusMetricsAdapter) ObserveIteration(rec m.IterationRecord) {
	a.iterations.Inc()

	if rec.Rejected {
		a.rejections.WithLabelValues(string(rec.Operator)).Inc()
		return
	}

	a.executions.WithLabelValues(rec.Status.String()).Inc()
	a.duration.Observe(rec.Duration.Seconds())

	if rec.Admitted {
		a.admitted.Inc()
	}

	if rec.NewCrash {
		kind := "interesting"
		if rec.Boring {
			kind = "boring"
		}

		a.crashes.WithLabelValues(kind).Inc()
	}
}

// SetCorpus records the tracker size and best score.
func (a *PrometheusMetricsAdapter) SetCorpus(size int, best m.Score) {
	a.corpusSize.Set(float64(size))
	a.bestScore.Set(float64(best))
}

// Serve runs an HTTP server with the /metrics handler until ctx is done.
func (a *PrometheusMetricsAdapter) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to stop metrics server", "error", err)
		}
	}()

	slog.Info("Serving metrics", "addr", listener.Addr().String())

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}

	return nil
}

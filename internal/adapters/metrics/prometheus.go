package metrics

import (
	"fmt"
	"time"

	"github.com/bnema/tenantctl/internal/domain"
	"github.com/bnema/tenantctl/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tenantctl"

// Recorder publishes orchestrator metrics on its own registry. A CLI run is
// short lived, so the registry is flushed to a node-exporter textfile
// instead of being scraped.
type Recorder struct {
	registry *prometheus.Registry

	acquireWait   *prometheus.HistogramVec
	inUse         prometheus.Gauge
	actions       *prometheus.CounterVec
	actionSeconds *prometheus.HistogramVec
	persists      *prometheus.CounterVec
}

var _ ports.Metrics = (*Recorder)(nil)

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		acquireWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pool_acquire_wait_seconds",
			Help:      "Time spent waiting for a driver lease, by outcome.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"outcome"}),
		inUse: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_leases_in_use",
			Help:      "Driver leases currently held.",
		}),
		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Actions run, by action, status and failure kind.",
		}, []string{"action", "status", "kind"}),
		actionSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "End to end action duration.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"action"}),
		persists: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_persist_total",
			Help:      "Session persistence attempts, by outcome.",
		}, []string{"outcome"}),
	}
}

func (r *Recorder) ObserveAcquire(outcome string, wait time.Duration) {
	r.acquireWait.WithLabelValues(outcome).Observe(wait.Seconds())
}

func (r *Recorder) SetInUse(n int) {
	r.inUse.Set(float64(n))
}

func (r *Recorder) ObserveAction(action string, status domain.ResultStatus, kind domain.FailureKind, elapsed time.Duration) {
	if _, err := domain.ParseActionKind(action); err != nil {
		action = "unsupported"
	}
	r.actions.WithLabelValues(action, string(status), string(kind)).Inc()
	r.actionSeconds.WithLabelValues(action).Observe(elapsed.Seconds())
}

func (r *Recorder) ObservePersist(outcome string) {
	r.persists.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile atomically replaces path with the current samples.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the router
type Registry struct {
	// Environment metrics
	StepsTotal           *prometheus.CounterVec
	StepReward           *prometheus.HistogramVec
	InvalidActionsTotal  *prometheus.CounterVec
	ScheduledGatesTotal  *prometheus.CounterVec
	SwapsTotal           *prometheus.CounterVec
	BridgesTotal         *prometheus.CounterVec
	EpisodesTotal        *prometheus.CounterVec
	EpisodeReward        *prometheus.HistogramVec
	EpisodeSteps         *prometheus.HistogramVec
	EpisodeDuration      *prometheus.HistogramVec
	ActiveEpisodes       prometheus.Gauge

	// Evaluation metrics
	WorkerTasksTotal     *prometheus.CounterVec
	WorkerPanicsTotal    prometheus.Counter
	CircuitsRoutedTotal  prometheus.Counter
	RoutedCNOTs          prometheus.Histogram
	RoutedReliability    prometheus.Histogram

	// Transport metrics
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized.
// Tests create their own registry to avoid sharing counters.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initEnvironmentMetrics()
	r.initEvaluationMetrics()
	r.initTransportMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

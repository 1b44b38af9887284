package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initEvaluationMetrics() {
	r.WorkerTasksTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "qroute_worker_tasks_total",
			Help: "Evaluation tasks processed by the worker pool",
		},
		[]string{"status"},
	)

	r.WorkerPanicsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "qroute_worker_panics_total",
			Help: "Panics recovered inside worker goroutines",
		},
	)

	r.CircuitsRoutedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "qroute_circuits_routed_total",
			Help: "Circuits routed to completion by the evaluator",
		},
	)

	r.RoutedCNOTs = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qroute_routed_cnots",
			Help:    "CNOT count of routed circuits after decomposition",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	r.RoutedReliability = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qroute_routed_reliability",
			Help:    "Product of CNOT reliabilities of routed circuits",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)
}

func (r *Registry) initTransportMetrics() {
	r.RequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "qroute_transport_requests_total",
			Help: "Requests served by the environment server",
		},
		[]string{"op", "status"},
	)

	r.RequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qroute_transport_request_duration_seconds",
			Help:    "Time spent handling a request",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		},
		[]string{"op"},
	)
}

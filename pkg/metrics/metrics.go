package metrics

import (
	"strconv"
	"time"
)

// RecordStep records one environment step. action is "swap", "bridge" or
// "commit".
func (r *Registry) RecordStep(variant, action string, reward float64) {
	r.StepsTotal.WithLabelValues(variant, action).Inc()
	r.StepReward.WithLabelValues(variant).Observe(reward)

	switch action {
	case "swap":
		r.SwapsTotal.WithLabelValues(variant).Inc()
	case "bridge":
		r.BridgesTotal.WithLabelValues(variant).Inc()
	}
}

// RecordInvalidAction records an action that the mask allowed but the
// engine could not apply
func (r *Registry) RecordInvalidAction(variant, action string) {
	r.InvalidActionsTotal.WithLabelValues(variant, action).Inc()
}

// RecordScheduled records gates committed to the routed circuit, keyed by
// the number of qubits they act on
func (r *Registry) RecordScheduled(variant string, arity, count int) {
	if count == 0 {
		return
	}
	r.ScheduledGatesTotal.WithLabelValues(variant, strconv.Itoa(arity)).Add(float64(count))
}

// EpisodeStarted marks a reset
func (r *Registry) EpisodeStarted() {
	r.ActiveEpisodes.Inc()
}

// RecordEpisode records a finished episode. outcome is "terminated" or
// "truncated".
func (r *Registry) RecordEpisode(variant, outcome string, reward float64, steps int, duration time.Duration) {
	r.ActiveEpisodes.Dec()
	r.EpisodesTotal.WithLabelValues(variant, outcome).Inc()
	r.EpisodeReward.WithLabelValues(variant).Observe(reward)
	r.EpisodeSteps.WithLabelValues(variant).Observe(float64(steps))
	r.EpisodeDuration.WithLabelValues(variant).Observe(duration.Seconds())
}

// RecordWorkerTask records the outcome of a pooled task
func (r *Registry) RecordWorkerTask(status string) {
	r.WorkerTasksTotal.WithLabelValues(status).Inc()
}

// RecordWorkerPanic records a panic recovered inside a worker
func (r *Registry) RecordWorkerPanic() {
	r.WorkerPanicsTotal.Inc()
}

// RecordRoutedCircuit records the quality of a routed circuit
func (r *Registry) RecordRoutedCircuit(cnots int, reliability float64) {
	r.CircuitsRoutedTotal.Inc()
	r.RoutedCNOTs.Observe(float64(cnots))
	r.RoutedReliability.Observe(reliability)
}

// RecordRequest records a request served by the environment server
func (r *Registry) RecordRequest(op, status string, duration time.Duration) {
	r.RequestsTotal.WithLabelValues(op, status).Inc()
	r.RequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rewardBuckets = []float64{-100, -30, -10, -3, -1, 0, 1, 3, 10, 30, 100}

func (r *Registry) initEnvironmentMetrics() {
	r.StepsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "qroute_steps_total",
			Help: "Total number of environment steps by action kind",
		},
		[]string{"variant", "action"},
	)

	r.StepReward = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qroute_step_reward",
			Help:    "Reward returned by a single step",
			Buckets: rewardBuckets,
		},
		[]string{"variant"},
	)

	r.InvalidActionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "qroute_invalid_actions_total",
			Help: "Actions that passed the mask but could not be applied",
		},
		[]string{"variant", "action"},
	)

	r.ScheduledGatesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "qroute_scheduled_gates_total",
			Help: "Circuit gates committed to the routed circuit",
		},
		[]string{"variant", "arity"},
	)

	r.SwapsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "qroute_swaps_total",
			Help: "SWAP gates inserted",
		},
		[]string{"variant"},
	)

	r.BridgesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "qroute_bridges_total",
			Help: "BRIDGE gates inserted",
		},
		[]string{"variant"},
	)

	r.EpisodesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "qroute_episodes_total",
			Help: "Finished episodes by outcome",
		},
		[]string{"variant", "outcome"},
	)

	r.EpisodeReward = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qroute_episode_reward",
			Help:    "Total reward of finished episodes",
			Buckets: rewardBuckets,
		},
		[]string{"variant"},
	)

	r.EpisodeSteps = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qroute_episode_steps",
			Help:    "Number of steps taken by finished episodes",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"variant"},
	)

	r.EpisodeDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qroute_episode_duration_seconds",
			Help:    "Wall time from reset to the end of an episode",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"variant"},
	)

	r.ActiveEpisodes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "qroute_active_episodes",
			Help: "Episodes that have been reset but not finished",
		},
	)
}

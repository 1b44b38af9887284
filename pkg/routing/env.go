// Package routing implements the qubit routing environments. An environment
// owns a logical-to-physical mapping, the dependency graph of the remaining
// circuit and the routed circuit built so far. Each step applies one SWAP,
// BRIDGE or COMMIT action, commits every gate that became executable and
// returns a reward derived from the device calibration.
//
// Two variants exist. Sequential schedules after every action. Layered
// locks the nodes an action touches and only schedules on COMMIT, so several
// actions can be issued for the same circuit layer.
//
// Environments are not safe for concurrent use. Run independent instances,
// or clones, on separate goroutines instead.
package routing

import (
	"github.com/dd0wney/qroute/pkg/circuit"
	"github.com/dd0wney/qroute/pkg/logging"
	"github.com/dd0wney/qroute/pkg/metrics"
	"github.com/dd0wney/qroute/pkg/noise"
	"github.com/dd0wney/qroute/pkg/observation"
)

// Variant names.
const (
	VariantSequential = "sequential"
	VariantLayered    = "layered"
)

// ActionKind classifies an action index.
type ActionKind int

const (
	ActionSwap ActionKind = iota
	ActionBridge
	ActionCommit
)

// String returns the metric label of the kind.
func (k ActionKind) String() string {
	switch k {
	case ActionSwap:
		return "swap"
	case ActionBridge:
		return "bridge"
	case ActionCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// Observation is what an environment reports after Reset and Step.
type Observation struct {
	ActionMask []bool                       `json:"action_mask"`
	Values     map[string]observation.Array `json:"values"`
}

// Spec declares the action count and the bounds of every observation entry.
type Spec struct {
	NumActions int                        `json:"num_actions"`
	Modules    map[string]observation.Box `json:"modules"`
}

// Info carries per-step diagnostics.
type Info struct {
	EpisodeID string `json:"episode_id"`
	Step      int    `json:"step"`
	Action    string `json:"action,omitempty"`

	// ActionReward + SchedulingReward is the step reward.
	ActionReward      float64 `json:"action_reward"`
	SchedulingReward  float64 `json:"scheduling_reward"`
	ScheduledTwoQubit int     `json:"scheduled_two_qubit"`

	Swaps         int  `json:"swaps"`
	Bridges       int  `json:"bridges"`
	InvalidAction bool `json:"invalid_action,omitempty"`
}

// Env is a routing environment.
type Env interface {
	// Reset starts a new episode from the configured circuit and initial
	// mapping and commits every gate that is executable right away.
	Reset() (Observation, Info)

	// Step applies an action. It panics if action is outside
	// [0, NumActions()). Stepping a terminated environment is a no-op with
	// zero reward.
	Step(action int) (obs Observation, reward float64, terminated, truncated bool, info Info)

	ActionMask() []bool
	Terminated() bool
	ObservationSpec() Spec
	NumActions() int
	Variant() string

	// Calibrate replaces the per-edge error rates. Clones made earlier keep
	// their calibration.
	Calibrate(rates []float64) error

	// SetCircuit and SetInitialMapping take effect at the next Reset.
	SetCircuit(c *circuit.Circuit) error
	SetInitialMapping(nodeToQubit []int) error

	// RoutedCircuit returns the gates committed so far with physical node
	// operands, SWAP and BRIDGE included, in commit order.
	RoutedCircuit() *circuit.Circuit
	Mapping() (nodeToQubit, qubitToNode []int)

	// Clone returns an independent copy sharing only immutable state.
	Clone() Env
}

// Options configures an environment.
type Options struct {
	// Circuit defaults to an empty circuit on every node.
	Circuit *circuit.Circuit
	// InitialMapping maps node to qubit and defaults to the identity.
	InitialMapping []int
	// ErrorRates holds one rate per edge and defaults to zero.
	ErrorRates []float64
	// Noise enables noise-aware rewards. Nil means the flat constants.
	Noise *noise.Config

	AllowBridge         bool
	CommutationAnalysis bool

	// RestrictSwapsToFrontLayer only applies to the sequential variant.
	RestrictSwapsToFrontLayer bool
	// SinglePassScheduling makes the sequential variant run one scheduling
	// pass per action instead of repeating passes until nothing commits.
	// Gates left executable by that pass wait for the next action.
	SinglePassScheduling bool
	// DecomposedLocks only applies to the layered variant. Locks then last
	// as many COMMITs as the decomposed depth of the action.
	DecomposedLocks bool

	Modules []observation.Module

	// MaxSteps truncates an episode after that many steps. Zero disables
	// truncation.
	MaxSteps int

	Logger  logging.Logger
	Metrics *metrics.Registry
}

// DefaultOptions returns options with bridges, commutation analysis and the
// front-layer SWAP restriction enabled.
func DefaultOptions() Options {
	return Options{
		AllowBridge:               true,
		CommutationAnalysis:       true,
		RestrictSwapsToFrontLayer: true,
	}
}

var (
	_ Env = (*Sequential)(nil)
	_ Env = (*Layered)(nil)
)

package routing

import (
	"errors"
	"fmt"

	"github.com/dd0wney/qroute/pkg/observation"
	"github.com/dd0wney/qroute/pkg/topology"
)

// Sequential schedules every executable gate after each SWAP or BRIDGE.
// Actions [0, E) swap edge i, actions [E, E+B) bridge pair i-E.
type Sequential struct {
	core

	restrictSwaps bool
	singlePass    bool
	// blockedSwap is a SWAP that scheduled nothing, or -1
	blockedSwap int
}

// NewSequential builds a sequential environment on g.
func NewSequential(g *topology.Graph, opts Options) (*Sequential, error) {
	c, err := newCore(VariantSequential, g, opts)
	if err != nil {
		return nil, err
	}
	c.numActions = g.NumEdges() + len(c.bridgePairs)

	return &Sequential{
		core:          c,
		restrictSwaps: opts.RestrictSwapsToFrontLayer,
		singlePass:    opts.SinglePassScheduling,
		blockedSwap:   -1,
	}, nil
}

// NewCircuitMatrixEnv builds a sequential environment observed through a
// single CircuitMatrix of the given depth. Any modules in opts are replaced.
func NewCircuitMatrixEnv(g *topology.Graph, depth int, opts Options) (*Sequential, error) {
	if depth <= 0 {
		return nil, NewError("new").Field("depth").
			Cause(fmt.Errorf("depth must be positive, got %d", depth)).Err()
	}
	opts.Modules = []observation.Module{observation.CircuitMatrix{Depth: depth}}
	return NewSequential(g, opts)
}

// Reset implements Env.
func (s *Sequential) Reset() (Observation, Info) {
	s.begin()
	s.blockedSwap = -1
	info := s.afterReset(s.update())
	return s.observe(s.ActionMask()), info
}

// Step implements Env.
func (s *Sequential) Step(action int) (Observation, float64, bool, bool, Info) {
	s.checkAction(action)
	if s.Terminated() {
		return s.observe(s.ActionMask()), 0, true, false, s.absorbed()
	}

	var (
		actionReward float64
		sched        schedResult
		invalid      bool
	)
	kind := s.kindOf(action)

	switch kind {
	case ActionSwap:
		e := s.graph.Edge(action)
		s.swap(e.A, e.B)
		actionReward = s.model.SwapReward(e.A, e.B)
		sched = s.update()

		s.blockedSwap = -1
		if sched.twoQubit == 0 {
			s.blockedSwap = action
		}

	case ActionBridge:
		pair := s.bridgePairs[action-s.graph.NumEdges()]
		op, path, ok := s.bridgeCandidate(pair)
		if !ok {
			s.invalidBridge(pair)
			invalid = true
			break
		}
		s.dag.Remove(op)
		s.bridge(path)
		actionReward = s.model.BridgeReward(path[0], path[1], path[2])
		sched = s.update()
		s.blockedSwap = -1
	}

	reward, terminated, truncated, info := s.finishStep(kind, action, actionReward, sched, invalid)
	return s.observe(s.ActionMask()), reward, terminated, truncated, info
}

// update runs scheduling passes over the full layer decomposition until
// one commits nothing, or exactly one pass with SinglePassScheduling.
func (s *Sequential) update() schedResult {
	var total schedResult
	for !s.dag.Empty() {
		gates := s.schedulable(s.dag.Layers())
		if len(gates) == 0 {
			break
		}
		total.add(s.commit(gates))
		if s.singlePass {
			break
		}
	}
	return total
}

// ActionMask implements Env.
func (s *Sequential) ActionMask() []bool {
	mask := make([]bool, s.numActions)
	edges := s.graph.Edges()

	var front []bool
	if s.restrictSwaps {
		front = s.frontLayerNodes()
	}
	for i, e := range edges {
		mask[i] = front == nil || front[e.A] || front[e.B]
	}
	if s.blockedSwap >= 0 {
		mask[s.blockedSwap] = false
	}

	if len(s.bridgePairs) > 0 {
		candidates := s.bridgeablePairs()
		for i, pair := range s.bridgePairs {
			_, ok := candidates[pair]
			mask[len(edges)+i] = ok
		}
	}
	return mask
}

// Clone implements Env.
func (s *Sequential) Clone() Env {
	out := *s
	out.core = s.core.clone()
	return &out
}

func (s *Sequential) snapshot() snapshot {
	snap := s.core.snapshot()
	snap.BlockedSwap = s.blockedSwap
	return snap
}

func (s *Sequential) restore(snap snapshot) error {
	if snap.BlockedSwap < -1 || snap.BlockedSwap >= s.graph.NumEdges() {
		return NewError("restore").Field("blocked_swap").Cause(errors.Join(ErrSnapshotMismatch,
			fmt.Errorf("edge %d out of range", snap.BlockedSwap))).Err()
	}
	if err := s.core.restore(snap); err != nil {
		return err
	}
	s.blockedSwap = snap.BlockedSwap
	return nil
}

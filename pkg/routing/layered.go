package routing

import (
	"slices"

	"github.com/dd0wney/qroute/pkg/topology"
)

// Lock durations, in COMMITs, when locks follow the decomposed depth of an
// action. Without DecomposedLocks every lock lasts one COMMIT.
const (
	gateLock   = 1
	swapLock   = 3
	bridgeLock = 4
)

// Layered issues SWAP and BRIDGE actions into the current layer and only
// schedules gates on COMMIT. Actions [0, E) swap edge i, [E, E+B) bridge
// pair i-E, and the last action commits.
type Layered struct {
	core

	decomposed bool
}

// NewLayered builds a layered environment on g.
func NewLayered(g *topology.Graph, opts Options) (*Layered, error) {
	c, err := newCore(VariantLayered, g, opts)
	if err != nil {
		return nil, err
	}
	c.numActions = g.NumEdges() + len(c.bridgePairs) + 1
	c.locks = make([]int, g.NumNodes())

	return &Layered{core: c, decomposed: opts.DecomposedLocks}, nil
}

// MaxLock is the longest lock an action can place.
func (l *Layered) MaxLock() int {
	if l.decomposed {
		return bridgeLock
	}
	return 1
}

func (l *Layered) lockFor(d int) int {
	if l.decomposed {
		return d
	}
	return 1
}

func (l *Layered) lock(nodes []int, d int) {
	d = l.lockFor(d)
	for _, n := range nodes {
		l.locks[n] = max(l.locks[n], d)
	}
}

func (l *Layered) anyLocked(nodes []int) bool {
	for _, n := range nodes {
		if l.locks[n] > 0 {
			return true
		}
	}
	return false
}

// Reset implements Env.
func (l *Layered) Reset() (Observation, Info) {
	l.begin()
	info := l.afterReset(l.update())
	return l.observe(l.ActionMask()), info
}

// Step implements Env.
func (l *Layered) Step(action int) (Observation, float64, bool, bool, Info) {
	l.checkAction(action)
	if l.Terminated() {
		return l.observe(l.ActionMask()), 0, true, false, l.absorbed()
	}

	var (
		actionReward float64
		sched        schedResult
		invalid      bool
	)
	kind := l.kindOf(action)

	switch kind {
	case ActionSwap:
		e := l.graph.Edge(action)
		l.swap(e.A, e.B)
		l.lock([]int{e.A, e.B}, swapLock)
		actionReward = l.model.SwapReward(e.A, e.B)

	case ActionBridge:
		pair := l.bridgePairs[action-l.graph.NumEdges()]
		op, path, ok := l.bridgeCandidate(pair)
		if !ok {
			l.invalidBridge(pair)
			invalid = true
			break
		}
		l.dag.Remove(op)
		l.bridge(path)
		l.lock(path, bridgeLock)
		actionReward = l.model.BridgeReward(path[0], path[1], path[2])

	case ActionCommit:
		sched = l.update()
	}

	reward, terminated, truncated, info := l.finishStep(kind, action, actionReward, sched, invalid)
	return l.observe(l.ActionMask()), reward, terminated, truncated, info
}

// update expires one round of locks, then commits the executable front
// layer gates whose nodes are free and locks those nodes.
func (l *Layered) update() schedResult {
	for n, v := range l.locks {
		if v > 0 {
			l.locks[n] = v - 1
		}
	}

	found := l.schedulable([][]int{l.dag.FrontLayer()})
	gates := found[:0]
	for _, g := range found {
		if !l.anyLocked(g.nodes) {
			gates = append(gates, g)
		}
	}

	res := l.commit(gates)
	for _, g := range gates {
		l.lock(g.nodes, gateLock)
	}
	return res
}

// ActionMask implements Env.
func (l *Layered) ActionMask() []bool {
	mask := make([]bool, l.numActions)
	edges := l.graph.Edges()

	for i, e := range edges {
		mask[i] = l.locks[e.A] == 0 && l.locks[e.B] == 0
	}

	if len(l.bridgePairs) > 0 {
		candidates := l.bridgeablePairs()
		for i, pair := range l.bridgePairs {
			op, ok := candidates[pair]
			if !ok {
				continue
			}
			nodes := l.nodesOf(op)
			mask[len(edges)+i] = !l.anyLocked(l.graph.ShortestPath(nodes[0], nodes[1]))
		}
	}

	mask[l.numActions-1] = slices.ContainsFunc(l.locks, func(v int) bool { return v > 0 })
	return mask
}

// Clone implements Env.
func (l *Layered) Clone() Env {
	out := *l
	out.core = l.core.clone()
	return &out
}

func (l *Layered) snapshot() snapshot {
	return l.core.snapshot()
}

func (l *Layered) restore(snap snapshot) error {
	return l.core.restore(snap)
}

package routing

import (
	"math/rand/v2"
	"slices"

	"github.com/dd0wney/qroute/pkg/circuit"
)

// RandomMapping returns a uniformly random node to qubit permutation.
func RandomMapping(rng *rand.Rand, n int) []int {
	return rng.Perm(n)
}

// nodesOf returns the physical nodes currently holding the qubits of op i.
func (c *core) nodesOf(i int) []int {
	qs := c.dag.Op(i).Qubits
	nodes := make([]int, len(qs))
	for k, q := range qs {
		nodes[k] = c.qubitToNode[q]
	}
	return nodes
}

// swap exchanges the qubits held by nodes a and b.
func (c *core) swap(a, b int) {
	c.routed = append(c.routed, circuit.NewGate(circuit.SwapGate, a, b))

	qa, qb := c.nodeToQubit[a], c.nodeToQubit[b]
	c.nodeToQubit[a], c.nodeToQubit[b] = qb, qa
	c.qubitToNode[qa], c.qubitToNode[qb] = b, a
	c.swaps++
}

// bridge appends a bridge over path. The CNOT it implements must already be
// removed from the DAG; the mapping is unchanged.
func (c *core) bridge(path []int) {
	c.routed = append(c.routed, circuit.NewGate(circuit.BridgeGate, slices.Clone(path)...))
	c.bridges++
}

// bridgeCandidate finds a front-layer CNOT whose nodes are exactly pair and
// returns it with its control, middle, target path.
func (c *core) bridgeCandidate(pair [2]int) (int, []int, bool) {
	for _, i := range c.dag.FrontLayer() {
		if p, ok := c.bridgeablePair(i); ok && p == pair {
			nodes := c.nodesOf(i)
			return i, c.graph.ShortestPath(nodes[0], nodes[1]), true
		}
	}
	return -1, nil, false
}

// bridgeablePairs returns the sorted node pairs of every front-layer CNOT
// that could be bridged.
func (c *core) bridgeablePairs() map[[2]int]int {
	out := make(map[[2]int]int)
	for _, i := range c.dag.FrontLayer() {
		if p, ok := c.bridgeablePair(i); ok {
			if _, seen := out[p]; !seen {
				out[p] = i
			}
		}
	}
	return out
}

func (c *core) bridgeablePair(i int) ([2]int, bool) {
	g := c.dag.Op(i)
	if g.Name != circuit.CXGate {
		return [2]int{}, false
	}
	a, b := c.qubitToNode[g.Qubits[0]], c.qubitToNode[g.Qubits[1]]
	return [2]int{min(a, b), max(a, b)}, true
}

// frontLayerNodes marks the nodes touched by the front layer.
func (c *core) frontLayerNodes() []bool {
	marked := make([]bool, c.graph.NumNodes())
	for _, i := range c.dag.FrontLayer() {
		for _, q := range c.dag.Op(i).Qubits {
			marked[c.qubitToNode[q]] = true
		}
	}
	return marked
}

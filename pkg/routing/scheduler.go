package routing

import (
	"github.com/dd0wney/qroute/pkg/circuit"
)

// scheduledGate is a DAG operation paired with the nodes it executes on.
type scheduledGate struct {
	op    int
	nodes []int
}

// pass is the bookkeeping of one scheduling scan.
type pass struct {
	claimed  []bool
	nClaimed int
	inPass   map[int]bool
	gates    []scheduledGate
}

func (p *pass) claim(nodes []int) {
	for _, n := range nodes {
		if !p.claimed[n] {
			p.claimed[n] = true
			p.nClaimed++
		}
	}
}

func (p *pass) add(op int, nodes []int) {
	p.inPass[op] = true
	p.gates = append(p.gates, scheduledGate{op: op, nodes: nodes})
	p.claim(nodes)
}

// executable reports whether a gate on nodes can run under the current
// mapping without touching a node claimed earlier in the pass.
func (c *core) executable(nodes []int, p *pass) bool {
	for _, n := range nodes {
		if p.claimed[n] {
			return false
		}
	}
	switch len(nodes) {
	case 1:
		return true
	case 2:
		return c.graph.HasEdge(nodes[0], nodes[1])
	}
	return false
}

// schedulable scans layers in order and returns the operations that can be
// committed now, in the order found. Every node touched by a scheduled or a
// blocked operation is claimed, so later operations in the scan never jump
// ahead of something they depend on. With commutation analysis, a blocked
// operation lets operations of its commutation run on its unclaimed wires
// be scheduled in its place.
func (c *core) schedulable(layers [][]int) []scheduledGate {
	n := c.graph.NumNodes()
	p := &pass{
		claimed: make([]bool, n),
		inPass:  make(map[int]bool),
	}

	for _, layer := range layers {
		for _, i := range layer {
			if p.inPass[i] {
				continue
			}
			nodes := c.nodesOf(i)
			if c.executable(nodes, p) {
				p.add(i, nodes)
			} else {
				if c.comm != nil {
					c.lookahead(i, nodes, p)
				}
				p.claim(nodes)
			}

			if p.nClaimed == n {
				return p.gates
			}
		}
	}
	return p.gates
}

// lookahead tries the commutation partners of the blocked op i on each wire
// whose node was still free when i was found blocked.
func (c *core) lookahead(i int, nodes []int, p *pass) {
	var free []int
	for k, node := range nodes {
		if !p.claimed[node] {
			free = append(free, k)
		}
	}

	for _, k := range free {
		for _, j := range c.comm.Group(i, k) {
			if j == i || c.dag.IsRemoved(j) || p.inPass[j] {
				continue
			}
			nj := c.nodesOf(j)
			if c.executable(nj, p) && c.hoistable(j, p) {
				p.add(j, nj)
			}
		}
	}
}

// hoistable reports whether op j may run before its live predecessors:
// each one must already be scheduled in this pass or share j's commutation
// run on the wire where it precedes j.
func (c *core) hoistable(j int, p *pass) bool {
	for k, q := range c.dag.Op(j).Qubits {
		for _, pred := range c.dag.LivePredecessorsOnWire(j, k) {
			if p.inPass[pred] || c.comm.SameGroupOnWire(pred, j, q) {
				continue
			}
			return false
		}
	}
	return true
}

// commit moves gates to the routed circuit on their physical nodes and
// removes them from the DAG.
func (c *core) commit(gates []scheduledGate) schedResult {
	var res schedResult
	for _, s := range gates {
		g := c.dag.Op(s.op)
		c.routed = append(c.routed, circuit.Gate{Name: g.Name, Qubits: s.nodes, Params: g.Params})
		c.dag.Remove(s.op)

		if len(s.nodes) == 2 {
			res.twoQubit++
			res.reward += c.model.GateReward(s.nodes[0], s.nodes[1])
		} else {
			res.other++
		}
	}
	return res
}

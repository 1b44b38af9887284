package observation

import (
	"github.com/dd0wney/qroute/pkg/topology"
)

// Observation keys.
const (
	KeyLogReliabilities  = "log_reliabilities"
	KeyCircuitMatrix     = "circuit_matrix"
	KeyQubitInteractions = "qubit_interactions"
	KeyLockedEdges       = "locked_edges"
)

// LogReliabilities reports the per-edge log-reliability vector.
type LogReliabilities struct {
	Min float64
}

func (LogReliabilities) Key() string { return KeyLogReliabilities }

func (m LogReliabilities) Space(g *topology.Graph) Box {
	return Box{Low: m.Min, High: 0, Shape: []int{g.NumEdges()}, DType: "float64"}
}

func (LogReliabilities) Observe(s State) Array {
	lr := s.LogReliabilities()
	out := NewArray(0, len(lr))
	copy(out.Data, lr)
	return out
}

// CircuitMatrix lays the remaining two-qubit gates out in greedy layers.
// Row n describes the qubit currently held by node n: the cell at column d
// is the node holding its partner in layer d, or -1.
type CircuitMatrix struct {
	Depth int
}

func (CircuitMatrix) Key() string { return KeyCircuitMatrix }

func (m CircuitMatrix) Space(g *topology.Graph) Box {
	n := g.NumNodes()
	return Box{Low: -1, High: float64(n - 1), Shape: []int{n, m.Depth}, DType: "int32"}
}

func (m CircuitMatrix) Observe(s State) Array {
	n := s.Topology().NumNodes()
	qubitToNode := s.QubitToNode()
	byQubit := NewArray(-1, n, m.Depth)

	dag := s.DAG()
	layer := 0
	inLayer := make(map[int]bool, n)

	for _, i := range dag.TwoQubitOps() {
		qs := dag.Op(i).Qubits
		qa, qb := qs[0], qs[1]

		if inLayer[qa] || inLayer[qb] {
			clear(inLayer)
			layer++
			if layer == m.Depth {
				break
			}
		}
		inLayer[qa] = true
		inLayer[qb] = true

		byQubit.Set(float64(qubitToNode[qb]), qa, layer)
		byQubit.Set(float64(qubitToNode[qa]), qb, layer)
	}

	out := NewArray(0, n, m.Depth)
	nodeToQubit := s.NodeToQubit()
	for node := 0; node < n; node++ {
		copy(out.Row(node), byQubit.Row(nodeToQubit[node]))
	}
	return out
}

// QubitInteractions reports, for every logical qubit pair (j, i) with j < i
// ordered by i then j, the index of the first DAG layer in which the pair
// interacts, or -1 if it does not interact within MaxDepth layers.
type QubitInteractions struct {
	MaxDepth int
}

func (QubitInteractions) Key() string { return KeyQubitInteractions }

func (m QubitInteractions) Space(g *topology.Graph) Box {
	n := g.NumNodes()
	return Box{Low: -1, High: float64(m.MaxDepth), Shape: []int{n * (n - 1) / 2}, DType: "int32"}
}

func (m QubitInteractions) Observe(s State) Array {
	n := s.Topology().NumNodes()
	out := NewArray(-1, n*(n-1)/2)

	dag := s.DAG()
	for depth, layer := range dag.Layers() {
		if depth >= m.MaxDepth {
			break
		}
		for _, i := range layer {
			qs := dag.Op(i).Qubits
			if len(qs) != 2 {
				continue
			}
			j, k := min(qs[0], qs[1]), max(qs[0], qs[1])
			idx := pairIndex(j, k)
			if out.Data[idx] == -1 {
				out.Data[idx] = float64(depth)
			}
		}
	}
	return out
}

// pairIndex is the position of (j, i), j < i, in i-major order.
func pairIndex(j, i int) int {
	return i*(i-1)/2 + j
}

// LockedEdges reports, per edge, the larger remaining lock of its two nodes.
type LockedEdges struct {
	MaxLock int
}

func (LockedEdges) Key() string { return KeyLockedEdges }

func (m LockedEdges) Space(g *topology.Graph) Box {
	return Box{Low: 0, High: float64(m.MaxLock), Shape: []int{g.NumEdges()}, DType: "int32"}
}

func (LockedEdges) Observe(s State) Array {
	edges := s.Topology().Edges()
	out := NewArray(0, len(edges))
	locks := s.Locks()
	if locks == nil {
		return out
	}
	for i, e := range edges {
		out.Data[i] = float64(max(locks[e.A], locks[e.B]))
	}
	return out
}

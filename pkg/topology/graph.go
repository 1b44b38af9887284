package topology

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidNode   = errors.New("node out of range")
	ErrSelfLoop      = errors.New("self-loop edge")
	ErrDuplicateEdge = errors.New("duplicate edge")
	ErrEmptyGraph    = errors.New("graph has no nodes")
)

// Edge is an undirected coupling between two physical nodes.
type Edge struct {
	A int
	B int
}

// Graph is the undirected coupling graph of a device. It is immutable once
// built and can be shared between any number of environments.
type Graph struct {
	numNodes  int
	edges     []Edge
	edgeIndex map[[2]int]int
	adjacency [][]int

	// paths[a][b] is the node sequence of the BFS shortest path a -> b
	paths [][][]int
	dist  [][]int

	bridgePairs [][2]int
}

// New builds a coupling graph from an edge list. Edge order is preserved and
// defines the index of each SWAP action.
func New(numNodes int, edges [][2]int) (*Graph, error) {
	if numNodes <= 0 {
		return nil, ErrEmptyGraph
	}

	g := &Graph{
		numNodes:  numNodes,
		edges:     make([]Edge, 0, len(edges)),
		edgeIndex: make(map[[2]int]int, 2*len(edges)),
		adjacency: make([][]int, numNodes),
	}

	for i, e := range edges {
		a, b := e[0], e[1]
		if a < 0 || a >= numNodes || b < 0 || b >= numNodes {
			return nil, fmt.Errorf("edge %d (%d, %d): %w", i, a, b, ErrInvalidNode)
		}
		if a == b {
			return nil, fmt.Errorf("edge %d (%d, %d): %w", i, a, b, ErrSelfLoop)
		}
		if _, exists := g.edgeIndex[[2]int{a, b}]; exists {
			return nil, fmt.Errorf("edge %d (%d, %d): %w", i, a, b, ErrDuplicateEdge)
		}

		idx := len(g.edges)
		g.edges = append(g.edges, Edge{A: a, B: b})
		g.edgeIndex[[2]int{a, b}] = idx
		g.edgeIndex[[2]int{b, a}] = idx
		g.adjacency[a] = append(g.adjacency[a], b)
		g.adjacency[b] = append(g.adjacency[b], a)
	}

	g.computePaths()
	g.computeBridgePairs()

	return g, nil
}

// MustNew is New for static topologies known to be valid.
func MustNew(numNodes int, edges [][2]int) *Graph {
	g, err := New(numNodes, edges)
	if err != nil {
		panic(err)
	}
	return g
}

// NumNodes returns the number of physical nodes.
func (g *Graph) NumNodes() int {
	return g.numNodes
}

// NumEdges returns the number of edges.
func (g *Graph) NumEdges() int {
	return len(g.edges)
}

// Edges returns the edge list in enumeration order. Callers must not modify it.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// Edge returns the i-th edge.
func (g *Graph) Edge(i int) Edge {
	return g.edges[i]
}

// EdgeIndex returns the enumeration index of the edge joining a and b.
func (g *Graph) EdgeIndex(a, b int) (int, bool) {
	idx, ok := g.edgeIndex[[2]int{a, b}]
	return idx, ok
}

// HasEdge reports whether a and b are adjacent.
func (g *Graph) HasEdge(a, b int) bool {
	_, ok := g.edgeIndex[[2]int{a, b}]
	return ok
}

// Neighbors returns the neighbors of n in insertion order.
func (g *Graph) Neighbors(n int) []int {
	return g.adjacency[n]
}

// EdgeList returns a copy of the edges as pairs, suitable for serialization.
func (g *Graph) EdgeList() [][2]int {
	out := make([][2]int, len(g.edges))
	for i, e := range g.edges {
		out[i] = [2]int{e.A, e.B}
	}
	return out
}

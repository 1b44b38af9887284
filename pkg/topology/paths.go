package topology

// computePaths runs a BFS from every node. Ties are broken by neighbor
// insertion order so the chosen shortest paths are deterministic.
func (g *Graph) computePaths() {
	n := g.numNodes
	g.paths = make([][][]int, n)
	g.dist = make([][]int, n)

	for src := 0; src < n; src++ {
		parent := make([]int, n)
		dist := make([]int, n)
		for i := range dist {
			dist[i] = -1
			parent[i] = -1
		}
		dist[src] = 0

		queue := []int{src}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]

			for _, next := range g.adjacency[current] {
				if dist[next] != -1 {
					continue
				}
				dist[next] = dist[current] + 1
				parent[next] = current
				queue = append(queue, next)
			}
		}

		g.dist[src] = dist
		g.paths[src] = make([][]int, n)
		for dst := 0; dst < n; dst++ {
			if dist[dst] >= 0 {
				g.paths[src][dst] = reconstructPath(parent, src, dst, dist[dst])
			}
		}
	}
}

// reconstructPath walks parent links back from dst to src
func reconstructPath(parent []int, src, dst, length int) []int {
	path := make([]int, length+1)
	current := dst
	for i := length; i >= 0; i-- {
		path[i] = current
		current = parent[current]
	}
	if path[0] != src {
		return nil
	}
	return path
}

func (g *Graph) computeBridgePairs() {
	for i := 0; i < g.numNodes; i++ {
		for j := 0; j < i; j++ {
			if g.dist[j][i] == 2 {
				g.bridgePairs = append(g.bridgePairs, [2]int{j, i})
			}
		}
	}
}

// ShortestPath returns the node sequence from a to b, both included, or nil
// when b is unreachable.
func (g *Graph) ShortestPath(a, b int) []int {
	return g.paths[a][b]
}

// Distance returns the hop count between a and b, or -1 when unreachable.
func (g *Graph) Distance(a, b int) int {
	return g.dist[a][b]
}

// DistanceMatrix returns a copy of the all-pairs distance matrix.
func (g *Graph) DistanceMatrix() [][]int {
	out := make([][]int, g.numNodes)
	for i := range g.dist {
		out[i] = append([]int(nil), g.dist[i]...)
	}
	return out
}

// BridgePairs returns every node pair (j, i) with j < i at distance exactly 2,
// ordered by i and then j. Callers must not modify the result.
func (g *Graph) BridgePairs() [][2]int {
	return g.bridgePairs
}

// IsConnected reports whether every node is reachable from node 0.
func (g *Graph) IsConnected() bool {
	for _, d := range g.dist[0] {
		if d < 0 {
			return false
		}
	}
	return true
}

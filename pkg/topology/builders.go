package topology

import "fmt"

// T returns the 5-node T-shaped device: 0-1-2 with a stem 1-3-4.
func T() *Graph {
	return MustNew(5, [][2]int{{0, 1}, {1, 2}, {1, 3}, {3, 4}})
}

// H returns the 7-node H-shaped device.
func H() *Graph {
	return MustNew(7, [][2]int{{0, 1}, {1, 2}, {1, 3}, {3, 5}, {4, 5}, {5, 6}})
}

// Line returns n nodes joined in a chain.
func Line(n int) (*Graph, error) {
	edges := make([][2]int, 0, n)
	for i := 0; i+1 < n; i++ {
		edges = append(edges, [2]int{i, i + 1})
	}
	return New(n, edges)
}

// Grid returns a rows x cols lattice with row-major node numbering. Horizontal
// edges of a row come before its vertical edges.
func Grid(rows, cols int) (*Graph, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("grid %dx%d: %w", rows, cols, ErrEmptyGraph)
	}

	edges := make([][2]int, 0, 2*rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			node := row*cols + col
			if col != cols-1 {
				edges = append(edges, [2]int{node, node + 1})
			}
			if row != rows-1 {
				edges = append(edges, [2]int{node, node + cols})
			}
		}
	}
	return New(rows*cols, edges)
}

// Named resolves a built-in topology by name: "t", "h", "line:<n>" or
// "grid:<rows>x<cols>".
func Named(name string) (*Graph, error) {
	var a, b int
	switch {
	case name == "t":
		return T(), nil
	case name == "h":
		return H(), nil
	}
	if n, err := fmt.Sscanf(name, "grid:%dx%d", &a, &b); err == nil && n == 2 {
		return Grid(a, b)
	}
	if n, err := fmt.Sscanf(name, "line:%d", &a); err == nil && n == 1 {
		return Line(a)
	}
	return nil, fmt.Errorf("unknown topology %q", name)
}

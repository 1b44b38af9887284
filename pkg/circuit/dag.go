package circuit

import (
	"fmt"
	"slices"
)

// DAG is the dependency graph of a circuit stored as an arena. Operation i is
// the circuit's i-th gate; two operations depend on each other when they
// share a wire, in circuit order. Removal only flips a bit, so operation
// indices stay valid for the lifetime of the DAG.
type DAG struct {
	numQubits int
	ops       []Gate

	// wires[q] lists the operations on qubit q in circuit order and
	// wirePos[i][k] is the position of op i in wires[ops[i].Qubits[k]].
	wires   [][]int
	wirePos [][]int

	// mutable state
	removed   []bool
	cursor    []int
	remaining int
}

// NewDAG builds the dependency graph of c.
func NewDAG(c *Circuit) *DAG {
	d := &DAG{
		numQubits: c.NumQubits,
		ops:       c.Gates,
		wires:     make([][]int, c.NumQubits),
		wirePos:   make([][]int, len(c.Gates)),
		removed:   make([]bool, len(c.Gates)),
		cursor:    make([]int, c.NumQubits),
		remaining: len(c.Gates),
	}

	for i, g := range c.Gates {
		d.wirePos[i] = make([]int, len(g.Qubits))
		for k, q := range g.Qubits {
			d.wirePos[i][k] = len(d.wires[q])
			d.wires[q] = append(d.wires[q], i)
		}
	}
	return d
}

// Clone copies the mutable removal state. The arena itself is shared.
func (d *DAG) Clone() *DAG {
	out := *d
	out.removed = slices.Clone(d.removed)
	out.cursor = slices.Clone(d.cursor)
	return &out
}

// NumQubits returns the number of wires.
func (d *DAG) NumQubits() int {
	return d.numQubits
}

// NumOps returns the size of the arena, removed operations included.
func (d *DAG) NumOps() int {
	return len(d.ops)
}

// Len returns the number of operations not yet removed.
func (d *DAG) Len() int {
	return d.remaining
}

// Empty reports whether every operation has been removed.
func (d *DAG) Empty() bool {
	return d.remaining == 0
}

// Op returns operation i.
func (d *DAG) Op(i int) Gate {
	return d.ops[i]
}

// IsRemoved reports whether operation i has been removed.
func (d *DAG) IsRemoved(i int) bool {
	return d.removed[i]
}

// Remove marks operation i as done. Removing an operation twice is a no-op.
func (d *DAG) Remove(i int) {
	if d.removed[i] {
		return
	}
	d.removed[i] = true
	d.remaining--

	for _, q := range d.ops[i].Qubits {
		wire := d.wires[q]
		for d.cursor[q] < len(wire) && d.removed[wire[d.cursor[q]]] {
			d.cursor[q]++
		}
	}
}

// head returns the first live operation on wire q, or -1.
func (d *DAG) head(q int) int {
	if d.cursor[q] < len(d.wires[q]) {
		return d.wires[q][d.cursor[q]]
	}
	return -1
}

// InFrontLayer reports whether operation i has no live predecessor.
func (d *DAG) InFrontLayer(i int) bool {
	if d.removed[i] {
		return false
	}
	for _, q := range d.ops[i].Qubits {
		if d.head(q) != i {
			return false
		}
	}
	return true
}

// FrontLayer returns the live operations with no live predecessor, in
// circuit order.
func (d *DAG) FrontLayer() []int {
	front := make([]int, 0, d.numQubits)
	for q := 0; q < d.numQubits; q++ {
		i := d.head(q)
		if i < 0 || d.ops[i].Qubits[0] != q {
			// each op is considered once, from its first wire
			continue
		}
		if d.InFrontLayer(i) {
			front = append(front, i)
		}
	}
	slices.Sort(front)
	return front
}

// Layers returns the as-soon-as-possible layering of the live operations.
// Layer 0 is the front layer.
func (d *DAG) Layers() [][]int {
	level := make([]int, d.numQubits)
	var layers [][]int

	for i, g := range d.ops {
		if d.removed[i] {
			continue
		}
		l := 0
		for _, q := range g.Qubits {
			l = max(l, level[q])
		}
		for _, q := range g.Qubits {
			level[q] = l + 1
		}
		for len(layers) <= l {
			layers = append(layers, nil)
		}
		layers[l] = append(layers[l], i)
	}
	return layers
}

// TwoQubitOps returns the live two-qubit operations in circuit order.
func (d *DAG) TwoQubitOps() []int {
	var out []int
	for i, g := range d.ops {
		if !d.removed[i] && g.IsTwoQubit() {
			out = append(out, i)
		}
	}
	return out
}

// LivePredecessorsOnWire returns the live operations that precede op i on
// its k-th wire, nearest last.
func (d *DAG) LivePredecessorsOnWire(i, k int) []int {
	q := d.ops[i].Qubits[k]
	wire := d.wires[q]
	var out []int
	for _, j := range wire[d.cursor[q]:d.wirePos[i][k]] {
		if !d.removed[j] {
			out = append(out, j)
		}
	}
	return out
}

// Wire returns the operations on qubit q in circuit order, removed ones
// included. Callers must not modify it.
func (d *DAG) Wire(q int) []int {
	return d.wires[q]
}

// RemovedMask returns a copy of the removal bitset.
func (d *DAG) RemovedMask() []bool {
	return slices.Clone(d.removed)
}

// Restore overwrites the removal state, recomputing wire cursors.
func (d *DAG) Restore(removed []bool) error {
	if len(removed) != len(d.ops) {
		return fmt.Errorf("restore dag: %d flags for %d operations", len(removed), len(d.ops))
	}
	copy(d.removed, removed)
	d.remaining = 0
	for _, r := range removed {
		if !r {
			d.remaining++
		}
	}
	for q, wire := range d.wires {
		c := 0
		for c < len(wire) && d.removed[wire[c]] {
			c++
		}
		d.cursor[q] = c
	}
	return nil
}

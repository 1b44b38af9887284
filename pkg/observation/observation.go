// Package observation derives fixed-shape numeric views of a routing
// environment. Each Module declares its bounds from static data so the
// observation space is known before the first reset.
package observation

import (
	"fmt"

	"github.com/dd0wney/qroute/pkg/circuit"
	"github.com/dd0wney/qroute/pkg/topology"
)

// Box describes the bounds and shape of one observation entry.
type Box struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Shape []int   `json:"shape"`
	DType string  `json:"dtype"`
}

// Size returns the number of elements described by the box.
func (b Box) Size() int {
	n := 1
	for _, d := range b.Shape {
		n *= d
	}
	return n
}

// Contains reports whether a has the box's shape and every value lies
// within its bounds.
func (b Box) Contains(a Array) bool {
	if len(a.Shape) != len(b.Shape) || len(a.Data) != b.Size() {
		return false
	}
	for i := range b.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	for _, v := range a.Data {
		if v < b.Low || v > b.High {
			return false
		}
	}
	return true
}

// Array is a dense row-major tensor.
type Array struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// NewArray allocates an array of the given shape filled with fill.
func NewArray(fill float64, shape ...int) Array {
	n := 1
	for _, d := range shape {
		n *= d
	}
	data := make([]float64, n)
	if fill != 0 {
		for i := range data {
			data[i] = fill
		}
	}
	return Array{Shape: shape, Data: data}
}

// At returns the element at the given index.
func (a Array) At(idx ...int) float64 {
	return a.Data[a.offset(idx)]
}

// Set stores v at the given index.
func (a Array) Set(v float64, idx ...int) {
	a.Data[a.offset(idx)] = v
}

func (a Array) offset(idx []int) int {
	if len(idx) != len(a.Shape) {
		panic(fmt.Sprintf("observation: index of rank %d into array of rank %d", len(idx), len(a.Shape)))
	}
	off := 0
	for i, v := range idx {
		off = off*a.Shape[i] + v
	}
	return off
}

// Row returns the i-th row of a rank-2 array.
func (a Array) Row(i int) []float64 {
	cols := a.Shape[1]
	return a.Data[i*cols : (i+1)*cols]
}

// State is the read-only view of an environment that modules observe.
type State interface {
	Topology() *topology.Graph
	DAG() *circuit.DAG
	NodeToQubit() []int
	QubitToNode() []int
	LogReliabilities() []float64
	// Locks returns the per-node lock counters, or nil for environments
	// without locking.
	Locks() []int
}

// Module is one pluggable observation encoder.
type Module interface {
	Key() string
	Space(g *topology.Graph) Box
	Observe(s State) Array
}

package circuit

import (
	"slices"
	"strconv"
	"strings"
)

// Names of the gates the router itself inserts.
const (
	SwapGate   = "swap"
	BridgeGate = "bridge"
	CXGate     = "cx"
)

// Gate is one operation of a circuit. Qubits are logical indices in an input
// circuit and physical node indices in a routed circuit.
type Gate struct {
	Name   string    `json:"name"`
	Qubits []int     `json:"qubits"`
	Params []float64 `json:"params,omitempty"`
}

// NewGate builds a gate with a lower-cased name.
func NewGate(name string, qubits ...int) Gate {
	return Gate{Name: strings.ToLower(name), Qubits: qubits}
}

// WithParams returns a copy of g carrying the given parameters.
func (g Gate) WithParams(params ...float64) Gate {
	g.Params = params
	return g
}

// NumQubits returns the gate arity.
func (g Gate) NumQubits() int {
	return len(g.Qubits)
}

// IsTwoQubit reports whether the gate acts on exactly two qubits.
func (g Gate) IsTwoQubit() bool {
	return len(g.Qubits) == 2
}

// Equal reports whether two gates are the same operation on the same qubits.
func (g Gate) Equal(other Gate) bool {
	return g.Name == other.Name &&
		slices.Equal(g.Qubits, other.Qubits) &&
		slices.Equal(g.Params, other.Params)
}

// Clone returns a deep copy of the gate.
func (g Gate) Clone() Gate {
	return Gate{
		Name:   g.Name,
		Qubits: slices.Clone(g.Qubits),
		Params: slices.Clone(g.Params),
	}
}

// Remap returns a copy of g with every qubit translated through m.
func (g Gate) Remap(m []int) Gate {
	out := g.Clone()
	for i, q := range out.Qubits {
		out.Qubits[i] = m[q]
	}
	return out
}

func (g Gate) String() string {
	var sb strings.Builder
	sb.WriteString(g.Name)
	if len(g.Params) > 0 {
		sb.WriteByte('(')
		for i, p := range g.Params {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.FormatFloat(p, 'g', -1, 64))
		}
		sb.WriteByte(')')
	}
	for i, q := range g.Qubits {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteByte(',')
		}
		sb.WriteString("q[")
		sb.WriteString(strconv.Itoa(q))
		sb.WriteByte(']')
	}
	return sb.String()
}

package circuit

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrQubitOutOfRange = errors.New("qubit out of range")
	ErrRepeatedQubit   = errors.New("gate repeats a qubit")
	ErrNoQubits        = errors.New("gate has no qubits")
)

// Circuit is an ordered list of gates over NumQubits qubits.
type Circuit struct {
	NumQubits int    `json:"num_qubits"`
	Gates     []Gate `json:"gates"`
}

// New creates an empty circuit.
func New(numQubits int) *Circuit {
	return &Circuit{NumQubits: numQubits}
}

// Append validates and appends a gate.
func (c *Circuit) Append(g Gate) error {
	if err := c.checkGate(g); err != nil {
		return err
	}
	c.Gates = append(c.Gates, g)
	return nil
}

// Validate applies the Append checks to every gate. Gates assigned directly
// to Gates skip them otherwise.
func (c *Circuit) Validate() error {
	for i, g := range c.Gates {
		if err := c.checkGate(g); err != nil {
			return fmt.Errorf("gate %d: %w", i, err)
		}
	}
	return nil
}

func (c *Circuit) checkGate(g Gate) error {
	if len(g.Qubits) == 0 {
		return fmt.Errorf("%s: %w", g.Name, ErrNoQubits)
	}
	for i, q := range g.Qubits {
		if q < 0 || q >= c.NumQubits {
			return fmt.Errorf("%s: qubit %d: %w", g, q, ErrQubitOutOfRange)
		}
		if slices.Contains(g.Qubits[:i], q) {
			return fmt.Errorf("%s: %w", g, ErrRepeatedQubit)
		}
	}
	return nil
}

// MustAppend is Append for gates built in code.
func (c *Circuit) MustAppend(gates ...Gate) *Circuit {
	for _, g := range gates {
		if err := c.Append(g); err != nil {
			panic(err)
		}
	}
	return c
}

// Clone returns a deep copy.
func (c *Circuit) Clone() *Circuit {
	out := &Circuit{NumQubits: c.NumQubits, Gates: make([]Gate, len(c.Gates))}
	for i, g := range c.Gates {
		out.Gates[i] = g.Clone()
	}
	return out
}

// Padded returns a copy widened to n qubits. The extra qubits are idle.
func (c *Circuit) Padded(n int) *Circuit {
	out := c.Clone()
	if n > out.NumQubits {
		out.NumQubits = n
	}
	return out
}

// MaxArity returns the largest number of qubits touched by a single gate.
func (c *Circuit) MaxArity() int {
	arity := 0
	for _, g := range c.Gates {
		arity = max(arity, len(g.Qubits))
	}
	return arity
}

// CountOps returns the number of gates per gate name.
func (c *Circuit) CountOps() map[string]int {
	counts := make(map[string]int)
	for _, g := range c.Gates {
		counts[g.Name]++
	}
	return counts
}

// Depth returns the length of the critical path, counting every gate as one
// time step.
func (c *Circuit) Depth() int {
	level := make([]int, c.NumQubits)
	depth := 0
	for _, g := range c.Gates {
		d := 0
		for _, q := range g.Qubits {
			d = max(d, level[q])
		}
		d++
		for _, q := range g.Qubits {
			level[q] = d
		}
		depth = max(depth, d)
	}
	return depth
}

// Decompose expands router-inserted gates into CNOTs. A swap becomes three
// CNOTs and a bridge on (control, middle, target) becomes four.
func (c *Circuit) Decompose() *Circuit {
	out := &Circuit{NumQubits: c.NumQubits, Gates: make([]Gate, 0, len(c.Gates))}
	for _, g := range c.Gates {
		switch g.Name {
		case SwapGate:
			a, b := g.Qubits[0], g.Qubits[1]
			out.Gates = append(out.Gates,
				NewGate(CXGate, a, b),
				NewGate(CXGate, b, a),
				NewGate(CXGate, a, b),
			)
		case BridgeGate:
			ctrl, mid, tgt := g.Qubits[0], g.Qubits[1], g.Qubits[2]
			out.Gates = append(out.Gates,
				NewGate(CXGate, mid, tgt),
				NewGate(CXGate, ctrl, mid),
				NewGate(CXGate, mid, tgt),
				NewGate(CXGate, ctrl, mid),
			)
		default:
			out.Gates = append(out.Gates, g.Clone())
		}
	}
	return out
}

// CountTwoQubitGates returns the number of gates acting on two qubits.
func (c *Circuit) CountTwoQubitGates() int {
	n := 0
	for _, g := range c.Gates {
		if g.IsTwoQubit() {
			n++
		}
	}
	return n
}

package circuit

// basis is the local action of a gate on one of its qubits.
type basis uint8

const (
	basisGeneral basis = iota
	basisIdentity
	basisZ
	basisX
)

var singleQubitBasis = map[string]basis{
	"id": basisIdentity, "i": basisIdentity,
	"z": basisZ, "s": basisZ, "sdg": basisZ, "t": basisZ, "tdg": basisZ,
	"rz": basisZ, "p": basisZ, "u1": basisZ,
	"x": basisX, "rx": basisX, "sx": basisX, "sxdg": basisX,
}

// controlled gates: z on every control, the listed basis on the last qubit
var controlledTargetBasis = map[string]basis{
	"cx": basisX, "cnot": basisX, "crx": basisX, "ccx": basisX,
	"cz": basisZ, "cp": basisZ, "cu1": basisZ, "crz": basisZ, "ccz": basisZ,
	"cy": basisGeneral, "ch": basisGeneral, "cry": basisGeneral, "cu3": basisGeneral, "cu": basisGeneral,
}

func localBasis(g Gate, k int) basis {
	if len(g.Qubits) == 1 {
		if b, ok := singleQubitBasis[g.Name]; ok {
			return b
		}
		return basisGeneral
	}

	switch g.Name {
	case "rzz":
		return basisZ
	case "rxx":
		return basisX
	}
	if target, ok := controlledTargetBasis[g.Name]; ok {
		if k == len(g.Qubits)-1 {
			return target
		}
		return basisZ
	}
	return basisGeneral
}

// Commute reports whether a and b can be exchanged without changing the
// unitary. The test is conservative: it accepts identical gates, gates on
// disjoint qubits, and gates whose actions on every shared qubit lie in the
// same Pauli basis.
func Commute(a, b Gate) bool {
	if a.Equal(b) {
		return true
	}
	for ka, qa := range a.Qubits {
		for kb, qb := range b.Qubits {
			if qa != qb {
				continue
			}
			ba, bb := localBasis(a, ka), localBasis(b, kb)
			if ba == basisIdentity || bb == basisIdentity {
				continue
			}
			if ba == basisGeneral || ba != bb {
				return false
			}
		}
	}
	return true
}

// Commutation partitions each wire of a DAG into runs of mutually commuting
// operations. Any operation of a run may execute before any other operation
// of the same run as far as that wire is concerned.
type Commutation struct {
	ops     []Gate
	groups  [][][]int
	groupOf [][]int
}

// AnalyzeCommutation groups the operations of d wire by wire. An operation
// joins the current run of its wire when it commutes with every member,
// otherwise it opens a new run.
func AnalyzeCommutation(d *DAG) *Commutation {
	c := &Commutation{
		ops:     d.ops,
		groups:  make([][][]int, d.numQubits),
		groupOf: make([][]int, len(d.ops)),
	}
	for i, g := range d.ops {
		c.groupOf[i] = make([]int, len(g.Qubits))
	}

	for q, wire := range d.wires {
		for _, i := range wire {
			groups := c.groups[q]
			last := len(groups) - 1
			if last < 0 || !commutesWithAll(d, i, groups[last]) {
				c.groups[q] = append(groups, []int{i})
				last++
			} else {
				c.groups[q][last] = append(groups[last], i)
			}
			c.groupOf[i][slotOf(d.ops[i], q)] = last
		}
	}
	return c
}

func commutesWithAll(d *DAG, i int, members []int) bool {
	for _, j := range members {
		if !Commute(d.ops[i], d.ops[j]) {
			return false
		}
	}
	return true
}

func slotOf(g Gate, q int) int {
	for k, gq := range g.Qubits {
		if gq == q {
			return k
		}
	}
	return -1
}

// Group returns the run that op i belongs to on its k-th wire. Callers must
// not modify it.
func (c *Commutation) Group(i, k int) []int {
	q := c.ops[i].Qubits[k]
	return c.groups[q][c.groupOf[i][k]]
}

// GroupIndex returns the index of op i's run on its k-th wire.
func (c *Commutation) GroupIndex(i, k int) int {
	return c.groupOf[i][k]
}

// NumGroups returns the number of runs on wire q.
func (c *Commutation) NumGroups(q int) int {
	return len(c.groups[q])
}

// SameGroupOnWire reports whether ops i and j sit in the same run of wire q.
// It is false when either op does not touch q.
func (c *Commutation) SameGroupOnWire(i, j, q int) bool {
	ki, kj := slotOf(c.ops[i], q), slotOf(c.ops[j], q)
	if ki < 0 || kj < 0 {
		return false
	}
	return c.groupOf[i][ki] == c.groupOf[j][kj]
}

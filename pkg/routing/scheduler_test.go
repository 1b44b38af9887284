package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dd0wney/qroute/pkg/circuit"
)

func ops(gates []scheduledGate) []int {
	out := make([]int, len(gates))
	for i, g := range gates {
		out[i] = g.op
	}
	return out
}

func TestIndependentSingleQubitOpsShareAPass(t *testing.T) {
	c := circuit.New(5).MustAppend(
		circuit.NewGate("h", 0),
		circuit.NewGate("x", 3),
	)
	env := newSequential(t, c)

	gates := env.schedulable(env.dag.Layers())
	assert.Equal(t, []int{0, 1}, ops(gates))
	assert.Equal(t, [][]int{{0}, {3}}, [][]int{gates[0].nodes, gates[1].nodes})
}

func TestScheduledOpsClaimTheirNodes(t *testing.T) {
	// x q0 depends on h q0 and waits for the next pass
	c := circuit.New(5).MustAppend(
		circuit.NewGate("h", 0),
		circuit.NewGate("x", 0),
		circuit.NewGate("cx", 1, 2),
	)
	env := newSequential(t, c)

	assert.Equal(t, []int{0, 2}, ops(env.schedulable(env.dag.Layers())))

	env.Reset()
	assert.True(t, env.Terminated(), "repeated passes drain the chain")
}

func TestBlockedOpClaimsItsNodes(t *testing.T) {
	// cx(0,4) is blocked and holds node 4 against x q4
	c := circuit.New(5).MustAppend(
		circuit.NewGate("cx", 0, 4),
		circuit.NewGate("x", 4),
	)
	env := newSequential(t, c, func(o *Options) { o.CommutationAnalysis = false })

	assert.Empty(t, env.schedulable(env.dag.Layers()))
}

func TestHoistingRespectsOtherWires(t *testing.T) {
	// cx(0,1) commutes with the blocked cx(0,4) on q0 but still waits for
	// h q1 on its other wire
	c := circuit.New(5).MustAppend(
		circuit.NewGate("cx", 0, 4),
		circuit.NewGate("h", 1),
		circuit.NewGate("cx", 0, 1),
	)
	env := newSequential(t, c)

	assert.Equal(t, []int{1}, ops(env.schedulable(env.dag.Layers())))

	// once h q1 is routed the hoist goes through
	_, info := env.Reset()
	assert.Equal(t, 1, info.ScheduledTwoQubit)
	assert.Equal(t, []string{"h q[1]", "cx q[0],q[1]"}, gateStrings(env.RoutedCircuit()))
	assert.Equal(t, 1, env.dag.Len())
}

func TestHoistedOpsAreNotRepeated(t *testing.T) {
	c := circuit.New(5).MustAppend(
		circuit.NewGate("cx", 0, 4),
		circuit.NewGate("cx", 0, 1),
		circuit.NewGate("z", 0),
	)
	env := newSequential(t, c)

	gates := env.schedulable(env.dag.Layers())
	assert.Equal(t, []int{1}, ops(gates), "z q0 waits for the next pass since cx(0,1) claimed node 0")
}

func TestSingleFrontLayerPassAfterLocks(t *testing.T) {
	c := circuit.New(5).MustAppend(
		circuit.NewGate("cx", 0, 1),
		circuit.NewGate("cx", 3, 4),
	)
	env := newLayered(t, c)
	env.locks[3] = 2

	res := env.update()
	assert.Equal(t, 1, res.twoQubit, "the gate on locked node 3 waits")
	assert.Equal(t, []int{1, 1, 0, 1, 0}, env.locks)
}

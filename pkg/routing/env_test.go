package routing

import (
	"bytes"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/qroute/pkg/circuit"
	"github.com/dd0wney/qroute/pkg/logging"
	"github.com/dd0wney/qroute/pkg/metrics"
	"github.com/dd0wney/qroute/pkg/noise"
	"github.com/dd0wney/qroute/pkg/observation"
	"github.com/dd0wney/qroute/pkg/topology"
)

// T topology edges: 0:(0,1) 1:(1,2) 2:(1,3) 3:(3,4)
// bridge pairs:     4:{0,2} 5:{0,3} 6:{2,3} 7:{1,4}

func farCNOT() *circuit.Circuit {
	return circuit.New(5).MustAppend(circuit.NewGate("cx", 0, 4))
}

func newSequential(t *testing.T, c *circuit.Circuit, mutate ...func(*Options)) *Sequential {
	t.Helper()
	opts := DefaultOptions()
	opts.Circuit = c
	for _, m := range mutate {
		m(&opts)
	}
	env, err := NewSequential(topology.T(), opts)
	require.NoError(t, err)
	return env
}

func newLayered(t *testing.T, c *circuit.Circuit, mutate ...func(*Options)) *Layered {
	t.Helper()
	opts := DefaultOptions()
	opts.Circuit = c
	for _, m := range mutate {
		m(&opts)
	}
	env, err := NewLayered(topology.T(), opts)
	require.NoError(t, err)
	return env
}

func gateStrings(c *circuit.Circuit) []string {
	out := make([]string, len(c.Gates))
	for i, g := range c.Gates {
		out[i] = g.String()
	}
	return out
}

func TestSequentialActionLayout(t *testing.T) {
	env := newSequential(t, farCNOT())
	assert.Equal(t, 8, env.NumActions())

	noBridge := newSequential(t, farCNOT(), func(o *Options) { o.AllowBridge = false })
	assert.Equal(t, 4, noBridge.NumActions())
}

func TestSequentialTScenario(t *testing.T) {
	env := newSequential(t, farCNOT())

	obs, info := env.Reset()
	assert.NotEmpty(t, info.EpisodeID)
	assert.Equal(t, []bool{true, false, false, true, false, false, false, false}, obs.ActionMask)

	// swap (0,1) leaves cx on nodes (1,4), still apart
	obs, reward, terminated, truncated, info := env.Step(0)
	assert.Equal(t, -3.0, reward)
	assert.False(t, terminated)
	assert.False(t, truncated)
	assert.Equal(t, 0, info.ScheduledTwoQubit)
	assert.Equal(t, []bool{false, true, true, true, false, false, false, true}, obs.ActionMask,
		"blocked swap is masked and the bridge over 1-3-4 opens")

	_, reward, terminated, _, info = env.Step(7)
	assert.Equal(t, -2.0, reward)
	assert.True(t, terminated)
	assert.Equal(t, 1, info.Bridges)
	assert.Equal(t, 1, info.Swaps)

	assert.Equal(t, []string{"swap q[0],q[1]", "bridge q[1],q[3],q[4]"}, gateStrings(env.RoutedCircuit()))
}

func TestSequentialDistanceTwoScenario(t *testing.T) {
	c := circuit.New(5).MustAppend(circuit.NewGate("cx", 0, 2))
	env := newSequential(t, c)

	obs, _ := env.Reset()
	assert.Equal(t, []bool{true, true, false, false, true, false, false, false}, obs.ActionMask,
		"only the bridge over the gate's own pair is open before any swap")

	bridged := env.Clone()
	_, _, terminated, _, _ := bridged.Step(4)
	assert.True(t, terminated)
	assert.Equal(t, []string{"bridge q[0],q[1],q[2]"}, gateStrings(bridged.RoutedCircuit()))

	_, reward, terminated, _, info := env.Step(0)
	assert.True(t, terminated)
	assert.Equal(t, -2.0, reward)
	assert.Equal(t, 1, info.ScheduledTwoQubit)
	assert.Equal(t, []string{"swap q[0],q[1]", "cx q[1],q[2]"}, gateStrings(env.RoutedCircuit()),
		"one swap plus the original gate")
}

func TestSequentialSwapSchedules(t *testing.T) {
	env := newSequential(t, farCNOT())
	env.Reset()

	env.Step(0)
	_, reward, terminated, _, info := env.Step(3)

	assert.True(t, terminated)
	assert.Equal(t, -2.0, reward, "swap penalty plus one gate")
	assert.Equal(t, -3.0, info.ActionReward)
	assert.Equal(t, 1.0, info.SchedulingReward)
	assert.Equal(t, 1, info.ScheduledTwoQubit)

	assert.Equal(t,
		[]string{"swap q[0],q[1]", "swap q[3],q[4]", "cx q[1],q[3]"},
		gateStrings(env.RoutedCircuit()))

	nodeToQubit, qubitToNode := env.Mapping()
	assert.Equal(t, []int{1, 0, 2, 4, 3}, nodeToQubit)
	assert.Equal(t, []int{1, 0, 2, 4, 3}, qubitToNode)
}

func TestTerminatedIsAbsorbing(t *testing.T) {
	c := circuit.New(5).MustAppend(
		circuit.NewGate("h", 0),
		circuit.NewGate("x", 1),
	)
	env := newSequential(t, c)

	_, info := env.Reset()
	assert.Equal(t, 0, info.ScheduledTwoQubit)
	assert.Equal(t, []string{"h q[0]", "x q[1]"}, gateStrings(env.RoutedCircuit()))

	before, _ := env.Mapping()
	_, reward, terminated, truncated, info := env.Step(0)
	assert.Equal(t, 0.0, reward)
	assert.True(t, terminated)
	assert.False(t, truncated)
	assert.Equal(t, 0, info.Step)

	after, _ := env.Mapping()
	assert.Equal(t, before, after)
	assert.Len(t, env.RoutedCircuit().Gates, 2)
}

func TestZeroErrorCalibration(t *testing.T) {
	cfg := noise.DefaultConfig()
	env := newSequential(t, farCNOT(), func(o *Options) {
		o.Noise = &cfg
		o.ErrorRates = make([]float64, 4)
	})

	obs, _ := env.Reset()
	require.Contains(t, obs.Values, observation.KeyLogReliabilities, "noise-aware envs observe reliabilities")
	assert.Equal(t, []float64{0, 0, 0, 0}, obs.Values[observation.KeyLogReliabilities].Data)

	_, reward, _, _, _ := env.Step(0)
	assert.InDelta(t, 0.0, reward, 1e-12, "perfect swaps cost nothing")

	_, reward, terminated, _, _ := env.Step(3)
	assert.True(t, terminated)
	assert.InDelta(t, cfg.AddedGateReward, reward, 1e-12)
}

func TestNoisyRewardsFollowCalibration(t *testing.T) {
	cfg := noise.DefaultConfig()
	env := newSequential(t, farCNOT(), func(o *Options) { o.Noise = &cfg })
	require.NoError(t, env.Calibrate([]float64{0.5, 0, 0, 0.75}))

	env.Reset()
	_, reward, _, _, _ := env.Step(0)
	assert.InDelta(t, -3.0, reward, 1e-12, "3 * log2(0.5)")

	_, reward, _, _, _ = env.Step(3)
	// swap on (3,4) plus cx on (1,3)
	assert.InDelta(t, -6.0+cfg.AddedGateReward, reward, 1e-12)
}

func TestCalibrateIsPerInstance(t *testing.T) {
	cfg := noise.DefaultConfig()
	env := newSequential(t, farCNOT(), func(o *Options) { o.Noise = &cfg })
	clone := env.Clone().(*Sequential)

	require.NoError(t, clone.Calibrate([]float64{0.5, 0.5, 0.5, 0.5}))
	assert.Equal(t, []float64{0, 0, 0, 0}, env.LogReliabilities())
	assert.InDelta(t, -1.0, clone.LogReliabilities()[0], 1e-12)
}

func TestInvalidBridgeIsNoOp(t *testing.T) {
	var buf bytes.Buffer
	reg := metrics.NewRegistry()
	env := newSequential(t, farCNOT(), func(o *Options) {
		o.Logger = logging.NewJSONLogger(&buf, logging.InfoLevel)
		o.Metrics = reg
	})
	env.Reset()

	_, reward, terminated, _, info := env.Step(4)
	assert.Equal(t, 0.0, reward)
	assert.False(t, terminated)
	assert.True(t, info.InvalidAction)
	assert.Empty(t, env.RoutedCircuit().Gates)

	nodeToQubit, _ := env.Mapping()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, nodeToQubit)

	assert.Contains(t, buf.String(), "BRIDGE action has no candidate gate")
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.InvalidActionsTotal.WithLabelValues(VariantSequential, "bridge")))
}

func TestStepOutOfRangePanics(t *testing.T) {
	env := newSequential(t, farCNOT())
	env.Reset()

	assert.Panics(t, func() { env.Step(env.NumActions()) })
	assert.Panics(t, func() { env.Step(-1) })
}

func TestRewardDecomposition(t *testing.T) {
	c := circuit.New(5).MustAppend(
		circuit.NewGate("cx", 0, 4),
		circuit.NewGate("cx", 2, 4),
		circuit.NewGate("h", 2),
	)
	env := newSequential(t, c)
	env.Reset()

	for _, a := range []int{3, 2, 1, 0} {
		if !env.ActionMask()[a] {
			continue
		}
		_, reward, _, _, info := env.Step(a)
		assert.InDelta(t, reward, info.ActionReward+info.SchedulingReward, 1e-12)
	}
}

func TestTruncation(t *testing.T) {
	env := newSequential(t, farCNOT(), func(o *Options) { o.MaxSteps = 1 })
	env.Reset()

	_, _, terminated, truncated, _ := env.Step(0)
	assert.False(t, terminated)
	assert.True(t, truncated)
}

func TestUnrestrictedSwaps(t *testing.T) {
	env := newSequential(t, farCNOT(), func(o *Options) { o.RestrictSwapsToFrontLayer = false })
	obs, _ := env.Reset()

	assert.Equal(t, []bool{true, true, true, true}, obs.ActionMask[:4])
}

func TestCloneIsIndependent(t *testing.T) {
	env := newSequential(t, farCNOT())
	env.Reset()
	env.Step(0)

	replay := env.Clone()
	_, r1, _, _, _ := replay.Step(3)
	_, r2, _, _, _ := env.Step(3)
	assert.Equal(t, r1, r2, "replaying the same action gives the same reward")
	assert.Equal(t, gateStrings(env.RoutedCircuit()), gateStrings(replay.RoutedCircuit()))

	other := newSequential(t, farCNOT())
	other.Reset()
	other.Step(0)
	branch := other.Clone()
	branch.Step(1)

	nodeToQubit, _ := other.Mapping()
	assert.Equal(t, []int{1, 0, 2, 3, 4}, nodeToQubit)
	assert.Len(t, other.RoutedCircuit().Gates, 1)
	assert.Len(t, branch.RoutedCircuit().Gates, 2)
}

func TestCommutationLookahead(t *testing.T) {
	// cx(0,1) commutes with the blocked cx(0,4) on their shared control
	c := circuit.New(5).MustAppend(
		circuit.NewGate("cx", 0, 4),
		circuit.NewGate("cx", 0, 1),
	)

	env := newSequential(t, c)
	_, info := env.Reset()
	assert.Equal(t, 1, info.ScheduledTwoQubit)
	assert.Equal(t, []string{"cx q[0],q[1]"}, gateStrings(env.RoutedCircuit()))

	plain := newSequential(t, c, func(o *Options) { o.CommutationAnalysis = false })
	_, info = plain.Reset()
	assert.Equal(t, 0, info.ScheduledTwoQubit)
	assert.Empty(t, plain.RoutedCircuit().Gates)
}

func TestCircuitMatrixEnv(t *testing.T) {
	env, err := NewCircuitMatrixEnv(topology.T(), 4, func() Options {
		o := DefaultOptions()
		o.Circuit = farCNOT()
		return o
	}())
	require.NoError(t, err)

	obs, _ := env.Reset()
	cm := obs.Values[observation.KeyCircuitMatrix]
	assert.Equal(t, []int{5, 4}, cm.Shape)
	assert.Equal(t, 4.0, cm.At(0, 0))
	assert.Equal(t, 0.0, cm.At(4, 0))

	spec := env.ObservationSpec()
	assert.Equal(t, 8, spec.NumActions)
	assert.True(t, spec.Modules[observation.KeyCircuitMatrix].Contains(cm))

	_, err = NewCircuitMatrixEnv(topology.T(), 0, DefaultOptions())
	assert.Error(t, err)
}

func TestConstructionErrors(t *testing.T) {
	g := topology.T()

	_, err := NewSequential(nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrNilTopology)

	opts := DefaultOptions()
	opts.InitialMapping = []int{0, 1, 2}
	_, err = NewSequential(g, opts)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	opts.InitialMapping = []int{0, 1, 1, 3, 4}
	_, err = NewSequential(g, opts)
	assert.ErrorIs(t, err, ErrInvalidMapping)

	opts = DefaultOptions()
	opts.ErrorRates = []float64{0.1}
	_, err = NewLayered(g, opts)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "new", rerr.Op)
	assert.Equal(t, "error_rates", rerr.Field)
}

func TestSetCircuitValidation(t *testing.T) {
	env := newSequential(t, nil)

	err := env.SetCircuit(circuit.New(6))
	assert.ErrorIs(t, err, ErrCircuitTooWide)

	err = env.SetCircuit(circuit.New(3).MustAppend(circuit.NewGate("ccx", 0, 1, 2)))
	assert.ErrorIs(t, err, ErrUnsupportedGate)

	require.NoError(t, env.SetCircuit(circuit.New(2).MustAppend(circuit.NewGate("cx", 0, 1))))
	_, info := env.Reset()
	assert.Equal(t, 1, info.ScheduledTwoQubit, "narrow circuits are padded to the device")

	assert.ErrorIs(t, env.Calibrate([]float64{0.1, 0.2}), ErrShapeMismatch)
}

func TestSetCircuitRejectsMalformedGates(t *testing.T) {
	tests := []struct {
		name string
		gate circuit.Gate
		want error
	}{
		{"qubit beyond the circuit", circuit.Gate{Name: "cx", Qubits: []int{0, 7}}, circuit.ErrQubitOutOfRange},
		{"no qubits", circuit.Gate{Name: "barrier"}, circuit.ErrNoQubits},
		{"repeated qubit", circuit.Gate{Name: "cx", Qubits: []int{1, 1}}, circuit.ErrRepeatedQubit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &circuit.Circuit{NumQubits: 2, Gates: []circuit.Gate{tt.gate}}

			env := newSequential(t, farCNOT())
			err := env.SetCircuit(c)
			assert.ErrorIs(t, err, ErrInvalidCircuit)
			assert.ErrorIs(t, err, tt.want)

			opts := DefaultOptions()
			opts.Circuit = c
			_, err = NewLayered(topology.T(), opts)
			assert.ErrorIs(t, err, ErrInvalidCircuit)

			_, info := env.Reset()
			assert.Equal(t, 0, info.ScheduledTwoQubit, "the previous circuit stays loaded")
			assert.False(t, env.Terminated())
		})
	}
}

func TestSetCircuitWaitsForReset(t *testing.T) {
	// three commuting CNOTs on a shared control, none routable at first
	c := circuit.New(5).MustAppend(
		circuit.NewGate("cx", 0, 4),
		circuit.NewGate("cx", 0, 3),
		circuit.NewGate("cx", 0, 2),
	)

	for _, env := range []Env{newSequential(t, c), newLayered(t, c)} {
		t.Run(env.Variant(), func(t *testing.T) {
			_, info := env.Reset()
			require.Equal(t, 0, info.ScheduledTwoQubit)
			snap, err := MarshalSnapshot(env)
			require.NoError(t, err)

			require.NoError(t, env.SetCircuit(circuit.New(1).MustAppend(circuit.NewGate("h", 0))))

			// swap (1,2) puts qubit 2 next to qubit 0; the running episode
			// still routes the old circuit
			var terminated bool
			assert.NotPanics(t, func() {
				_, _, terminated, _, info = env.Step(1)
			})
			assert.False(t, terminated)
			assert.Contains(t, gateStrings(env.RoutedCircuit()), "swap q[1],q[2]")

			_, info = env.Reset()
			assert.True(t, env.Terminated())
			assert.Equal(t, []string{"h q[0]"}, gateStrings(env.RoutedCircuit()))

			assert.ErrorIs(t, RestoreSnapshot(env, snap), ErrSnapshotMismatch,
				"a snapshot of the old circuit no longer fits")
		})
	}
}

func TestSinglePassScheduling(t *testing.T) {
	c := circuit.New(5).MustAppend(
		circuit.NewGate("h", 0),
		circuit.NewGate("cx", 0, 1),
	)

	env := newSequential(t, c)
	_, info := env.Reset()
	assert.Equal(t, 1, info.ScheduledTwoQubit)
	assert.True(t, env.Terminated())

	single := newSequential(t, c, func(o *Options) { o.SinglePassScheduling = true })
	_, info = single.Reset()
	assert.Equal(t, 0, info.ScheduledTwoQubit, "the cx waits for the pass after h")
	assert.Equal(t, []string{"h q[0]"}, gateStrings(single.RoutedCircuit()))
	assert.False(t, single.Terminated())

	_, reward, terminated, _, info := single.Step(3)
	assert.True(t, terminated)
	assert.Equal(t, 1, info.ScheduledTwoQubit)
	assert.Equal(t, -2.0, reward)
	assert.Equal(t, []string{"h q[0]", "swap q[3],q[4]", "cx q[0],q[1]"}, gateStrings(single.RoutedCircuit()))
}

func TestSetInitialMapping(t *testing.T) {
	env := newSequential(t, farCNOT())
	// qubit 4 starts next to qubit 0
	require.NoError(t, env.SetInitialMapping([]int{0, 4, 2, 3, 1}))

	_, info := env.Reset()
	assert.Equal(t, 1, info.ScheduledTwoQubit)
	assert.Equal(t, []string{"cx q[0],q[1]"}, gateStrings(env.RoutedCircuit()))
	assert.ErrorIs(t, env.SetInitialMapping([]int{5, 1, 2, 3, 4}), ErrInvalidMapping)
}

func TestEpisodeMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	env := newSequential(t, farCNOT(), func(o *Options) { o.Metrics = reg })

	env.Reset()
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ActiveEpisodes))

	env.Step(0)
	env.Step(3)
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.ActiveEpisodes))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.EpisodesTotal.WithLabelValues(VariantSequential, "terminated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.SwapsTotal.WithLabelValues(VariantSequential)))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ScheduledGatesTotal.WithLabelValues(VariantSequential, "2")))
}

func TestLookaheadLeavesEnvUntouched(t *testing.T) {
	reg := metrics.NewRegistry()
	env := newSequential(t, farCNOT(), func(o *Options) { o.Metrics = reg })
	env.Reset()
	env.Step(0)

	before, _ := env.Mapping()
	reward, terminated := Lookahead(env, 7)
	assert.True(t, terminated, "bridging (1,4) routes the only gate")

	after, _ := env.Mapping()
	assert.Equal(t, before, after)
	assert.False(t, env.Terminated())
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.StepsTotal.WithLabelValues(VariantSequential, "swap")))
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.StepsTotal.WithLabelValues(VariantSequential, "bridge")),
		"probes are not recorded")

	_, got, done, _, _ := env.Step(7)
	assert.Equal(t, reward, got)
	assert.True(t, done)
}

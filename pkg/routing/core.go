package routing

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/qroute/pkg/circuit"
	"github.com/dd0wney/qroute/pkg/logging"
	"github.com/dd0wney/qroute/pkg/metrics"
	"github.com/dd0wney/qroute/pkg/noise"
	"github.com/dd0wney/qroute/pkg/observation"
	"github.com/dd0wney/qroute/pkg/topology"
)

// core is the state shared by both variants. Fields above the episode
// marker are immutable once built and shared by clones.
type core struct {
	variant     string
	graph       *topology.Graph
	bridgePairs [][2]int
	modules     []observation.Module
	numActions  int
	maxSteps    int
	commutation bool
	logger      logging.Logger
	metrics     *metrics.Registry

	// replaced wholesale, never mutated in place. base and baseComm are
	// the circuit the next Reset loads.
	model          *noise.Model
	circuit        *circuit.Circuit
	base           *circuit.DAG
	baseComm       *circuit.Commutation
	initialMapping []int

	// episode. comm always describes the circuit dag was cloned from.
	nodeToQubit []int
	qubitToNode []int
	dag         *circuit.DAG
	comm        *circuit.Commutation
	routed      []circuit.Gate
	locks       []int

	episodeID     string
	episodeOpen   bool
	started       time.Time
	steps         int
	episodeReward float64
	swaps         int
	bridges       int
}

// schedResult summarises one round of committed gates.
type schedResult struct {
	twoQubit int
	other    int
	reward   float64
}

func (r *schedResult) add(o schedResult) {
	r.twoQubit += o.twoQubit
	r.other += o.other
	r.reward += o.reward
}

func newCore(variant string, g *topology.Graph, opts Options) (core, error) {
	if g == nil {
		return core{}, NewError("new").Field("topology").Cause(ErrNilTopology).Err()
	}

	c := core{
		variant:     variant,
		graph:       g,
		maxSteps:    opts.MaxSteps,
		commutation: opts.CommutationAnalysis,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
	if c.logger == nil {
		c.logger = logging.NewNopLogger()
	}
	c.logger = c.logger.With(logging.Component("routing"), logging.Variant(variant))

	if opts.AllowBridge {
		c.bridgePairs = g.BridgePairs()
	}

	model, err := noise.NewModel(opts.Noise, g, opts.ErrorRates)
	if err != nil {
		return core{}, NewError("new").Field("error_rates").Cause(err).Err()
	}
	c.model = model

	c.modules = slices.Clone(opts.Modules)
	if opts.Noise != nil && !hasModule(c.modules, observation.KeyLogReliabilities) {
		c.modules = append(c.modules, observation.LogReliabilities{Min: opts.Noise.MinLogReliability})
	}

	if err := c.setInitialMapping(opts.InitialMapping, "new"); err != nil {
		return core{}, err
	}

	circ := opts.Circuit
	if circ == nil {
		circ = circuit.New(g.NumNodes())
	}
	if err := c.setCircuit(circ, "new"); err != nil {
		return core{}, err
	}

	n := g.NumNodes()
	c.nodeToQubit = make([]int, n)
	c.qubitToNode = make([]int, n)
	c.loadMapping()
	c.dag = c.base.Clone()
	c.comm = c.baseComm
	return c, nil
}

func hasModule(modules []observation.Module, key string) bool {
	for _, m := range modules {
		if m.Key() == key {
			return true
		}
	}
	return false
}

func (c *core) setInitialMapping(nodeToQubit []int, op string) error {
	n := c.graph.NumNodes()
	if nodeToQubit == nil {
		c.initialMapping = make([]int, n)
		for i := range c.initialMapping {
			c.initialMapping[i] = i
		}
		return nil
	}
	if len(nodeToQubit) != n {
		return NewError(op).Field("initial_mapping").
			Context("got %d entries for %d nodes", len(nodeToQubit), n).
			Cause(ErrShapeMismatch).Err()
	}
	if err := checkPermutation(nodeToQubit); err != nil {
		return NewError(op).Field("initial_mapping").Cause(err).Err()
	}
	c.initialMapping = slices.Clone(nodeToQubit)
	return nil
}

func checkPermutation(p []int) error {
	seen := make([]bool, len(p))
	for i, v := range p {
		if v < 0 || v >= len(p) {
			return fmt.Errorf("%w: entry %d is %d", ErrInvalidMapping, i, v)
		}
		if seen[v] {
			return fmt.Errorf("%w: %d appears twice", ErrInvalidMapping, v)
		}
		seen[v] = true
	}
	return nil
}

// setCircuit pads circ to the device width and precomputes its dependency
// graph and commutation runs.
func (c *core) setCircuit(circ *circuit.Circuit, op string) error {
	n := c.graph.NumNodes()
	if circ.NumQubits > n {
		return NewError(op).Field("circuit").
			Context("%d qubits on %d nodes", circ.NumQubits, n).
			Cause(ErrCircuitTooWide).Err()
	}
	if err := circ.Validate(); err != nil {
		return NewError(op).Field("circuit").
			Cause(errors.Join(ErrInvalidCircuit, err)).Err()
	}
	for i, g := range circ.Gates {
		if g.NumQubits() > 2 {
			return NewError(op).Field("circuit").
				Context("gate %d is %s", i, g).
				Cause(ErrUnsupportedGate).Err()
		}
	}

	c.circuit = circ.Clone().Padded(n)
	c.base = circuit.NewDAG(c.circuit)
	c.baseComm = nil
	if c.commutation {
		c.baseComm = circuit.AnalyzeCommutation(c.base)
	}
	return nil
}

func (c *core) loadMapping() {
	copy(c.nodeToQubit, c.initialMapping)
	for node, q := range c.nodeToQubit {
		c.qubitToNode[q] = node
	}
}

// begin resets the episode state. Variants schedule afterwards.
func (c *core) begin() {
	if c.episodeOpen {
		c.endEpisode("abandoned")
	}

	c.loadMapping()
	c.dag = c.base.Clone()
	c.comm = c.baseComm
	c.routed = nil
	if c.locks != nil {
		clear(c.locks)
	}

	c.episodeID = uuid.New().String()
	c.episodeOpen = true
	c.started = time.Now()
	c.steps = 0
	c.episodeReward = 0
	c.swaps = 0
	c.bridges = 0

	if c.metrics != nil {
		c.metrics.EpisodeStarted()
	}
	c.logger.Debug("episode started",
		logging.Episode(c.episodeID),
		logging.Count(c.dag.Len()))
}

// afterReset closes an episode that needed no routing.
func (c *core) afterReset(sched schedResult) Info {
	c.record(sched)
	if c.Terminated() {
		c.endEpisode("terminated")
	}
	return Info{
		EpisodeID:         c.episodeID,
		SchedulingReward:  sched.reward,
		ScheduledTwoQubit: sched.twoQubit,
	}
}

func (c *core) endEpisode(outcome string) {
	c.episodeOpen = false
	if c.metrics != nil {
		c.metrics.RecordEpisode(c.variant, outcome, c.episodeReward, c.steps, time.Since(c.started))
	}
	c.logger.Info("episode finished",
		logging.Episode(c.episodeID),
		logging.String("outcome", outcome),
		logging.Step(c.steps),
		logging.Reward(c.episodeReward),
		logging.Int("swaps", c.swaps),
		logging.Int("bridges", c.bridges))
}

// Terminated reports whether every gate of the circuit has been routed.
func (c *core) Terminated() bool {
	return c.dag.Empty()
}

func (c *core) checkAction(action int) {
	if action < 0 || action >= c.numActions {
		panic(fmt.Sprintf("routing: action %d out of range [0, %d)", action, c.numActions))
	}
}

func (c *core) kindOf(action int) ActionKind {
	switch e := c.graph.NumEdges(); {
	case action < e:
		return ActionSwap
	case action < e+len(c.bridgePairs):
		return ActionBridge
	default:
		return ActionCommit
	}
}

// finishStep books the step reward and closes the episode when it ends.
func (c *core) finishStep(kind ActionKind, action int, actionReward float64, sched schedResult, invalid bool) (float64, bool, bool, Info) {
	c.steps++
	reward := actionReward + sched.reward
	c.episodeReward += reward

	if c.metrics != nil {
		c.metrics.RecordStep(c.variant, kind.String(), reward)
		if invalid {
			c.metrics.RecordInvalidAction(c.variant, kind.String())
		}
	}
	c.record(sched)

	c.logger.Debug("step",
		logging.Episode(c.episodeID),
		logging.Step(c.steps),
		logging.Action(kind.String(), action),
		logging.Reward(reward),
		logging.Int("scheduled_2q", sched.twoQubit))

	terminated := c.Terminated()
	truncated := !terminated && c.maxSteps > 0 && c.steps >= c.maxSteps
	if c.episodeOpen {
		switch {
		case terminated:
			c.endEpisode("terminated")
		case truncated:
			c.endEpisode("truncated")
		}
	}

	return reward, terminated, truncated, Info{
		EpisodeID:         c.episodeID,
		Step:              c.steps,
		Action:            kind.String(),
		ActionReward:      actionReward,
		SchedulingReward:  sched.reward,
		ScheduledTwoQubit: sched.twoQubit,
		Swaps:             c.swaps,
		Bridges:           c.bridges,
		InvalidAction:     invalid,
	}
}

// absorbed is the reply to a step on a terminated environment.
func (c *core) absorbed() Info {
	return Info{
		EpisodeID: c.episodeID,
		Step:      c.steps,
		Swaps:     c.swaps,
		Bridges:   c.bridges,
	}
}

func (c *core) record(sched schedResult) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordScheduled(c.variant, 2, sched.twoQubit)
	c.metrics.RecordScheduled(c.variant, 1, sched.other)
}

func (c *core) invalidBridge(pair [2]int) {
	c.logger.Error("BRIDGE action has no candidate gate",
		logging.Episode(c.episodeID),
		logging.Step(c.steps+1),
		logging.Nodes(pair[0], pair[1]))
}

func (c *core) observe(mask []bool) Observation {
	values := make(map[string]observation.Array, len(c.modules))
	for _, m := range c.modules {
		values[m.Key()] = m.Observe(c)
	}
	return Observation{ActionMask: mask, Values: values}
}

// clone copies the episode state. Immutable fields are shared.
func (c *core) clone() core {
	out := *c
	out.nodeToQubit = slices.Clone(c.nodeToQubit)
	out.qubitToNode = slices.Clone(c.qubitToNode)
	out.dag = c.dag.Clone()
	out.routed = slices.Clone(c.routed)
	out.locks = slices.Clone(c.locks)
	// the source keeps reporting the episode
	out.episodeOpen = false
	return out
}

// quiet stops a clone from logging or recording metrics.
func (c *core) quiet() {
	c.logger = logging.NewNopLogger()
	c.metrics = nil
}

// Lookahead returns the reward and termination flag that e.Step(action)
// would produce. e is left untouched and the probe is neither logged nor
// recorded.
func Lookahead(e Env, action int) (float64, bool) {
	probe := e.Clone()
	switch p := probe.(type) {
	case *Sequential:
		p.quiet()
	case *Layered:
		p.quiet()
	}
	_, reward, terminated, _, _ := probe.Step(action)
	return reward, terminated
}

// ObservationSpec implements Env.
func (c *core) ObservationSpec() Spec {
	boxes := make(map[string]observation.Box, len(c.modules))
	for _, m := range c.modules {
		boxes[m.Key()] = m.Space(c.graph)
	}
	return Spec{NumActions: c.numActions, Modules: boxes}
}

// NumActions implements Env.
func (c *core) NumActions() int {
	return c.numActions
}

// Variant implements Env.
func (c *core) Variant() string {
	return c.variant
}

// Calibrate implements Env.
func (c *core) Calibrate(rates []float64) error {
	model, err := c.model.Calibrate(rates)
	if err != nil {
		return NewError("calibrate").Field("error_rates").Cause(err).Err()
	}
	c.model = model
	c.logger.Debug("calibrated", logging.Count(len(rates)))
	return nil
}

// SetCircuit implements Env.
func (c *core) SetCircuit(circ *circuit.Circuit) error {
	if circ == nil {
		circ = circuit.New(c.graph.NumNodes())
	}
	return c.setCircuit(circ, "set_circuit")
}

// SetInitialMapping implements Env.
func (c *core) SetInitialMapping(nodeToQubit []int) error {
	return c.setInitialMapping(nodeToQubit, "set_initial_mapping")
}

// RoutedCircuit implements Env.
func (c *core) RoutedCircuit() *circuit.Circuit {
	out := circuit.New(c.graph.NumNodes())
	out.Gates = make([]circuit.Gate, len(c.routed))
	for i, g := range c.routed {
		out.Gates[i] = g.Clone()
	}
	return out
}

// Mapping implements Env.
func (c *core) Mapping() (nodeToQubit, qubitToNode []int) {
	return slices.Clone(c.nodeToQubit), slices.Clone(c.qubitToNode)
}

// Model returns the current reward model.
func (c *core) Model() *noise.Model {
	return c.model
}

// Topology returns the device graph.
func (c *core) Topology() *topology.Graph {
	return c.graph
}

// DAG returns the live dependency graph. Callers must not modify it.
func (c *core) DAG() *circuit.DAG {
	return c.dag
}

// NodeToQubit returns the live node to qubit mapping. Callers must not
// modify it; use Mapping for a copy.
func (c *core) NodeToQubit() []int {
	return c.nodeToQubit
}

// QubitToNode returns the live qubit to node mapping. Callers must not
// modify it.
func (c *core) QubitToNode() []int {
	return c.qubitToNode
}

// LogReliabilities returns the per-edge log reliabilities of the current
// calibration.
func (c *core) LogReliabilities() []float64 {
	return c.model.LogReliabilities()
}

// Locks returns the per-node lock counters, nil for the sequential variant.
func (c *core) Locks() []int {
	return c.locks
}

package noise

import (
	"slices"

	"github.com/dd0wney/qroute/pkg/topology"
)

// Model computes step rewards for one device calibration. A Model with a
// nil config is noise-unaware and returns the flat constants.
//
// A Model is never mutated after construction, so environments that are
// cloned from each other share it until one of them recalibrates.
type Model struct {
	config *Config
	graph  *topology.Graph
	rates  []float64
	logRel []float64
}

// NewModel builds a reward model. rates may be nil for a noise-unaware model
// or when the caller calibrates later; a noise-aware model without rates
// treats every edge as perfect.
func NewModel(cfg *Config, graph *topology.Graph, rates []float64) (*Model, error) {
	m := &Model{config: cfg, graph: graph}
	if rates == nil {
		rates = make([]float64, graph.NumEdges())
	}
	return m.Calibrate(rates)
}

// Calibrate returns a new model for the given per-edge error rates.
func (m *Model) Calibrate(rates []float64) (*Model, error) {
	if err := ValidateRates(rates, m.graph.NumEdges()); err != nil {
		return nil, err
	}

	out := &Model{
		config: m.config,
		graph:  m.graph,
		rates:  slices.Clone(rates),
	}
	if m.config != nil {
		out.logRel = m.config.LogReliabilities(rates)
	} else {
		out.logRel = make([]float64, len(rates))
	}
	return out, nil
}

// NoiseAware reports whether rewards depend on the calibration.
func (m *Model) NoiseAware() bool {
	return m.config != nil
}

// Config returns the noise configuration, or nil for a noise-unaware model.
func (m *Model) Config() *Config {
	return m.config
}

// ErrorRates returns the calibrated error rates in edge order. Callers must
// not modify the result.
func (m *Model) ErrorRates() []float64 {
	return m.rates
}

// LogReliabilities returns the per-edge log-reliabilities in edge order.
// Callers must not modify the result.
func (m *Model) LogReliabilities() []float64 {
	return m.logRel
}

// EdgeLogReliability returns the log-reliability of the edge joining a and
// b in either direction.
func (m *Model) EdgeLogReliability(a, b int) float64 {
	idx, ok := m.graph.EdgeIndex(a, b)
	if !ok {
		panic("noise: no edge between nodes")
	}
	return m.logRel[idx]
}

// Reliability returns 1 - rate of the edge joining a and b.
func (m *Model) Reliability(a, b int) float64 {
	idx, ok := m.graph.EdgeIndex(a, b)
	if !ok {
		panic("noise: no edge between nodes")
	}
	return 1.0 - m.rates[idx]
}

// GateReward is the reward for executing a two-qubit gate on edge (a, b).
func (m *Model) GateReward(a, b int) float64 {
	if m.config == nil {
		return UnawareGateReward
	}
	return m.EdgeLogReliability(a, b) + m.config.AddedGateReward
}

// SwapReward is the reward for inserting a SWAP on edge (a, b).
func (m *Model) SwapReward(a, b int) float64 {
	if m.config == nil {
		return UnawareSwapReward
	}
	return 3.0 * m.EdgeLogReliability(a, b)
}

// BridgeReward is the reward for inserting a BRIDGE along
// control - middle - target.
func (m *Model) BridgeReward(control, middle, target int) float64 {
	if m.config == nil {
		return UnawareBridgeReward
	}
	return 2.0*(m.EdgeLogReliability(middle, target)+m.EdgeLogReliability(control, middle)) +
		m.config.AddedGateReward
}

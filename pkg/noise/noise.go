// Package noise turns per-edge two-qubit error rates into the
// log-reliability values and rewards used by the router.
package noise

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

var (
	ErrShapeMismatch = errors.New("error rate count does not match edge count")
	ErrRateRange     = errors.New("error rate outside [0, 1)")
)

// Reward constants for a noise-unaware model. A SWAP decomposes into three
// CNOTs and a BRIDGE into four, so they are charged accordingly.
const (
	UnawareGateReward   = 1.0
	UnawareSwapReward   = -3.0
	UnawareBridgeReward = -2.0
)

// Config holds the noise parameters of a device.
type Config struct {
	// Mean and standard deviation of sampled per-edge error rates.
	ErrorRateMean float64 `yaml:"error_rate_mean" json:"error_rate_mean" validate:"gte=0,lt=1"`
	ErrorRateStd  float64 `yaml:"error_rate_std" json:"error_rate_std" validate:"gte=0"`

	// LogBase is the base of the reliability logarithm.
	LogBase float64 `yaml:"log_base" json:"log_base" validate:"gt=1"`

	// MinLogReliability clips log-reliabilities from below and bounds the
	// observation space.
	MinLogReliability float64 `yaml:"min_log_reliability" json:"min_log_reliability" validate:"lt=0"`

	// AddedGateReward is added to the reward of every executed two-qubit gate.
	AddedGateReward float64 `yaml:"added_gate_reward" json:"added_gate_reward"`
}

// DefaultConfig returns the parameters used for the built-in devices.
func DefaultConfig() Config {
	return Config{
		ErrorRateMean:     1e-2,
		ErrorRateStd:      3e-3,
		LogBase:           2.0,
		MinLogReliability: -100.0,
		AddedGateReward:   0.02,
	}
}

// LogReliability returns max(log_B(1 - rate), MinLogReliability).
func (c Config) LogReliability(rate float64) float64 {
	v := math.Log(1.0-rate) / math.Log(c.LogBase)
	if math.IsNaN(v) || v < c.MinLogReliability {
		return c.MinLogReliability
	}
	return v
}

// LogReliabilities maps LogReliability over rates.
func (c Config) LogReliabilities(rates []float64) []float64 {
	out := make([]float64, len(rates))
	for i, r := range rates {
		out[i] = c.LogReliability(r)
	}
	return out
}

// SampleErrorRates draws n error rates from a normal distribution with the
// configured mean and deviation, clipped to [0, 1).
func (c Config) SampleErrorRates(rng *rand.Rand, n int) []float64 {
	rates := make([]float64, n)
	for i := range rates {
		r := c.ErrorRateMean + c.ErrorRateStd*rng.NormFloat64()
		rates[i] = math.Min(math.Max(r, 0), math.Nextafter(1, 0))
	}
	return rates
}

// ValidateRates checks that rates has one entry per edge and that every rate
// lies in [0, 1).
func ValidateRates(rates []float64, numEdges int) error {
	if len(rates) != numEdges {
		return fmt.Errorf("%w: got %d, want %d", ErrShapeMismatch, len(rates), numEdges)
	}
	for i, r := range rates {
		if math.IsNaN(r) || r < 0 || r >= 1 {
			return fmt.Errorf("edge %d: rate %v: %w", i, r, ErrRateRange)
		}
	}
	return nil
}

// Package config loads routing environment settings from YAML and builds
// environments from them.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/qroute/pkg/circuit"
	"github.com/dd0wney/qroute/pkg/logging"
	"github.com/dd0wney/qroute/pkg/metrics"
	"github.com/dd0wney/qroute/pkg/noise"
	"github.com/dd0wney/qroute/pkg/observation"
	"github.com/dd0wney/qroute/pkg/routing"
	"github.com/dd0wney/qroute/pkg/topology"
	"github.com/dd0wney/qroute/pkg/validation"
)

// Config is the root of a qroute configuration file.
type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Env         EnvConfig         `yaml:"env"`
	Noise       NoiseConfig       `yaml:"noise"`
	Observation ObservationConfig `yaml:"observation"`
	Evaluation  EvaluationConfig  `yaml:"evaluation"`
	Logging     LoggingConfig     `yaml:"logging"`
	Server      ServerConfig      `yaml:"server"`
}

// DefaultTopology is used when a file names no device.
const DefaultTopology = "t"

// DeviceConfig describes the coupling graph and its calibration. Either
// Topology names a built-in device or Nodes and Edges spell one out.
type DeviceConfig struct {
	Topology string   `yaml:"topology,omitempty" validate:"omitempty,topology"`
	Nodes    int      `yaml:"nodes,omitempty" validate:"gte=0"`
	Edges    [][2]int `yaml:"edges,omitempty"`

	// ErrorRates holds one rate per edge, in edge order.
	ErrorRates []float64 `yaml:"error_rates,omitempty" validate:"dive,probability"`
	// SampleErrorRates draws rates from the noise distribution instead.
	SampleErrorRates bool `yaml:"sample_error_rates"`

	Seed uint64 `yaml:"seed"`
}

type EnvConfig struct {
	Variant string `yaml:"variant" validate:"oneof=sequential layered"`
	// Circuit is an optional OpenQASM 2.0 file routed after Reset.
	Circuit string `yaml:"circuit,omitempty"`

	AllowBridge               bool `yaml:"allow_bridge"`
	CommutationAnalysis       bool `yaml:"commutation_analysis"`
	RestrictSwapsToFrontLayer bool `yaml:"restrict_swaps_to_front_layer"`
	SinglePassScheduling      bool `yaml:"single_pass_scheduling"`
	DecomposedLocks           bool `yaml:"decomposed_locks"`

	MaxSteps int `yaml:"max_steps" validate:"gte=0"`

	InitialMapping []int `yaml:"initial_mapping,omitempty"`
	RandomMapping  bool  `yaml:"random_mapping"`
}

// NoiseConfig switches noise-aware rewards on and carries their parameters.
type NoiseConfig struct {
	Enabled      bool `yaml:"enabled"`
	noise.Config `yaml:",inline"`
}

type ObservationConfig struct {
	CircuitMatrixDepth     int  `yaml:"circuit_matrix_depth" validate:"gte=0,lte=256"`
	QubitInteractionsDepth int  `yaml:"qubit_interactions_depth" validate:"gte=0,lte=256"`
	LockedEdges            bool `yaml:"locked_edges"`
}

type EvaluationConfig struct {
	Episodes int    `yaml:"episodes" validate:"gte=1"`
	Workers  int    `yaml:"workers" validate:"gte=1,lte=256"`
	Policy   string `yaml:"policy" validate:"oneof=random greedy"`
	Seed     uint64 `yaml:"seed"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

type ServerConfig struct {
	Address        string `yaml:"address" validate:"required"`
	MetricsAddress string `yaml:"metrics_address,omitempty"`
}

// Default returns the configuration used when a file omits a setting.
func Default() *Config {
	return &Config{
		Env: EnvConfig{
			Variant:                   routing.VariantSequential,
			AllowBridge:               true,
			CommutationAnalysis:       true,
			RestrictSwapsToFrontLayer: true,
		},
		Noise: NoiseConfig{Config: noise.DefaultConfig()},
		Observation: ObservationConfig{
			CircuitMatrixDepth: 8,
		},
		Evaluation: EvaluationConfig{
			Episodes: 8,
			Workers:  4,
			Policy:   "random",
			Seed:     1,
		},
		Logging: LoggingConfig{Level: "info"},
		Server: ServerConfig{
			Address:        "tcp://127.0.0.1:40899",
			MetricsAddress: ":9108",
		},
	}
}

// Load reads and validates a configuration file. A relative env.circuit
// is resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if c := cfg.Env.Circuit; c != "" && !filepath.IsAbs(c) {
		cfg.Env.Circuit = filepath.Join(filepath.Dir(path), c)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and the cross-field rules a tag cannot
// express.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}

	d := c.Device
	cv := validation.NewConfigValidator("device")
	explicit := d.Nodes != 0 || len(d.Edges) != 0
	cv.When(d.Topology == "" && explicit, func(v *validation.ConfigValidator) {
		v.Positive("nodes", d.Nodes)
		v.Custom("edges", func() error { return validation.ValidateEdges(d.Nodes, d.Edges) })
	})
	cv.When(d.Topology != "" && explicit, func(v *validation.ConfigValidator) {
		v.Custom("topology", func() error {
			return errors.New("set either topology or nodes and edges, not both")
		})
	})
	cv.When(d.SampleErrorRates && len(d.ErrorRates) > 0, func(v *validation.ConfigValidator) {
		v.Custom("sample_error_rates", func() error {
			return errors.New("cannot be combined with explicit error_rates")
		})
	})
	if err := cv.Validate(); err != nil {
		return err
	}

	env := NewEnvValidator(c)
	return env.Validate()
}

// NewEnvValidator collects the env and observation checks that depend on
// the device.
func NewEnvValidator(c *Config) *validation.ConfigValidator {
	cv := validation.NewConfigValidator("env")
	e := c.Env

	cv.When(len(e.InitialMapping) > 0, func(v *validation.ConfigValidator) {
		v.Permutation("initial_mapping", e.InitialMapping)
		if e.RandomMapping {
			v.Custom("random_mapping", func() error {
				return errors.New("cannot be combined with initial_mapping")
			})
		}
	})
	cv.When(e.SinglePassScheduling, func(v *validation.ConfigValidator) {
		v.OneOf("variant", e.Variant, []string{routing.VariantSequential})
	})
	cv.When(c.Observation.LockedEdges, func(v *validation.ConfigValidator) {
		v.OneOf("variant", e.Variant, []string{routing.VariantLayered})
	})
	cv.When(c.Device.SampleErrorRates, func(v *validation.ConfigValidator) {
		if !c.Noise.Enabled {
			v.Custom("noise", func() error {
				return errors.New("sample_error_rates needs noise.enabled")
			})
		}
	})
	return cv
}

// Topology builds the configured coupling graph.
func (c *Config) Topology() (*topology.Graph, error) {
	d := c.Device
	if d.Topology == "" && d.Nodes > 0 {
		return topology.New(d.Nodes, d.Edges)
	}
	return topology.Named(validation.DefaultOr(d.Topology, DefaultTopology))
}

// Rand returns the generator seeded by device.seed.
func (c *Config) Rand() *rand.Rand {
	seed := c.Device.Seed
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Modules returns the configured observation modules. LogReliabilities is
// added by the environment when noise is enabled.
func (c *Config) Modules() []observation.Module {
	var modules []observation.Module
	o := c.Observation
	if o.CircuitMatrixDepth > 0 {
		modules = append(modules, observation.CircuitMatrix{Depth: o.CircuitMatrixDepth})
	}
	if o.QubitInteractionsDepth > 0 {
		modules = append(modules, observation.QubitInteractions{MaxDepth: o.QubitInteractionsDepth})
	}
	if o.LockedEdges {
		maxLock := 1
		if c.Env.DecomposedLocks {
			maxLock = 4
		}
		modules = append(modules, observation.LockedEdges{MaxLock: maxLock})
	}
	return modules
}

// Options resolves the configuration against g into environment options.
// rng backs random mappings and sampled error rates.
func (c *Config) Options(g *topology.Graph, rng *rand.Rand) (routing.Options, error) {
	opts := routing.DefaultOptions()
	opts.AllowBridge = c.Env.AllowBridge
	opts.CommutationAnalysis = c.Env.CommutationAnalysis
	opts.RestrictSwapsToFrontLayer = c.Env.RestrictSwapsToFrontLayer
	opts.SinglePassScheduling = c.Env.SinglePassScheduling
	opts.DecomposedLocks = c.Env.DecomposedLocks
	opts.MaxSteps = c.Env.MaxSteps
	opts.Modules = c.Modules()

	cv := validation.NewConfigValidator("device")
	if n := len(c.Device.ErrorRates); n > 0 {
		cv.Len("error_rates", n, g.NumEdges())
	}
	if n := len(c.Env.InitialMapping); n > 0 {
		cv.Len("initial_mapping", n, g.NumNodes())
	}
	if err := cv.Validate(); err != nil {
		return routing.Options{}, err
	}

	if c.Noise.Enabled {
		nc := c.Noise.Config
		opts.Noise = &nc
	}

	switch {
	case c.Device.SampleErrorRates:
		opts.ErrorRates = c.Noise.SampleErrorRates(rng, g.NumEdges())
	case len(c.Device.ErrorRates) > 0:
		opts.ErrorRates = c.Device.ErrorRates
	}

	switch {
	case len(c.Env.InitialMapping) > 0:
		opts.InitialMapping = c.Env.InitialMapping
	case c.Env.RandomMapping:
		opts.InitialMapping = routing.RandomMapping(rng, g.NumNodes())
	}

	if c.Env.Circuit != "" {
		f, err := os.Open(c.Env.Circuit)
		if err != nil {
			return routing.Options{}, fmt.Errorf("failed to open circuit: %w", err)
		}
		defer f.Close()
		circ, err := circuit.ParseQASM(f)
		if err != nil {
			return routing.Options{}, fmt.Errorf("%s: %w", c.Env.Circuit, err)
		}
		opts.Circuit = circ
	}
	return opts, nil
}

// Build constructs the configured environment with a no-op logger and no
// metrics.
func (c *Config) Build() (routing.Env, error) {
	return c.BuildWith(nil, nil)
}

// BuildWith constructs the configured environment, logging to logger and
// reporting to reg when they are non-nil.
func (c *Config) BuildWith(logger logging.Logger, reg *metrics.Registry) (routing.Env, error) {
	g, err := c.Topology()
	if err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}
	opts, err := c.Options(g, c.Rand())
	if err != nil {
		return nil, err
	}
	opts.Logger = logger
	opts.Metrics = reg

	switch c.Env.Variant {
	case routing.VariantLayered:
		return routing.NewLayered(g, opts)
	default:
		return routing.NewSequential(g, opts)
	}
}

// LogLevel returns the configured logging level.
func (c *Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Logging.Level)
}

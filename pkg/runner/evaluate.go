// Package runner evaluates routing policies over batches of circuits on a
// worker pool.
package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/qroute/pkg/circuit"
	"github.com/dd0wney/qroute/pkg/logging"
	"github.com/dd0wney/qroute/pkg/metrics"
	"github.com/dd0wney/qroute/pkg/noise"
	"github.com/dd0wney/qroute/pkg/routing"
)

var (
	ErrNoCompletedEpisode = errors.New("no episode routed the whole circuit")
	ErrNoValidAction      = errors.New("policy found no valid action")
	ErrTaskAborted        = errors.New("evaluation task did not finish")
)

// DefaultMaxSteps bounds an episode when the environment does not.
const DefaultMaxSteps = 10000

// Job is one circuit to route.
type Job struct {
	Name    string
	Circuit *circuit.Circuit
}

// Result is the best routing found for a job.
type Result struct {
	Name string `json:"name"`
	// Routed is the best-reward routed circuit, before decomposition.
	Routed *circuit.Circuit `json:"-"`
	Reward float64          `json:"reward"`

	Swaps   int `json:"swaps"`
	Bridges int `json:"bridges"`
	// CNOTs and Depth are measured after swaps and bridges are expanded.
	CNOTs int `json:"cnots"`
	Depth int `json:"depth"`
	// Reliability is the product of edge reliabilities over every
	// two-qubit gate of the decomposed circuit.
	Reliability float64 `json:"reliability"`

	Episodes  int           `json:"episodes"`
	Completed int           `json:"completed"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// Options configure an Evaluator.
type Options struct {
	// Episodes per job; the best-reward completed episode wins.
	Episodes int
	Workers  int
	Seed     uint64
	// MaxSteps caps every episode. Zero means DefaultMaxSteps.
	MaxSteps int
	Policy   PolicyFactory

	Logger  logging.Logger
	Metrics *metrics.Registry
}

// Evaluator routes jobs with a policy on clones of a template environment.
type Evaluator struct {
	template routing.Env
	opts     Options
	logger   logging.Logger
}

// NewEvaluator creates an evaluator. template is cloned once per job and
// never stepped itself.
func NewEvaluator(template routing.Env, opts Options) (*Evaluator, error) {
	if template == nil {
		return nil, errors.New("runner: nil environment")
	}
	if opts.Episodes <= 0 {
		return nil, fmt.Errorf("runner: episodes must be positive, got %d", opts.Episodes)
	}
	if opts.Policy == nil {
		opts.Policy, _ = NamedPolicy(PolicyRandom)
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Evaluator{
		template: template,
		opts:     opts,
		logger:   logger.With(logging.Component("runner")),
	}, nil
}

// Evaluate routes every job concurrently and returns one result per job in
// input order. Per-job failures are reported in Result.Err; the returned
// error is only set when ctx ends first.
func (e *Evaluator) Evaluate(ctx context.Context, jobs []Job) ([]Result, error) {
	runID := uuid.New().String()
	logger := e.logger.With(logging.String("run_id", runID))
	timer := logging.StartTimer(logger, "evaluation", logging.Count(len(jobs)))

	pool, err := NewWorkerPool(e.opts.Workers, logger, e.opts.Metrics)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(jobs))
	for i, job := range jobs {
		results[i] = Result{Name: job.Name, Err: ErrTaskAborted}
		env := e.template.Clone()
		rng := rand.New(rand.NewPCG(e.opts.Seed, uint64(i)))

		pool.Submit(func() {
			res := e.route(ctx, env, job, e.opts.Policy(rng))
			results[i] = res

			status := "ok"
			if res.Err != nil {
				status = "error"
				logger.Warn("job failed", logging.Circuit(job.Name), logging.Error(res.Err))
			} else if e.opts.Metrics != nil {
				e.opts.Metrics.RecordRoutedCircuit(res.CNOTs, res.Reliability)
			}
			if e.opts.Metrics != nil {
				e.opts.Metrics.RecordWorkerTask(status)
			}
		})
	}
	pool.Close()

	if err := ctx.Err(); err != nil {
		timer.EndError(err)
		return results, err
	}
	timer.End()
	return results, nil
}

// Route runs the configured number of episodes of job on env and keeps the
// best completed one.
func (e *Evaluator) Route(ctx context.Context, env routing.Env, job Job, policy Policy) Result {
	return e.route(ctx, env, job, policy)
}

func (e *Evaluator) route(ctx context.Context, env routing.Env, job Job, policy Policy) Result {
	start := time.Now()
	res := Result{Name: job.Name}

	if err := env.SetCircuit(job.Circuit); err != nil {
		res.Err = err
		return res
	}

	var best *circuit.Circuit
	for ep := 0; ep < e.opts.Episodes; ep++ {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}

		reward, done, err := e.episode(ctx, env, policy)
		res.Episodes++
		if err != nil {
			res.Err = err
			return res
		}
		if !done {
			continue
		}
		res.Completed++
		if best == nil || reward > res.Reward {
			best = env.RoutedCircuit()
			res.Reward = reward
		}
	}

	res.Duration = time.Since(start)
	if best == nil {
		res.Err = ErrNoCompletedEpisode
		return res
	}

	res.Routed = best
	counts := best.CountOps()
	res.Swaps = counts[circuit.SwapGate]
	res.Bridges = counts[circuit.BridgeGate]

	decomposed := best.Decompose()
	res.CNOTs = decomposed.CountTwoQubitGates()
	res.Depth = decomposed.Depth()
	res.Reliability = Reliability(env, decomposed)
	return res
}

// episode runs one episode and reports its total reward and whether the
// circuit was fully routed.
func (e *Evaluator) episode(ctx context.Context, env routing.Env, policy Policy) (float64, bool, error) {
	obs, info := env.Reset()
	total := info.SchedulingReward

	for step := 0; step < e.opts.MaxSteps; step++ {
		if env.Terminated() {
			return total, true, nil
		}
		if step%256 == 0 {
			if err := ctx.Err(); err != nil {
				return total, false, err
			}
		}

		a := policy.Act(env, obs)
		if a < 0 || a >= len(obs.ActionMask) || !obs.ActionMask[a] {
			return total, false, fmt.Errorf("%w: step %d", ErrNoValidAction, step)
		}

		var (
			reward    float64
			truncated bool
		)
		obs, reward, _, truncated, _ = env.Step(a)
		total += reward
		if truncated {
			return total, false, nil
		}
	}
	return total, env.Terminated(), nil
}

// Reliability is the product of edge reliabilities over the two-qubit
// gates of c, using env's current calibration. Environments that expose no
// reward model count every edge as perfect.
func Reliability(env routing.Env, c *circuit.Circuit) float64 {
	m, ok := env.(interface{ Model() *noise.Model })
	if !ok {
		return 1
	}
	model := m.Model()

	p := 1.0
	for _, g := range c.Gates {
		if g.IsTwoQubit() {
			p *= model.Reliability(g.Qubits[0], g.Qubits[1])
		}
	}
	return p
}

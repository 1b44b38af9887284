package runner

import (
	"fmt"
	"math/rand/v2"

	"github.com/dd0wney/qroute/pkg/routing"
)

// Policy picks the next action for an environment. Implementations may
// only return actions that obs.ActionMask allows.
type Policy interface {
	Act(env routing.Env, obs routing.Observation) int
}

// PolicyFactory builds a policy for one evaluation task. Tasks run
// concurrently, so each gets its own generator.
type PolicyFactory func(rng *rand.Rand) Policy

// Policy names accepted by NamedPolicy.
const (
	PolicyRandom = "random"
	PolicyGreedy = "greedy"
)

// NamedPolicy resolves a policy name.
func NamedPolicy(name string) (PolicyFactory, error) {
	switch name {
	case PolicyRandom:
		return func(rng *rand.Rand) Policy { return &MaskedRandom{rng: rng} }, nil
	case PolicyGreedy:
		return func(rng *rand.Rand) Policy { return &Greedy{rng: rng, Epsilon: 0.1} }, nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}

// MaskedRandom picks uniformly among the valid actions.
type MaskedRandom struct {
	rng *rand.Rand
}

func NewMaskedRandom(rng *rand.Rand) *MaskedRandom {
	return &MaskedRandom{rng: rng}
}

func (p *MaskedRandom) Act(_ routing.Env, obs routing.Observation) int {
	return pick(p.rng, validActions(obs.ActionMask))
}

// Greedy takes the valid action with the highest immediate reward, breaking
// ties at random. With probability Epsilon it acts like MaskedRandom, which
// keeps it from cycling between equally rewarded swaps.
type Greedy struct {
	rng     *rand.Rand
	Epsilon float64
}

func NewGreedy(rng *rand.Rand, epsilon float64) *Greedy {
	return &Greedy{rng: rng, Epsilon: epsilon}
}

func (p *Greedy) Act(env routing.Env, obs routing.Observation) int {
	valid := validActions(obs.ActionMask)
	if p.rng.Float64() < p.Epsilon {
		return pick(p.rng, valid)
	}

	var best []int
	bestReward := 0.0
	for _, a := range valid {
		r, terminated := routing.Lookahead(env, a)
		if terminated {
			return a
		}
		switch {
		case len(best) == 0 || r > bestReward:
			best = append(best[:0], a)
			bestReward = r
		case r == bestReward:
			best = append(best, a)
		}
	}
	return pick(p.rng, best)
}

func validActions(mask []bool) []int {
	out := make([]int, 0, len(mask))
	for i, ok := range mask {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// pick returns a random element of actions, or -1 if there is none.
func pick(rng *rand.Rand, actions []int) int {
	if len(actions) == 0 {
		return -1
	}
	return actions[rng.IntN(len(actions))]
}

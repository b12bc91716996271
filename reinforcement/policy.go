package reinforcement

import (
	"fmt"
	"math/rand/v2"

	"ptzcam/environment"
	"ptzcam/models"
)

// Policy names accepted in TrainingConfig.Policy.
const (
	RANDOM         = "random"
	GREEDY         = "greedy"
	EPSILON_GREEDY = "epsilon-greedy"
	STATIC         = "static"
)

// Policy chooses the next action from the environment's latest info payload.
type Policy interface {
	Act(env environment.Env, info models.Info) models.Action
}

// NewPolicy builds the named policy. Each worker gets its own policy, since the
// policies hold an unsynchronized random source.
func NewPolicy(name string, epsilon float64, rng *rand.Rand) (Policy, error) {
	switch name {
	case RANDOM:
		return &randomPolicy{rng: rng}, nil
	case GREEDY:
		return greedyPolicy{}, nil
	case EPSILON_GREEDY:
		if epsilon < 0 || epsilon > 1 {
			return nil, fmt.Errorf("epsilon %v outside [0, 1]", epsilon)
		}
		return &epsilonGreedyPolicy{
			epsilon: epsilon,
			rng:     rng,
			explore: &randomPolicy{rng: rng},
		}, nil
	case STATIC:
		return staticPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown policy %q", name)
}

// randomPolicy samples uniformly from the action space.
type randomPolicy struct {
	rng *rand.Rand
}

func (rp *randomPolicy) Act(env environment.Env, _ models.Info) models.Action {
	bx, by := env.ActionBounds()
	if env.Mode() == models.Direct {
		return models.MoveAction(rp.rng.IntN(bx), rp.rng.IntN(by))
	}
	return models.StepAction(models.Direction(rp.rng.IntN(bx)))
}

// greedyPolicy heads for the viewport position with the highest current count. It
// sees the whole coverage map, so it acts as an oracle baseline. Without a coverage
// map (recorded frames) it holds still.
type greedyPolicy struct{}

func (greedyPolicy) Act(env environment.Env, info models.Info) models.Action {
	if len(info.Coverage) == 0 {
		return hold(env, info)
	}
	best, _ := info.Coverage.Best()

	if env.Mode() == models.Direct {
		bx, by := env.ActionBounds()
		return models.MoveAction(min(best.X, bx-1), min(best.Y, by-1))
	}
	return models.StepAction(towards(info.Viewport, best))
}

// towards returns the unit step that closes the horizontal gap first, then the vertical.
func towards(from, to models.ViewportPosition) models.Direction {
	switch {
	case to.X > from.X:
		return models.Right
	case to.X < from.X:
		return models.Left
	case to.Y > from.Y:
		return models.Down
	case to.Y < from.Y:
		return models.Up
	}
	return models.NoOp
}

type epsilonGreedyPolicy struct {
	epsilon float64
	rng     *rand.Rand
	explore Policy
	exploit greedyPolicy
}

func (eg *epsilonGreedyPolicy) Act(env environment.Env, info models.Info) models.Action {
	if eg.rng.Float64() < eg.epsilon {
		return eg.explore.Act(env, info)
	}
	return eg.exploit.Act(env, info)
}

// staticPolicy never moves the camera.
type staticPolicy struct{}

func (staticPolicy) Act(env environment.Env, info models.Info) models.Action {
	return hold(env, info)
}

func hold(env environment.Env, info models.Info) models.Action {
	if env.Mode() == models.Direct {
		return models.MoveAction(info.Viewport.X, info.Viewport.Y)
	}
	return models.StepAction(models.NoOp)
}

package reinforcement

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ptzcam/environment"
	"ptzcam/models"

	. "github.com/smartystreets/goconvey/convey"
)

// fakeEnv is a fixed-mode env whose Step fails after failAfter steps, if failAfter > 0.
type fakeEnv struct {
	mode      models.ControlMode
	bx, by    int
	steps     int
	failAfter int
}

var errFakeStep = errors.New("fake step failure")

func (fe *fakeEnv) Reset() (models.Observation, models.Info, error) {
	fe.steps = 0
	return models.Observation{}, models.Info{}, nil
}

func (fe *fakeEnv) Step(models.Action) (models.StepResult, error) {
	fe.steps++
	if fe.failAfter > 0 && fe.steps >= fe.failAfter {
		return models.StepResult{}, errFakeStep
	}
	return models.StepResult{Reward: 1}, nil
}

func (fe *fakeEnv) Mode() models.ControlMode { return fe.mode }
func (fe *fakeEnv) ActionBounds() (int, int) { return fe.bx, fe.by }

func stepwiseEnv() *fakeEnv {
	return &fakeEnv{mode: models.Stepwise, bx: int(models.NUM_DIRECTIONS), by: 0}
}

func directEnv() *fakeEnv {
	return &fakeEnv{mode: models.Direct, bx: 5, by: 3}
}

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromYaml(t *testing.T) {
	Convey("When loading a rollout config", t, func() {
		Convey("Given a complete document", func() {
			path := writeConfig(t, `
kind: ptz-rollout
def:
  policy: epsilon-greedy
  episodes: 4
  max_steps: 50
  hyper_params:
    - key: epsilon
      val: 0.25
  training_deadline:
    duration: 30s
  environment:
    variant: synthetic
    control: direct
    geometry:
      num_grid_x: 9
      num_grid_y: 5
      num_viewport_x: 5
      num_viewport_y: 3
      grid_size: 50
      lane_width: 25
      obj_margin: 2
    spawn:
      probability: 0.05
      velocity_mean: 8
      velocity_stddev: 2
    seed: 7
`)
			cfg, err := FromYaml(path)
			So(err, ShouldBeNil)
			So(cfg.Policy, ShouldEqual, EPSILON_GREEDY)
			So(cfg.Episodes, ShouldEqual, 4)
			So(cfg.MaxSteps, ShouldEqual, 50)
			So(cfg.Epsilon(), ShouldEqual, 0.25)
			So(cfg.Environment.Control, ShouldEqual, "direct")
			So(cfg.Environment.Geometry.LaneWidth, ShouldEqual, 25)
			So(cfg.Environment.Spawn.Probability, ShouldEqual, 0.05)
			So(cfg.Environment.Seed, ShouldEqual, 7)

			Convey("Fields it omits keep their defaults", func() {
				So(cfg.Environment.PrewarmSteps, ShouldEqual, environment.DEFAULT_PREWARM_STEPS)
				So(cfg.Environment.RenderMode, ShouldEqual, environment.RENDER_RGB_ARRAY)
			})
		})

		Convey("Given a minimal document, the defaults are used", func() {
			cfg, err := FromYaml(writeConfig(t, "kind: ptz-rollout\ndef:\n  episodes: 3\n"))
			So(err, ShouldBeNil)
			So(cfg.Episodes, ShouldEqual, 3)
			So(cfg.Policy, ShouldEqual, RANDOM)
			So(cfg.Environment.Variant, ShouldEqual, environment.SYNTHETIC)
			So(cfg.Epsilon(), ShouldEqual, DEFAULT_EPSILON)
		})

		Convey("Given the wrong kind", func() {
			_, err := FromYaml(writeConfig(t, "kind: grid-world\ndef:\n  episodes: 3\n"))
			So(err, ShouldNotBeNil)
		})

		Convey("Given an unknown policy", func() {
			_, err := FromYaml(writeConfig(t, "kind: ptz-rollout\ndef:\n  policy: sarsa\n"))
			So(err, ShouldNotBeNil)
		})

		Convey("Given an invalid environment", func() {
			_, err := FromYaml(writeConfig(t, "kind: ptz-rollout\ndef:\n  environment:\n    render_mode: human\n"))
			So(errors.Is(err, environment.ErrRenderMode), ShouldBeTrue)
		})

		Convey("Given a missing file", func() {
			_, err := FromYaml(filepath.Join(t.TempDir(), "nope.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestTrainingDeadline(t *testing.T) {
	Convey("When applying the training deadline", t, func() {
		cfg := DefaultTrainingConfig()

		Convey("No deadline leaves the context open", func() {
			ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldBeNil)
			defer cancel()
			_, hasDeadline := ctx.Deadline()
			So(hasDeadline, ShouldBeFalse)
		})

		Convey("A duration sets the deadline", func() {
			cfg.TrainingDeadline = map[string]string{"duration": "1ms"}
			ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldBeNil)
			defer cancel()
			<-ctx.Done()
			So(errors.Is(ctx.Err(), context.DeadlineExceeded), ShouldBeTrue)
		})

		Convey("A malformed duration is an error", func() {
			cfg.TrainingDeadline = map[string]string{"duration": "soon"}
			_, _, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldNotBeNil)
		})
	})
}

func TestPolicies(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	Convey("When constructing policies", t, func() {
		for _, name := range []string{RANDOM, GREEDY, EPSILON_GREEDY, STATIC} {
			_, err := NewPolicy(name, 0.5, rng)
			So(err, ShouldBeNil)
		}
		_, err := NewPolicy("q-learning", 0.5, rng)
		So(err, ShouldNotBeNil)
		_, err = NewPolicy(EPSILON_GREEDY, 1.5, rng)
		So(err, ShouldNotBeNil)
	})

	Convey("Given coverage concentrated at (3,1)", t, func() {
		info := models.Info{
			Viewport: models.ViewportPosition{X: 2, Y: 1},
			Coverage: models.CoverageMap{
				{X: 2, Y: 1}: 1,
				{X: 3, Y: 1}: 4,
				{X: 0, Y: 0}: 2,
			},
		}
		greedy, _ := NewPolicy(GREEDY, 0, nil)

		Convey("The stepwise greedy policy steps right", func() {
			So(greedy.Act(stepwiseEnv(), info), ShouldResemble, models.StepAction(models.Right))
		})

		Convey("The direct greedy policy jumps to the best position", func() {
			So(greedy.Act(directEnv(), info), ShouldResemble, models.MoveAction(3, 1))
		})

		Convey("Once there, the stepwise greedy policy holds", func() {
			info.Viewport = models.ViewportPosition{X: 3, Y: 1}
			So(greedy.Act(stepwiseEnv(), info), ShouldResemble, models.StepAction(models.NoOp))
		})

		Convey("A zero-epsilon policy never explores", func() {
			eg, _ := NewPolicy(EPSILON_GREEDY, 0, rng)
			for i := 0; i < 100; i++ {
				So(eg.Act(directEnv(), info), ShouldResemble, models.MoveAction(3, 1))
			}
		})
	})

	Convey("When stepping vertically toward the best position", t, func() {
		So(towards(models.ViewportPosition{X: 1, Y: 2}, models.ViewportPosition{X: 1, Y: 0}), ShouldEqual, models.Up)
		So(towards(models.ViewportPosition{X: 1, Y: 0}, models.ViewportPosition{X: 1, Y: 2}), ShouldEqual, models.Down)
		So(towards(models.ViewportPosition{X: 3, Y: 0}, models.ViewportPosition{X: 1, Y: 2}), ShouldEqual, models.Left)
	})

	Convey("Without a coverage map", t, func() {
		info := models.Info{Viewport: models.ViewportPosition{X: 1, Y: 2}}

		Convey("Greedy and static hold in direct mode", func() {
			greedy, _ := NewPolicy(GREEDY, 0, nil)
			static, _ := NewPolicy(STATIC, 0, nil)
			So(greedy.Act(directEnv(), info), ShouldResemble, models.MoveAction(1, 2))
			So(static.Act(directEnv(), info), ShouldResemble, models.MoveAction(1, 2))
		})

		Convey("Static holds in stepwise mode", func() {
			static, _ := NewPolicy(STATIC, 0, nil)
			So(static.Act(stepwiseEnv(), info), ShouldResemble, models.StepAction(models.NoOp))
		})
	})

	Convey("The random policy stays inside the action space", t, func() {
		random, _ := NewPolicy(RANDOM, 0, rng)
		outOfBounds := 0
		for i := 0; i < 1000; i++ {
			stepAction := random.Act(stepwiseEnv(), models.Info{})
			if stepAction.Dir < 0 || stepAction.Dir >= models.NUM_DIRECTIONS {
				outOfBounds++
			}
			moveAction := random.Act(directEnv(), models.Info{})
			if moveAction.Target.X < 0 || moveAction.Target.X >= 5 ||
				moveAction.Target.Y < 0 || moveAction.Target.Y >= 3 {
				outOfBounds++
			}
		}
		So(outOfBounds, ShouldEqual, 0)
	})
}

func smallTrainingConfig() *TrainingConfig {
	cfg := DefaultTrainingConfig()
	cfg.Episodes = 7
	cfg.MaxSteps = 20
	cfg.Environment.PrewarmSteps = 10
	return cfg
}

func syntheticFactory(cfg *TrainingConfig) EnvFactory {
	return func(worker int) (environment.Env, error) {
		envCfg := cfg.Environment
		envCfg.Seed = uint64(worker)
		return environment.New(envCfg, nil)
	}
}

func TestRun(t *testing.T) {
	Convey("When running synthetic rollouts", t, func() {
		cfg := smallTrainingConfig()
		cfg.Policy = GREEDY

		var mu sync.Mutex
		var summaries []*EpisodeSummary
		progress := func(_ context.Context, _ Stats, ep *EpisodeSummary) {
			mu.Lock()
			defer mu.Unlock()
			summaries = append(summaries, ep)
		}

		stats, err := Run(context.Background(), cfg, syntheticFactory(cfg), 3, progress)
		So(err, ShouldBeNil)

		Convey("Every episode is run to max steps and reported", func() {
			So(stats.Episodes, ShouldEqual, cfg.Episodes)
			So(stats.Steps, ShouldEqual, cfg.Episodes*cfg.MaxSteps)
			So(len(summaries), ShouldEqual, cfg.Episodes)
		})

		Convey("The totals agree with the episodes", func() {
			total, best := 0.0, summaries[0].TotalReward
			workers := map[int]int{}
			ids := map[string]bool{}
			for _, ep := range summaries {
				stepTotal := 0.0
				for _, step := range ep.Steps {
					stepTotal += step.Reward
				}
				So(ep.TotalReward, ShouldEqual, stepTotal)
				So(ep.Terminated, ShouldBeFalse)
				So(ep.Finished.Before(ep.Started), ShouldBeFalse)
				So(len(ep.FinalCoverage), ShouldEqual, 15)
				total += ep.TotalReward
				best = max(best, ep.TotalReward)
				workers[ep.Worker]++
				ids[ep.ID.String()] = true
			}
			So(stats.TotalReward, ShouldEqual, total)
			So(stats.BestEpisodeReward, ShouldEqual, best)
			So(stats.MeanStepReward, ShouldAlmostEqual, total/float64(stats.Steps))
			So(len(ids), ShouldEqual, cfg.Episodes)
			So(workers, ShouldResemble, map[int]int{0: 3, 1: 2, 2: 2})
		})
	})

	Convey("When the context is already cancelled", t, func() {
		cfg := smallTrainingConfig()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		stats, err := Run(ctx, cfg, syntheticFactory(cfg), 2, nil)
		So(err, ShouldBeNil)
		So(stats.Episodes, ShouldEqual, 0)
	})

	Convey("When the deadline expires mid-run", t, func() {
		cfg := smallTrainingConfig()
		cfg.Episodes = 1000000
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		stats, err := Run(ctx, cfg, syntheticFactory(cfg), 2, nil)
		So(err, ShouldBeNil)
		So(stats.Episodes, ShouldBeLessThan, cfg.Episodes)
	})

	Convey("When an environment fails", t, func() {
		cfg := smallTrainingConfig()
		factory := func(int) (environment.Env, error) {
			env := stepwiseEnv()
			env.failAfter = 5
			return env, nil
		}
		_, err := Run(context.Background(), cfg, factory, 2, nil)
		So(errors.Is(err, errFakeStep), ShouldBeTrue)
	})

	Convey("When the factory fails", t, func() {
		cfg := smallTrainingConfig()
		factory := func(int) (environment.Env, error) {
			return nil, environment.ErrNoFrames
		}
		_, err := Run(context.Background(), cfg, factory, 2, nil)
		So(errors.Is(err, environment.ErrNoFrames), ShouldBeTrue)
	})

	Convey("When replaying recorded frames", t, func() {
		cfg := smallTrainingConfig()
		cfg.Episodes = 2
		cfg.Policy = STATIC
		frames := make(environment.MemoryFrames, 5)
		for i := range frames {
			frames[i] = models.Frame(models.NewObservation(90, 50))
		}
		cfg.Environment.Variant = environment.RECORDED
		factory := func(int) (environment.Env, error) {
			return environment.New(cfg.Environment, frames)
		}

		stats, err := Run(context.Background(), cfg, factory, 1, nil)
		So(err, ShouldBeNil)
		So(stats.Episodes, ShouldEqual, 2)
		// five frames: reset consumes one, the last of four steps terminates
		So(stats.Steps, ShouldEqual, 2*4)
		So(stats.TotalReward, ShouldEqual, 0)
	})
}

/*
Package reinforcement runs agents against PTZ camera environments. Each worker owns a
private environment and policy and generates whole episodes, which are fanned in to a
single aggregator. Nothing about an environment is shared between workers, so the
only coordination is the merged episode channel.
*/
package reinforcement

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"ptzcam/environment"
	"ptzcam/models"

	"github.com/google/uuid"
	channerics "github.com/niceyeti/channerics/channels"
)

// StepRecord is one step of an episode as seen by the agent.
type StepRecord struct {
	Step       int                     `json:"step"`
	Viewport   models.ViewportPosition `json:"viewport"`
	Reward     float64                 `json:"reward"`
	Terminated bool                    `json:"terminated"`
}

// EpisodeSummary is a completed (or cut short) episode.
type EpisodeSummary struct {
	ID          uuid.UUID    `json:"id"`
	Worker      int          `json:"worker"`
	Policy      string       `json:"policy"`
	Steps       []StepRecord `json:"steps"`
	TotalReward float64      `json:"total_reward"`
	// Terminated is set when the environment ended the episode rather than MaxSteps.
	Terminated bool      `json:"terminated"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	// FinalCoverage is the coverage map after the last step, if the environment has one.
	FinalCoverage []models.CoverageEntry `json:"final_coverage,omitempty"`
	// Err is set when the worker had to abandon the episode.
	Err error `json:"-"`
}

// Stats aggregates every episode received so far.
type Stats struct {
	Episodes          int                    `json:"episodes"`
	Steps             int                    `json:"steps"`
	TotalReward       float64                `json:"total_reward"`
	MeanStepReward    float64                `json:"mean_step_reward"`
	BestEpisodeReward float64                `json:"best_episode_reward"`
	LastEpisode       uuid.UUID              `json:"last_episode"`
	LastCoverage      []models.CoverageEntry `json:"last_coverage,omitempty"`
}

func (stats *Stats) add(ep *EpisodeSummary) {
	if stats.Episodes == 0 || ep.TotalReward > stats.BestEpisodeReward {
		stats.BestEpisodeReward = ep.TotalReward
	}
	stats.Episodes++
	stats.Steps += len(ep.Steps)
	stats.TotalReward += ep.TotalReward
	if stats.Steps > 0 {
		stats.MeanStepReward = stats.TotalReward / float64(stats.Steps)
	}
	stats.LastEpisode = ep.ID
	if ep.FinalCoverage != nil {
		stats.LastCoverage = ep.FinalCoverage
	}
}

// ProgressFunc is called by the aggregator after each episode is folded into the stats.
// It runs on the aggregator goroutine, so a slow hook throttles the workers.
type ProgressFunc func(ctx context.Context, stats Stats, episode *EpisodeSummary)

// EnvFactory builds the private environment for a worker.
type EnvFactory func(worker int) (environment.Env, error)

// Run generates cfg.Episodes episodes over nworkers workers and blocks until they are
// all done or ctx is cancelled. Cancellation is a normal stop: the stats gathered so
// far are returned without error. The first episode error cancels the remaining work
// and is returned. Worker i's policy draws from a source seeded by
// (cfg.Environment.Seed, i).
func Run(
	ctx context.Context,
	cfg *TrainingConfig,
	factory EnvFactory,
	nworkers int,
	progressFn ProgressFunc,
) (stats Stats, err error) {
	if nworkers <= 0 {
		nworkers = 1
	}
	nworkers = min(nworkers, cfg.Episodes)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Build everything up front so configuration errors surface before any work starts.
	workers := make([]<-chan *EpisodeSummary, 0, nworkers)
	for i := 0; i < nworkers; i++ {
		var env environment.Env
		if env, err = factory(i); err != nil {
			return stats, fmt.Errorf("worker %d: %w", i, err)
		}
		rng := rand.New(rand.NewPCG(cfg.Environment.Seed, uint64(i)))
		var policy Policy
		if policy, err = NewPolicy(cfg.Policy, cfg.Epsilon(), rng); err != nil {
			return stats, err
		}

		quota := cfg.Episodes / nworkers
		if i < cfg.Episodes%nworkers {
			quota++
		}
		workers = append(workers, agentWorker(runCtx, i, env, policy, cfg, quota))
	}

	for episode := range channerics.Merge(runCtx.Done(), workers...) {
		if episode.Err != nil {
			if err == nil {
				err = fmt.Errorf("worker %d episode %s: %w", episode.Worker, episode.ID, episode.Err)
			}
			cancel()
			continue
		}
		stats.add(episode)
		if progressFn != nil {
			progressFn(runCtx, stats, episode)
		}
	}

	return stats, err
}

// agentWorker runs quota episodes and sends each one down the returned channel, which
// is closed when the worker finishes or ctx is done.
func agentWorker(
	ctx context.Context,
	id int,
	env environment.Env,
	policy Policy,
	cfg *TrainingConfig,
	quota int,
) <-chan *EpisodeSummary {
	episodes := make(chan *EpisodeSummary)

	go func() {
		defer close(episodes)
		for i := 0; i < quota && ctx.Err() == nil; i++ {
			episode := runEpisode(ctx, id, env, policy, cfg)
			select {
			case episodes <- episode:
			case <-ctx.Done():
				return
			}
			if episode.Err != nil {
				return
			}
		}
	}()

	return episodes
}

// runEpisode plays one episode to termination or cfg.MaxSteps.
func runEpisode(
	ctx context.Context,
	id int,
	env environment.Env,
	policy Policy,
	cfg *TrainingConfig,
) *EpisodeSummary {
	episode := &EpisodeSummary{
		ID:      uuid.New(),
		Worker:  id,
		Policy:  cfg.Policy,
		Started: time.Now(),
		Steps:   make([]StepRecord, 0, cfg.MaxSteps),
	}
	defer func() { episode.Finished = time.Now() }()

	_, info, err := env.Reset()
	if err != nil {
		episode.Err = fmt.Errorf("reset: %w", err)
		return episode
	}

	for step := 0; step < cfg.MaxSteps && ctx.Err() == nil; step++ {
		result, err := env.Step(policy.Act(env, info))
		if errors.Is(err, environment.ErrFramesExhausted) {
			episode.Terminated = true
			break
		}
		if err != nil {
			episode.Err = fmt.Errorf("step %d: %w", step, err)
			return episode
		}

		info = result.Info
		episode.TotalReward += result.Reward
		episode.Steps = append(episode.Steps, StepRecord{
			Step:       step,
			Viewport:   result.Info.Viewport,
			Reward:     result.Reward,
			Terminated: result.Terminated,
		})
		if result.Terminated {
			episode.Terminated = true
			break
		}
	}

	if info.Coverage != nil {
		episode.FinalCoverage = info.Coverage.Entries()
	}
	return episode
}

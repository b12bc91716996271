/*
Ptzcam rolls out camera-control agents against a simulated pan-tilt-zoom camera. The camera
sees a window (the viewport) of a larger grid, across which objects travel in horizontal
lanes; the agent is rewarded for keeping objects in view. Alternatively the camera replays
recorded panoramic frames. Workers each run their own environment and episodes are
aggregated into stats, which are served over http and websocket while the rollout runs,
and optionally logged to sqlite.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"

	"ptzcam/environment"
	"ptzcam/episodelog"
	"ptzcam/reinforcement"
	"ptzcam/server"
	"ptzcam/server/stream"

	"golang.org/x/sync/errgroup"
)

var (
	configPath *string
	nworkers   *int
	host       *string
	port       *string
	dbPath     *string
	framesGlob *string
	linger     *bool
	logEvery   *int
)

func parseFlags() {
	configPath = flag.String("config", "./config.yaml", "path to the rollout config")
	nworkers = flag.Int("nworkers", runtime.NumCPU(), "number of worker rollout routines")
	host = flag.String("host", "", "The host ip")
	port = flag.String("port", "8080", "The host port")
	dbPath = flag.String("db", "", "sqlite file to log episodes to; empty disables the episode log")
	framesGlob = flag.String("frames", "./frames/*.png", "glob of png frames for the recorded variant, replayed in lexical order")
	linger = flag.Bool("linger", false, "keep serving after the rollout completes")
	logEvery = flag.Int("log-every", 10, "log stats every n episodes")
	flag.Parse()
}

func runApp() (err error) {
	var cfg *reinforcement.TrainingConfig
	if cfg, err = reinforcement.FromYaml(*configPath); err != nil {
		return
	}

	appCtx, appCancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer appCancel()

	var frames environment.FrameSource
	if cfg.Environment.Variant == environment.RECORDED {
		if frames, err = loadFrames(*framesGlob); err != nil {
			return
		}
	}

	var store server.EpisodeStore
	var db *episodelog.DB
	if *dbPath != "" {
		if db, err = episodelog.Open(*dbPath); err != nil {
			return fmt.Errorf("episode log: %w", err)
		}
		defer db.Close()
		store = db
	}

	// Either routine failing stops the other.
	group, groupCtx := errgroup.WithContext(appCtx)

	trainingCtx, trainingCancel, err := cfg.WithTrainingDeadline(groupCtx)
	if err != nil {
		return
	}
	defer trainingCancel()

	hub := stream.NewHub[reinforcement.Stats]()
	srv := server.NewServer(groupCtx, *host+":"+*port, hub, store)

	group.Go(srv.Serve)
	group.Go(func() error {
		defer func() {
			if !*linger {
				appCancel()
			}
		}()

		log.Printf("rollout: %d episodes of %s policy over %d workers", cfg.Episodes, cfg.Policy, *nworkers)
		stats, err := reinforcement.Run(
			trainingCtx,
			cfg,
			envFactory(cfg, frames),
			*nworkers,
			exportEpisodes(hub, db, *logEvery))
		if err != nil {
			return err
		}
		hub.Publish(stats)
		log.Printf("rollout done: %d episodes, %d steps, mean reward %.3f per step, best episode %.1f",
			stats.Episodes, stats.Steps, stats.MeanStepReward, stats.BestEpisodeReward)
		return nil
	})

	return group.Wait()
}

// envFactory gives each worker its own environment. Synthetic workers are seeded
// apart so they don't replay the same traffic.
func envFactory(cfg *reinforcement.TrainingConfig, frames environment.FrameSource) reinforcement.EnvFactory {
	return func(worker int) (environment.Env, error) {
		envCfg := cfg.Environment
		envCfg.Seed += uint64(worker)
		return environment.New(envCfg, frames)
	}
}

func loadFrames(glob string) (environment.FrameSource, error) {
	paths, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("frames %s: %w", glob, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("frames %s: %w", glob, environment.ErrNoFrames)
	}
	sort.Strings(paths)
	log.Printf("replaying %d frames from %s", len(paths), glob)
	return environment.NewPNGFrames(paths), nil
}

// exportEpisodes is called after each episode. It records the episode and pushes the
// running stats to web clients.
func exportEpisodes(
	hub *stream.Hub[reinforcement.Stats],
	db *episodelog.DB,
	logEvery int,
) reinforcement.ProgressFunc {
	return func(_ context.Context, stats reinforcement.Stats, episode *reinforcement.EpisodeSummary) {
		if db != nil {
			if err := db.Record(episode); err != nil {
				log.Println("record episode:", err)
			}
		}
		hub.Publish(stats)
		if logEvery > 0 && stats.Episodes%logEvery == 0 {
			log.Printf("episode %d: %d steps, reward %.1f, mean %.3f per step",
				stats.Episodes, len(episode.Steps), episode.TotalReward, stats.MeanStepReward)
		}
	}
}

func main() {
	parseFlags()
	if err := runApp(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

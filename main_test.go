package main

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"ptzcam/environment"
	"ptzcam/episodelog"
	"ptzcam/reinforcement"
	"ptzcam/server/stream"

	. "github.com/smartystreets/goconvey/convey"
)

func writePNG(t *testing.T, path string, width, height int, level uint8) {
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{level, level, level, 255}), image.Point{}, draw.Src)
	if err = png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFrames(t *testing.T) {
	Convey("When loading frames by glob", t, func() {
		dir := t.TempDir()

		Convey("An empty match is an error", func() {
			_, err := loadFrames(filepath.Join(dir, "*.png"))
			So(errors.Is(err, environment.ErrNoFrames), ShouldBeTrue)
		})

		Convey("Matches are replayed in lexical order", func() {
			writePNG(t, filepath.Join(dir, "frame_002.png"), 90, 50, 200)
			writePNG(t, filepath.Join(dir, "frame_000.png"), 90, 50, 0)
			writePNG(t, filepath.Join(dir, "frame_001.png"), 90, 50, 100)
			frames, err := loadFrames(filepath.Join(dir, "*.png"))
			So(err, ShouldBeNil)
			So(frames.FrameCount(), ShouldEqual, 3)
			for i, level := range []uint8{0, 100, 200} {
				frame, err := frames.Load(i)
				So(err, ShouldBeNil)
				So(frame.Pix[0], ShouldEqual, level)
			}

			Convey("And drive a recorded rollout", func() {
				cfg := reinforcement.DefaultTrainingConfig()
				cfg.Environment.Variant = environment.RECORDED
				cfg.Episodes = 2
				stats, err := reinforcement.Run(context.Background(), cfg, envFactory(cfg, frames), 2, nil)
				So(err, ShouldBeNil)
				So(stats.Episodes, ShouldEqual, 2)
				So(stats.Steps, ShouldEqual, 2*2)
			})
		})
	})
}

func TestExportEpisodes(t *testing.T) {
	Convey("Given a synthetic rollout exported to a hub and an episode log", t, func() {
		cfg := reinforcement.DefaultTrainingConfig()
		cfg.Episodes = 3
		cfg.MaxSteps = 10
		cfg.Environment.PrewarmSteps = 5

		db, err := episodelog.Open(":memory:")
		So(err, ShouldBeNil)
		defer db.Close()
		hub := stream.NewHub[reinforcement.Stats]()

		stats, err := reinforcement.Run(context.Background(), cfg, envFactory(cfg, nil), 2, exportEpisodes(hub, db, 1))
		So(err, ShouldBeNil)

		Convey("The hub holds the final stats", func() {
			latest, ok := hub.Latest()
			So(ok, ShouldBeTrue)
			So(latest.Episodes, ShouldEqual, 3)
			So(latest.TotalReward, ShouldEqual, stats.TotalReward)
		})

		Convey("Every episode is in the log", func() {
			episodes, err := db.Episodes(10)
			So(err, ShouldBeNil)
			So(len(episodes), ShouldEqual, 3)
			for _, ep := range episodes {
				So(ep.NumSteps, ShouldEqual, 10)
			}
		})
	})
}

// Command simulate drives a running barn server with synthetic camera frames.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/barn.report/internal/simulator"
	"github.com/banshee-data/barn.report/internal/timeutil"
)

func main() {
	def := simulator.DefaultConfig()
	var (
		baseURL  = flag.String("url", def.BaseURL, "Barn server base URL")
		frames   = flag.Int("frames", def.Frames, "Number of frames to send")
		interval = flag.Duration("interval", def.Interval, "Pause between frames")
		delay    = flag.Duration("delay", def.StartDelay, "Pause before the first frame")
		cameras  = flag.Int("cameras", def.CameraCount, "Number of cameras the robot visits")
		maxID    = flag.Int("max-id", def.MaxAnimalID, "Largest animal id to generate")
		seed     = flag.Uint64("seed", 0, "Random seed (0 picks one from the clock)")
	)
	flag.Parse()

	cfg := def
	cfg.BaseURL = *baseURL
	cfg.Frames = *frames
	cfg.Interval = *interval
	cfg.StartDelay = *delay
	cfg.CameraCount = *cameras
	cfg.MaxAnimalID = *maxID
	if *seed != 0 {
		cfg.Seed = *seed
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agent, err := simulator.NewAgent(cfg, timeutil.RealClock{}, os.Stdout)
	if err != nil {
		log.Fatalf("invalid simulator config: %v", err)
	}
	start := time.Now()
	sum, err := agent.Run(ctx)
	if err != nil {
		log.Printf("simulation stopped: %v", err)
	}
	log.Printf("sent %d observations over %d frames (%d failed) in %s",
		sum.Sent, sum.Frames, sum.Failed, time.Since(start).Round(time.Millisecond))
}

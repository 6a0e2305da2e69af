// Package simulator plays the part of the camera robot: it sweeps across the
// barn's cameras and posts randomly placed animals to a running server, the
// way the agent does during a feeding session.
package simulator

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/banshee-data/barn.report/internal/livestock"
	"github.com/banshee-data/barn.report/internal/timeutil"
)

// Config controls one simulated session.
type Config struct {
	BaseURL     string
	Frames      int
	Interval    time.Duration
	StartDelay  time.Duration
	CameraCount int
	FrameWidth  float64
	FrameHeight float64
	MinAnimals  int
	MaxAnimals  int
	MaxAnimalID int
	MaxAngle    float64
	Seed        uint64
}

// DefaultConfig mirrors the robot's usual pass: twenty frames, five seconds
// apart, three to seven of eleven animals in view.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:8080",
		Frames:      20,
		Interval:    5 * time.Second,
		StartDelay:  2 * time.Second,
		CameraCount: 4,
		FrameWidth:  1920,
		FrameHeight: 1300,
		MinAnimals:  3,
		MaxAnimals:  7,
		MaxAnimalID: 10,
		MaxAngle:    90,
		Seed:        uint64(time.Now().UnixNano()),
	}
}

func (c Config) validate() error {
	switch {
	case c.Frames < 1:
		return fmt.Errorf("frames must be positive, got %d", c.Frames)
	case c.CameraCount < 1:
		return fmt.Errorf("camera count must be positive, got %d", c.CameraCount)
	case c.MinAnimals < 1 || c.MaxAnimals < c.MinAnimals:
		return fmt.Errorf("invalid animal range %d..%d", c.MinAnimals, c.MaxAnimals)
	case c.MaxAnimalID < 0:
		return fmt.Errorf("max animal id must not be negative, got %d", c.MaxAnimalID)
	case c.Interval < 0 || c.StartDelay < 0:
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// CameraSequence returns the camera visited on each of frames frames. The
// robot runs to the last camera and back: 0,1,2,3,2,1,0,1,...
func CameraSequence(cameras, frames int) []int {
	if cameras < 1 || frames < 1 {
		return nil
	}
	cycle := make([]int, 0, 2*cameras)
	for i := 0; i < cameras; i++ {
		cycle = append(cycle, i)
	}
	for i := cameras - 2; i > 0; i-- {
		cycle = append(cycle, i)
	}
	seq := make([]int, frames)
	for i := range seq {
		seq[i] = cycle[i%len(cycle)]
	}
	return seq
}

// Payload is the observation body posted to the server.
type Payload struct {
	ID        int        `json:"id"`
	Position  [2]float64 `json:"position"`
	Angle     float64    `json:"angle"`
	Timestamp float64    `json:"timestamp"`
	CameraIdx int        `json:"camera_idx"`
}

// Generator draws random animals. IDs may repeat within a frame, as they do
// when the detector double-counts.
type Generator struct {
	cfg Config
	rng *rand.Rand
}

func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg, rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))}
}

// Frame returns the animals seen by cameraIdx at now.
func (g *Generator) Frame(cameraIdx int, now time.Time) []Payload {
	n := g.cfg.MinAnimals + g.rng.IntN(g.cfg.MaxAnimals-g.cfg.MinAnimals+1)
	ts := float64(now.Unix()) + float64(now.Nanosecond())/1e9
	out := make([]Payload, n)
	for i := range out {
		out[i] = Payload{
			ID:        g.rng.IntN(g.cfg.MaxAnimalID + 1),
			Position:  [2]float64{g.rng.Float64() * g.cfg.FrameWidth, g.rng.Float64() * g.cfg.FrameHeight},
			Angle:     g.rng.Float64() * g.cfg.MaxAngle,
			Timestamp: ts,
			CameraIdx: cameraIdx,
		}
	}
	return out
}

// Summary counts what a session sent.
type Summary struct {
	Frames int
	Sent   int
	Failed int
}

// Agent posts generated frames to the server.
type Agent struct {
	cfg    Config
	client *resty.Client
	gen    *Generator
	clock  timeutil.Clock
	out    io.Writer
}

// NewAgent builds an agent that prints one line per animal to out.
func NewAgent(cfg Config, clock timeutil.Clock, out io.Writer) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Agent{
		cfg:    cfg,
		client: client,
		gen:    NewGenerator(cfg),
		clock:  clock,
		out:    out,
	}, nil
}

// Run plays the session. A failed post is reported and the session goes on;
// only a cancelled ctx stops it early.
func (a *Agent) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	if err := a.clock.Sleep(ctx, a.cfg.StartDelay); err != nil {
		return sum, err
	}

	for frame, cam := range CameraSequence(a.cfg.CameraCount, a.cfg.Frames) {
		if frame > 0 {
			if err := a.clock.Sleep(ctx, a.cfg.Interval); err != nil {
				return sum, err
			}
		}
		fmt.Fprintf(a.out, "\n[agent] frame %d - camera %d (offset %.0fpx)\n", frame+1, cam+1, float64(cam)*a.cfg.FrameWidth)
		for _, p := range a.gen.Frame(cam, a.clock.Now()) {
			res, err := a.post(ctx, p)
			if err != nil {
				sum.Failed++
				fmt.Fprintf(a.out, "animal %d: %v\n", p.ID, err)
				continue
			}
			sum.Sent++
			fmt.Fprintf(a.out, "animal %s - state: %s - displacement: %.2fpx (%.2fcm) - camera: %d - time in state: %.2fs\n",
				res.ID, res.State, res.DisplacementPx, res.DisplacementCm, res.CameraIdx, res.CumulativeStateSeconds)
		}
		sum.Frames++
	}
	return sum, nil
}

type apiError struct {
	Error string `json:"error"`
}

func (a *Agent) post(ctx context.Context, p Payload) (livestock.Result, error) {
	var (
		res    livestock.Result
		errRes apiError
	)
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(p).
		SetResult(&res).
		SetError(&errRes).
		Post("/api/observations")
	if err != nil {
		return res, fmt.Errorf("post observation: %w", err)
	}
	if resp.IsError() {
		if errRes.Error != "" {
			return res, fmt.Errorf("server returned %d: %s", resp.StatusCode(), errRes.Error)
		}
		return res, fmt.Errorf("server returned %d", resp.StatusCode())
	}
	return res, nil
}

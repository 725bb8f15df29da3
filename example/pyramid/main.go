// Command pyramid stacks boxes into a pyramid, steps it headless and prints
// the step timings. With FEATHER2D_COMPARE_CHIPMUNK set, the same scene is
// also run through chipmunk for reference.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/akmonengine/feather2d"
	"github.com/akmonengine/feather2d/internal/config"
	"github.com/akmonengine/feather2d/shape"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/jakecoffman/cp/v2"
	"github.com/pkg/profile"
)

func main() {
	cfg := config.Load()

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if cfg.CPUProfile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}

	world, err := buildPyramid(cfg, logger)
	if err != nil {
		logger.Error("building the pyramid", slog.Any("error", err))
		os.Exit(1)
	}

	start := time.Now()
	for range cfg.Steps {
		if err := world.Step(cfg.TimeStep, cfg.VelocityIterations, cfg.PositionIterations); err != nil {
			logger.Error("step", slog.Any("error", err))
			os.Exit(1)
		}
	}
	elapsed := time.Since(start)

	p := world.Profile()
	fmt.Printf("feather2d: %d bodies, %d contacts, %d steps in %v\n",
		world.BodyCount(), world.ContactCount(), cfg.Steps, elapsed)
	printTimings("step", p.Step)
	printTimings("collide", p.Collide)
	printTimings("solve", p.Solve)
	printTimings("solve toi", p.SolveTOI)
	printTimings("broadphase", p.Broadphase)
	fmt.Printf("  tree height %d, balance %d, quality %.3f\n",
		world.TreeHeight(), world.TreeBalance(), world.TreeQuality())

	if cfg.CompareChipmunk {
		space := buildChipmunkPyramid(cfg)
		start := time.Now()
		for range cfg.Steps {
			space.Step(cfg.TimeStep)
		}
		fmt.Printf("chipmunk: %d steps in %v\n", cfg.Steps, time.Since(start))
	}
}

func printTimings(name string, t feather2d.Timings) {
	fmt.Printf("  %-10s avg %-12v min %-12v max %v\n", name, t.MovingAverage, t.Min, t.Max)
}

// buildPyramid creates a ground and cfg.PyramidRows rows of boxes.
func buildPyramid(cfg *config.Config, logger *slog.Logger) (*feather2d.World, error) {
	def := feather2d.DefaultWorldDef()
	def.Gravity = mgl64.Vec2{0, cfg.GravityY}
	def.AllowSleeping = cfg.AllowSleep
	def.WarmStarting = cfg.WarmStarting
	def.ContinuousPhysics = cfg.Continuous
	def.SubStepping = cfg.SubStepping
	def.Workers = cfg.Workers
	def.Logger = logger
	world := feather2d.NewWorld(def)

	ground, err := world.CreateBody(feather2d.DefaultBodyDef())
	if err != nil {
		return nil, err
	}
	edge := shape.NewEdge(mgl64.Vec2{-40, 0}, mgl64.Vec2{40, 0})
	if _, err := world.CreateFixture(ground, feather2d.DefaultFixtureDef(edge)); err != nil {
		return nil, err
	}

	a := cfg.BoxHalfSize
	box := shape.NewBox(a, a)

	x := mgl64.Vec2{-7, 0.75}
	deltaX := mgl64.Vec2{0.5625, 1.25}
	deltaY := mgl64.Vec2{1.125, 0}

	for i := range cfg.PyramidRows {
		y := x
		for j := i; j < cfg.PyramidRows; j++ {
			bd := feather2d.DefaultBodyDef()
			bd.Type = feather2d.DynamicBody
			bd.Position = y
			body, err := world.CreateBody(bd)
			if err != nil {
				return nil, err
			}

			fd := feather2d.DefaultFixtureDef(box)
			fd.Density = 5
			if _, err := world.CreateFixture(body, fd); err != nil {
				return nil, err
			}
			y = y.Add(deltaY)
		}
		x = x.Add(deltaX)
	}

	logger.Info("pyramid ready",
		slog.Int("bodies", world.BodyCount()),
		slog.Int("workers", cfg.Workers))
	return world, nil
}

// buildChipmunkPyramid builds the same scene in a chipmunk space.
func buildChipmunkPyramid(cfg *config.Config) *cp.Space {
	space := cp.NewSpace()
	space.Iterations = uint(cfg.VelocityIterations)
	space.SetGravity(cp.Vector{X: 0, Y: cfg.GravityY})

	ground := space.AddShape(cp.NewSegment(space.StaticBody, cp.Vector{X: -40}, cp.Vector{X: 40}, 0))
	ground.SetFriction(0.2)

	size := 2 * cfg.BoxHalfSize
	x := cp.Vector{X: -7, Y: 0.75}
	deltaX := cp.Vector{X: 0.5625, Y: 1.25}
	deltaY := cp.Vector{X: 1.125}

	for i := range cfg.PyramidRows {
		y := x
		for j := i; j < cfg.PyramidRows; j++ {
			mass := 5 * size * size
			body := space.AddBody(cp.NewBody(mass, cp.MomentForBox(mass, size, size)))
			body.SetPosition(y)

			s := space.AddShape(cp.NewBox(body, size, size, 0))
			s.SetFriction(0.2)
			y = y.Add(deltaY)
		}
		x = x.Add(deltaX)
	}

	return space
}

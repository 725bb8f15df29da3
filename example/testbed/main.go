// Command testbed renders a small scene with the world debug draw.
// Click to drop a box, space pauses, D toggles the AABBs and contact points.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/akmonengine/feather2d"
	"github.com/akmonengine/feather2d/constraint"
	"github.com/akmonengine/feather2d/internal/config"
	"github.com/akmonengine/feather2d/shape"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const (
	screenWidth  = 1280
	screenHeight = 720
	pixelsPerM   = 24
)

type Game struct {
	cfg    *config.Config
	world  *feather2d.World
	camera camera
	paused bool
	flags  feather2d.DrawFlags
}

func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.paused = !g.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyD) {
		g.flags ^= feather2d.DrawAABBs | feather2d.DrawContactPoints
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		if err := addBox(g.world, g.camera.toWorld(x, y), 0.5); err != nil {
			return err
		}
	}

	if g.paused {
		return nil
	}
	return g.world.Step(g.cfg.TimeStep, g.cfg.VelocityIterations, g.cfg.PositionIterations)
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.world.DrawDebugData(&debugDraw{screen: screen, camera: g.camera}, g.flags)

	p := g.world.Profile()
	ebitenutil.DebugPrint(screen, fmt.Sprintf(
		"bodies %d  contacts %d  step %v  fps %.0f",
		g.world.BodyCount(), g.world.ContactCount(), p.Step.MovingAverage, ebiten.ActualFPS()))
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	def := feather2d.DefaultWorldDef()
	def.Gravity = mgl64.Vec2{0, cfg.GravityY}
	def.AllowSleeping = cfg.AllowSleep
	def.WarmStarting = cfg.WarmStarting
	def.ContinuousPhysics = cfg.Continuous
	def.Workers = cfg.Workers
	def.Logger = logger
	world := feather2d.NewWorld(def)

	if err := buildScene(world); err != nil {
		logger.Error("building the scene", slog.Any("error", err))
		os.Exit(1)
	}

	world.Events.Subscribe(feather2d.ON_SLEEP, func(event feather2d.Event) {
		logger.Debug("body asleep", slog.String("body", event.(feather2d.SleepEvent).Body.String()))
	})

	game := &Game{
		cfg:    cfg,
		world:  world,
		camera: camera{center: mgl64.Vec2{0, 10}, scale: pixelsPerM},
		flags:  feather2d.DrawShapes | feather2d.DrawJoints | feather2d.DrawCenterOfMass,
	}

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("feather2d testbed")
	if err := ebiten.RunGame(game); err != nil {
		logger.Error("testbed", slog.Any("error", err))
		os.Exit(1)
	}
}

// buildScene creates a ground, a small stack, a pendulum and a chain loop bowl.
func buildScene(world *feather2d.World) error {
	ground, err := world.CreateBody(feather2d.DefaultBodyDef())
	if err != nil {
		return err
	}
	if _, err := world.CreateFixture(ground, feather2d.DefaultFixtureDef(
		shape.NewEdge(mgl64.Vec2{-25, 0}, mgl64.Vec2{25, 0}))); err != nil {
		return err
	}

	bowl, err := shape.NewChain([]mgl64.Vec2{{8, 8}, {10, 4}, {14, 3}, {18, 4}, {20, 8}}, mgl64.Vec2{6, 9}, mgl64.Vec2{22, 9})
	if err != nil {
		return err
	}
	if _, err := world.CreateFixture(ground, feather2d.DefaultFixtureDef(bowl)); err != nil {
		return err
	}

	for i := range 10 {
		if err := addBox(world, mgl64.Vec2{-8, 0.5 + float64(i)*1.05}, 0.5); err != nil {
			return err
		}
	}

	bd := feather2d.DefaultBodyDef()
	bd.Type = feather2d.DynamicBody
	bd.Position = mgl64.Vec2{4, 15}
	bob, err := world.CreateBody(bd)
	if err != nil {
		return err
	}
	circle, err := shape.NewCircle(mgl64.Vec2{}, 0.75)
	if err != nil {
		return err
	}
	fd := feather2d.DefaultFixtureDef(circle)
	fd.Density = 2
	if _, err := world.CreateFixture(bob, fd); err != nil {
		return err
	}

	_, err = world.CreateJoint(feather2d.JointDef{
		BodyA: ground,
		BodyB: bob,
		Params: &constraint.RevoluteJointDef{
			LocalAnchorA: mgl64.Vec2{0, 15},
			LocalAnchorB: mgl64.Vec2{-4, 0},
		},
	})
	return err
}

func addBox(world *feather2d.World, position mgl64.Vec2, halfSize float64) error {
	bd := feather2d.DefaultBodyDef()
	bd.Type = feather2d.DynamicBody
	bd.Position = position
	body, err := world.CreateBody(bd)
	if err != nil {
		return err
	}

	fd := feather2d.DefaultFixtureDef(shape.NewBox(halfSize, halfSize))
	fd.Density = 1
	fd.Friction = 0.6
	_, err = world.CreateFixture(body, fd)
	return err
}

package main

import (
	"image/color"
	"math"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// camera maps world meters (y up) to screen pixels (y down).
type camera struct {
	center mgl64.Vec2
	scale  float64
}

func (c camera) toScreen(p mgl64.Vec2) (float32, float32) {
	x := (p.X()-c.center.X())*c.scale + screenWidth/2
	y := screenHeight/2 - (p.Y()-c.center.Y())*c.scale
	return float32(x), float32(y)
}

func (c camera) toWorld(x, y int) mgl64.Vec2 {
	return mgl64.Vec2{
		(float64(x)-screenWidth/2)/c.scale + c.center.X(),
		(screenHeight/2-float64(y))/c.scale + c.center.Y(),
	}
}

// debugDraw implements feather2d.DebugDraw on an ebiten image.
type debugDraw struct {
	screen *ebiten.Image
	camera camera
}

func (d *debugDraw) stroke(p *vector.Path, c color.RGBA) {
	dpo := &vector.DrawPathOptions{AntiAlias: true}
	dpo.ColorScale.ScaleWithColor(c)
	vector.StrokePath(d.screen, p, &vector.StrokeOptions{Width: 1}, dpo)
}

func (d *debugDraw) fill(p *vector.Path, c color.RGBA) {
	dpo := &vector.DrawPathOptions{AntiAlias: true}
	dpo.ColorScale.ScaleWithColor(color.RGBA{c.R / 2, c.G / 2, c.B / 2, 128})
	vector.FillPath(d.screen, p, &vector.FillOptions{}, dpo)
}

func (d *debugDraw) polygonPath(vertices []mgl64.Vec2) *vector.Path {
	var p vector.Path
	for i, v := range vertices {
		x, y := d.camera.toScreen(v)
		if i == 0 {
			p.MoveTo(x, y)
		} else {
			p.LineTo(x, y)
		}
	}
	p.Close()
	return &p
}

func (d *debugDraw) DrawPolygon(vertices []mgl64.Vec2, c color.RGBA) {
	d.stroke(d.polygonPath(vertices), c)
}

func (d *debugDraw) DrawSolidPolygon(vertices []mgl64.Vec2, c color.RGBA) {
	p := d.polygonPath(vertices)
	d.fill(p, c)
	d.stroke(p, c)
}

func (d *debugDraw) circlePath(center mgl64.Vec2, radius float64) *vector.Path {
	x, y := d.camera.toScreen(center)
	var p vector.Path
	p.Arc(x, y, float32(radius*d.camera.scale), 0, 2*math.Pi, vector.Clockwise)
	p.Close()
	return &p
}

func (d *debugDraw) DrawCircle(center mgl64.Vec2, radius float64, c color.RGBA) {
	d.stroke(d.circlePath(center, radius), c)
}

func (d *debugDraw) DrawSolidCircle(center mgl64.Vec2, radius float64, axis mgl64.Vec2, c color.RGBA) {
	p := d.circlePath(center, radius)
	d.fill(p, c)
	d.stroke(p, c)
	d.DrawSegment(center, center.Add(axis.Mul(radius)), c)
}

func (d *debugDraw) DrawSegment(p1, p2 mgl64.Vec2, c color.RGBA) {
	x1, y1 := d.camera.toScreen(p1)
	x2, y2 := d.camera.toScreen(p2)
	var p vector.Path
	p.MoveTo(x1, y1)
	p.LineTo(x2, y2)
	d.stroke(&p, c)
}

func (d *debugDraw) DrawTransform(xf geom.Transform) {
	const axisScale = 0.4
	d.DrawSegment(xf.P, xf.P.Add(xf.Q.XAxis().Mul(axisScale)), color.RGBA{255, 0, 0, 255})
	d.DrawSegment(xf.P, xf.P.Add(xf.Q.YAxis().Mul(axisScale)), color.RGBA{0, 255, 0, 255})
}

func (d *debugDraw) DrawPoint(p mgl64.Vec2, size float64, c color.RGBA) {
	x, y := d.camera.toScreen(p)
	half := float32(size / 2)
	var path vector.Path
	path.MoveTo(x-half, y-half)
	path.LineTo(x+half, y-half)
	path.LineTo(x+half, y+half)
	path.LineTo(x-half, y+half)
	path.Close()

	dpo := &vector.DrawPathOptions{}
	dpo.ColorScale.ScaleWithColor(c)
	vector.FillPath(d.screen, &path, &vector.FillOptions{}, dpo)
}

package feather2d

import (
	"image/color"

	"github.com/akmonengine/feather2d/constraint"
	"github.com/akmonengine/feather2d/geom"
	"github.com/akmonengine/feather2d/internal/pool"
	"github.com/akmonengine/feather2d/shape"
	"github.com/go-gl/mathgl/mgl64"
)

// DebugDraw is implemented by renderers to visualize the world.
type DebugDraw interface {
	DrawPolygon(vertices []mgl64.Vec2, c color.RGBA)
	DrawSolidPolygon(vertices []mgl64.Vec2, c color.RGBA)
	DrawCircle(center mgl64.Vec2, radius float64, c color.RGBA)
	DrawSolidCircle(center mgl64.Vec2, radius float64, axis mgl64.Vec2, c color.RGBA)
	DrawSegment(p1, p2 mgl64.Vec2, c color.RGBA)
	// DrawTransform draws the axes of a frame.
	DrawTransform(xf geom.Transform)
	DrawPoint(p mgl64.Vec2, size float64, c color.RGBA)
}

// DrawFlags selects what DrawDebugData draws.
type DrawFlags uint8

const (
	DrawShapes DrawFlags = 1 << iota
	DrawJoints
	DrawAABBs
	DrawPairs
	DrawCenterOfMass
	DrawContactPoints
)

var (
	colorInactive  = color.RGBA{128, 128, 77, 255}
	colorStatic    = color.RGBA{128, 230, 128, 255}
	colorKinematic = color.RGBA{128, 128, 230, 255}
	colorAsleep    = color.RGBA{153, 153, 153, 255}
	colorAwake     = color.RGBA{230, 179, 179, 255}
	colorJoint     = color.RGBA{128, 204, 204, 255}
	colorPulley    = color.RGBA{77, 204, 204, 255}
	colorPair      = color.RGBA{77, 230, 230, 255}
	colorAABB      = color.RGBA{230, 77, 230, 255}
	colorPoint     = color.RGBA{77, 230, 77, 255}
)

// DrawDebugData draws the world with dd.
func (w *World) DrawDebugData(dd DebugDraw, flags DrawFlags) {
	if dd == nil {
		return
	}

	if flags&DrawShapes != 0 {
		w.bodies.All(func(_ pool.Handle, b *Body) bool {
			for _, f := range b.fixtures {
				drawShape(dd, f, b.xf, bodyColor(b))
			}
			return true
		})
	}

	if flags&DrawJoints != 0 {
		w.joints.All(func(_ pool.Handle, j *jointRecord) bool {
			drawJoint(dd, j)
			return true
		})
	}

	if flags&DrawPairs != 0 {
		w.contactManager.contacts.All(func(_ pool.Handle, c *Contact) bool {
			cA := c.fixtureA.body.WorldCenter()
			cB := c.fixtureB.body.WorldCenter()
			dd.DrawSegment(cA, cB, colorPair)
			return true
		})
	}

	if flags&DrawContactPoints != 0 {
		w.contactManager.contacts.All(func(_ pool.Handle, c *Contact) bool {
			if !c.IsTouching() {
				return true
			}
			wm := c.WorldManifold()
			for i := 0; i < c.manifold.PointCount; i++ {
				dd.DrawPoint(wm.Points[i], 4, colorPoint)
			}
			return true
		})
	}

	if flags&DrawAABBs != 0 {
		w.bodies.All(func(_ pool.Handle, b *Body) bool {
			if !b.IsActive() {
				return true
			}
			bp := w.contactManager.broadPhase
			for _, f := range b.fixtures {
				for _, proxy := range f.proxies {
					aabb := bp.FatAABB(proxy.ProxyID)
					dd.DrawPolygon([]mgl64.Vec2{
						aabb.LowerBound,
						{aabb.UpperBound.X(), aabb.LowerBound.Y()},
						aabb.UpperBound,
						{aabb.LowerBound.X(), aabb.UpperBound.Y()},
					}, colorAABB)
				}
			}
			return true
		})
	}

	if flags&DrawCenterOfMass != 0 {
		w.bodies.All(func(_ pool.Handle, b *Body) bool {
			xf := b.xf
			xf.P = b.WorldCenter()
			dd.DrawTransform(xf)
			return true
		})
	}
}

func bodyColor(b *Body) color.RGBA {
	switch {
	case !b.IsActive():
		return colorInactive
	case b.kind == StaticBody:
		return colorStatic
	case b.kind == KinematicBody:
		return colorKinematic
	case !b.IsAwake():
		return colorAsleep
	}
	return colorAwake
}

func drawShape(dd DebugDraw, f *Fixture, xf geom.Transform, c color.RGBA) {
	switch s := f.shape.(type) {
	case *shape.Circle:
		center := xf.Apply(s.Center)
		axis := xf.Q.Apply(mgl64.Vec2{1, 0})
		dd.DrawSolidCircle(center, s.Radius(), axis, c)

	case *shape.Edge:
		dd.DrawSegment(xf.Apply(s.V1), xf.Apply(s.V2), c)
		if !s.OneSided {
			dd.DrawPoint(xf.Apply(s.V1), 4, c)
			dd.DrawPoint(xf.Apply(s.V2), 4, c)
		}

	case *shape.Chain:
		v1 := xf.Apply(s.Vertices[0])
		for _, v := range s.Vertices[1:] {
			v2 := xf.Apply(v)
			dd.DrawSegment(v1, v2, c)
			v1 = v2
		}

	case *shape.Polygon:
		vertices := make([]mgl64.Vec2, s.Count)
		for i := range vertices {
			vertices[i] = xf.Apply(s.Vertices[i])
		}
		dd.DrawSolidPolygon(vertices, c)
	}
}

func drawJoint(dd DebugDraw, j *jointRecord) {
	xf1 := j.bodyA.xf
	xf2 := j.bodyB.xf
	x1 := xf1.P
	x2 := xf2.P
	p1 := j.joint.AnchorA(xf1)
	p2 := j.joint.AnchorB(xf2)

	switch joint := j.joint.(type) {
	case *constraint.DistanceJoint:
		dd.DrawSegment(p1, p2, colorJoint)

	case *constraint.PulleyJoint:
		s1 := joint.GroundAnchorA()
		s2 := joint.GroundAnchorB()
		dd.DrawSegment(s1, p1, colorPulley)
		dd.DrawSegment(s2, p2, colorPulley)
		dd.DrawSegment(s1, s2, colorPulley)

	case *constraint.MouseJoint:
		dd.DrawPoint(joint.Target(), 4, colorPoint)
		dd.DrawSegment(p2, joint.Target(), colorJoint)

	default:
		dd.DrawSegment(x1, p1, colorJoint)
		dd.DrawSegment(p1, p2, colorJoint)
		dd.DrawSegment(x2, p2, colorJoint)
	}
}

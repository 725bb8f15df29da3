package shape

import (
	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// Polygon is a convex polygon with counter-clockwise winding.
// Its skin radius is geom.PolygonRadius.
type Polygon struct {
	Centroid mgl64.Vec2
	Vertices [geom.MaxPolygonVertices]mgl64.Vec2
	Normals  [geom.MaxPolygonVertices]mgl64.Vec2
	Count    int
}

// NewPolygon computes the convex hull of points. Points closer than half the
// linear slop are welded. It fails when the hull is degenerate.
func NewPolygon(points []mgl64.Vec2) (*Polygon, error) {
	if len(points) > geom.MaxPolygonVertices {
		return nil, ErrTooManyVertices
	}
	if len(points) < 3 {
		return nil, ErrDegenerateHull
	}

	hull, ok := convexHull(points)
	if !ok {
		return nil, ErrDegenerateHull
	}

	p := &Polygon{Count: len(hull)}
	copy(p.Vertices[:], hull)

	for i := 0; i < p.Count; i++ {
		next := (i + 1) % p.Count
		edge := p.Vertices[next].Sub(p.Vertices[i])
		if edge.LenSqr() <= geom.Epsilon*geom.Epsilon {
			return nil, ErrDegenerateHull
		}
		p.Normals[i], _ = geom.Normalize(geom.CrossVS(edge, 1.0))
	}

	centroid, area := computeCentroid(p.Vertices[:p.Count])
	if area <= geom.Epsilon {
		return nil, ErrDegenerateHull
	}
	p.Centroid = centroid
	return p, nil
}

// NewBox builds an axis-aligned box with half-widths hx and hy.
func NewBox(hx, hy float64) *Polygon {
	p := &Polygon{Count: 4}
	p.Vertices[0] = mgl64.Vec2{-hx, -hy}
	p.Vertices[1] = mgl64.Vec2{hx, -hy}
	p.Vertices[2] = mgl64.Vec2{hx, hy}
	p.Vertices[3] = mgl64.Vec2{-hx, hy}
	p.Normals[0] = mgl64.Vec2{0, -1}
	p.Normals[1] = mgl64.Vec2{1, 0}
	p.Normals[2] = mgl64.Vec2{0, 1}
	p.Normals[3] = mgl64.Vec2{-1, 0}
	return p
}

// NewOrientedBox builds a box with half-widths hx and hy, centered on center and rotated by angle.
func NewOrientedBox(hx, hy float64, center mgl64.Vec2, angle float64) *Polygon {
	p := NewBox(hx, hy)
	p.Centroid = center

	xf := geom.NewTransform(center, angle)
	for i := 0; i < p.Count; i++ {
		p.Vertices[i] = xf.Apply(p.Vertices[i])
		p.Normals[i] = xf.Q.Apply(p.Normals[i])
	}
	return p
}

func (p *Polygon) Type() Type      { return TypePolygon }
func (p *Polygon) Radius() float64 { return geom.PolygonRadius }
func (p *Polygon) ChildCount() int { return 1 }

func (p *Polygon) TestPoint(xf geom.Transform, point mgl64.Vec2) bool {
	local := xf.ApplyInv(point)
	for i := 0; i < p.Count; i++ {
		if p.Normals[i].Dot(local.Sub(p.Vertices[i])) > 0 {
			return false
		}
	}
	return true
}

func (p *Polygon) RayCast(input geom.RayCastInput, xf geom.Transform, _ int) (geom.RayCastOutput, bool) {
	// Put the ray into the polygon's frame of reference.
	p1 := xf.ApplyInv(input.P1)
	p2 := xf.ApplyInv(input.P2)
	d := p2.Sub(p1)

	lower, upper := 0.0, input.MaxFraction
	index := -1

	for i := 0; i < p.Count; i++ {
		// p = p1 + a * d
		// dot(normal, p - v) = 0
		// dot(normal, p1 - v) + a * dot(normal, d) = 0
		numerator := p.Normals[i].Dot(p.Vertices[i].Sub(p1))
		denominator := p.Normals[i].Dot(d)

		if denominator == 0 {
			if numerator < 0 {
				return geom.RayCastOutput{}, false
			}
		} else {
			// The segment enters this half-space when denominator < 0, and leaves it when > 0.
			if denominator < 0 && numerator < lower*denominator {
				lower = numerator / denominator
				index = i
			} else if denominator > 0 && numerator < upper*denominator {
				upper = numerator / denominator
			}
		}

		if upper < lower {
			return geom.RayCastOutput{}, false
		}
	}

	if index >= 0 {
		return geom.RayCastOutput{Normal: xf.Q.Apply(p.Normals[index]), Fraction: lower}, true
	}
	return geom.RayCastOutput{}, false
}

func (p *Polygon) ComputeAABB(xf geom.Transform, _ int) geom.AABB {
	lower := xf.Apply(p.Vertices[0])
	upper := lower

	for i := 1; i < p.Count; i++ {
		v := xf.Apply(p.Vertices[i])
		lower = geom.MinVec(lower, v)
		upper = geom.MaxVec(upper, v)
	}

	r := mgl64.Vec2{geom.PolygonRadius, geom.PolygonRadius}
	return geom.AABB{LowerBound: lower.Sub(r), UpperBound: upper.Add(r)}
}

// ComputeMass integrates over the triangle fan rooted at the first vertex.
// The skin radius is ignored.
func (p *Polygon) ComputeMass(density float64) MassData {
	const inv3 = 1.0 / 3.0

	var center mgl64.Vec2
	area, inertia := 0.0, 0.0

	// Reference point inside the polygon keeps the fan well conditioned.
	s := p.Vertices[0]

	for i := 0; i < p.Count; i++ {
		e1 := p.Vertices[i].Sub(s)
		e2 := p.Vertices[(i+1)%p.Count].Sub(s)

		d := geom.Cross(e1, e2)
		triangleArea := 0.5 * d
		area += triangleArea

		// Area weighted centroid
		center = center.Add(e1.Add(e2).Mul(triangleArea * inv3))

		ex1, ey1 := e1[0], e1[1]
		ex2, ey2 := e2[0], e2[1]
		intx2 := ex1*ex1 + ex2*ex1 + ex2*ex2
		inty2 := ey1*ey1 + ey2*ey1 + ey2*ey2
		inertia += (0.25 * inv3 * d) * (intx2 + inty2)
	}

	md := MassData{Mass: density * area}
	if area <= geom.Epsilon {
		md.Center = s
		return md
	}

	center = center.Mul(1.0 / area)
	md.Center = center.Add(s)

	// Inertia about the reference point, shifted to the center of mass then to the origin.
	md.I = density*inertia + md.Mass*(md.Center.Dot(md.Center)-center.Dot(center))
	return md
}

// Validate checks convexity. Useful for polygons built by hand.
func (p *Polygon) Validate() bool {
	for i := 0; i < p.Count; i++ {
		i2 := (i + 1) % p.Count
		e := p.Vertices[i2].Sub(p.Vertices[i])

		for j := 0; j < p.Count; j++ {
			if j == i || j == i2 {
				continue
			}
			if geom.Cross(e, p.Vertices[j].Sub(p.Vertices[i])) < 0 {
				return false
			}
		}
	}
	return true
}

func computeCentroid(vs []mgl64.Vec2) (mgl64.Vec2, float64) {
	const inv3 = 1.0 / 3.0

	var c mgl64.Vec2
	area := 0.0
	origin := vs[0]

	for i := 1; i < len(vs)-1; i++ {
		e1 := vs[i].Sub(origin)
		e2 := vs[i+1].Sub(origin)
		a := 0.5 * geom.Cross(e1, e2)

		c = c.Add(e1.Add(e2).Mul(a * inv3))
		area += a
	}

	if area <= geom.Epsilon {
		return origin, area
	}
	return c.Mul(1.0 / area).Add(origin), area
}

// convexHull runs gift wrapping over the welded point set.
func convexHull(points []mgl64.Vec2) ([]mgl64.Vec2, bool) {
	const weldSqr = (0.5 * geom.LinearSlop) * (0.5 * geom.LinearSlop)

	ps := make([]mgl64.Vec2, 0, len(points))
	for _, v := range points {
		unique := true
		for _, w := range ps {
			if geom.DistanceSquared(v, w) < weldSqr {
				unique = false
				break
			}
		}
		if unique {
			ps = append(ps, v)
		}
	}
	if len(ps) < 3 {
		return nil, false
	}

	// right most point, lowest y on ties
	i0 := 0
	for i := 1; i < len(ps); i++ {
		if ps[i][0] > ps[i0][0] || (ps[i][0] == ps[i0][0] && ps[i][1] < ps[i0][1]) {
			i0 = i
		}
	}

	hull := make([]int, 0, len(ps))
	ih := i0
	for {
		hull = append(hull, ih)
		if len(hull) > len(ps) {
			return nil, false
		}

		ie := 0
		for j := 1; j < len(ps); j++ {
			if ie == ih {
				ie = j
				continue
			}

			r := ps[ie].Sub(ps[ih])
			v := ps[j].Sub(ps[ih])
			c := geom.Cross(r, v)
			if c < 0 {
				ie = j
			}

			// Collinear, keep the farthest.
			if c == 0 && v.LenSqr() > r.LenSqr() {
				ie = j
			}
		}

		ih = ie
		if ie == i0 {
			break
		}
	}

	if len(hull) < 3 {
		return nil, false
	}

	out := make([]mgl64.Vec2, len(hull))
	for i, idx := range hull {
		out[i] = ps[idx]
	}
	return out, true
}

package shape

import (
	"errors"
	"math"
	"testing"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func TestCircleMass(t *testing.T) {
	c, err := NewCircle(mgl64.Vec2{1, 0}, 0.5)
	require.NoError(t, err)

	md := c.ComputeMass(2)
	require.InDelta(t, 2*math.Pi*0.25, md.Mass, 1e-12)
	require.Equal(t, mgl64.Vec2{1, 0}, md.Center)
	require.InDelta(t, md.Mass*(0.5*0.25+1), md.I, 1e-12)

	_, err = NewCircle(mgl64.Vec2{}, 0)
	require.ErrorIs(t, err, ErrNonPositiveRadius)
}

func TestBoxMass(t *testing.T) {
	box := NewBox(1, 0.5)
	md := box.ComputeMass(1)

	// 2x1 box: area 2, I = m(w²+h²)/12
	require.InDelta(t, 2.0, md.Mass, 1e-12)
	require.InDelta(t, 0.0, md.Center.X(), 1e-12)
	require.InDelta(t, 0.0, md.Center.Y(), 1e-12)
	require.InDelta(t, 2.0*(4.0+1.0)/12.0, md.I, 1e-12)
}

func TestOrientedBoxMassMatchesHull(t *testing.T) {
	center := mgl64.Vec2{2, -1}
	oriented := NewOrientedBox(0.5, 0.25, center, 0.7)

	hull, err := NewPolygon(oriented.Vertices[:oriented.Count])
	require.NoError(t, err)

	a := oriented.ComputeMass(3)
	b := hull.ComputeMass(3)
	require.InDelta(t, a.Mass, b.Mass, 1e-9)
	require.InDelta(t, a.I, b.I, 1e-9)
	require.InDelta(t, center.X(), b.Center.X(), 1e-9)
	require.InDelta(t, center.Y(), b.Center.Y(), 1e-9)
	require.True(t, hull.Validate())
}

func TestNewPolygon(t *testing.T) {
	tests := []struct {
		name      string
		points    []mgl64.Vec2
		wantCount int
		wantErr   error
	}{
		{
			name:      "square with interior point",
			points:    []mgl64.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0.5, 0.5}},
			wantCount: 4,
		},
		{
			name:      "clockwise triangle is rewound",
			points:    []mgl64.Vec2{{0, 0}, {0, 1}, {1, 0}},
			wantCount: 3,
		},
		{
			name:    "collinear",
			points:  []mgl64.Vec2{{0, 0}, {1, 0}, {2, 0}},
			wantErr: ErrDegenerateHull,
		},
		{
			name:    "welded duplicates",
			points:  []mgl64.Vec2{{0, 0}, {0.0001, 0}, {1, 1}},
			wantErr: ErrDegenerateHull,
		},
		{
			name:    "too many",
			points:  make([]mgl64.Vec2, geom.MaxPolygonVertices+1),
			wantErr: ErrTooManyVertices,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPolygon(tt.points)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("NewPolygon() error got %v, want %v", err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			if p.Count != tt.wantCount {
				t.Errorf("Count got %v, want %v", p.Count, tt.wantCount)
			}
			require.True(t, p.Validate())
			for i := 0; i < p.Count; i++ {
				require.InDelta(t, 1.0, p.Normals[i].Len(), 1e-12)
			}
		})
	}
}

func TestPolygonTestPoint(t *testing.T) {
	box := NewBox(1, 1)
	xf := geom.NewTransform(mgl64.Vec2{5, 0}, math.Pi/4)

	require.True(t, box.TestPoint(xf, mgl64.Vec2{5, 0}))
	require.True(t, box.TestPoint(xf, mgl64.Vec2{5, 1.3}))
	require.False(t, box.TestPoint(xf, mgl64.Vec2{6, 1}))
}

func TestRayCast(t *testing.T) {
	circle, _ := NewCircle(mgl64.Vec2{}, 1)
	box := NewBox(1, 1)
	edge := NewEdge(mgl64.Vec2{-1, 0}, mgl64.Vec2{1, 0})
	oneSided := NewOneSidedEdge(mgl64.Vec2{-2, 0}, mgl64.Vec2{-1, 0}, mgl64.Vec2{1, 0}, mgl64.Vec2{2, 0})

	xf := geom.IdentityTransform()
	down := geom.RayCastInput{P1: mgl64.Vec2{0, 3}, P2: mgl64.Vec2{0, -3}, MaxFraction: 1}
	up := geom.RayCastInput{P1: mgl64.Vec2{0, -3}, P2: mgl64.Vec2{0, 3}, MaxFraction: 1}

	tests := []struct {
		name         string
		shape        Shape
		input        geom.RayCastInput
		wantHit      bool
		wantFraction float64
		wantNormalY  float64
	}{
		{"circle", circle, down, true, 2.0 / 6.0, 1},
		{"box", box, down, true, 2.0 / 6.0, 1},
		{"two sided edge from above", edge, down, true, 0.5, 1},
		{"two sided edge from below", edge, up, true, 0.5, -1},
		// the right side of (-1,0)->(1,0) is below
		{"one sided edge front", oneSided, up, true, 0.5, -1},
		{"one sided edge back", oneSided, down, false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, hit := tt.shape.RayCast(tt.input, xf, 0)
			if hit != tt.wantHit {
				t.Fatalf("RayCast() hit got %v, want %v", hit, tt.wantHit)
			}
			if !hit {
				return
			}
			require.InDelta(t, tt.wantFraction, out.Fraction, 1e-9)
			require.InDelta(t, tt.wantNormalY, out.Normal.Y(), 1e-9)
		})
	}
}

func TestChain(t *testing.T) {
	square := []mgl64.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

	loop, err := NewLoop(square)
	require.NoError(t, err)
	require.Equal(t, 4, loop.ChildCount())

	first := loop.ChildEdge(0)
	require.Equal(t, mgl64.Vec2{0, 1}, first.V0)
	require.Equal(t, mgl64.Vec2{0, 0}, first.V1)
	require.Equal(t, mgl64.Vec2{1, 0}, first.V2)
	require.Equal(t, mgl64.Vec2{1, 1}, first.V3)
	require.True(t, first.OneSided)

	last := loop.ChildEdge(3)
	require.Equal(t, mgl64.Vec2{1, 1}, last.V0)
	require.Equal(t, mgl64.Vec2{0, 0}, last.V2)
	require.Equal(t, mgl64.Vec2{1, 0}, last.V3)

	open, err := NewChain(square[:3], mgl64.Vec2{-1, 0}, mgl64.Vec2{1, 2})
	require.NoError(t, err)
	require.Equal(t, 2, open.ChildCount())
	require.Equal(t, mgl64.Vec2{-1, 0}, open.ChildEdge(0).V0)
	require.Equal(t, mgl64.Vec2{1, 2}, open.ChildEdge(1).V3)

	aabb := open.ComputeAABB(geom.IdentityTransform(), 1)
	require.InDelta(t, 1-geom.PolygonRadius, aabb.LowerBound.X(), 1e-12)
	require.InDelta(t, 1+geom.PolygonRadius, aabb.UpperBound.Y(), 1e-12)

	_, err = NewChain([]mgl64.Vec2{{0, 0}}, mgl64.Vec2{}, mgl64.Vec2{})
	require.ErrorIs(t, err, ErrChainTooShort)

	_, err = NewLoop([]mgl64.Vec2{{0, 0}, {0.001, 0}, {1, 1}})
	require.ErrorIs(t, err, ErrVerticesTooClose)
}

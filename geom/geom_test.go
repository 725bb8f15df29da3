package geom

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func TestRotRoundTrip(t *testing.T) {
	angles := []float64{0, 0.3, -1.2, math.Pi / 2, math.Pi}
	v := mgl64.Vec2{1.5, -0.25}

	for _, angle := range angles {
		q := NewRot(angle)
		back := q.ApplyInv(q.Apply(v))
		require.InDelta(t, v.X(), back.X(), 1e-12)
		require.InDelta(t, v.Y(), back.Y(), 1e-12)
		require.InDelta(t, math.Atan2(math.Sin(angle), math.Cos(angle)), q.Angle(), 1e-12)

		m := q.Mat2().Mul2x1(v)
		r := q.Apply(v)
		require.InDelta(t, m.X(), r.X(), 1e-12)
		require.InDelta(t, m.Y(), r.Y(), 1e-12)
	}
}

func TestTransformMulT(t *testing.T) {
	a := NewTransform(mgl64.Vec2{1, 2}, 0.4)
	b := NewTransform(mgl64.Vec2{-3, 0.5}, -1.1)
	p := mgl64.Vec2{0.7, 0.2}

	// a^-1 * b maps p the same as applying b then the inverse of a
	rel := a.MulT(b)
	want := a.ApplyInv(b.Apply(p))
	got := rel.Apply(p)
	require.InDelta(t, want.X(), got.X(), 1e-12)
	require.InDelta(t, want.Y(), got.Y(), 1e-12)

	composed := a.Mul(rel)
	got = composed.Apply(p)
	want = b.Apply(p)
	require.InDelta(t, want.X(), got.X(), 1e-12)
	require.InDelta(t, want.Y(), got.Y(), 1e-12)
}

func TestSweep(t *testing.T) {
	s := Sweep{
		LocalCenter: mgl64.Vec2{0.5, 0},
		C0:          mgl64.Vec2{0, 0},
		C:           mgl64.Vec2{4, 0},
		A0:          0,
		A:           1,
	}

	xf := s.Transform(0.5)
	center := xf.Apply(s.LocalCenter)
	require.InDelta(t, 2.0, center.X(), 1e-12)
	require.InDelta(t, 0.5, xf.Q.Angle(), 1e-12)

	s.Advance(0.5)
	require.InDelta(t, 0.5, s.Alpha0, 1e-12)
	require.InDelta(t, 2.0, s.C0.X(), 1e-12)
	require.InDelta(t, 0.5, s.A0, 1e-12)

	s.A0 = 7
	s.A = 7.5
	s.Normalize()
	require.InDelta(t, 0.5, s.A-s.A0, 1e-12)
	require.True(t, s.A0 >= 0 && s.A0 < 2*math.Pi)
}

func TestAABB(t *testing.T) {
	a := AABB{LowerBound: mgl64.Vec2{0, 0}, UpperBound: mgl64.Vec2{2, 1}}
	b := AABB{LowerBound: mgl64.Vec2{1, 0.5}, UpperBound: mgl64.Vec2{3, 3}}
	c := AABB{LowerBound: mgl64.Vec2{5, 5}, UpperBound: mgl64.Vec2{6, 6}}

	tests := []struct {
		name string
		a, b AABB
		want bool
	}{
		{"overlapping", a, b, true},
		{"disjoint", a, c, false},
		{"self", a, a, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() got %v, want %v", got, tt.want)
			}
		})
	}

	combined := a.Combine(c)
	require.True(t, combined.Contains(a))
	require.True(t, combined.Contains(c))
	require.InDelta(t, 24.0, combined.Perimeter(), 1e-12)
	require.True(t, a.Fatten(0.1).Contains(a))
	require.False(t, a.Contains(a.Fatten(0.1)))
}

func TestAABBRayCast(t *testing.T) {
	box := AABB{LowerBound: mgl64.Vec2{-1, -1}, UpperBound: mgl64.Vec2{1, 1}}

	out, hit := box.RayCast(RayCastInput{P1: mgl64.Vec2{-3, 0}, P2: mgl64.Vec2{3, 0}, MaxFraction: 1})
	require.True(t, hit)
	require.InDelta(t, 1.0/3.0, out.Fraction, 1e-12)
	require.Equal(t, mgl64.Vec2{-1, 0}, out.Normal)

	_, hit = box.RayCast(RayCastInput{P1: mgl64.Vec2{-3, 2}, P2: mgl64.Vec2{3, 2}, MaxFraction: 1})
	require.False(t, hit)

	_, hit = box.RayCast(RayCastInput{P1: mgl64.Vec2{-3, 0}, P2: mgl64.Vec2{3, 0}, MaxFraction: 0.2})
	require.False(t, hit)
}

func TestSolve(t *testing.T) {
	a := mgl64.Mat3FromCols(
		mgl64.Vec3{4, 1, 0},
		mgl64.Vec3{1, 3, 1},
		mgl64.Vec3{0, 1, 2},
	)
	x := mgl64.Vec3{1, -2, 0.5}
	b := a.Mul3x1(x)

	got := Solve33(a, b)
	for i := range 3 {
		require.InDelta(t, x[i], got[i], 1e-9)
	}

	x2 := Solve22(a, mgl64.Vec2{5, 4})
	require.InDelta(t, 1.0, x2.X(), 1e-9)
	require.InDelta(t, 1.0, x2.Y(), 1e-9)

	singular := mgl64.Mat3{}
	require.Equal(t, mgl64.Vec2{}, Solve22(singular, mgl64.Vec2{1, 1}))
	require.Equal(t, mgl64.Vec3{}, Solve33(singular, mgl64.Vec3{1, 1, 1}))
}

func TestClamp(t *testing.T) {
	require.Equal(t, 3, Clamp(5, 0, 3))
	require.Equal(t, -1.0, Clamp(-4.0, -1.0, 1.0))
	require.Equal(t, 0.5, Clamp(0.5, 0.0, 1.0))
}

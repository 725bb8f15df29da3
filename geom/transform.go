package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Rot is a rotation stored as its sine and cosine.
type Rot struct {
	S, C float64
}

// NewRot creates a rotation from an angle in radians.
func NewRot(angle float64) Rot {
	return Rot{S: math.Sin(angle), C: math.Cos(angle)}
}

// IdentityRot is the zero rotation.
func IdentityRot() Rot {
	return Rot{S: 0, C: 1}
}

// Angle returns the rotation angle in radians, in [-pi, pi].
func (q Rot) Angle() float64 {
	return math.Atan2(q.S, q.C)
}

// XAxis returns the rotated x axis.
func (q Rot) XAxis() mgl64.Vec2 {
	return mgl64.Vec2{q.C, q.S}
}

// YAxis returns the rotated y axis.
func (q Rot) YAxis() mgl64.Vec2 {
	return mgl64.Vec2{-q.S, q.C}
}

// Mat2 returns the rotation as a column-major matrix.
func (q Rot) Mat2() mgl64.Mat2 {
	return mgl64.Mat2{q.C, q.S, -q.S, q.C}
}

// Apply rotates v.
func (q Rot) Apply(v mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{q.C*v[0] - q.S*v[1], q.S*v[0] + q.C*v[1]}
}

// ApplyInv rotates v by the inverse rotation.
func (q Rot) ApplyInv(v mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{q.C*v[0] + q.S*v[1], -q.S*v[0] + q.C*v[1]}
}

// Mul returns q * r.
func (q Rot) Mul(r Rot) Rot {
	return Rot{
		S: q.S*r.C + q.C*r.S,
		C: q.C*r.C - q.S*r.S,
	}
}

// MulT returns transpose(q) * r.
func (q Rot) MulT(r Rot) Rot {
	return Rot{
		S: q.C*r.S - q.S*r.C,
		C: q.C*r.C + q.S*r.S,
	}
}

// Transform is a translation plus a rotation. It represents the position
// and orientation of a rigid frame.
type Transform struct {
	P mgl64.Vec2
	Q Rot
}

// NewTransform creates a transform from a position and an angle.
func NewTransform(position mgl64.Vec2, angle float64) Transform {
	return Transform{P: position, Q: NewRot(angle)}
}

// IdentityTransform returns the identity transform.
func IdentityTransform() Transform {
	return Transform{Q: IdentityRot()}
}

// Apply maps a local point to the transform's parent frame.
func (t Transform) Apply(v mgl64.Vec2) mgl64.Vec2 {
	return t.Q.Apply(v).Add(t.P)
}

// ApplyInv maps a parent-frame point into the transform's local frame.
func (t Transform) ApplyInv(v mgl64.Vec2) mgl64.Vec2 {
	return t.Q.ApplyInv(v.Sub(t.P))
}

// Mul composes two transforms: the result maps through b then t.
func (t Transform) Mul(b Transform) Transform {
	return Transform{
		P: t.Q.Apply(b.P).Add(t.P),
		Q: t.Q.Mul(b.Q),
	}
}

// MulT returns inverse(t) * b.
func (t Transform) MulT(b Transform) Transform {
	return Transform{
		P: t.Q.ApplyInv(b.P.Sub(t.P)),
		Q: t.Q.MulT(b.Q),
	}
}

// Sweep describes the motion of a body for time of impact computation.
// Shapes are defined relative to the body origin, which may not coincide
// with the center of mass; the sweep tracks the center of mass.
type Sweep struct {
	LocalCenter mgl64.Vec2 // local center of mass position
	C0, C       mgl64.Vec2 // center world positions
	A0, A       float64    // world angles

	// Alpha0 is the fraction of the current time step in [0,1];
	// C0 and A0 are the positions at Alpha0.
	Alpha0 float64
}

// Transform returns the interpolated transform at beta in [0,1],
// where 0 is the start of the step and 1 the end.
func (s Sweep) Transform(beta float64) Transform {
	p := s.C0.Mul(1.0 - beta).Add(s.C.Mul(beta))
	angle := (1.0-beta)*s.A0 + beta*s.A
	q := NewRot(angle)

	// shift to origin
	p = p.Sub(q.Apply(s.LocalCenter))
	return Transform{P: p, Q: q}
}

// Advance moves the start of the sweep forward to alpha.
func (s *Sweep) Advance(alpha float64) {
	beta := (alpha - s.Alpha0) / (1.0 - s.Alpha0)
	s.C0 = s.C0.Add(s.C.Sub(s.C0).Mul(beta))
	s.A0 += beta * (s.A - s.A0)
	s.Alpha0 = alpha
}

// Normalize brings the angles into [-pi, pi] without changing the motion.
func (s *Sweep) Normalize() {
	twoPi := 2.0 * math.Pi
	d := twoPi * math.Floor(s.A0/twoPi)
	s.A0 -= d
	s.A -= d
}

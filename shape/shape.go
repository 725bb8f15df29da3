// Package shape defines the immutable collision geometry attached to bodies:
// circles, convex polygons, edges and chains. Shapes are expressed in body
// local coordinates and carry a skin radius used by collision and time of impact.
package shape

import (
	"errors"

	"github.com/akmonengine/feather2d/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// Type identifies the concrete shape. The set is closed.
type Type int

const (
	TypeCircle Type = iota
	TypeEdge
	TypePolygon
	TypeChain

	TypeCount
)

func (t Type) String() string {
	switch t {
	case TypeCircle:
		return "circle"
	case TypeEdge:
		return "edge"
	case TypePolygon:
		return "polygon"
	case TypeChain:
		return "chain"
	}
	return "unknown"
}

var (
	ErrDegenerateHull    = errors.New("shape: points do not form a convex hull with a positive area")
	ErrTooManyVertices   = errors.New("shape: too many polygon vertices")
	ErrChainTooShort     = errors.New("shape: not enough chain vertices")
	ErrVerticesTooClose  = errors.New("shape: chain vertices are too close together")
	ErrNonPositiveRadius = errors.New("shape: radius must be positive")
)

// MassData holds the mass properties computed for a shape.
type MassData struct {
	// Mass of the shape, usually in kilograms.
	Mass float64
	// Center is the position of the shape's centroid relative to the shape's origin.
	Center mgl64.Vec2
	// I is the rotational inertia of the shape about the local origin.
	I float64
}

// Shape is implemented by *Circle, *Edge, *Polygon and *Chain.
type Shape interface {
	Type() Type
	// Radius is the skin radius for polygons, edges and chains, and the actual radius for circles.
	Radius() float64
	// ChildCount is the number of child primitives; a chain has one child per edge.
	ChildCount() int
	// TestPoint checks a world point for containment. Always false for edges and chains.
	TestPoint(xf geom.Transform, p mgl64.Vec2) bool
	// RayCast casts a ray against a child shape.
	RayCast(input geom.RayCastInput, xf geom.Transform, childIndex int) (geom.RayCastOutput, bool)
	// ComputeAABB returns the world bounding box of a child shape.
	ComputeAABB(xf geom.Transform, childIndex int) geom.AABB
	// ComputeMass returns the mass properties for the given density.
	ComputeMass(density float64) MassData
}

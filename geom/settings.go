package geom

import "math"

// Global tuning constants shared by collision and dynamics. Lengths are in meters.
const (
	// Epsilon is the threshold below which lengths and determinants are treated as zero.
	Epsilon = 1e-12

	// MaxManifoldPoints is the number of contact points between two convex shapes.
	MaxManifoldPoints = 2

	// MaxPolygonVertices bounds the vertex count of a convex polygon.
	MaxPolygonVertices = 8

	// AABBExtension fattens broad-phase AABBs so proxies can move a bit
	// without triggering a tree update.
	AABBExtension = 0.1

	// AABBMultiplier scales the displacement used to predict the fat AABB.
	AABBMultiplier = 2.0

	// LinearSlop is the collision and constraint tolerance.
	LinearSlop = 0.005

	// AngularSlop is the angular counterpart of LinearSlop.
	AngularSlop = 2.0 / 180.0 * math.Pi

	// PolygonRadius is the skin radius of polygons, edges and chains.
	PolygonRadius = 2.0 * LinearSlop

	// ReferenceFaceTolerance biases polygon clipping toward keeping
	// polygon A as the reference face when separations are nearly equal.
	ReferenceFaceTolerance = 0.1 * LinearSlop
)

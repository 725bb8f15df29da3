package collide

import (
	"github.com/akmonengine/feather2d/geom"
	"github.com/akmonengine/feather2d/gjk"
	"github.com/akmonengine/feather2d/shape"
)

// TestOverlap reports whether two shape children overlap, including their skin radii.
func TestOverlap(shapeA shape.Shape, indexA int, shapeB shape.Shape, indexB int, xfA, xfB geom.Transform) bool {
	input := gjk.Input{
		ProxyA:     gjk.MakeProxy(shapeA, indexA),
		ProxyB:     gjk.MakeProxy(shapeB, indexB),
		TransformA: xfA,
		TransformB: xfB,
		UseRadii:   true,
	}

	var cache gjk.SimplexCache
	output := gjk.Distance(&input, &cache)

	return output.Distance < 10*geom.Epsilon
}
